// Package codec implements the streaming compression codecs used by the
// HTTP cache and transport layers: gzip, brotli, zstd, and an optional LZ4
// content-encoding (spec.md §4.1). Grounded on the teacher's
// api/apc/compression.go enum (CompressAlways/CompressNever, the LZ4
// alternate encoding) and backed by the klauspost/compress and
// andybalholm/brotli libraries already present in the example corpus.
package codec

import (
	"io"

	"github.com/coreweb/engine/cmn"
)

// Name identifies a codec.
type Name string

const (
	Gzip   Name = "gzip"
	Brotli Name = "br"
	Zstd   Name = "zstd"
	LZ4    Name = "lz4" // teacher's api/apc.LZ4Compression, offered beyond the spec's required three
)

// BrotliMode mirrors brotli's generic/text/font tuning.
type BrotliMode int

const (
	BrotliGeneric BrotliMode = iota
	BrotliText
	BrotliFont
)

// Options configures a single compress/decompress call.
type Options struct {
	Level      int        // compression level; codec-specific range, 0 = default
	Mode       BrotliMode // brotli tuning hint; not passed to the brotli encoder
	WindowSize int        // 0 = codec default; used by brotli only
	Dictionary []byte     // optional preset dictionary; used by zstd's Compress/Decompress only, not its streaming calls or brotli
	Workers    int        // carried for callers; no codec reads it
	// MaxDecompressedSize caps decompression output to guard against
	// decompression bombs (spec.md §4.1). 0 means "use DefaultBombLimit".
	MaxDecompressedSize int64
}

// DefaultBombLimit is the decompression cap applied when Options doesn't
// specify one: generous for legitimate HTML/CSS/JS payloads, far below what
// a crafted compression bomb would need to exhaust process memory.
const DefaultBombLimit = 256 << 20 // 256 MiB

func (o Options) bombLimit() int64 {
	if o.MaxDecompressedSize > 0 {
		return o.MaxDecompressedSize
	}
	return DefaultBombLimit
}

// Codec is a streaming compressor/decompressor for one wire format.
type Codec interface {
	Name() Name
	Compress(src []byte, opts Options) ([]byte, error)
	Decompress(src []byte, opts Options) ([]byte, error)
	// CompressStream reads all of r, compresses it, and writes the result
	// to w in bufSize chunks.
	CompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error
	// DecompressStream is the inverse, enforcing opts' bomb limit.
	DecompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error
}

// For returns the registered Codec for name, or (nil, false).
func For(name Name) (Codec, bool) {
	c, ok := registry[name]
	return c, ok
}

var registry = map[Name]Codec{}

func register(c Codec) { registry[c.Name()] = c }

// limitedWriter caps the number of bytes written before erroring, used to
// enforce DecompressStream's bomb limit without buffering the whole output.
type limitedWriter struct {
	w  io.Writer
	n  int64
	ok int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.ok+int64(len(p)) > l.n {
		return 0, cmn.New(cmn.KindCodec, cmn.ReasonCodecBombLimit)
	}
	n, err := l.w.Write(p)
	l.ok += int64(n)
	return n, err
}
