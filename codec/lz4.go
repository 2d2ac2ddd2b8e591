package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"

	"github.com/coreweb/engine/cmn"
)

// lz4Codec is not part of spec.md's required three (gzip/brotli/zstd) but
// mirrors the teacher's api/apc.LZ4Compression content-encoding, offered as
// an extra negotiable encoding via Accept-Encoding/Content-Encoding: lz4.
type lz4Codec struct{}

func init() { register(lz4Codec{}) }

func (lz4Codec) Name() Name { return LZ4 }

func (lz4Codec) Compress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := (lz4Codec{}).CompressStream(&buf, bytes.NewReader(src), 32*1024, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := (lz4Codec{}).DecompressStream(&buf, bytes.NewReader(src), 32*1024, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) CompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	zw := lz4.NewWriter(w)
	if opts.Level > 0 {
		_ = zw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(opts.Level)))
	}
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(zw, r, buf); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	return cmn.Wrap(zw.Close(), cmn.KindCodec, "")
}

func (lz4Codec) DecompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	zr := lz4.NewReader(r)
	lw := &limitedWriter{w: w, n: opts.bombLimit()}
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(lw, zr, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecTruncated)
		}
		return err
	}
	return nil
}
