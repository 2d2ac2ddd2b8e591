package codec

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/coreweb/engine/cmn"
)

type brotliCodec struct{}

func init() { register(brotliCodec{}) }

func (brotliCodec) Name() Name { return Brotli }

func (brotliCodec) Compress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := (brotliCodec{}).CompressStream(&buf, bytes.NewReader(src), 32*1024, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := (brotliCodec{}).DecompressStream(&buf, bytes.NewReader(src), 32*1024, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCodec) CompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	quality := opts.Level
	if quality == 0 {
		quality = brotli.DefaultCompression
	}
	wopts := brotli.WriterOptions{Quality: quality}
	if opts.WindowSize > 0 {
		wopts.LGWin = opts.WindowSize
	}
	zw := brotli.NewWriterOptions(w, wopts)
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(zw, r, buf); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	if err := zw.Close(); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	return nil
}

func (brotliCodec) DecompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	zr := brotli.NewReader(r)
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
