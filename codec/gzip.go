package codec

import (
	"bytes"
	"io"

	kgzip "github.com/klauspost/compress/gzip"

	"github.com/coreweb/engine/cmn"
)

type gzipCodec struct{}

func init() { register(gzipCodec{}) }

func (gzipCodec) Name() Name { return Gzip }

func (gzipCodec) Compress(src []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	level := opts.Level
	if level == 0 {
		level = kgzip.DefaultCompression
	}
	zw, err := kgzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	if _, err := zw.Write(src); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, "")
	}
	if err := zw.Close(); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, "")
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(src []byte, opts Options) ([]byte, error) {
	var out bytes.Buffer
	if err := gzipCodec{}.DecompressStream(&out, bytes.NewReader(src), 32*1024, opts); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (gzipCodec) CompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	level := opts.Level
	if level == 0 {
		level = kgzip.DefaultCompression
	}
	zw, err := kgzip.NewWriterLevel(w, level)
	if err != nil {
		return cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(zw, r, buf); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	if err := zw.Close(); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	return nil
}

func (gzipCodec) DecompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	zr, err := kgzip.NewReader(r)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecTruncated)
		}
		return cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	defer zr.Close()
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
