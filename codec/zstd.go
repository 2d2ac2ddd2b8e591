package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/coreweb/engine/cmn"
)

type zstdCodec struct{}

func init() { register(zstdCodec{}) }

func (zstdCodec) Name() Name { return Zstd }

func (zstdCodec) Compress(src []byte, opts Options) ([]byte, error) {
	enc, err := newZstdEncoder(opts)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) Decompress(src []byte, opts Options) ([]byte, error) {
	dec, err := newZstdDecoder(opts)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, make([]byte, 0, len(src)*3))
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	if int64(len(out)) > opts.bombLimit() {
		return nil, cmn.New(cmn.KindCodec, cmn.ReasonCodecBombLimit)
	}
	return out, nil
}

func (zstdCodec) CompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	level := zstd.EncoderLevelFromZstd(opts.Level)
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(zw, r, buf); err != nil {
		return cmn.Wrap(err, cmn.KindCodec, "")
	}
	return cmn.Wrap(zw.Close(), cmn.KindCodec, "")
}

func (zstdCodec) DecompressStream(w io.Writer, r io.Reader, bufSize int, opts Options) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	defer zr.Close()
	lw := &limitedWriter{w: w, n: opts.bombLimit()}
	buf := make([]byte, bufSize)
	_, err = io.CopyBuffer(lw, zr, buf)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func newZstdEncoder(opts Options) (*zstd.Encoder, error) {
	var zopts []zstd.EOption
	if opts.Level != 0 {
		zopts = append(zopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
	}
	if len(opts.Dictionary) > 0 {
		zopts = append(zopts, zstd.WithEncoderDict(opts.Dictionary))
	}
	enc, err := zstd.NewWriter(nil, zopts...)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, "")
	}
	return enc, nil
}

func newZstdDecoder(opts Options) (*zstd.Decoder, error) {
	var zopts []zstd.DOption
	if len(opts.Dictionary) > 0 {
		zopts = append(zopts, zstd.WithDecoderDicts(opts.Dictionary))
	}
	dec, err := zstd.NewReader(nil, zopts...)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, "")
	}
	return dec, nil
}
