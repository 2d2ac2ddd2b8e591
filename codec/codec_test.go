package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200))
	for _, name := range []Name{Gzip, Brotli, Zstd, LZ4} {
		name := name
		t.Run(string(name), func(t *testing.T) {
			c, ok := For(name)
			if !ok {
				t.Fatalf("codec %s not registered", name)
			}
			compressed, err := c.Compress(payload, Options{})
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			out, err := c.Decompress(compressed, Options{})
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("round trip mismatch for %s", name)
			}
		})
	}
}

func TestBombLimit(t *testing.T) {
	payload := make([]byte, 1<<20)
	c, _ := For(Gzip)
	compressed, err := c.Compress(payload, Options{})
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := c.Decompress(compressed, Options{MaxDecompressedSize: 1024}); err == nil {
		t.Fatal("expected bomb-limit error")
	}
}

func TestStreamingRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("stream me please ", 500))
	c, _ := For(Zstd)
	var compressed bytes.Buffer
	if err := c.CompressStream(&compressed, bytes.NewReader(payload), 4096, Options{}); err != nil {
		t.Fatalf("compress stream: %v", err)
	}
	var out bytes.Buffer
	if err := c.DecompressStream(&out, bytes.NewReader(compressed.Bytes()), 4096, Options{}); err != nil {
		t.Fatalf("decompress stream: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Fatal("streaming round trip mismatch")
	}
}
