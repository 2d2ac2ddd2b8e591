package httpcache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/codec"
)

// textLikePrefixes is the set of content-type prefixes eligible for
// compression before storage (spec.md §4.7.4).
var textLikePrefixes = []string{
	"text/", "application/json", "application/javascript", "application/xml",
	"application/xhtml+xml", "image/svg+xml",
}

func isTextLike(mime string) bool {
	for _, p := range textLikePrefixes {
		if len(mime) >= len(p) && mime[:len(p)] == p {
			return true
		}
	}
	return false
}

// encodeBody applies compression then encryption, per spec.md §4.7.4's
// store(fingerprint, body) = encrypt(compress(body)). fingerprint salts the
// per-entry key derivation so a compromised entry key discloses nothing
// about the master key or any other entry.
func (c *Cache) encodeBody(fingerprint string, body []byte, mime string) ([]byte, BodyEncoding, [32]byte, error) {
	var enc BodyEncoding
	out := body

	if int64(len(body)) >= c.cfg.CompressMinBodySize && isTextLike(mime) {
		gz, ok := codec.For(codec.Gzip)
		if !ok {
			return nil, enc, [32]byte{}, cmn.New(cmn.KindCodec, cmn.ReasonCodecBadFormat).WithContext("codec", "gzip")
		}
		compressed, err := gz.Compress(out, codec.Options{Level: 6})
		if err != nil {
			return nil, enc, [32]byte{}, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		out = compressed
		enc.Compressed = true
		enc.CodecName = string(codec.Gzip)
	}

	if c.cfg.EncryptionKey != nil {
		ciphertext, err := c.encrypt(fingerprint, out)
		if err != nil {
			return nil, enc, [32]byte{}, err
		}
		out = ciphertext
		enc.Encrypted = true
	}

	return out, enc, sha256.Sum256(out), nil
}

// decodeBody reverses encodeBody: decrypt then decompress.
func (c *Cache) decodeBody(fingerprint string, stored []byte, enc BodyEncoding) ([]byte, error) {
	out := stored
	if enc.Encrypted {
		plain, err := c.decrypt(fingerprint, out)
		if err != nil {
			return nil, err
		}
		out = plain
	}
	if enc.Compressed {
		cd, ok := codec.For(codec.Name(enc.CodecName))
		if !ok {
			return nil, cmn.New(cmn.KindCodec, cmn.ReasonCodecBadFormat).WithContext("codec", enc.CodecName)
		}
		decompressed, err := cd.Decompress(out, codec.Options{})
		if err != nil {
			return nil, err
		}
		out = decompressed
	}
	return out, nil
}

// entryKey derives a per-entry AES-256 key from the cache's master key via
// HKDF, salted with the cache fingerprint.
func (c *Cache) entryKey(fingerprint string) ([]byte, error) {
	kdf := hkdf.New(sha256.New, c.cfg.EncryptionKey, []byte(fingerprint), []byte("httpcache-entry-key"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "hkdf-derive-failed")
	}
	return key, nil
}

func (c *Cache) gcmFor(fingerprint string) (cipher.AEAD, error) {
	key, err := c.entryKey(fingerprint)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "aes-init-failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "gcm-init-failed")
	}
	return gcm, nil
}

func (c *Cache) encrypt(fingerprint string, plaintext []byte) ([]byte, error) {
	gcm, err := c.gcmFor(fingerprint)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "nonce-generation-failed")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cache) decrypt(fingerprint string, stored []byte) ([]byte, error) {
	gcm, err := c.gcmFor(fingerprint)
	if err != nil {
		return nil, err
	}
	if len(stored) < gcm.NonceSize() {
		return nil, cmn.New(cmn.KindCache, cmn.ReasonCacheIntegrityMismatch)
	}
	nonce, ciphertext := stored[:gcm.NonceSize()], stored[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCache, cmn.ReasonCacheIntegrityMismatch)
	}
	return plain, nil
}
