// Package httpcache implements the two-tier HTTP cache (spec.md §4.7): an
// in-memory LRU fronting an optional on-disk journal, RFC 7234 freshness
// and Vary handling, compression/encryption of stored bodies, and a
// per-fingerprint single-flight gate over revalidation/origin fetches.
package httpcache

import (
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/sync/singleflight"

	"github.com/coreweb/engine/headers"
	"github.com/coreweb/engine/internal/xlog"
)

// State is an Entry's freshness classification at the moment of retrieval.
type State uint8

const (
	StateFresh State = iota
	StateStale
	StateMiss
)

// Entry is one stored response (spec.md §3, §4.7).
type Entry struct {
	Key string // fingerprint

	URL     string
	Method  string
	Status  int
	Headers *headers.Store

	// Body is the stored payload: compress(body) then optionally
	// encrypt(...) was applied before storage (§4.7.4); Encoding records
	// which transforms were applied so Get can invert them.
	Body           []byte
	Encoding       BodyEncoding
	OriginalSize   int64
	CompressedSize int64
	IntegrityDigest [32]byte

	ResponseTime time.Time
	RequestTime  time.Time

	VaryHeaders []string // the stored Vary list, applied to future fingerprints

	ETag         string
	LastModified string

	next, prev *Entry // LRU sentinel linked-list edges
}

// BodyEncoding records which reversible transforms were applied to a
// stored body, in application order (compress, then encrypt).
type BodyEncoding struct {
	Compressed bool
	CodecName  string
	Encrypted  bool
}

// Config carries the cache's tunables (spec.md §4.7, §5 backpressure).
type Config struct {
	MaxEntries           int
	MaxEntrySize         int64 // default 32 MB
	MaxCacheSize         int64
	DefaultTTL           time.Duration
	CleanupInterval      time.Duration
	CompressMinBodySize  int64 // gzip text-like bodies of at least this size
	EncryptionKey        []byte // master key for per-entry HKDF derivation; nil disables encryption
}

func DefaultConfig() Config {
	return Config{
		MaxEntries:          10_000,
		MaxEntrySize:        32 << 20,
		MaxCacheSize:        512 << 20,
		DefaultTTL:          5 * time.Minute,
		CleanupInterval:     time.Minute,
		CompressMinBodySize: 1024,
	}
}

// Cache is the LRU + optional on-disk journal described in spec.md §4.7.
// get promotes to head; put inserts at head; overflow pops the tail.
type Cache struct {
	cfg Config
	log zapSugar

	mu        sync.Mutex
	index     map[string]*Entry
	head, tail *Entry // sentinel nodes; head.next is most-recently-used
	size      int64   // sum of stored (post-encoding) body sizes

	// varyIndex remembers, per (method, url), the Vary header list the most
	// recent response named — needed to recompute the full vary-aware
	// fingerprint on lookup, since a lookup only has method+url+headers in
	// hand and doesn't yet know which headers the stored response varies on
	// (spec.md §4.7.2).
	varyIndex map[string][]string

	group singleflight.Group

	journal *Journal // nil if persistence disabled

	// onStale is called from Get with a copy of any entry returned as Stale,
	// letting the embedder enqueue a background revalidation (spec.md §4.7
	// get(): "return marked Stale and enqueue a revalidation"). Cache has no
	// transport of its own, so this is the embedder's hook rather than a
	// built-in worker; nil is a valid no-op default.
	onStale func(e *Entry)
}

// OnStale registers the background-revalidation hook Get calls on every
// Stale hit. Replaces any previously registered hook.
func (c *Cache) OnStale(fn func(e *Entry)) {
	c.mu.Lock()
	c.onStale = fn
	c.mu.Unlock()
}

type zapSugar = interface {
	Infow(string, ...interface{})
	Warnw(string, ...interface{})
}

// New constructs an empty Cache. If journal is non-nil, Load restores any
// persisted entries.
func New(cfg Config, journal *Journal) *Cache {
	head, tail := &Entry{}, &Entry{}
	head.next, tail.prev = tail, head
	c := &Cache{
		cfg:       cfg,
		log:       xlog.For("httpcache"),
		index:     make(map[string]*Entry),
		varyIndex: make(map[string][]string),
		head:      head,
		tail:      tail,
		journal:   journal,
	}
	if journal != nil {
		c.restore()
	}
	return c
}

// restore replays the journal into the in-memory index, most recently
// appended entries taking precedence and landing closest to the LRU head.
func (c *Cache) restore() {
	entries, err := c.journal.Load()
	if err != nil {
		c.log.Warnw("journal load failed, starting with an empty cache", "err", err)
		return
	}
	for _, e := range entries {
		if old, ok := c.index[e.Key]; ok {
			c.unlinkLocked(old)
			c.size -= old.CompressedSize
		}
		c.index[e.Key] = e
		c.varyIndex[urlMethodKey(e.Method, e.URL)] = e.VaryHeaders
		c.pushFrontLocked(e)
		c.size += e.CompressedSize
	}
	c.log.Infow("journal restored", "entries", len(entries))
}

// Fingerprint computes the cache key for (method, url, vary-selected
// request headers) per spec.md §4.7.2.
func Fingerprint(method, url string, reqHeaders *headers.Store, vary []string) string {
	h := xxhash.New64()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	if len(vary) > 0 && reqHeaders != nil {
		h.Write([]byte{0})
		h.Write([]byte(reqHeaders.VaryKey(vary)))
	}
	return hexSum(h.Sum64())
}

// urlMethodKey is the varyIndex key: an entry's Vary list applies to every
// request for the same (method, url) regardless of header values.
func urlMethodKey(method, url string) string {
	return method + " " + url
}

func hexSum(v uint64) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexdigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

func (c *Cache) unlinkLocked(e *Entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next, e.prev = nil, nil
}

func (c *Cache) pushFrontLocked(e *Entry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) evictTailLocked() *Entry {
	e := c.tail.prev
	if e == c.head {
		return nil
	}
	c.unlinkLocked(e)
	delete(c.index, e.Key)
	c.size -= e.CompressedSize
	return e
}

// Invalidate removes the cache entry for (url, method) under the default
// (no-Vary) fingerprint.
func (c *Cache) Invalidate(method, url string) {
	key := Fingerprint(method, url, nil, nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.index[key]; ok {
		c.unlinkLocked(e)
		delete(c.index, key)
		c.size -= e.CompressedSize
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*Entry)
	c.head.next, c.tail.prev = c.tail, c.head
	c.size = 0
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
