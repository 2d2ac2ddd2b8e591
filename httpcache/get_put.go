package httpcache

import (
	"context"
	"strings"
	"time"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
)

// Result is what Get returns: the stored Entry (with its body already
// decoded back to plaintext), its freshness State, and whether anything was
// found at all.
type Result struct {
	Entry *Entry
	State State
	Found bool
}

// Get looks up the entry for (method, url) under the Vary-aware
// fingerprint last recorded for that URL, classifies its freshness, and
// promotes it to most-recently-used on any hit (spec.md §4.7). A Miss
// entry is reported as not found; a Stale entry is still returned (with
// its State set to Stale) and triggers the OnStale background-revalidation
// hook, per spec.md §4.7 get(): "return marked Stale and enqueue a
// revalidation; otherwise return None."
func (c *Cache) Get(method, url string, reqHeaders *headers.Store) (Result, error) {
	c.mu.Lock()
	vary := c.varyIndex[urlMethodKey(method, url)]
	key := Fingerprint(method, url, reqHeaders, vary)
	e, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return Result{}, nil
	}
	c.unlinkLocked(e)
	c.pushFrontLocked(e)
	onStale := c.onStale
	c.mu.Unlock()

	cc := ParseCacheControl(firstOr(e.Headers, "Cache-Control", ""))
	state := classify(e, c.cfg, cc, entryExpires(e))
	if state == StateMiss {
		return Result{}, nil
	}

	body, err := c.decodeBody(e.Key, e.Body, e.Encoding)
	if err != nil {
		return Result{}, err
	}
	out := *e
	out.Body = body

	if state == StateStale && onStale != nil {
		revalidateCopy := out
		onStale(&revalidateCopy)
	}

	return Result{Entry: &out, State: state, Found: true}, nil
}

// Put stores a response, applying Vary-based fingerprinting, compression,
// and optional encryption (spec.md §4.7, §4.7.2, §4.7.4). A response
// carrying Cache-Control: no-store is never written.
func (c *Cache) Put(method, url string, reqHeaders, respHeaders *headers.Store, status int, body []byte, now time.Time) error {
	cc := ParseCacheControl(firstOr(respHeaders, "Cache-Control", ""))
	if cc.NoStore {
		return nil
	}
	if int64(len(body)) > c.cfg.MaxEntrySize {
		return cmn.New(cmn.KindCache, cmn.ReasonCacheFull).WithContext("url", url, "size", len(body))
	}

	vary := splitVary(firstOr(respHeaders, "Vary", ""))
	key := Fingerprint(method, url, reqHeaders, vary)
	mime, _ := respHeaders.Get("Content-Type")

	stored, enc, digest, err := c.encodeBody(key, body, mime)
	if err != nil {
		return err
	}

	e := &Entry{
		Key:             key,
		URL:             url,
		Method:          method,
		Status:          status,
		Headers:         respHeaders.Clone(),
		Body:            stored,
		Encoding:        enc,
		OriginalSize:    int64(len(body)),
		CompressedSize:  int64(len(stored)),
		IntegrityDigest: digest,
		ResponseTime:    now,
		RequestTime:     now,
		VaryHeaders:     vary,
	}
	e.ETag, _ = respHeaders.Get("ETag")
	e.LastModified, _ = respHeaders.Get("Last-Modified")

	c.mu.Lock()
	if old, ok := c.index[key]; ok {
		c.unlinkLocked(old)
		c.size -= old.CompressedSize
	}
	c.index[key] = e
	c.varyIndex[urlMethodKey(method, url)] = vary
	c.pushFrontLocked(e)
	c.size += e.CompressedSize

	for (c.cfg.MaxEntries > 0 && len(c.index) > c.cfg.MaxEntries) ||
		(c.cfg.MaxCacheSize > 0 && c.size > c.cfg.MaxCacheSize) {
		if evicted := c.evictTailLocked(); evicted == nil {
			break
		}
	}
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.Append(e); err != nil {
			c.log.Warnw("journal append failed", "url", url, "err", err)
		}
	}
	return nil
}

// GetOrFetch is the single-flight-gated read-through path: concurrent
// callers for the same fingerprint share one call to fetch (spec.md §5,
// "at most one concurrent origin fetch per fingerprint"). A Stale hit turns
// the fetch into a conditional request carrying the stored ETag/
// Last-Modified validators (spec.md §4.7.1); a 304 response is merged into
// the existing entry rather than replacing its body (boundary scenario:
// "background revalidation receiving 304 restores Fresh").
func (c *Cache) GetOrFetch(ctx context.Context, method, url string, reqHeaders *headers.Store, fetch func(ctx context.Context) (*headers.Store, int, []byte, error)) (Result, error) {
	res, err := c.Get(method, url, reqHeaders)
	if err == nil && res.Found && res.State == StateFresh {
		return res, nil
	}
	if res.Found && res.State == StateStale {
		applyValidators(reqHeaders, res.Entry)
	}

	c.mu.Lock()
	vary := c.varyIndex[urlMethodKey(method, url)]
	c.mu.Unlock()
	key := Fingerprint(method, url, reqHeaders, vary)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		respHeaders, status, body, err := fetch(ctx)
		if err != nil {
			if res.Found && res.State == StateStale {
				cc := ParseCacheControl(firstOr(res.Entry.Headers, "Cache-Control", ""))
				if cc.StaleIfError != nil {
					return res, nil
				}
			}
			return nil, err
		}
		if status == 304 {
			if res.Found {
				return c.mergeRevalidated(method, url, reqHeaders, respHeaders, time.Now())
			}
			// A 304 with nothing cached to merge into is a protocol violation
			// from the origin (it must only send one in response to a
			// conditional request this cache never issued); nothing to
			// revalidate, so surface it as a miss rather than storing a
			// bodyless 304 entry.
			return Result{}, cmn.New(cmn.KindCache, cmn.ReasonCacheMiss).WithContext("url", url, "status", status)
		}
		if err := c.Put(method, url, reqHeaders, respHeaders, status, body, time.Now()); err != nil {
			return nil, err
		}
		return c.Get(method, url, reqHeaders)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func splitVary(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstOr(h *headers.Store, name, def string) string {
	if h == nil {
		return def
	}
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}
