package httpcache

import (
	"time"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
)

// applyValidators turns an otherwise unconditional request into a
// conditional one from a stale entry's stored validators (spec.md §4.7.1):
// If-None-Match from ETag, If-Modified-Since from Last-Modified. A no-op
// when the entry carries neither.
func applyValidators(reqHeaders *headers.Store, e *Entry) {
	if reqHeaders == nil || e == nil {
		return
	}
	if e.ETag != "" {
		reqHeaders.Set("If-None-Match", e.ETag)
	}
	if e.LastModified != "" {
		reqHeaders.Set("If-Modified-Since", e.LastModified)
	}
}

// mergeRevalidated applies RFC 7234 §4.3.4 ("Freshening Stored Responses
// upon Validation") to the entry fingerprinted under (method, url,
// reqHeaders): a 304 carries no body, so the stored body and encoding are
// kept untouched and only the response metadata is refreshed from the
// 304's own header set, which is authoritative over the stale copy's.
func (c *Cache) mergeRevalidated(method, url string, reqHeaders, respHeaders *headers.Store, now time.Time) (Result, error) {
	vary := splitVary(firstOr(respHeaders, "Vary", ""))
	key := Fingerprint(method, url, reqHeaders, vary)

	c.mu.Lock()
	e, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return Result{}, cmn.New(cmn.KindCache, cmn.ReasonCacheMiss).WithContext("url", url)
	}

	if respHeaders != nil {
		respHeaders.Range(func(name, value string) bool {
			e.Headers.Set(name, value)
			return true
		})
	}
	e.ETag, _ = e.Headers.Get("ETag")
	e.LastModified, _ = e.Headers.Get("Last-Modified")
	e.ResponseTime = now
	e.RequestTime = now
	c.varyIndex[urlMethodKey(method, url)] = e.VaryHeaders

	cc := ParseCacheControl(firstOr(e.Headers, "Cache-Control", ""))
	state := classify(e, c.cfg, cc, entryExpires(e))
	out := *e
	c.mu.Unlock()

	body, err := c.decodeBody(e.Key, e.Body, e.Encoding)
	if err != nil {
		return Result{}, err
	}
	out.Body = body

	if c.journal != nil {
		if err := c.journal.Append(e); err != nil {
			c.log.Warnw("journal append failed on revalidation", "url", url, "err", err)
		}
	}

	return Result{Entry: &out, State: state, Found: true}, nil
}
