package engine

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/dom"
	"github.com/coreweb/engine/headers"
	"github.com/coreweb/engine/html/treebuilder"
	"github.com/coreweb/engine/httpcache"
	"github.com/coreweb/engine/shield"
	"github.com/coreweb/engine/transport"
)

// Fetch runs the full pipeline (spec.md §6 fetch): policy filter, shield
// request preparation, read-through cache over the connection pool and
// wire transport, shield response processing. The returned error is set
// only when no Response could be produced at all; a blocked or
// scanner-replaced page still returns a non-nil Response with Err set.
func (e *Engine) Fetch(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindInvalidInput, "bad-url").WithContext("url", req.URL)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errUnsupportedScheme().WithContext("url", req.URL)
	}
	domain := u.Hostname()

	if !e.policy.EvaluateURL(req.URL, domain) {
		e.stats.IncBlocked()
		return &Response{
			Status: cmn.Status{Code: cmn.BlockedStatusCode},
			Err:    cmn.Blocked("policy-blocked").WithContext("url", req.URL, "domain", domain),
		}, nil
	}

	level := e.policy.LevelFor(domain)
	domainPolicy := shield.DomainPolicy{
		Level:     level,
		CustomCSP: "",
		Cookies:   e.policy.CookiePolicyFor(time.Now()),
	}

	reqHeaders := req.Headers
	if reqHeaders == nil {
		reqHeaders = headers.New()
	}
	ok, err := e.shield.PrepareRequest(reqHeaders, domain, req.Referrer, req.Type, domainPolicy)
	if !ok {
		e.stats.IncBlocked()
		return &Response{Status: cmn.Status{Code: cmn.BlockedStatusCode}, Err: err}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	if req.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, req.Timeout)
		defer timeoutCancel()
	}
	if req.ID != "" {
		e.mu.Lock()
		e.cancels[req.ID] = cancel
		e.mu.Unlock()
		defer func() {
			e.mu.Lock()
			delete(e.cancels, req.ID)
			e.mu.Unlock()
		}()
	} else {
		defer cancel()
	}

	timing := transport.NewTiming()
	method := req.Method.String()

	result, err := e.cache.GetOrFetch(ctx, method, req.URL, reqHeaders, func(ctx context.Context) (*headers.Store, int, []byte, error) {
		return e.roundTripOrigin(ctx, u, method, reqHeaders, req.Body, timing)
	})
	timing.MarkEnd()
	if err != nil {
		if cmn.KindOf(err) == cmn.KindCancelled {
			return nil, err
		}
		e.stats.IncCacheMiss()
		return nil, err
	}
	switch result.State {
	case httpcache.StateFresh, httpcache.StateStale:
		e.stats.IncCacheHit()
		if result.State == httpcache.StateStale {
			e.stats.IncCacheStale()
		}
	default:
		e.stats.IncCacheMiss()
	}

	// chain is nil: certificate validation runs inside the TLS dialers at
	// connect time, not threaded through the cached entry here.
	status, body, procErr := e.shield.ProcessResponse(nil, domain, result.Entry.Status, result.Entry.Headers, result.Entry.Body, domainPolicy, req.FormAction, req.PageOrigin)
	if procErr != nil {
		return nil, procErr
	}

	st, _ := cmn.StatusFromCode(status)
	resp := &Response{
		Status:  st,
		Version: versionFor(transport.SelectALPN(u.Scheme, authorityOf(u), e.alts)),
		Headers: result.Entry.Headers,
		Body:    body,
		Timing:  timing.Record(),
	}
	if status != result.Entry.Status {
		resp.Err = cmn.Blocked("content-scanner-block")
	}
	return resp, nil
}

// versionFor reports the HTTP version implied by a negotiated ALPN. A
// fresh cache hit never actually dials, so this is the best available
// answer short of recording the version an entry was originally fetched
// over.
func versionFor(alpn transport.ALPN) cmn.Version {
	switch alpn {
	case transport.ALPNH3:
		return cmn.Http3
	case transport.ALPNH2:
		return cmn.Http2
	default:
		return cmn.Http11
	}
}

// roundTripOrigin resolves domain, acquires a pooled connection, and issues
// one request over whichever wire protocol the pool negotiated for this
// origin — the httpcache.Cache.GetOrFetch callback.
func (e *Engine) roundTripOrigin(ctx context.Context, u *url.URL, method string, reqHeaders *headers.Store, body []byte, timing *transport.Timing) (*headers.Store, int, []byte, error) {
	authority := authorityOf(u)
	domain := u.Hostname()

	timing.MarkDNSStart()
	if net.ParseIP(domain) == nil {
		if _, ok := e.dns.Lookup(domain); !ok {
			if _, err := e.dns.Resolve(ctx, domain, 0); err != nil {
				e.stats.IncDNSFail()
				timing.MarkDNSEnd()
				return nil, 0, nil, err
			}
		}
	}
	e.stats.IncDNSResolve()
	timing.MarkDNSEnd()

	alpn := transport.SelectALPN(u.Scheme, authority, e.alts)
	origin := originKeyFor(u.Scheme, authority, alpn)

	timing.MarkConnectStart()
	e.stats.IncPoolAcquire()
	conn, err := e.pool.Acquire(ctx, origin)
	timing.MarkConnectEnd()
	if err != nil {
		return nil, 0, nil, err
	}
	defer e.pool.Release(conn)

	if alpn == transport.ALPNH1 {
		if _, ok := reqHeaders.Get("Host"); !ok {
			reqHeaders.Set("Host", authority)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	status, respHeaders, respBody, err := e.roundTrip(ctx, conn, origin, method, path, reqHeaders, body)
	timing.MarkFirstByte()
	if err != nil {
		e.pool.Remove(conn)
		return nil, 0, nil, err
	}
	return respHeaders, status, respBody, nil
}

// roundTrip dispatches to the transport owning origin's negotiated ALPN,
// papering over H1Transport.RoundTrip's narrower signature (it has no
// :authority pseudo-header, so no authority parameter) versus H2/H3.
func (e *Engine) roundTrip(ctx context.Context, conn transport.Conn, origin transport.OriginKey, method, path string, reqHeaders *headers.Store, body []byte) (int, *headers.Store, []byte, error) {
	switch origin.ALPN {
	case transport.ALPNH1:
		return e.h1.RoundTrip(ctx, conn, method, path, reqHeaders, body)
	case transport.ALPNH2:
		return e.h2.RoundTrip(ctx, conn, method, path, origin.Authority, reqHeaders, body)
	case transport.ALPNH3:
		return e.h3.RoundTrip(ctx, conn, method, path, origin.Authority, reqHeaders, body)
	default:
		return 0, nil, nil, cmn.New(cmn.KindInternal, "unknown-alpn").WithContext("alpn", origin.ALPN)
	}
}

func authorityOf(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return u.Host + ":443"
	}
	return u.Host + ":80"
}

// Cancel aborts the in-flight fetch identified by requestID, if any
// (spec.md §6 cancel).
func (e *Engine) Cancel(requestID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[requestID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Preconnect dials and idles a connection for origin ahead of need
// (spec.md §6 preconnect).
func (e *Engine) Preconnect(ctx context.Context, origin string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return cmn.Wrap(err, cmn.KindInvalidInput, "bad-origin").WithContext("origin", origin)
	}
	authority := authorityOf(u)
	alpn := transport.SelectALPN(u.Scheme, authority, e.alts)
	key := originKeyFor(u.Scheme, authority, alpn)
	e.stats.IncPoolAcquire()
	conn, err := e.pool.Acquire(ctx, key)
	if err != nil {
		return err
	}
	e.pool.Release(conn)
	return nil
}

// Prefetch issues a low-priority background fetch of url, populating the
// cache without a caller waiting on the body; preconnectOnly downgrades it
// to a bare connection warm-up (spec.md §6 prefetch).
func (e *Engine) Prefetch(rawURL string, priority int, preconnectOnly bool) error {
	if preconnectOnly {
		return e.Preconnect(context.Background(), originOf(rawURL))
	}
	req := Request{
		ID:       cmn.NewID(),
		Method:   cmn.MethodGET,
		URL:      rawURL,
		Headers:  headers.New(),
		Priority: priority,
	}
	e.workers.Submit(func(ctx context.Context) error {
		_, err := e.Fetch(ctx, req)
		if err != nil {
			e.stats.IncPrefetchMiss()
			return nil // prefetch failures are not fatal to the worker pool
		}
		e.stats.IncPrefetchHit()
		return nil
	})
	return nil
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	return u.String()
}

// ParseHTML decodes body per encodingHint and runs the HTML5 tokenizer and
// tree constructor over it (spec.md §6 parse_html). An empty encodingHint
// assumes UTF-8, the HTML5 default in the absence of a BOM or declared
// charset.
func (e *Engine) ParseHTML(body []byte, encodingHint string) (*dom.Document, error) {
	runes, err := decodeRunes(body, encodingHint)
	if err != nil {
		return nil, err
	}
	tb, err := treebuilder.Parse(runes)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindParse, cmn.ReasonParseSyntaxError)
	}
	return tb.Document(), nil
}

// decodeRunes converts raw bytes to the tokenizer's []rune input. Only
// UTF-8 and the single-byte Latin-1 (ISO-8859-1) superset are handled
// directly: no third-party charset-detection library exists anywhere in
// the reference corpus, and the web platform's full legacy-encoding table
// is out of scope for spec.md's content pipeline.
func decodeRunes(body []byte, hint string) ([]rune, error) {
	switch hint {
	case "", "utf-8", "UTF-8", "utf8":
		return []rune(string(body)), nil
	case "iso-8859-1", "ISO-8859-1", "latin1":
		runes := make([]rune, len(body))
		for i, b := range body {
			runes[i] = rune(b)
		}
		return runes, nil
	default:
		return []rune(string(body)), nil
	}
}

// Query runs a CSS-selector query over doc rooted at its document node
// (spec.md §6 query).
func (e *Engine) Query(doc *dom.Document, selector string) []dom.ID {
	sel := dom.ParseSelector(selector)
	return dom.QuerySelectorAll(doc, doc.Root(), sel)
}

// revalidateStale is httpcache.Cache's OnStale hook (registered in New):
// it submits a background conditional fetch of the stale entry's own
// (method, url), re-entering the cache's read-through path so GetOrFetch
// applies the stored ETag/Last-Modified validators and merges a 304
// instead of overwriting the body (spec.md §4.7 get()'s "enqueue a
// revalidation"). Errors are swallowed: a failed background revalidation
// just leaves the entry Stale for the next caller to retry, and the
// worker pool's errgroup would otherwise cancel every other queued job on
// the first one that fails.
func (e *Engine) revalidateStale(entry *httpcache.Entry) {
	e.workers.Submit(func(ctx context.Context) error {
		u, err := url.Parse(entry.URL)
		if err != nil {
			return nil
		}
		reqHeaders := headers.New()
		timing := transport.NewTiming()
		_, _ = e.cache.GetOrFetch(ctx, entry.Method, entry.URL, reqHeaders, func(ctx context.Context) (*headers.Store, int, []byte, error) {
			return e.roundTripOrigin(ctx, u, entry.Method, reqHeaders, nil, timing)
		})
		return nil
	})
}
