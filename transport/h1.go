package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
)

// h1Conn is one pooled keep-alive HTTP/1.1 connection (spec.md §4.5).
// Request/response framing is delegated to fasthttp's wire-format
// marshal/parse (fasthttp.Request.Write / fasthttp.Response.Read) rather
// than fasthttp's own client+pool, since connection lifecycle here is
// owned by transport.Pool.
type h1Conn struct {
	origin OriginKey
	nc     net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer

	mu        sync.Mutex
	idle      bool
	idleSince time.Time
	closed    bool
}

func (c *h1Conn) Origin() OriginKey      { return c.origin }
func (c *h1Conn) Idle() bool             { c.mu.Lock(); defer c.mu.Unlock(); return c.idle }
func (c *h1Conn) IdleSince() time.Time   { c.mu.Lock(); defer c.mu.Unlock(); return c.idleSince }
func (c *h1Conn) Closed() bool           { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }

func (c *h1Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}

func (c *h1Conn) markBusy() {
	c.mu.Lock()
	c.idle = false
	c.mu.Unlock()
}

func (c *h1Conn) markIdle() {
	c.mu.Lock()
	c.idle = true
	c.idleSince = time.Now()
	c.mu.Unlock()
}

// H1Transport dials and drives HTTP/1.1 connections for the pool.
type H1Transport struct {
	tlsConfig *tls.Config
}

func NewH1Transport(tlsConfig *tls.Config) *H1Transport {
	return &H1Transport{tlsConfig: tlsConfig}
}

// Dial implements the Pool's Dialer contract for ALPNH1.
func (t *H1Transport) Dial(ctx context.Context, origin OriginKey) (Conn, error) {
	d := net.Dialer{}
	var nc net.Conn
	var err error
	if origin.Scheme == "https" {
		tc := t.tlsConfig.Clone()
		if tc == nil {
			tc = &tls.Config{}
		}
		tc.NextProtos = []string{"http/1.1"}
		host, _, splitErr := net.SplitHostPort(origin.Authority)
		if splitErr == nil {
			tc.ServerName = host
		}
		nc, err = tls.DialWithDialer(&d, "tcp", origin.Authority, tc)
	} else {
		nc, err = d.DialContext(ctx, "tcp", origin.Authority)
	}
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindNetwork, "h1-dial-failed").WithContext("authority", origin.Authority)
	}
	return &h1Conn{
		origin: origin,
		nc:     nc,
		br:     bufio.NewReader(nc),
		bw:     bufio.NewWriter(nc),
		idle:   true,
	}, nil
}

// isBrokenIdleError reports whether err looks like a pooled connection that
// went bad (EOF or connection reset; SPEC_FULL.md §13). RoundTrip tags such
// failures "h1-connection-broken"; neither RoundTrip nor the engine's fetch
// path retries on that tag.
func isBrokenIdleError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") || strings.Contains(msg, "connection reset")
}

// RoundTrip issues one request over conn and returns the parsed response.
// A write or read failure that isBrokenIdleError accepts is returned with
// reason "h1-connection-broken", any other with "h1-roundtrip-failed";
// RoundTrip does not retry.
func (t *H1Transport) RoundTrip(ctx context.Context, conn Conn, method, path string, reqHeaders *headers.Store, body []byte) (int, *headers.Store, []byte, error) {
	c, ok := conn.(*h1Conn)
	if !ok {
		return 0, nil, nil, cmn.New(cmn.KindInternal, "not-an-h1-conn")
	}
	c.markBusy()
	defer c.markIdle()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	reqHeaders.Range(func(name, value string) bool {
		req.Header.Set(name, value)
		return true
	})
	if len(body) > 0 {
		req.SetBody(body)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetDeadline(deadline)
	}

	if err := req.Write(c.bw); err != nil {
		return 0, nil, nil, wrapH1Err(err, isBrokenIdleError(err))
	}
	if err := c.bw.Flush(); err != nil {
		return 0, nil, nil, wrapH1Err(err, isBrokenIdleError(err))
	}
	if err := resp.Read(c.br); err != nil {
		return 0, nil, nil, wrapH1Err(err, isBrokenIdleError(err))
	}

	out := headers.New()
	resp.Header.VisitAll(func(k, v []byte) {
		out.Append(string(k), string(v))
	})

	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)

	if resp.Header.ConnectionClose() {
		_ = c.Close()
	}

	return status, out, respBody, nil
}

func wrapH1Err(err error, broken bool) error {
	if broken {
		return cmn.Wrap(err, cmn.KindNetwork, "h1-connection-broken")
	}
	return cmn.Wrap(err, cmn.KindNetwork, "h1-roundtrip-failed")
}
