package engine

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/coreweb/engine/cmn"
)

func init() {
	cmn.InitIDs(1)
}

// serveOnce accepts a single connection on ln and writes a fixed HTTP/1.1
// response to it, good enough to drive H1Transport.RoundTrip end to end.
func serveOnce(t *testing.T, ln net.Listener, body string) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n') // request line, discard the rest
		resp := "HTTP/1.1 200 OK\r\nContent-Length: " +
			itoa(len(body)) + "\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n" + body
		_, _ = conn.Write([]byte(resp))
	}()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func newTestEngine(ctx context.Context) *Engine {
	cfg := DefaultConfig()
	cfg.DNS.PrefetchInterval = time.Hour
	cfg.Cache.CleanupInterval = time.Hour
	cfg.Pool.ConnectTimeout = 2 * time.Second
	return New(ctx, cfg)
}

func TestFetchRoundTripsOverPlainHTTP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	serveOnce(t, ln, "hello from origin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(ctx)

	req := Request{
		ID:     "req-1",
		Method: cmn.MethodGET,
		URL:    "http://" + ln.Addr().String() + "/index",
	}
	resp, err := e.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Status.Code != 200 {
		t.Fatalf("expected 200, got %d", resp.Status.Code)
	}
	if string(resp.Body) != "hello from origin" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(ctx)

	_, err := e.Fetch(context.Background(), Request{URL: "ftp://example.com/file"})
	if err == nil {
		t.Fatal("expected an error for a non-http(s) URL")
	}
}

func TestCancelUnknownRequestReturnsFalse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(ctx)
	if e.Cancel("does-not-exist") {
		t.Fatal("expected Cancel on an unknown request id to report false")
	}
}

func TestParseHTMLAndQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(ctx)

	doc, err := e.ParseHTML([]byte(`<html><body><p class="greet">hi</p></body></html>`), "")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	nodes := e.Query(doc, "p.greet")
	if len(nodes) != 1 {
		t.Fatalf("expected 1 match, got %d", len(nodes))
	}
}

func TestPlanPrefetchOrdersCriticalResourcesFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(ctx)

	doc, err := e.ParseHTML([]byte(`<html><head>
<link rel="stylesheet" href="/style.css">
<script src="/app.js" async></script>
</head><body><img src="/hero.png"></body></html>`), "")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}

	tasks := e.PlanPrefetch(doc, "https://example.com/index.html")
	if len(tasks) != 3 {
		t.Fatalf("expected 3 resources, got %d: %+v", len(tasks), tasks)
	}
	if tasks[0].URL != "https://example.com/style.css" {
		t.Fatalf("expected the render-blocking stylesheet first, got %q", tasks[0].URL)
	}
	last := tasks[len(tasks)-1]
	if last.URL != "https://example.com/hero.png" {
		t.Fatalf("expected the image last (lowest default band), got %q", last.URL)
	}
}
