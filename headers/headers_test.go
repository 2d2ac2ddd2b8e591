package headers

import "testing"

func TestAppendNeverDedups(t *testing.T) {
	s := New()
	s.Append("Set-Cookie", "a=1")
	s.Append("Set-Cookie", "b=2")
	if got := s.GetAll("set-cookie"); len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Fatalf("unexpected: %v", got)
	}
}

func TestSetRemovesPriorThenAppends(t *testing.T) {
	s := New()
	s.Append("X-A", "1")
	s.Append("X-A", "2")
	s.Set("x-a", "3")
	if got := s.GetAll("X-A"); len(got) != 1 || got[0] != "3" {
		t.Fatalf("unexpected: %v", got)
	}
}

func TestGetReturnsFirstInInsertionOrder(t *testing.T) {
	s := New()
	s.Append("Accept", "text/html")
	s.Append("accept", "application/json")
	v, ok := s.Get("ACCEPT")
	if !ok || v != "text/html" {
		t.Fatalf("got %q, %v", v, ok)
	}
}

func TestHasContentType(t *testing.T) {
	s := New()
	s.Set("Content-Type", "text/html; charset=utf-8")
	if !s.HasContentType("text/html") {
		t.Fatal("expected match ignoring charset param")
	}
	if s.HasContentType("application/json") {
		t.Fatal("unexpected match")
	}
}

func TestContentLength(t *testing.T) {
	s := New()
	s.Set("Content-Length", "42")
	n, err := s.ContentLength()
	if err != nil || n != 42 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	s.Set("Content-Length", "-1")
	if _, err := s.ContentLength(); err == nil {
		t.Fatal("expected error for negative content-length")
	}
}

func TestVaryKeyDiffersOnDifferentValues(t *testing.T) {
	a := New()
	a.Set("Accept-Encoding", "gzip")
	b := New()
	b.Set("Accept-Encoding", "br")
	if a.VaryKey([]string{"Accept-Encoding"}) == b.VaryKey([]string{"Accept-Encoding"}) {
		t.Fatal("expected different vary keys")
	}
	c := New()
	c.Set("Accept-Encoding", "gzip")
	if a.VaryKey([]string{"Accept-Encoding"}) != c.VaryKey([]string{"Accept-Encoding"}) {
		t.Fatal("expected identical vary keys for identical values")
	}
}
