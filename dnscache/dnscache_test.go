package dnscache

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type stubResolver struct {
	addrs []string
	ttl   time.Duration
	err   error
	calls int
}

func (s *stubResolver) Lookup(ctx context.Context, domain string, qtype uint16) ([]string, time.Duration, error) {
	s.calls++
	return s.addrs, s.ttl, s.err
}

func TestResolveSeedsCache(t *testing.T) {
	r := &stubResolver{addrs: []string{"93.184.216.34"}, ttl: 60 * time.Second}
	p := New(DefaultConfig(), r, nil)
	addrs, err := p.Resolve(context.Background(), "example.com", dns.TypeA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "93.184.216.34" {
		t.Fatalf("unexpected addrs: %v", addrs)
	}
	e, ok := p.Lookup("example.com")
	if !ok {
		t.Fatal("expected cache hit after resolve")
	}
	if len(e.Addrs) != 1 {
		t.Fatalf("unexpected cached entry: %+v", e)
	}
}

func TestDemotionAfterThreeFailures(t *testing.T) {
	r := &stubResolver{err: &dns.Error{Err: "timeout"}}
	p := New(DefaultConfig(), r, nil)
	for i := 0; i < maxFailedAttempts; i++ {
		_, _ = p.Resolve(context.Background(), "flaky.example", dns.TypeA)
	}
	p.demoteIfFailing("flaky.example")
	e := p.entries["flaky.example"]
	if e.Attempts < maxFailedAttempts {
		t.Fatalf("expected at least %d attempts, got %d", maxFailedAttempts, e.Attempts)
	}
	if e.Priority != -1 {
		t.Fatalf("expected demotion to lowest priority, got %v", e.Priority)
	}
}

func TestPrioritySortTieBreaks(t *testing.T) {
	now := time.Now()
	entries := []*Entry{
		{Domain: "a", Priority: 1, Expires: now.Add(10 * time.Second), Attempts: 2},
		{Domain: "b", Priority: 1, Expires: now.Add(5 * time.Second), Attempts: 0},
		{Domain: "c", Priority: 5, Expires: now.Add(100 * time.Second)},
	}
	sortByPriority(entries)
	if entries[0].Domain != "c" {
		t.Fatalf("expected highest priority first, got %s", entries[0].Domain)
	}
	if entries[1].Domain != "b" {
		t.Fatalf("expected earlier-expiring entry to win tie-break, got %s", entries[1].Domain)
	}
}

func TestOracleGatesScanCandidates(t *testing.T) {
	r := &stubResolver{addrs: []string{"1.2.3.4"}, ttl: time.Second}
	calledWith := ""
	p := New(DefaultConfig(), r, func(domain string, remaining time.Duration) bool {
		calledWith = domain
		return false
	})
	p.entries["stale.example"] = &Entry{Domain: "stale.example", Expires: time.Now().Add(-time.Second)}
	cands := p.dueCandidates()
	if len(cands) != 0 {
		t.Fatalf("expected oracle to reject all candidates, got %d", len(cands))
	}
	if calledWith != "stale.example" {
		t.Fatalf("expected oracle consulted for stale.example, got %q", calledWith)
	}
}
