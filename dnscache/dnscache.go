// Package dnscache implements the DNS prefetcher (spec.md §4.4): a
// priority-queued resolver cache that keeps hot domains pre-resolved ahead
// of connection acquisition, using github.com/miekg/dns as the wire
// resolver.
package dnscache

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/internal/xlog"
)

// Category bumps a domain's priority band independent of its importance
// score (spec.md §4.4).
type Category uint8

const (
	CategoryNormal Category = iota
	CategorySecurity
	CategoryInfrastructure
)

// Entry is one cached resolution plus the bookkeeping the prefetcher needs
// to schedule its next refresh.
type Entry struct {
	Domain       string
	RecordType   uint16 // dns.TypeA, dns.TypeAAAA, ...
	Addrs        []string
	Priority     float64
	Scheduled    time.Time
	Expires      time.Time
	Attempts     int
	LastAttempt  time.Time
	Category     Category
	hitCount     int
	lastHit      time.Time
	runningAvg   float64 // importance score EMA
}

const (
	maxFailedAttempts   = 3
	minReattemptBackoff = 10 * time.Second
	importanceDecay     = 0.8
)

// Config carries the prefetcher's tunables (spec.md §4.4).
type Config struct {
	MaxQueueLength     int
	MaxConcurrentTasks int
	PrefetchInterval   time.Duration
	MinTTLThreshold    time.Duration
	DefaultTTL         time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxQueueLength:     512,
		MaxConcurrentTasks: 8,
		PrefetchInterval:   30 * time.Second,
		MinTTLThreshold:    20 * time.Second,
		DefaultTTL:         5 * time.Minute,
	}
}

// ShouldPrefetch is the analytics oracle hook (spec.md §4.4): given a
// domain and its remaining TTL, decide whether a prefetch is worth issuing.
type ShouldPrefetch func(domain string, remainingTTL time.Duration) bool

// Resolver abstracts the wire lookup so tests can stub it; the production
// implementation issues miekg/dns queries against the configured servers.
type Resolver interface {
	Lookup(ctx context.Context, domain string, qtype uint16) ([]string, time.Duration, error)
}

// Prefetcher owns the DNS cache + priority queue and drives the scan/
// dispatch cycle (spec.md §4.4).
type Prefetcher struct {
	cfg      Config
	resolver Resolver
	oracle   ShouldPrefetch
	log      *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]*Entry
	active  int
}

// New constructs a Prefetcher. A nil oracle always returns true (prefetch
// everything eligible by TTL).
func New(cfg Config, resolver Resolver, oracle ShouldPrefetch) *Prefetcher {
	if oracle == nil {
		oracle = func(string, time.Duration) bool { return true }
	}
	return &Prefetcher{
		cfg:      cfg,
		resolver: resolver,
		oracle:   oracle,
		log:      xlog.For("dnscache"),
		entries:  make(map[string]*Entry),
	}
}

// Lookup returns a cached resolution if present and unexpired, recording a
// hit for the importance-score EMA.
func (p *Prefetcher) Lookup(domain string) (*Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[domain]
	if !ok || time.Now().After(e.Expires) {
		return nil, false
	}
	e.hitCount++
	e.lastHit = time.Now()
	e.runningAvg = e.runningAvg*importanceDecay + (1 - importanceDecay)
	return e, true
}

// Resolve performs an immediate (non-queued) resolution and seeds/updates
// the cache entry, used by the connection pool on a cold cache miss.
func (p *Prefetcher) Resolve(ctx context.Context, domain string, qtype uint16) ([]string, error) {
	addrs, ttl, err := p.resolver.Lookup(ctx, domain, qtype)
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[domain]
	if e == nil {
		e = &Entry{Domain: domain, RecordType: qtype, Category: classify(domain)}
		p.entries[domain] = e
	}
	if err != nil {
		e.Attempts++
		e.LastAttempt = time.Now()
		p.log.Warnw("dns resolve failed", "domain", domain, "attempts", e.Attempts, "err", err)
		return nil, cmn.Wrap(err, cmn.KindNetwork, "dns-resolve-failed").WithContext("domain", domain)
	}
	e.Addrs = addrs
	e.Attempts = 0
	e.LastAttempt = time.Now()
	if ttl <= 0 {
		ttl = p.cfg.DefaultTTL
	}
	e.Expires = time.Now().Add(ttl)
	e.Priority = p.priorityOf(e)
	return addrs, nil
}

// priorityOf combines importance score, remaining TTL, and category per
// spec.md §4.4's priority-assignment rule.
func (p *Prefetcher) priorityOf(e *Entry) float64 {
	remaining := time.Until(e.Expires).Seconds()
	score := e.runningAvg*10 + 1.0/(1.0+remaining/60.0)
	if e.Category != CategoryNormal {
		score += 5
	}
	return score
}

func classify(domain string) Category {
	switch domain {
	case "ocsp.digicert.com", "crl.identrust.com", "safebrowsing.googleapis.com":
		return CategorySecurity
	default:
		return CategoryNormal
	}
}

// ScanCycle runs one prefetch cycle (spec.md §4.4): scan for low-TTL
// entries, consult the oracle, and dispatch up to available_slots
// resolutions. Intended to be called by engine's housekeeping registry on
// PrefetchInterval. Returns the next requested interval (itself, since the
// prefetcher doesn't vary its own cadence under memory pressure).
func (p *Prefetcher) ScanCycle(ctx context.Context) time.Duration {
	candidates := p.dueCandidates()
	slots := p.cfg.MaxConcurrentTasks - p.activeCount()
	var wg sync.WaitGroup
	for _, d := range candidates {
		if slots <= 0 {
			break
		}
		if !p.readyToAttempt(d) {
			continue
		}
		slots--
		wg.Add(1)
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		go func(domain string, qtype uint16) {
			defer wg.Done()
			defer func() {
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
			}()
			_, _ = p.Resolve(ctx, domain, qtype)
			p.demoteIfFailing(domain)
		}(d.Domain, d.RecordType)
	}
	wg.Wait()
	return p.cfg.PrefetchInterval
}

func (p *Prefetcher) dueCandidates() []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Entry
	now := time.Now()
	for _, e := range p.entries {
		remaining := e.Expires.Sub(now)
		if remaining > p.cfg.MinTTLThreshold {
			continue
		}
		if !p.oracle(e.Domain, remaining) {
			continue
		}
		out = append(out, e)
	}
	sortByPriority(out)
	if len(out) > p.cfg.MaxQueueLength {
		out = out[:p.cfg.MaxQueueLength]
	}
	return out
}

// sortByPriority implements spec.md §4.4's tie-break chain: higher priority
// first, else earlier TTL expiration, else fewer prior attempts.
func sortByPriority(entries []*Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func less(a, b *Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Expires.Equal(b.Expires) {
		return a.Expires.Before(b.Expires)
	}
	return a.Attempts < b.Attempts
}

func (p *Prefetcher) readyToAttempt(e *Entry) bool {
	if e.Attempts > 0 && time.Since(e.LastAttempt) < minReattemptBackoff {
		return false
	}
	return true
}

func (p *Prefetcher) demoteIfFailing(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[domain]
	if e != nil && e.Attempts >= maxFailedAttempts {
		e.Category = CategoryNormal
		e.Priority = -1 // lowest band
	}
}

func (p *Prefetcher) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// qtypeFor maps a record-type hint to the miekg/dns query type constant.
func qtypeFor(v4, v6 bool) uint16 {
	if v6 {
		return dns.TypeAAAA
	}
	return dns.TypeA
}
