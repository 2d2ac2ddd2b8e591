// Package engine wires the connection pool, HTTP cache, DNS prefetcher,
// security shield, and policy registry into the single orchestrator the
// embedder drives: fetch, cancel, preconnect, prefetch, parse_html, query,
// add_policy_exception, set_security_level, stats (spec.md §6).
package engine

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/dnscache"
	"github.com/coreweb/engine/httpcache"
	"github.com/coreweb/engine/internal/xlog"
	"github.com/coreweb/engine/policy"
	"github.com/coreweb/engine/prefetch"
	"github.com/coreweb/engine/shield"
	"github.com/coreweb/engine/stats"
	"github.com/coreweb/engine/transport"
)

// Config bundles every sub-package's tunables the embedder can override;
// each sub-config defaults via its own package's DefaultConfig.
type Config struct {
	Pool  transport.Config
	Cache httpcache.Config
	DNS   dnscache.Config

	TLSConfig    *tls.Config
	DNSServers   []string
	CacheJournal *httpcache.Journal // nil disables on-disk persistence

	TrackerFilterCapacity uint
	SessionSecret         []byte
	DefaultSecurityLevel  shield.Level
	Policy                policy.Config

	WorkerPoolSize int
	StatsNamespace string
}

// DefaultConfig seeds every sub-config from its own package default.
func DefaultConfig() Config {
	return Config{
		Pool:                  transport.DefaultConfig(),
		Cache:                 httpcache.DefaultConfig(),
		DNS:                   dnscache.DefaultConfig(),
		TLSConfig:             &tls.Config{},
		TrackerFilterCapacity: 1 << 16,
		DefaultSecurityLevel:  shield.LevelStandard,
		WorkerPoolSize:        0, // 0 = runtime.NumCPU(), per WorkerPool
		StatsNamespace:        "coreweb",
	}
}

// Engine is the content-pipeline's network half, wired into one struct so
// the embedder only has to construct and drive one object.
type Engine struct {
	cfg Config
	log *zap.SugaredLogger

	pool *transport.Pool
	alts *transport.AltSvcHints
	h1   *transport.H1Transport
	h2   *transport.H2Transport
	h3   *transport.H3Transport

	cache  *httpcache.Cache
	dns    *dnscache.Prefetcher
	shield *shield.Shield
	policy *policy.Registry
	stats  *stats.Collector

	workers   *WorkerPool
	housekeep *Housekeeper

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	planners map[string]*prefetch.Planner
}

// New constructs an Engine and starts its housekeeping loops (cache sweep,
// idle-connection reap, DNS prefetch scan). Cancelling ctx stops the worker
// pool and aborts an in-progress DNS scan; the housekeeping loops themselves
// keep running until Close.
func New(ctx context.Context, cfg Config) *Engine {
	if cfg.TLSConfig == nil {
		cfg.TLSConfig = &tls.Config{}
	}

	pool := transport.New(cfg.Pool)
	h1 := transport.NewH1Transport(cfg.TLSConfig)
	h2 := transport.NewH2Transport(cfg.TLSConfig)
	h3 := transport.NewH3Transport(cfg.TLSConfig)
	pool.RegisterDialer(transport.ALPNH1, h1.Dial)
	pool.RegisterDialer(transport.ALPNH2, h2.Dial)
	pool.RegisterDialer(transport.ALPNH3, h3.Dial)

	resolver := dnscache.NewMiekgResolver(cfg.DNSServers...)
	dnsPrefetcher := dnscache.New(cfg.DNS, resolver, nil)

	cache := httpcache.New(cfg.Cache, cfg.CacheJournal)
	shieldInst := shield.New(cfg.TrackerFilterCapacity, cfg.SessionSecret)
	policyReg := policy.NewRegistry(cfg.Policy, cfg.DefaultSecurityLevel)
	statsCollector := stats.New(cfg.StatsNamespace, pool.Stats)

	e := &Engine{
		cfg:       cfg,
		log:       xlog.For("engine"),
		pool:      pool,
		alts:      transport.NewAltSvcHints(),
		h1:        h1,
		h2:        h2,
		h3:        h3,
		cache:     cache,
		dns:       dnsPrefetcher,
		shield:    shieldInst,
		policy:    policyReg,
		stats:     statsCollector,
		workers:   NewWorkerPool(ctx, cfg.WorkerPoolSize),
		housekeep: NewHousekeeper(),
		cancels:   make(map[string]context.CancelFunc),
		planners:  make(map[string]*prefetch.Planner),
	}

	cache.OnStale(e.revalidateStale)

	e.housekeep.Register("cache-sweep", cache.CleanupSweep, cfg.Cache.CleanupInterval)
	e.housekeep.Register("pool-reap", pool.ReapIdle, cfg.Pool.IdleTimeout/2)
	e.housekeep.Register("dns-scan", func() time.Duration {
		return dnsPrefetcher.ScanCycle(ctx)
	}, cfg.DNS.PrefetchInterval)

	return e
}

// Close stops every housekeeping loop and waits for in-flight workers.
func (e *Engine) Close() error {
	e.housekeep.Stop()
	return e.workers.Wait()
}

// Stats returns a snapshot of every counter and per-origin RTT the engine
// has recorded (spec.md §6 stats).
func (e *Engine) Stats() stats.Snapshot {
	return e.stats.Snapshot()
}

// AddPolicyException exempts domain from block/allow pattern evaluation
// and cookie rules (spec.md §6 add_policy_exception).
func (e *Engine) AddPolicyException(domain string) {
	e.policy.AddException(domain)
}

// SetSecurityLevel overrides the shield level for domain, or the
// process-wide default when domain is empty (spec.md §6
// set_security_level).
func (e *Engine) SetSecurityLevel(domain string, level shield.Level) {
	e.policy.SetSecurityLevel(domain, level)
}

func originKeyFor(scheme, authority string, alpn transport.ALPN) transport.OriginKey {
	return transport.OriginKey{Scheme: scheme, Authority: authority, ALPN: alpn}
}

// errUnsupportedScheme builds the error for request URLs with a scheme the
// fetch path can't dial (anything but http/https). A fresh *Error per call
// since WithContext mutates its receiver and Fetch runs concurrently.
func errUnsupportedScheme() *cmn.Error {
	return cmn.New(cmn.KindInvalidInput, "unsupported-scheme")
}
