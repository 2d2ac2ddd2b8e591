// Package stats tracks and exposes engine metrics: counters and gauges
// updated from hot paths (cache, pool, prefetch, DNS) and reported both
// as a live prometheus.Collector and as a point-in-time Snapshot for the
// stats() callable surface (spec.md §6).
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Naming Convention (kept from the teacher):
//  -> "*.n"    - counter
//  -> "*.ns"   - latency (nanoseconds)
//  -> "*.size" - size (bytes)
//  -> "*.bps"  - throughput (in byte/s)
const (
	CacheHitCount    = "cache.hit.n"
	CacheMissCount   = "cache.miss.n"
	CacheStaleCount  = "cache.stale.n"
	CacheEvictCount  = "cache.evict.n"
	PoolAcquireCount = "pool.acquire.n"
	PoolDialCount    = "pool.dial.n"
	PoolWaitCount    = "pool.wait.n"
	PrefetchHitCount = "prefetch.hit.n"
	PrefetchMissCount = "prefetch.miss.n"
	DNSResolveCount  = "dns.resolve.n"
	DNSFailCount     = "dns.fail.n"
	BlockedCount     = "shield.blocked.n"
	PoolTotalGauge   = "pool.total.size"
	PoolIdleGauge    = "pool.idle.size"
)

// OriginRTT is the latest RTT observation for one origin, stored by
// RecordRTT and reported in the engine's stats() snapshot. transport.Timing
// does not call RecordRTT; the snapshot lists only origins recorded
// through it.
type OriginRTT struct {
	Authority  string
	DNSMillis  float64
	ConnectMillis float64
	TLSMillis  float64
	FirstByteMillis float64
	TotalMillis float64
}

// Snapshot is the point-in-time view returned by Collector.Snapshot,
// matching spec.md §6's "stats() -> Snapshot (cache hit ratio, pool
// sizes, prefetch counters, per-origin RTT)".
type Snapshot struct {
	CacheHitRatio   float64
	CacheHits       int64
	CacheMisses     int64
	CacheStale      int64
	CacheEvictions  int64
	PoolTotal       int
	PoolIdle        int
	PrefetchHits    int64
	PrefetchMisses  int64
	DNSResolves     int64
	DNSFailures     int64
	Blocked         int64
	OriginRTTs      []OriginRTT
}

// Collector is a prometheus.Collector exposing every counter above as a
// named gauge/counter metric, grounded on the teacher's Trunner/Prunner
// named-metric registration pattern (target_stats.go/proxy_stats.go),
// adapted from a StatsD-pushed tracker map to a pull-based Prometheus
// registry.
type Collector struct {
	namespace string

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheStale  atomic.Int64
	cacheEvicts atomic.Int64

	poolAcquires atomic.Int64
	poolDials    atomic.Int64
	poolWaits    atomic.Int64
	poolStatsFn  func() (total, idle int)

	prefetchHits   atomic.Int64
	prefetchMisses atomic.Int64

	dnsResolves atomic.Int64
	dnsFailures atomic.Int64

	blocked atomic.Int64

	mu      sync.Mutex
	origins map[string]OriginRTT

	descs map[string]*prometheus.Desc
}

// New builds a Collector under the given Prometheus namespace. poolStatsFn
// is polled at collection/snapshot time rather than pushed, since the pool
// already tracks its own live counts.
func New(namespace string, poolStatsFn func() (total, idle int)) *Collector {
	if poolStatsFn == nil {
		poolStatsFn = func() (int, int) { return 0, 0 }
	}
	c := &Collector{
		namespace:   namespace,
		poolStatsFn: poolStatsFn,
		origins:     make(map[string]OriginRTT),
		descs:       make(map[string]*prometheus.Desc),
	}
	for _, name := range []string{
		CacheHitCount, CacheMissCount, CacheStaleCount, CacheEvictCount,
		PoolAcquireCount, PoolDialCount, PoolWaitCount,
		PrefetchHitCount, PrefetchMissCount,
		DNSResolveCount, DNSFailCount, BlockedCount,
		PoolTotalGauge, PoolIdleGauge,
	} {
		c.descs[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", metricName(name)),
			"engine metric "+name, nil, nil,
		)
	}
	return c
}

func metricName(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, key[i])
	}
	return string(out)
}

func (c *Collector) IncCacheHit()    { c.cacheHits.Inc() }
func (c *Collector) IncCacheMiss()   { c.cacheMisses.Inc() }
func (c *Collector) IncCacheStale()  { c.cacheStale.Inc() }
func (c *Collector) IncCacheEvict()  { c.cacheEvicts.Inc() }
func (c *Collector) IncPoolAcquire() { c.poolAcquires.Inc() }
func (c *Collector) IncPoolDial()    { c.poolDials.Inc() }
func (c *Collector) IncPoolWait()    { c.poolWaits.Inc() }
func (c *Collector) IncPrefetchHit() { c.prefetchHits.Inc() }
func (c *Collector) IncPrefetchMiss() { c.prefetchMisses.Inc() }
func (c *Collector) IncDNSResolve()  { c.dnsResolves.Inc() }
func (c *Collector) IncDNSFail()     { c.dnsFailures.Inc() }
func (c *Collector) IncBlocked()     { c.blocked.Inc() }

// RecordRTT updates the rolling per-origin timing view used by the
// stats() snapshot.
func (c *Collector) RecordRTT(rtt OriginRTT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origins[rtt.Authority] = rtt
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	total, idle := c.poolStatsFn()
	values := map[string]float64{
		CacheHitCount:    float64(c.cacheHits.Load()),
		CacheMissCount:   float64(c.cacheMisses.Load()),
		CacheStaleCount:  float64(c.cacheStale.Load()),
		CacheEvictCount:  float64(c.cacheEvicts.Load()),
		PoolAcquireCount: float64(c.poolAcquires.Load()),
		PoolDialCount:    float64(c.poolDials.Load()),
		PoolWaitCount:    float64(c.poolWaits.Load()),
		PrefetchHitCount: float64(c.prefetchHits.Load()),
		PrefetchMissCount: float64(c.prefetchMisses.Load()),
		DNSResolveCount:  float64(c.dnsResolves.Load()),
		DNSFailCount:     float64(c.dnsFailures.Load()),
		BlockedCount:     float64(c.blocked.Load()),
	}
	for name, v := range values {
		ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.CounterValue, v)
	}
	ch <- prometheus.MustNewConstMetric(c.descs[PoolTotalGauge], prometheus.GaugeValue, float64(total))
	ch <- prometheus.MustNewConstMetric(c.descs[PoolIdleGauge], prometheus.GaugeValue, float64(idle))
}

// Snapshot returns the point-in-time view engine.Stats() hands to callers.
func (c *Collector) Snapshot() Snapshot {
	hits := c.cacheHits.Load()
	misses := c.cacheMisses.Load()
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	total, idle := c.poolStatsFn()

	c.mu.Lock()
	rtts := make([]OriginRTT, 0, len(c.origins))
	for _, r := range c.origins {
		rtts = append(rtts, r)
	}
	c.mu.Unlock()

	return Snapshot{
		CacheHitRatio:  ratio,
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheStale:     c.cacheStale.Load(),
		CacheEvictions: c.cacheEvicts.Load(),
		PoolTotal:      total,
		PoolIdle:       idle,
		PrefetchHits:   c.prefetchHits.Load(),
		PrefetchMisses: c.prefetchMisses.Load(),
		DNSResolves:    c.dnsResolves.Load(),
		DNSFailures:    c.dnsFailures.Load(),
		Blocked:        c.blocked.Load(),
		OriginRTTs:     rtts,
	}
}
