// Package transport implements the connection pool and the three wire
// protocols it multiplexes across (spec.md §4.5): HTTP/1.1 via fasthttp,
// HTTP/2 via golang.org/x/net/http2's Framer + HPACK, and HTTP/3 via
// quic-go + qpack. Acquisition is keyed by (scheme, authority, alpn), with
// FIFO waiters when the origin or total pool is at capacity.
package transport

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/internal/xlog"
)

// ALPN is the negotiated (or assumed) wire protocol for a pooled connection.
type ALPN string

const (
	ALPNH1 ALPN = "http/1.1"
	ALPNH2 ALPN = "h2"
	ALPNH3 ALPN = "h3"
)

// OriginKey identifies a pool partition (spec.md §4.5: "keyed by (scheme,
// authority, alpn_version)").
type OriginKey struct {
	Scheme    string
	Authority string
	ALPN      ALPN
}

// Conn is the pool's view of a live connection: opaque to the pool itself,
// owned and driven by whichever transport (H1/H2/H3) created it.
type Conn interface {
	Origin() OriginKey
	Idle() bool
	IdleSince() time.Time
	Closed() bool
	Close() error
}

// Config carries the pool's capacity and timeout knobs (spec.md §4.5).
type Config struct {
	MaxTotal       int
	MaxPerHost     int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxTotal:       256,
		MaxPerHost:     6,
		ConnectTimeout: 10 * time.Second,
		IdleTimeout:    90 * time.Second,
	}
}

// Dialer opens a fresh connection for an origin; supplied by whichever
// transport owns that origin's ALPN.
type Dialer func(ctx context.Context, origin OriginKey) (Conn, error)

type waiter struct {
	origin OriginKey
	ch     chan Conn
}

// Pool is the shared acquire/release/reap connection pool (spec.md §4.5).
type Pool struct {
	cfg Config
	log *zap.SugaredLogger

	mu      sync.Mutex
	idle    map[OriginKey][]Conn
	perHost map[OriginKey]int
	total   int
	waiters map[OriginKey]*list.List // of *waiter, FIFO

	dialers map[ALPN]Dialer
}

// New constructs an empty pool. RegisterDialer must be called for each ALPN
// the caller intends to use before Acquire dials anything new.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:     cfg,
		log:     xlog.For("transport.pool"),
		idle:    make(map[OriginKey][]Conn),
		perHost: make(map[OriginKey]int),
		waiters: make(map[OriginKey]*list.List),
		dialers: make(map[ALPN]Dialer),
	}
}

// RegisterDialer binds an ALPN to the transport responsible for dialing it.
func (p *Pool) RegisterDialer(alpn ALPN, d Dialer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialers[alpn] = d
}

// Acquire returns an idle connection for origin if one exists; otherwise
// dials a new one if the total/per-host caps permit; otherwise blocks on a
// FIFO of pending acquirers until a connection for origin is released or
// ctx is cancelled (in which case the waiter is removed from the FIFO).
func (p *Pool) Acquire(ctx context.Context, origin OriginKey) (Conn, error) {
	p.mu.Lock()
	if conns := p.idle[origin]; len(conns) > 0 {
		c := conns[len(conns)-1]
		p.idle[origin] = conns[:len(conns)-1]
		p.mu.Unlock()
		if c.Closed() {
			return p.Acquire(ctx, origin)
		}
		return c, nil
	}

	if p.total < p.cfg.MaxTotal && p.perHost[origin] < p.cfg.MaxPerHost {
		dialer := p.dialers[origin.ALPN]
		p.total++
		p.perHost[origin]++
		p.mu.Unlock()

		if dialer == nil {
			p.mu.Lock()
			p.total--
			p.perHost[origin]--
			p.mu.Unlock()
			return nil, cmn.New(cmn.KindInternal, "no-dialer-registered").WithContext("alpn", origin.ALPN)
		}

		dialCtx := ctx
		if p.cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
			defer cancel()
		}
		conn, err := dialer(dialCtx, origin)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.perHost[origin]--
			p.mu.Unlock()
			return nil, cmn.Wrap(err, cmn.KindNetwork, "connect-failed").WithContext("authority", origin.Authority)
		}
		return conn, nil
	}

	w := &waiter{origin: origin, ch: make(chan Conn, 1)}
	fifo, ok := p.waiters[origin]
	if !ok {
		fifo = list.New()
		p.waiters[origin] = fifo
	}
	elem := fifo.PushBack(w)
	p.mu.Unlock()

	select {
	case conn := <-w.ch:
		if conn == nil {
			return nil, cmn.New(cmn.KindCancelled, "pool-closed")
		}
		return conn, nil
	case <-ctx.Done():
		p.mu.Lock()
		fifo.Remove(elem)
		p.mu.Unlock()
		return nil, cmn.Wrap(ctx.Err(), cmn.KindCancelled, "acquire-cancelled")
	}
}

// Release returns conn to the idle set for its origin, handing it directly
// to the oldest waiter (if any) instead of round-tripping through idle.
func (p *Pool) Release(conn Conn) {
	origin := conn.Origin()
	p.mu.Lock()
	if conn.Closed() {
		p.total--
		p.perHost[origin]--
		p.mu.Unlock()
		return
	}
	if fifo, ok := p.waiters[origin]; ok && fifo.Len() > 0 {
		front := fifo.Remove(fifo.Front()).(*waiter)
		p.mu.Unlock()
		front.ch <- conn
		return
	}
	p.idle[origin] = append(p.idle[origin], conn)
	p.mu.Unlock()
}

// Remove drops a closed/broken connection from the pool's accounting
// without returning it to idle.
func (p *Pool) Remove(conn Conn) {
	origin := conn.Origin()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total--
	p.perHost[origin]--
}

// ReapIdle closes and discards idle connections that have exceeded
// IdleTimeout, meant to be registered with engine.Housekeeper.
func (p *Pool) ReapIdle() time.Duration {
	p.mu.Lock()
	now := time.Now()
	for origin, conns := range p.idle {
		var keep []Conn
		for _, c := range conns {
			if now.Sub(c.IdleSince()) > p.cfg.IdleTimeout {
				_ = c.Close()
				p.total--
				p.perHost[origin]--
				continue
			}
			keep = append(keep, c)
		}
		p.idle[origin] = keep
	}
	p.mu.Unlock()
	return p.cfg.IdleTimeout / 2
}

// Stats reports the pool's current occupancy.
func (p *Pool) Stats() (total int, idleCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conns := range p.idle {
		idleCount += len(conns)
	}
	return p.total, idleCount
}
