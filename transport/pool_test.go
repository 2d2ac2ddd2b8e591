package transport

import (
	"context"
	"testing"
	"time"
)

type fakeConn struct {
	origin    OriginKey
	closed    bool
	idle      bool
	idleSince time.Time
}

func (f *fakeConn) Origin() OriginKey    { return f.origin }
func (f *fakeConn) Idle() bool           { return f.idle }
func (f *fakeConn) IdleSince() time.Time { return f.idleSince }
func (f *fakeConn) Closed() bool         { return f.closed }
func (f *fakeConn) Close() error         { f.closed = true; return nil }

func TestAcquireDialsWhenCapacityAvailable(t *testing.T) {
	p := New(Config{MaxTotal: 4, MaxPerHost: 2, ConnectTimeout: time.Second, IdleTimeout: time.Minute})
	origin := OriginKey{Scheme: "https", Authority: "example.com:443", ALPN: ALPNH1}
	var dialed int
	p.RegisterDialer(ALPNH1, func(ctx context.Context, o OriginKey) (Conn, error) {
		dialed++
		return &fakeConn{origin: o}, nil
	})

	c, err := p.Acquire(context.Background(), origin)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if dialed != 1 {
		t.Fatalf("expected 1 dial, got %d", dialed)
	}
	total, _ := p.Stats()
	if total != 1 {
		t.Fatalf("expected total 1, got %d", total)
	}
	_ = c
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	p := New(DefaultConfig())
	origin := OriginKey{Scheme: "https", Authority: "example.com:443", ALPN: ALPNH1}
	var dialed int
	p.RegisterDialer(ALPNH1, func(ctx context.Context, o OriginKey) (Conn, error) {
		dialed++
		return &fakeConn{origin: o, idle: true}, nil
	})

	c1, err := p.Acquire(context.Background(), origin)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(c1)

	c2, err := p.Acquire(context.Background(), origin)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if dialed != 1 {
		t.Fatalf("expected connection reuse (1 dial), got %d dials", dialed)
	}
	if c2 != c1 {
		t.Fatalf("expected the released connection to be reused")
	}
}

func TestAcquireFailsWithoutRegisteredDialer(t *testing.T) {
	p := New(DefaultConfig())
	origin := OriginKey{Scheme: "https", Authority: "example.com:443", ALPN: ALPNH3}
	_, err := p.Acquire(context.Background(), origin)
	if err == nil {
		t.Fatal("expected an error when no dialer is registered")
	}
}

func TestAcquireWaiterRemovedOnCancellation(t *testing.T) {
	p := New(Config{MaxTotal: 1, MaxPerHost: 1, ConnectTimeout: time.Second, IdleTimeout: time.Minute})
	origin := OriginKey{Scheme: "https", Authority: "example.com:443", ALPN: ALPNH1}
	p.RegisterDialer(ALPNH1, func(ctx context.Context, o OriginKey) (Conn, error) {
		return &fakeConn{origin: o}, nil
	})

	// Saturate the single slot.
	held, err := p.Acquire(context.Background(), origin)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx, origin)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}

	_ = held
}

func TestSelectALPNPrefersH3WhenHinted(t *testing.T) {
	hints := NewAltSvcHints()
	hints.NoteH3("example.com:443")
	if got := SelectALPN("https", "example.com:443", hints); got != ALPNH3 {
		t.Fatalf("expected ALPNH3, got %v", got)
	}
}

func TestSelectALPNForcesH1OnPlaintext(t *testing.T) {
	hints := NewAltSvcHints()
	hints.NoteH3("example.com:80")
	if got := SelectALPN("http", "example.com:80", hints); got != ALPNH1 {
		t.Fatalf("expected ALPNH1 for a non-TLS origin, got %v", got)
	}
}

func TestPerfMonitorHysteresisRequiresConsecutiveWindows(t *testing.T) {
	m := NewPerfMonitor()
	lossy := Sample{PacketLossEstimate: 0.2, BatteryFraction: -1}

	if got := m.Observe(lossy); got != ProfileBalanced {
		t.Fatalf("expected profile to stay Balanced after 1 window, got %v", got)
	}
	if got := m.Observe(lossy); got != ProfileBalanced {
		t.Fatalf("expected profile to stay Balanced after 2 windows, got %v", got)
	}
	if got := m.Observe(lossy); got != ProfileLowBandwidth {
		t.Fatalf("expected switch to LowBandwidth after 3 consecutive windows, got %v", got)
	}
}
