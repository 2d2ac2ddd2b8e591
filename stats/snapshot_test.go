package stats

import "testing"

func TestSnapshotComputesCacheHitRatio(t *testing.T) {
	c := New("coreweb", func() (int, int) { return 4, 2 })
	c.IncCacheHit()
	c.IncCacheHit()
	c.IncCacheHit()
	c.IncCacheMiss()

	snap := c.Snapshot()
	if snap.CacheHits != 3 || snap.CacheMisses != 1 {
		t.Fatalf("unexpected counts: hits=%d misses=%d", snap.CacheHits, snap.CacheMisses)
	}
	if snap.CacheHitRatio != 0.75 {
		t.Fatalf("expected hit ratio 0.75, got %v", snap.CacheHitRatio)
	}
	if snap.PoolTotal != 4 || snap.PoolIdle != 2 {
		t.Fatalf("unexpected pool stats: total=%d idle=%d", snap.PoolTotal, snap.PoolIdle)
	}
}

func TestSnapshotZeroHitRatioWithNoTraffic(t *testing.T) {
	c := New("coreweb", nil)
	snap := c.Snapshot()
	if snap.CacheHitRatio != 0 {
		t.Fatalf("expected 0 ratio with no traffic, got %v", snap.CacheHitRatio)
	}
}

func TestRecordRTTAppearsInSnapshot(t *testing.T) {
	c := New("coreweb", nil)
	c.RecordRTT(OriginRTT{Authority: "example.com:443", TotalMillis: 120})
	snap := c.Snapshot()
	if len(snap.OriginRTTs) != 1 || snap.OriginRTTs[0].Authority != "example.com:443" {
		t.Fatalf("expected recorded RTT to appear in snapshot, got %+v", snap.OriginRTTs)
	}
}
