package httpcache

import "time"

// CleanupSweep evicts every entry that has gone from StateMiss (expired
// even past its stale-while-revalidate grace) and compacts the journal, if
// any, to match — the periodic task spec.md §4.7.3 describes. engine.New
// registers it with the Housekeeper as "cache-sweep"; it returns the next
// requested interval.
func (c *Cache) CleanupSweep() time.Duration {
	c.mu.Lock()
	var survivors []*Entry
	var dropped int
	for key, e := range c.index {
		cc := ParseCacheControl(firstOr(e.Headers, "Cache-Control", ""))
		if classify(e, c.cfg, cc, entryExpires(e)) == StateMiss {
			c.unlinkLocked(e)
			delete(c.index, key)
			c.size -= e.CompressedSize
			dropped++
			continue
		}
		survivors = append(survivors, e)
	}
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Infow("cleanup sweep evicted expired entries", "count", dropped)
	}
	if c.journal != nil && dropped > 0 {
		if err := c.journal.Compact(survivors); err != nil {
			c.log.Warnw("journal compaction failed", "err", err)
		}
	}
	return c.cfg.CleanupInterval
}

func entryExpires(e *Entry) *time.Time {
	if v, has := e.Headers.Get("Expires"); has {
		if t, err := time.Parse(time.RFC1123, v); err == nil {
			return &t
		}
	}
	return nil
}
