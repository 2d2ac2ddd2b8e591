package httpcache

import (
	"strconv"
	"strings"
	"time"
)

// CacheControl is the parsed subset of a Cache-Control header this cache
// acts on (spec.md §4.7.1, round-trip law in spec.md §8).
type CacheControl struct {
	NoStore              bool
	NoCache              bool
	Immutable            bool
	MaxAge               *int64
	StaleWhileRevalidate *int64
	StaleIfError         *int64
}

// ParseCacheControl parses a Cache-Control header value into its directives.
func ParseCacheControl(v string) CacheControl {
	var cc CacheControl
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, hasVal := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch name {
		case "no-store":
			cc.NoStore = true
		case "no-cache":
			cc.NoCache = true
		case "immutable":
			cc.Immutable = true
		case "max-age":
			if hasVal {
				cc.MaxAge = parseSeconds(val)
			}
		case "stale-while-revalidate":
			if hasVal {
				cc.StaleWhileRevalidate = parseSeconds(val)
			}
		case "stale-if-error":
			if hasVal {
				cc.StaleIfError = parseSeconds(val)
			}
		}
	}
	return cc
}

// Serialize reproduces a Cache-Control header value, satisfying spec.md
// §8's `parse_cache_control(serialize(cc)) == cc` round-trip law.
func (cc CacheControl) Serialize() string {
	var parts []string
	if cc.NoStore {
		parts = append(parts, "no-store")
	}
	if cc.NoCache {
		parts = append(parts, "no-cache")
	}
	if cc.Immutable {
		parts = append(parts, "immutable")
	}
	if cc.MaxAge != nil {
		parts = append(parts, "max-age="+strconv.FormatInt(*cc.MaxAge, 10))
	}
	if cc.StaleWhileRevalidate != nil {
		parts = append(parts, "stale-while-revalidate="+strconv.FormatInt(*cc.StaleWhileRevalidate, 10))
	}
	if cc.StaleIfError != nil {
		parts = append(parts, "stale-if-error="+strconv.FormatInt(*cc.StaleIfError, 10))
	}
	return strings.Join(parts, ", ")
}

func parseSeconds(s string) *int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// computeAge is the elapsed time since the entry's ResponseTime.
func computeAge(e *Entry) time.Duration {
	return time.Since(e.ResponseTime)
}

// effectiveMaxAge resolves the entry's freshness lifetime: explicit
// max-age/Expires win over the cache's DefaultTTL; immutable entries are
// always fresh (represented as a very large duration).
func effectiveMaxAge(e *Entry, cfg Config, cc CacheControl, expires *time.Time) time.Duration {
	if cc.Immutable {
		return 365 * 24 * time.Hour
	}
	if cc.MaxAge != nil {
		return time.Duration(*cc.MaxAge) * time.Second
	}
	if expires != nil {
		return expires.Sub(e.RequestTime)
	}
	return cfg.DefaultTTL
}

// classify determines an Entry's State per spec.md §4.7.1: Fresh if
// no-cache is absent and age <= effective max-age (or Expires, or
// immutable); Stale-but-usable if within the stale-while-revalidate
// budget; otherwise Miss.
func classify(e *Entry, cfg Config, cc CacheControl, expires *time.Time) State {
	if cc.NoCache {
		return StateStale
	}
	maxAge := effectiveMaxAge(e, cfg, cc, expires)
	age := computeAge(e)
	if age <= maxAge {
		return StateFresh
	}
	if cc.StaleWhileRevalidate != nil {
		swr := time.Duration(*cc.StaleWhileRevalidate) * time.Second
		if age <= maxAge+swr {
			return StateStale
		}
	}
	return StateMiss
}
