package policy

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/coreweb/engine/shield"
)

// Registry is the live, mutable view of a loaded Config: the engine's
// add_policy_exception and set_security_level callable-surface entries
// (spec.md §6) mutate this rather than the immutable parsed Config.
type Registry struct {
	mu         sync.RWMutex
	cfg        Config
	levels     map[string]shield.Level // per-domain override, set_security_level
	defaultLvl shield.Level
	exceptions map[string]bool
}

// NewRegistry builds a live registry seeded from a parsed Config.
func NewRegistry(cfg Config, defaultLevel shield.Level) *Registry {
	r := &Registry{
		cfg:        cfg,
		levels:     make(map[string]shield.Level),
		defaultLvl: defaultLevel,
		exceptions: make(map[string]bool, len(cfg.Exceptions)),
	}
	for _, d := range cfg.Exceptions {
		r.exceptions[d] = true
	}
	return r
}

// AddException marks domain as exempt from block/allow pattern matching
// and cookie rules (spec.md §6 add_policy_exception).
func (r *Registry) AddException(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions[domain] = true
}

// RemoveException reverses AddException.
func (r *Registry) RemoveException(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exceptions, domain)
}

// SetSecurityLevel overrides the security level for domain (empty domain
// sets the process-wide default) (spec.md §6 set_security_level).
func (r *Registry) SetSecurityLevel(domain string, level shield.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if domain == "" {
		r.defaultLvl = level
		return
	}
	r.levels[domain] = level
}

// LevelFor resolves the effective security level for domain.
func (r *Registry) LevelFor(domain string) shield.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if lvl, ok := r.levels[domain]; ok {
		return lvl
	}
	return r.defaultLvl
}

// IsException reports whether domain has an active exception.
func (r *Registry) IsException(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exceptions[domain]
}

// EvaluateURL decides whether url should be allowed through, applying
// exceptions first, then allow patterns, then block patterns — an
// explicit allow always beats a block, matching the cookie policy's
// "exceptions bypass all rules" precedence (spec.md §4.8).
func (r *Registry) EvaluateURL(rawURL, domain string) bool {
	if r.IsException(domain) {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pat := range r.cfg.AllowPatterns {
		if globMatch(pat, rawURL) {
			return true
		}
	}
	for _, pat := range r.cfg.BlockPatterns {
		if globMatch(pat, rawURL) {
			return false
		}
	}
	return true
}

// CookiePolicyFor builds the shield.CookiePolicy this registry's entries
// describe, for the cookie-policy evaluator (spec.md §4.8).
func (r *Registry) CookiePolicyFor(now time.Time) *shield.CookiePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]shield.CookieEntry, 0, len(r.cfg.Entries))
	for _, e := range r.cfg.Entries {
		var expires *time.Time
		if e.Expires != nil {
			t := time.Unix(*e.Expires, 0)
			expires = &t
		}
		domain := e.Domain
		suffix := strings.HasPrefix(domain, "*.")
		if suffix {
			domain = strings.TrimPrefix(domain, "*.")
		}
		entries = append(entries, shield.CookieEntry{
			Domain:    domain,
			Suffix:    suffix,
			Rule:      toShieldRule(e.Rule),
			ExpiresAt: expires,
		})
	}
	exceptions := make(map[string]bool, len(r.exceptions))
	for d := range r.exceptions {
		exceptions[d] = true
	}
	return &shield.CookiePolicy{
		Entries:           entries,
		DefaultFirstParty: toShieldRule(r.cfg.FirstPartyRule),
		DefaultThirdParty: toShieldRule(r.cfg.ThirdPartyRule),
		Exceptions:        exceptions,
	}
}

// toShieldRule maps the wire-schema Rule enum (spec.md §6, PascalCase) to
// shield's internal CookieRule (lowercase-with-underscores).
func toShieldRule(r Rule) shield.CookieRule {
	switch r {
	case RuleAllow:
		return shield.RuleAllow
	case RuleAllowFirstParty:
		return shield.RuleAllowFirstParty
	case RuleAllowSession:
		return shield.RuleAllowSession
	case RulePartition:
		return shield.RulePartition
	case RuleBlock:
		return shield.RuleBlock
	default:
		return shield.RuleBlock
	}
}

// globMatch matches a shell-style glob pattern against a URL or domain.
// '*' matches any run of characters, '/' included: path.Match stops '*'
// at '/', so '/' is mapped to a NUL byte on both sides first. A malformed
// pattern matches nothing.
func globMatch(pattern, s string) bool {
	const sep = "\x00"
	ok, err := path.Match(strings.ReplaceAll(pattern, "/", sep), strings.ReplaceAll(s, "/", sep))
	if err != nil {
		return false
	}
	return ok
}
