package shield

import (
	"strconv"

	"github.com/coreweb/engine/headers"
)

// cspByLevel mirrors the progressively tighter default policies a browser
// ships per security posture (spec.md §4.8): Standard trusts same-origin
// scripts, High drops 'unsafe-inline', Maximum drops all inline/eval and
// forbids framing, Custom defers entirely to the domain's policy override.
var cspByLevel = map[Level]string{
	LevelStandard: "default-src 'self'; script-src 'self' 'unsafe-inline'; object-src 'none'",
	LevelHigh:     "default-src 'self'; script-src 'self'; object-src 'none'; base-uri 'self'",
	LevelMaximum:  "default-src 'self'; script-src 'self'; object-src 'none'; base-uri 'none'; frame-ancestors 'none'",
}

// InjectRequestHeaders adds the security headers spec.md §4.8 requires on
// every outgoing request, then rewrites identity-revealing headers through
// the fingerprint module. customCSP overrides the level default when the
// domain policy is Custom.
func InjectRequestHeaders(h *headers.Store, level Level, customCSP string) {
	csp := cspByLevel[level]
	if level == LevelCustom && customCSP != "" {
		csp = customCSP
	}
	if csp != "" {
		h.Set("Content-Security-Policy", csp)
	}
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	RewriteFingerprint(h, level)
}

// EnforceResponseCSP sets the level default CSP (or customCSP at
// LevelCustom) when the response has no Content-Security-Policy header. A
// CSP the response already carries is left unchanged; it is not compared
// with or merged into the level default.
func EnforceResponseCSP(h *headers.Store, level Level, customCSP string) {
	floor := cspByLevel[level]
	if level == LevelCustom && customCSP != "" {
		floor = customCSP
	}
	if floor == "" {
		return
	}
	if !h.Has("Content-Security-Policy") {
		h.Set("Content-Security-Policy", floor)
	}
}

// writeBlockPage replaces a response body with a minimal block page and
// forces a 403 status, used when the content scanner flags severity High.
func writeBlockPage(h *headers.Store, reason string) (int, []byte) {
	h.Set("Content-Type", "text/html; charset=utf-8")
	body := []byte("<!doctype html><html><body><h1>Blocked</h1><p>" + reason + "</p></body></html>")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return 403, body
}
