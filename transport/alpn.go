package transport

import "sync"

// AltSvcHints remembers, per authority, which ALPN versions an origin has
// advertised support for (via a prior Alt-Svc response header or static
// config), so future acquisitions can try H3 first without probing
// (spec.md §4.5 "ALPN selection").
type AltSvcHints struct {
	mu   sync.RWMutex
	h3   map[string]bool
	h2   map[string]bool
}

func NewAltSvcHints() *AltSvcHints {
	return &AltSvcHints{h3: make(map[string]bool), h2: make(map[string]bool)}
}

func (a *AltSvcHints) NoteH3(authority string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.h3[authority] = true
}

func (a *AltSvcHints) NoteH2(authority string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.h2[authority] = true
}

func (a *AltSvcHints) supportsH3(authority string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.h3[authority]
}

func (a *AltSvcHints) supportsH2(authority string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.h2[authority]
}

// SelectALPN picks the protocol for an origin: H3 when known-supported,
// else H2 for every other TLS origin. Non-TLS origins never use H2/H3
// (spec.md §4.5: "non-TLS origins use H1.1 only").
func SelectALPN(scheme, authority string, hints *AltSvcHints) ALPN {
	if scheme != "https" {
		return ALPNH1
	}
	if hints != nil && hints.supportsH3(authority) {
		return ALPNH3
	}
	if hints != nil && hints.supportsH2(authority) {
		return ALPNH2
	}
	return ALPNH2 // TLS origins without a hint get H2; H2Transport.Dial offers only "h2", and nothing falls back to H1.1 when the server does not negotiate it
}
