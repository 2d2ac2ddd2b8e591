package shield

import (
	"crypto/x509"
	"time"

	"github.com/coreweb/engine/headers"
)

// DomainPolicy bundles the per-domain settings the shield consults for a
// single origin (spec.md §3 policy tables).
type DomainPolicy struct {
	Level     Level
	CustomCSP string
	Cookies   *CookiePolicy
}

// Shield is the per-tab security gate wired into the engine's fetch path
// (spec.md §4.8). It owns the tracker filter and session signer, which are
// process-wide, while per-domain levels/cookie rules are supplied by the
// caller's policy lookup.
type Shield struct {
	Trackers *TrackerFilter
	Sessions *SessionSigner
}

func New(trackerCapacity uint, sessionSecret []byte) *Shield {
	return &Shield{
		Trackers: NewTrackerFilter(trackerCapacity),
		Sessions: NewSessionSigner(sessionSecret),
	}
}

// PrepareRequest applies header injection and fingerprint rewriting, then
// consults the tracker filter. If the request is blocked, ok is false and
// err is a Blocked(reason) error the caller should surface directly.
func (s *Shield) PrepareRequest(h *headers.Store, domain, referrer string, typ ResourceType, policy DomainPolicy) (ok bool, err error) {
	if s.Trackers.ShouldBlock(domain, referrer, typ) {
		return false, BlockedErr(domain)
	}
	InjectRequestHeaders(h, policy.Level, policy.CustomCSP)
	return true, nil
}

// ProcessResponse runs certificate validation (when chain is non-nil, i.e.
// the connection was HTTPS), CSP enforcement, and the content scanner,
// returning the possibly-replaced status/body.
func (s *Shield) ProcessResponse(chain []*x509.Certificate, host string, status int, h *headers.Store, body []byte, policy DomainPolicy, formAction, pageOrigin string) (int, []byte, error) {
	if chain != nil {
		if err := ValidateCertificate(chain, host, policy.Level, time.Now()); err != nil {
			return 0, nil, err
		}
	}
	EnforceResponseCSP(h, policy.Level, policy.CustomCSP)
	newStatus, newBody := ScanResponse(status, body, h, formAction, pageOrigin)
	return newStatus, newBody, nil
}
