package engine

import (
	"time"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
	"github.com/coreweb/engine/shield"
	"github.com/coreweb/engine/transport"
)

// RedirectPolicy governs how many redirects Fetch follows before
// surfacing the redirect response itself (spec.md §3 "Request").
type RedirectPolicy struct {
	Follow  bool
	MaxHops int
}

// Request is one outgoing fetch (spec.md §3 "Request").
type Request struct {
	ID          string
	Method      cmn.Method
	URL         string
	Headers     *headers.Store
	Body        []byte
	VersionPref cmn.Version
	Priority    int
	Timeout     time.Duration
	Redirect    RedirectPolicy
	Referrer    string
	Type        shield.ResourceType // consulted by the tracker filter and CSP
	FormAction  string              // set by the caller when the request is a form submission, for the phishing heuristic
	PageOrigin  string
	Preconnect  bool // preconnect-only, no bytes transferred (spec.md §6 preconnect)
}

// Response is the result of a completed fetch (spec.md §3 "Response"). Err
// is set when the shield or scanner replaced the body with a block page
// (KindBlocked) — Status/Headers/Body still describe what the caller
// should render. Fetch's returned error is reserved for fetches that never
// produced a response at all (DNS/connect/timeout/cancelled).
type Response struct {
	Status  cmn.Status
	Version cmn.Version
	Headers *headers.Store
	Body    []byte
	Timing  transport.TimingRecord
	Err     error
}
