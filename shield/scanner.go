package shield

import (
	"regexp"
	"strings"

	"github.com/coreweb/engine/headers"
)

// Severity is the content scanner's verdict strength (spec.md §4.8: "on
// severity High, replace body with a block page and set status to 403").
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityHigh
)

// scriptInjectionPatterns are heuristic signatures for reflected/stored
// script injection riding in response bodies that should have been plain
// content (e.g. a JSON API echoing unescaped request data).
var scriptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*document\.cookie`),
	regexp.MustCompile(`(?i)on(error|load|click)\s*=\s*["'].*eval\(`),
	regexp.MustCompile(`(?i)javascript:\s*eval\(`),
}

// phishingFormPatterns flag forms that collect credentials while posting
// to a different origin than the page claims, a common phishing tell.
var phishingFormPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<input[^>]*type=["']?password["']?[^>]*>`),
}

// ScanContent runs the heuristic scanner spec.md §4.8 requires: obvious
// script injection and phishing-form heuristics. formAction is the form's
// declared action origin, compared against pageOrigin to flag credential
// harvesting toward a foreign origin.
func ScanContent(body []byte, formAction, pageOrigin string) Severity {
	text := string(body)
	for _, p := range scriptInjectionPatterns {
		if p.Match(body) {
			return SeverityHigh
		}
	}
	hasPasswordField := false
	for _, p := range phishingFormPatterns {
		if p.MatchString(text) {
			hasPasswordField = true
			break
		}
	}
	if hasPasswordField && formAction != "" && pageOrigin != "" && !strings.EqualFold(formAction, pageOrigin) {
		return SeverityHigh
	}
	if hasPasswordField {
		return SeverityLow
	}
	return SeverityNone
}

// ScanResponse runs the content scanner over a response body and, on
// SeverityHigh, replaces it with a block page per spec.md §4.8. Returns
// the (possibly replaced) status and body.
func ScanResponse(status int, body []byte, h *headers.Store, formAction, pageOrigin string) (int, []byte) {
	sev := ScanContent(body, formAction, pageOrigin)
	if sev != SeverityHigh {
		return status, body
	}
	return writeBlockPage(h, "content blocked: suspicious script or phishing form detected")
}
