// Package shield implements the per-request/per-response security layer
// (spec.md §4.8): header injection, UA/fingerprint rewriting, tracker
// blocking, cookie policy evaluation, WebRTC ICE sanitization, and the
// response content scanner.
package shield

// Level is the per-domain security posture (spec.md §3 policy tables).
// "High"/"Maximum" correspond to spec.md §4.8's looser "Strict"/"Extreme"
// certificate-validation naming; SPEC_FULL.md reconciles the two into one
// enum (DESIGN.md Open Question decision).
type Level string

const (
	LevelStandard Level = "standard"
	LevelHigh     Level = "high"
	LevelMaximum  Level = "maximum"
	LevelCustom   Level = "custom"
)
