package shield

import (
	"net"
	"strings"
)

// ICECandidateKind classifies an ICE candidate's gathering method
// (spec.md §4.8: "host / srflx / relay").
type ICECandidateKind string

const (
	ICEHost  ICECandidateKind = "host"
	ICESrflx ICECandidateKind = "srflx"
	ICERelay ICECandidateKind = "relay"
)

// ClassifyICECandidate parses the `typ` field out of an SDP ICE candidate
// attribute line (e.g. "candidate:1 1 UDP 2130706431 10.0.0.4 54321 typ host").
func ClassifyICECandidate(candidate string) (ICECandidateKind, string, bool) {
	fields := strings.Fields(candidate)
	var addr string
	var kind ICECandidateKind
	for i, f := range fields {
		if f == "typ" && i+1 < len(fields) {
			switch fields[i+1] {
			case "host":
				kind = ICEHost
			case "srflx":
				kind = ICESrflx
			case "relay":
				kind = ICERelay
			default:
				return "", "", false
			}
		}
	}
	if len(fields) >= 5 {
		addr = fields[4]
	}
	if kind == "" || addr == "" {
		return "", "", false
	}
	return kind, addr, true
}

// SanitizeICECandidate applies the level-scaled WebRTC leak mitigation
// spec.md §4.8 describes. At Maximum, WebRTC is disabled entirely and the
// caller should drop the whole offer/answer exchange rather than call
// this per-candidate; SanitizeICECandidate signals that case by returning
// ok=false with an empty candidate.
func SanitizeICECandidate(candidate string, level Level) (string, bool) {
	if level == LevelMaximum {
		return "", false
	}
	kind, addr, ok := ClassifyICECandidate(candidate)
	if !ok {
		return candidate, true
	}
	if kind != ICEHost {
		return candidate, true
	}
	ip := net.ParseIP(addr)
	if ip == nil || !isPrivate(ip) {
		return candidate, true
	}
	switch level {
	case LevelStandard:
		return candidate, true
	case LevelHigh, LevelCustom:
		return strings.Replace(candidate, addr, mdnsPlaceholder(addr), 1), true
	default:
		return "", false
	}
}

func isPrivate(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}
	return false
}

// mdnsPlaceholder derives a stable-per-address .local hostname so repeated
// candidates from the same interface remain distinguishable without
// revealing the real address.
func mdnsPlaceholder(addr string) string {
	h := uint32(2166136261)
	for i := 0; i < len(addr); i++ {
		h ^= uint32(addr[i])
		h *= 16777619
	}
	return hexUint32(h) + ".local"
}

func hexUint32(v uint32) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
