package shield

import "github.com/coreweb/engine/headers"

// genericUA is the shared User-Agent string every tab presents once
// fingerprint rewriting is active, removing the entropy a per-build UA
// string would otherwise leak.
const genericUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) CoreWeb/1.0 Safari/537.36"

// RewriteFingerprint normalizes headers that otherwise narrow a client's
// anonymity set (spec.md §4.8: "rewrite UA / Accept / Accept-Language per
// level"). Standard leaves headers untouched; High cuts Accept-Language
// down to its first language tag (everything before the first ',' or ';',
// so "en-US,en;q=0.9" becomes "en-US"); Maximum/Custom additionally pin
// the UA and Accept header to a fixed, widely-shared value.
func RewriteFingerprint(h *headers.Store, level Level) {
	switch level {
	case LevelStandard:
		return
	case LevelHigh:
		coarsenAcceptLanguage(h)
	case LevelMaximum, LevelCustom:
		coarsenAcceptLanguage(h)
		h.Set("User-Agent", genericUA)
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
}

func coarsenAcceptLanguage(h *headers.Store) {
	v, ok := h.Get("Accept-Language")
	if !ok || v == "" {
		return
	}
	primary := v
	for i, c := range v {
		if c == ',' || c == ';' {
			primary = v[:i]
			break
		}
	}
	h.Set("Accept-Language", primary)
}
