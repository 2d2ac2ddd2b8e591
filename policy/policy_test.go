package policy

import (
	"testing"
	"time"

	"github.com/coreweb/engine/shield"
)

func TestLoadParsesFullSchema(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"first_party_rule": "AllowFirstParty",
		"third_party_rule": "Block",
		"entries": [{"domain": "*.ads.example", "rule": "Block", "priority": 10, "is_system": true}],
		"block_patterns": ["*://ads.example/*"],
		"allow_patterns": [],
		"exceptions": ["trusted.example"]
	}`)
	cfg, err := Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 || cfg.FirstPartyRule != RuleAllowFirstParty {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Entries) != 1 || cfg.Entries[0].Domain != "*.ads.example" {
		t.Fatalf("unexpected entries: %+v", cfg.Entries)
	}
}

func TestEvaluateURLExceptionBypassesBlockPattern(t *testing.T) {
	cfg := Config{BlockPatterns: []string{"*ads.example*"}, Exceptions: []string{"ads.example"}}
	reg := NewRegistry(cfg, shield.LevelStandard)
	if !reg.EvaluateURL("https://ads.example/banner.js", "ads.example") {
		t.Fatal("expected exception to bypass the block pattern")
	}
}

func TestEvaluateURLBlockPattern(t *testing.T) {
	cfg := Config{BlockPatterns: []string{"*ads.example*"}}
	reg := NewRegistry(cfg, shield.LevelStandard)
	if reg.EvaluateURL("https://ads.example/banner.js", "ads.example") {
		t.Fatal("expected the block pattern to match")
	}
}

func TestSetSecurityLevelPerDomainOverride(t *testing.T) {
	reg := NewRegistry(Config{}, shield.LevelStandard)
	reg.SetSecurityLevel("bank.example", shield.LevelMaximum)
	if got := reg.LevelFor("bank.example"); got != shield.LevelMaximum {
		t.Fatalf("expected per-domain override, got %v", got)
	}
	if got := reg.LevelFor("other.example"); got != shield.LevelStandard {
		t.Fatalf("expected the default level elsewhere, got %v", got)
	}
}

func TestCookiePolicyForStripsWildcardPrefix(t *testing.T) {
	cfg := Config{Entries: []Entry{{Domain: "*.example.com", Rule: RuleBlock}}}
	reg := NewRegistry(cfg, shield.LevelStandard)
	cp := reg.CookiePolicyFor(time.Now())
	got := cp.Evaluate("sub.example.com", false, time.Now())
	if got != shield.RuleBlock {
		t.Fatalf("expected suffix rule to apply, got %v", got)
	}
}
