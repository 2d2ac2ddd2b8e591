// Package policy loads and evaluates the per-profile JSON policy
// configuration (spec.md §6 "Policy configuration") governing cookie
// rules, domain block/allow patterns, and exceptions.
package policy

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/coreweb/engine/cmn"
)

// Rule is the cookie/request disposition a policy entry assigns to a
// domain (spec.md §3 policy tables).
type Rule string

const (
	RuleAllow           Rule = "Allow"
	RuleAllowFirstParty Rule = "AllowFirstParty"
	RuleAllowSession    Rule = "AllowSession"
	RulePartition       Rule = "Partition"
	RuleBlock           Rule = "Block"
)

// Entry is one per-domain override (spec.md §6).
type Entry struct {
	Domain   string `json:"domain"`
	Rule     Rule   `json:"rule"`
	Priority int    `json:"priority"`
	IsSystem bool   `json:"is_system"`
	Expires  *int64 `json:"expires,omitempty"` // unix seconds, nil = never
}

// Config is the full policy document (spec.md §6's JSON schema).
type Config struct {
	Version         int      `json:"version"`
	FirstPartyRule  Rule     `json:"first_party_rule"`
	ThirdPartyRule  Rule     `json:"third_party_rule"`
	Entries         []Entry  `json:"entries"`
	BlockPatterns   []string `json:"block_patterns"`
	AllowPatterns   []string `json:"allow_patterns"`
	Exceptions      []string `json:"exceptions"`
}

// Load parses a policy document, grounded on the teacher's
// jsoniter-based config unmarshalling (cmn/config.go's
// BackendConf.UnmarshalJSON).
func Load(data []byte) (*Config, error) {
	var c Config
	if err := jsoniter.Unmarshal(data, &c); err != nil {
		return nil, cmn.Wrap(err, cmn.KindParse, cmn.ReasonParseSyntaxError)
	}
	return &c, nil
}

// Marshal serializes a Config back to its JSON wire form.
func Marshal(c *Config) ([]byte, error) {
	data, err := jsoniter.Marshal(c)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	return data, nil
}
