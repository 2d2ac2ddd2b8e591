package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

// Parse tokenizes and constructs a full Document from decoded HTML source,
// the entry point the content pipeline calls (spec.md §6 parse_html).
func Parse(src []rune) (*TreeBuilder, error) {
	tz := tokenizer.New(src)
	tb := New(tz)
	tb.Run()
	return tb, nil
}
