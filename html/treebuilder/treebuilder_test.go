package treebuilder

import (
	"testing"

	"github.com/coreweb/engine/dom"
)

func parseDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	tb, err := Parse([]rune(src))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return tb.doc
}

func findFirst(d *dom.Document, root dom.ID, name string) dom.ID {
	if d.Kind(root) == dom.KindElement && d.LocalName(root) == name {
		return root
	}
	for c := d.FirstChild(root); !dom.IsNil(c); c = d.NextSibling(c) {
		if found := findFirst(d, c, name); !dom.IsNil(found) {
			return found
		}
	}
	return 0
}

func TestBasicDocumentShape(t *testing.T) {
	d := parseDoc(t, `<!DOCTYPE html><html><head><title>Hi</title></head><body><p>hello</p></body></html>`)
	html := findFirst(d, d.Root(), "html")
	if dom.IsNil(html) {
		t.Fatal("expected <html> element")
	}
	body := findFirst(d, html, "body")
	if dom.IsNil(body) {
		t.Fatal("expected <body> element")
	}
	p := findFirst(d, body, "p")
	if dom.IsNil(p) {
		t.Fatal("expected <p> element under body")
	}
}

func TestImplicitHtmlHeadBody(t *testing.T) {
	// no <html>/<head>/<body> at all: the tree constructor must synthesize
	// them (spec.md §4.10's implied-element machinery).
	d := parseDoc(t, `hello <b>world</b>`)
	html := findFirst(d, d.Root(), "html")
	if dom.IsNil(html) {
		t.Fatal("expected synthesized <html>")
	}
	body := findFirst(d, html, "body")
	if dom.IsNil(body) {
		t.Fatal("expected synthesized <body>")
	}
	b := findFirst(d, body, "b")
	if dom.IsNil(b) {
		t.Fatal("expected <b> under body")
	}
}

func TestParagraphAutoClose(t *testing.T) {
	d := parseDoc(t, `<p>one<p>two`)
	html := findFirst(d, d.Root(), "html")
	body := findFirst(d, html, "body")
	var ps []dom.ID
	for c := d.FirstChild(body); !dom.IsNil(c); c = d.NextSibling(c) {
		if d.Kind(c) == dom.KindElement && d.LocalName(c) == "p" {
			ps = append(ps, c)
		}
	}
	if len(ps) != 2 {
		t.Fatalf("expected two sibling <p> elements from auto-close, got %d", len(ps))
	}
}

func TestAdoptionAgencyMisnestedFormatting(t *testing.T) {
	// <b> spans a <p> boundary: the second <p> closes the first (popping
	// <b>), reconstruction of the active formatting elements clones <b>
	// into the second paragraph, and </b> then runs the adoption agency
	// algorithm on that clone (spec.md §4.10).
	d := parseDoc(t, `<p>1<b>2<p>3</b>4</p>`)
	html := findFirst(d, d.Root(), "html")
	body := findFirst(d, html, "body")
	var ps []dom.ID
	for c := d.FirstChild(body); !dom.IsNil(c); c = d.NextSibling(c) {
		if d.Kind(c) == dom.KindElement && d.LocalName(c) == "p" {
			ps = append(ps, c)
		}
	}
	if len(ps) != 2 {
		t.Fatalf("expected two <p> elements, got %d", len(ps))
	}
	if dom.IsNil(findFirst(d, ps[0], "b")) {
		t.Fatal("expected original <b> in first <p>")
	}
	if dom.IsNil(findFirst(d, ps[1], "b")) {
		t.Fatal("expected <b> reconstructed into second <p>")
	}
}

func TestTableFosterParenting(t *testing.T) {
	// Text directly inside <table> (not inside a cell) is foster-parented
	// to just before the table (spec.md §4.10 "foster parenting").
	d := parseDoc(t, `<div><table>stray<tr><td>cell</td></tr></table></div>`)
	html := findFirst(d, d.Root(), "html")
	body := findFirst(d, html, "body")
	div := findFirst(d, body, "div")
	if dom.IsNil(div) {
		t.Fatal("expected <div>")
	}
	table := findFirst(d, div, "table")
	if dom.IsNil(table) {
		t.Fatal("expected <table>")
	}
	// The foster-parented text should be a sibling of table under div,
	// appearing before it.
	found := false
	for c := d.FirstChild(div); !dom.IsNil(c); c = d.NextSibling(c) {
		if d.Kind(c) == dom.KindText {
			found = true
		}
		if c == table {
			break
		}
	}
	if !found {
		t.Fatal("expected foster-parented text before <table>")
	}
	td := findFirst(d, table, "td")
	if dom.IsNil(td) || d.Data(d.FirstChild(td)) != "cell" {
		t.Fatal("expected table cell content intact")
	}
}

func TestScriptSwitchesTokenizerRawText(t *testing.T) {
	d := parseDoc(t, `<script>var x = "<div>";</script><p>after</p>`)
	html := findFirst(d, d.Root(), "html")
	body := findFirst(d, html, "body")
	script := findFirst(d, html, "script")
	if dom.IsNil(script) {
		t.Fatal("expected <script> element")
	}
	text := d.FirstChild(script)
	if dom.IsNil(text) || d.Data(text) != `var x = "<div>";` {
		t.Fatalf("expected raw script text preserved, got %q", d.Data(text))
	}
	if dom.IsNil(findFirst(d, body, "p")) {
		t.Fatal("expected <p> parsed normally after </script>")
	}
}
