package treebuilder

import (
	"strings"

	"github.com/coreweb/engine/dom"
	"github.com/coreweb/engine/html/tokenizer"
)

// voidElements never get a corresponding end tag and are never pushed onto
// the open-elements stack.
var voidElements = set(
	"area", "base", "br", "col", "embed", "hr", "img", "input",
	"link", "meta", "param", "source", "track", "wbr",
)

// rawTextLike maps a start tag name to the tokenizer state the tokenizer
// must be switched into right after the element is inserted, per spec.md
// §4.9's externally-driven raw-text contract.
var rawTextLike = map[string]tokenizer.State{
	"title":    tokenizer.RCDATA,
	"textarea": tokenizer.RCDATA,
	"style":    tokenizer.RAWTEXT,
	"xmp":      tokenizer.RAWTEXT,
	"iframe":   tokenizer.RAWTEXT,
	"noembed":  tokenizer.RAWTEXT,
	"noframes": tokenizer.RAWTEXT,
	"script":   tokenizer.ScriptData,
}

// TreeBuilder consumes a token stream and constructs a dom.Document,
// implementing the HTML tree construction stage (spec.md §4.10).
type TreeBuilder struct {
	tz  *tokenizer.Tokenizer
	doc *dom.Document

	mode        InsertionMode
	originalMode InsertionMode

	open elementStack
	afe  formattingList

	// templateModes is the stack of template insertion modes (spec.md §3,
	// C10): each <template> start tag pushes InTemplate, a table-context
	// start tag seen in InTemplate replaces the top entry with the mode it
	// switches to, and </template> or EOF pops it. resetInsertionMode reads
	// the top entry instead of collapsing everything to inBody.
	templateModes []InsertionMode

	headID dom.ID
	formID dom.ID // the one form element currently open, or nilID

	framesetOK bool
	quirks     bool

	pendingTableChars strings.Builder

	errs []ParseErrorRecord
}

// ParseErrorRecord is a non-fatal tree-construction error (spec.md §4.10
// "Failure semantics").
type ParseErrorRecord struct {
	Message string
}

// New constructs a TreeBuilder that will parse tokens from tz into a fresh
// dom.Document.
func New(tz *tokenizer.Tokenizer) *TreeBuilder {
	return &TreeBuilder{
		tz:         tz,
		doc:        dom.NewDocument(),
		mode:       Initial,
		framesetOK: true,
	}
}

// Errors returns every parse error recorded during construction.
func (tb *TreeBuilder) Errors() []ParseErrorRecord { return tb.errs }

// Document returns the tree under construction. Valid at any point, but
// only complete once Run has returned.
func (tb *TreeBuilder) Document() *dom.Document { return tb.doc }

func (tb *TreeBuilder) errorf(msg string) {
	tb.errs = append(tb.errs, ParseErrorRecord{Message: msg})
}

// Run drives the tokenizer to completion and returns the constructed
// Document (spec.md §4.10's top-level "tree construction" entry point).
func (tb *TreeBuilder) Run() *dom.Document {
	for {
		tok := tb.tz.Next()
		tb.dispatch(tok)
		if tok.Type == tokenizer.EOF {
			break
		}
	}
	return tb.doc
}

func (tb *TreeBuilder) dispatch(tok tokenizer.Token) {
	switch tb.mode {
	case Initial:
		tb.inInitial(tok)
	case BeforeHtml:
		tb.inBeforeHtml(tok)
	case BeforeHead:
		tb.inBeforeHead(tok)
	case InHead:
		tb.inHead(tok)
	case InHeadNoscript:
		tb.inHeadNoscript(tok)
	case AfterHead:
		tb.afterHead(tok)
	case InBody:
		tb.inBody(tok)
	case Text:
		tb.inText(tok)
	case InTable, InTableText, InCaption, InColumnGroup, InTableBody, InRow, InCell:
		tb.inTableFamily(tok)
	case InSelect, InSelectInTable:
		tb.inSelect(tok)
	case InTemplate:
		tb.inTemplate(tok)
	case AfterBody:
		tb.afterBody(tok)
	case InFrameset:
		tb.inFrameset(tok)
	case AfterFrameset:
		tb.afterFrameset(tok)
	case AfterAfterBody:
		tb.afterAfterBody(tok)
	case AfterAfterFrameset:
		// ignore everything except whitespace/comments, mirrors AfterFrameset
		tb.afterFrameset(tok)
	}
}

// --- helpers shared across modes ---

func (tb *TreeBuilder) currentNode() (dom.ID, string) { return tb.open.current() }

// pushTemplateMode makes m the new current template insertion mode
// (spec.md §3): every <template> start tag pushes one. Table-context start
// tags seen while in InTemplate use replaceTemplateMode instead.
func (tb *TreeBuilder) pushTemplateMode(m InsertionMode) {
	tb.templateModes = append(tb.templateModes, m)
}

// popTemplateMode removes the current template insertion mode. Callers
// follow up with resetInsertionMode, which consults whatever is now on top
// of the stack (or the open-elements stack, if it's now empty).
func (tb *TreeBuilder) popTemplateMode() {
	if n := len(tb.templateModes); n > 0 {
		tb.templateModes = tb.templateModes[:n-1]
	}
}

// replaceTemplateMode swaps the current template insertion mode for m, used
// when "in template" mode redirects a table-context start tag to its own
// rules (spec.md §3's InTemplate state).
func (tb *TreeBuilder) replaceTemplateMode(m InsertionMode) {
	if len(tb.templateModes) == 0 {
		tb.pushTemplateMode(m)
		return
	}
	tb.templateModes[len(tb.templateModes)-1] = m
}

func (tb *TreeBuilder) insertHTMLElement(tag string, attrs []tokenizer.TokenAttr) dom.ID {
	parent, _ := tb.currentNode()
	id := tb.doc.CreateElement(tag, "")
	for _, a := range attrs {
		tb.doc.SetAttribute(id, a.Name, a.Value)
	}
	tb.insertAppropriate(parentOrDoc(tb, parent), id)
	if !voidElements[tag] {
		tb.open.push(id, tag)
	}
	return id
}

func parentOrDoc(tb *TreeBuilder, id dom.ID) dom.ID {
	if dom.IsNil(id) {
		return tb.doc.Root()
	}
	return id
}

func (tb *TreeBuilder) insertText(data string) {
	if data == "" {
		return
	}
	parent, _ := tb.currentNode()
	p := parentOrDoc(tb, parent)
	if last := tb.doc.LastChild(p); !dom.IsNil(last) && tb.doc.Kind(last) == dom.KindText {
		tb.doc.SetData(last, tb.doc.Data(last)+data)
		return
	}
	id := tb.doc.CreateText(data)
	tb.insertAppropriate(p, id)
}

func (tb *TreeBuilder) insertComment(data string) {
	parent, _ := tb.currentNode()
	id := tb.doc.CreateComment(data)
	tb.insertAppropriate(parentOrDoc(tb, parent), id)
}

// fosterParent implements foster parenting (spec.md §4.10): if the current
// table-context insertion point is inside a table that has a parent, the
// node is inserted immediately before that table instead of inside it.
func (tb *TreeBuilder) fosterParent(child dom.ID) {
	var tableID dom.ID
	tableIdx := -1
	for i := len(tb.open.names) - 1; i >= 0; i-- {
		if tb.open.names[i] == "table" {
			tableID = tb.open.ids[i]
			tableIdx = i
			break
		}
	}
	if tableIdx == -1 {
		tb.doc.AppendChild(tb.doc.Root(), child)
		return
	}
	parent := tb.doc.Parent(tableID)
	if dom.IsNil(parent) {
		// no parent yet (table not yet inserted into the tree) — insert
		// into the element below table on the stack instead.
		below := tb.open.ids[tableIdx-1]
		tb.doc.AppendChild(below, child)
		return
	}
	tb.doc.InsertBefore(parent, child, tableID)
}

func (tb *TreeBuilder) reconstructActiveFormatting() {
	if len(tb.afe.entries) == 0 {
		return
	}
	last := len(tb.afe.entries) - 1
	e := tb.afe.entries[last]
	if e.marker || tb.open.contains(e.id) {
		return
	}
	i := last
	for i > 0 {
		i--
		e = tb.afe.entries[i]
		if e.marker || tb.open.contains(e.id) {
			i++
			break
		}
	}
	for ; i <= last; i++ {
		e = tb.afe.entries[i]
		clone := tb.doc.CreateElement(e.name, "")
		for _, a := range e.attrs {
			tb.doc.SetAttribute(clone, a.Name, a.Value)
		}
		parent, _ := tb.currentNode()
		tb.insertAppropriate(parentOrDoc(tb, parent), clone)
		tb.open.push(clone, e.name)
		tb.afe.entries[i] = afeEntry{id: clone, name: e.name, attrs: e.attrs}
	}
}

func attrsToDOM(a []tokenizer.TokenAttr) []dom.Attr {
	out := make([]dom.Attr, len(a))
	for i, x := range a {
		out[i] = dom.Attr{Name: x.Name, Value: x.Value}
	}
	return out
}

func isWhitespace(s string) bool {
	for _, c := range s {
		if c != ' ' && c != '\t' && c != '\n' && c != '\f' && c != '\r' {
			return false
		}
	}
	return true
}
