package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

// inTemplate implements the "in template" insertion mode (spec.md §3):
// head-level start tags use inHead's rules; table-context start tags
// replace the current template insertion mode with the mode whose rules
// they borrow. A later </template> (or EOF) pops that entry and resets the
// insertion mode from what remains.
func (tb *TreeBuilder) inTemplate(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character, tokenizer.Comment, tokenizer.DOCTYPE:
		tb.inBody(tok)
		return
	case tokenizer.StartTag:
		switch tok.TagName {
		case "base", "basefont", "bgsound", "link", "meta", "noframes",
			"script", "style", "template", "title":
			tb.inHead(tok)
			return
		case "caption", "colgroup", "tbody", "tfoot", "thead":
			tb.replaceTemplateMode(InTable)
			tb.mode = InTable
			tb.inTable(tok)
			return
		case "col":
			tb.replaceTemplateMode(InColumnGroup)
			tb.mode = InColumnGroup
			tb.inColumnGroup(tok)
			return
		case "tr":
			tb.replaceTemplateMode(InTableBody)
			tb.mode = InTableBody
			tb.inTableBody(tok)
			return
		case "td", "th":
			tb.replaceTemplateMode(InRow)
			tb.mode = InRow
			tb.inRow(tok)
			return
		}
		tb.replaceTemplateMode(InBody)
		tb.mode = InBody
		tb.inBody(tok)
		return
	case tokenizer.EndTag:
		if tok.TagName == "template" {
			tb.inHead(tok)
			return
		}
		tb.errorf("unexpected-end-tag-in-template")
		return
	case tokenizer.EOF:
		if !tb.open.containsName("template") {
			return // stop parsing; no open template left to account for
		}
		tb.errorf("eof-in-template")
		tb.open.popUntil("template")
		tb.afe.clearToLastMarker()
		tb.popTemplateMode()
		tb.resetInsertionMode()
		tb.dispatch(tok)
		return
	}
}
