package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

func (tb *TreeBuilder) inSelect(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		tb.insertText(tok.Data)
		return
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.DOCTYPE:
		tb.errorf("unexpected-doctype")
		return
	case tokenizer.StartTag:
		switch tok.TagName {
		case "html":
			tb.inBody(tok)
			return
		case "option":
			if currentName(tb) == "option" {
				tb.open.pop()
			}
			tb.insertHTMLElement("option", tok.Attrs)
			return
		case "optgroup":
			if currentName(tb) == "option" {
				tb.open.pop()
			}
			if currentName(tb) == "optgroup" {
				tb.open.pop()
			}
			tb.insertHTMLElement("optgroup", tok.Attrs)
			return
		case "select":
			tb.errorf("unexpected-start-tag-select-in-select")
			if tb.open.hasElementInSelectScope("select") {
				tb.open.popUntil("select")
				tb.resetInsertionMode()
			}
			return
		case "input", "keygen", "textarea":
			tb.errorf("unexpected-start-tag-in-select")
			if tb.open.hasElementInSelectScope("select") {
				tb.open.popUntil("select")
				tb.resetInsertionMode()
				tb.dispatch(tok)
			}
			return
		case "script", "template":
			tb.inHead(tok)
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "optgroup":
			if currentName(tb) == "option" && len(tb.open.names) >= 2 && tb.open.names[len(tb.open.names)-2] == "optgroup" {
				tb.open.pop()
			}
			if currentName(tb) == "optgroup" {
				tb.open.pop()
			}
			return
		case "option":
			if currentName(tb) == "option" {
				tb.open.pop()
			}
			return
		case "select":
			if tb.open.hasElementInSelectScope("select") {
				tb.open.popUntil("select")
				tb.resetInsertionMode()
			}
			return
		case "template":
			tb.inHead(tok)
			return
		}
	}
	tb.errorf("unexpected-token-in-select")
}
