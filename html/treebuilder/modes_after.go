package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

func (tb *TreeBuilder) afterBody(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.inBody(tok)
			return
		}
	case tokenizer.Comment:
		// inserted as the last child of the first element on the stack
		// (the <html> element), per spec.md §4.10.
		if len(tb.open.ids) > 0 {
			id := tb.doc.CreateComment(tok.Data)
			tb.doc.AppendChild(tb.open.ids[0], id)
		}
		return
	case tokenizer.DOCTYPE:
		tb.errorf("unexpected-doctype")
		return
	case tokenizer.StartTag:
		if tok.TagName == "html" {
			tb.inBody(tok)
			return
		}
	case tokenizer.EndTag:
		if tok.TagName == "html" {
			tb.mode = AfterAfterBody
			return
		}
	case tokenizer.EOF:
		return
	}
	tb.mode = InBody
	tb.inBody(tok)
}

func (tb *TreeBuilder) inFrameset(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.insertText(tok.Data)
			return
		}
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
		case "frameset":
			tb.insertHTMLElement("frameset", tok.Attrs)
			return
		case "frame":
			tb.insertHTMLElement("frame", tok.Attrs)
			tb.open.pop()
			return
		case "noframes":
			tb.inHead(tok)
			return
		}
	case tokenizer.EndTag:
		if tok.TagName == "frameset" {
			if currentName(tb) != "html" {
				tb.open.pop()
			}
			if currentName(tb) != "frameset" {
				tb.mode = AfterFrameset
			}
			return
		}
	case tokenizer.EOF:
		return
	}
	tb.errorf("unexpected-token-in-frameset")
}

func (tb *TreeBuilder) afterFrameset(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.insertText(tok.Data)
			return
		}
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
		case "noframes":
			tb.inHead(tok)
			return
		}
	case tokenizer.EndTag:
		if tok.TagName == "html" {
			tb.mode = AfterAfterFrameset
			return
		}
	case tokenizer.EOF:
		return
	}
	tb.errorf("unexpected-token-after-frameset")
}

func (tb *TreeBuilder) afterAfterBody(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Comment:
		id := tb.doc.CreateComment(tok.Data)
		tb.doc.AppendChild(tb.doc.Root(), id)
		return
	case tokenizer.DOCTYPE:
		tb.inBody(tok)
		return
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.inBody(tok)
			return
		}
	case tokenizer.StartTag:
		if tok.TagName == "html" {
			tb.inBody(tok)
			return
		}
	case tokenizer.EOF:
		return
	}
	tb.mode = InBody
	tb.inBody(tok)
}
