package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

func (tb *TreeBuilder) inInitial(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			return
		}
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.DOCTYPE:
		id := tb.doc.CreateDocumentType(tok.DoctypeName, tok.PublicID, tok.SystemID)
		tb.doc.AppendChild(tb.doc.Root(), id)
		tb.quirks = tok.ForceQuirks || tok.DoctypeName != "html"
		tb.mode = BeforeHtml
		return
	}
	tb.mode = BeforeHtml
	tb.inBeforeHtml(tok)
}

func (tb *TreeBuilder) inBeforeHtml(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			return
		}
	case tokenizer.StartTag:
		if tok.TagName == "html" {
			id := tb.doc.CreateElement("html", "")
			for _, a := range tok.Attrs {
				tb.doc.SetAttribute(id, a.Name, a.Value)
			}
			tb.doc.AppendChild(tb.doc.Root(), id)
			tb.open.push(id, "html")
			tb.mode = BeforeHead
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "head", "body", "html", "br":
		default:
			return // ignore other stray end tags
		}
	}
	id := tb.doc.CreateElement("html", "")
	tb.doc.AppendChild(tb.doc.Root(), id)
	tb.open.push(id, "html")
	tb.mode = BeforeHead
	tb.inBeforeHead(tok)
}

func (tb *TreeBuilder) inBeforeHead(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			return
		}
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.StartTag:
		switch tok.TagName {
		case "html":
			tb.inBody(tok)
			return
		case "head":
			id := tb.insertHTMLElement("head", tok.Attrs)
			tb.headID = id
			tb.mode = InHead
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "head", "body", "html", "br":
		default:
			return
		}
	}
	id := tb.insertHTMLElement("head", nil)
	tb.headID = id
	tb.mode = InHead
	tb.inHead(tok)
}

func (tb *TreeBuilder) inHead(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.insertText(tok.Data)
			return
		}
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
		case "base", "basefont", "bgsound", "link", "meta":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			return
		case "title":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.tz.SwitchTo(rawTextLike[tok.TagName], tok.TagName)
			tb.originalMode = InHead
			tb.mode = Text
			return
		case "noscript":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.mode = InHeadNoscript
			return
		case "noframes", "style":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.tz.SwitchTo(rawTextLike[tok.TagName], tok.TagName)
			tb.originalMode = InHead
			tb.mode = Text
			return
		case "script":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.tz.SwitchTo(rawTextLike[tok.TagName], tok.TagName)
			tb.originalMode = InHead
			tb.mode = Text
			return
		case "template":
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.afe.pushMarker()
			tb.mode = InTemplate
			tb.pushTemplateMode(InTemplate)
			return
		case "head":
			tb.errorf("unexpected-start-tag-head")
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "head":
			tb.open.pop()
			tb.mode = AfterHead
			return
		case "body", "html", "br":
			tb.open.pop()
			tb.mode = AfterHead
			tb.afterHead(tok)
			return
		case "template":
			if !tb.open.containsName("template") {
				tb.errorf("unexpected-end-tag-template")
				return
			}
			tb.open.popUntil("template")
			tb.afe.clearToLastMarker()
			tb.popTemplateMode()
			tb.resetInsertionMode()
			return
		default:
			tb.errorf("unexpected-end-tag")
			return
		}
	}
	tb.open.pop()
	tb.mode = AfterHead
	tb.afterHead(tok)
}

func (tb *TreeBuilder) inHeadNoscript(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.EndTag:
		if tok.TagName == "noscript" {
			tb.open.pop()
			tb.mode = InHead
			return
		}
	case tokenizer.Comment:
		tb.inHead(tok)
		return
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.inHead(tok)
			return
		}
	case tokenizer.StartTag:
		switch tok.TagName {
		case "basefont", "bgsound", "link", "meta", "noframes", "style":
			tb.inHead(tok)
			return
		}
	}
	tb.open.pop()
	tb.mode = InHead
	tb.inHead(tok)
}

func (tb *TreeBuilder) afterHead(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) {
			tb.insertText(tok.Data)
			return
		}
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.StartTag:
		switch tok.TagName {
		case "html":
			tb.inBody(tok)
			return
		case "body":
			tb.insertHTMLElement("body", tok.Attrs)
			tb.framesetOK = false
			tb.mode = InBody
			return
		case "frameset":
			tb.insertHTMLElement("frameset", tok.Attrs)
			tb.mode = InFrameset
			return
		case "base", "basefont", "bgsound", "link", "meta", "noframes", "script", "style", "template", "title":
			tb.open.push(tb.headID, "head")
			tb.inHead(tok)
			tb.open.popUntilID(tb.headID)
			return
		case "head":
			tb.errorf("unexpected-start-tag-head")
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "template":
			tb.inHead(tok)
			return
		case "body", "html", "br":
		default:
			tb.errorf("unexpected-end-tag")
			return
		}
	}
	tb.insertHTMLElement("body", nil)
	tb.mode = InBody
	tb.inBody(tok)
}
