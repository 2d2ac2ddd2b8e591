package treebuilder

import (
	"github.com/coreweb/engine/dom"
	"github.com/coreweb/engine/html/tokenizer"
)

// headingTags are the h1-h6 special-cased together by the spec: opening one
// while another is in button scope implicitly closes it.
var headingTags = set("h1", "h2", "h3", "h4", "h5", "h6")

// autoCloseP lists the tags that implicitly close an open <p> element.
var autoCloseP = set(
	"address", "article", "aside", "blockquote", "details", "div", "dl",
	"fieldset", "figcaption", "figure", "footer", "form", "h1", "h2", "h3",
	"h4", "h5", "h6", "header", "hgroup", "hr", "main", "menu", "nav", "ol",
	"p", "pre", "section", "summary", "table", "ul", "center",
)

func (tb *TreeBuilder) closePIfOpen() {
	if tb.open.hasElementInButtonScope("p") {
		tb.open.popUntil("p")
	}
}

func (tb *TreeBuilder) inBody(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if tok.Data != "" {
			tb.reconstructActiveFormatting()
			tb.insertText(tok.Data)
			if !isWhitespace(tok.Data) {
				tb.framesetOK = false
			}
		}
		return
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.DOCTYPE:
		tb.errorf("unexpected-doctype")
		return
	case tokenizer.StartTag:
		tb.inBodyStartTag(tok)
		return
	case tokenizer.EndTag:
		tb.inBodyEndTag(tok)
		return
	case tokenizer.EOF:
		// stop parsing; stack contents left as-is per spec.md §4.10.
		return
	}
}

func (tb *TreeBuilder) inBodyStartTag(tok tokenizer.Token) {
	name := tok.TagName
	switch {
	case name == "html":
		tb.errorf("unexpected-start-tag-html")
		return
	case name == "base" || name == "basefont" || name == "bgsound" || name == "link" ||
		name == "meta" || name == "noframes" || name == "script" || name == "style" ||
		name == "template" || name == "title":
		tb.inHead(tok)
		return
	case name == "body":
		tb.errorf("unexpected-start-tag-body")
		return
	case name == "frameset":
		tb.errorf("unexpected-start-tag-frameset")
		return
	case autoCloseP[name] && name != "hr":
		tb.closePIfOpen()
		if headingTags[name] {
			if _, cur := tb.currentNode(); headingTags[cur] {
				tb.open.pop()
			}
		}
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "hr":
		tb.closePIfOpen()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		return
	case name == "form":
		if !dom.IsNil(tb.formID) {
			tb.errorf("unexpected-start-tag-form")
			return
		}
		tb.closePIfOpen()
		tb.formID = tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "li":
		tb.closeListItem("li", set("li"))
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "dd" || name == "dt":
		tb.closeListItem(name, set("dd", "dt"))
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "plaintext", name == "pre", name == "listing":
		tb.closePIfOpen()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		return
	case name == "button":
		if tb.open.hasElementInDefaultScope("button") {
			tb.open.popUntil("button")
		}
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		return
	case name == "a":
		if idx := tb.afe.lastMatching("a"); idx != -1 {
			entry := tb.afe.entries[idx]
			tb.adoptionAgency("a")
			if i2 := tb.afe.indexOf(entry.id); i2 != -1 {
				tb.afe.remove(i2)
			}
			if tb.open.contains(entry.id) {
				tb.open.popUntilID(entry.id)
			}
		}
		tb.reconstructActiveFormatting()
		id := tb.insertHTMLElement(name, tok.Attrs)
		tb.afe.push(id, name, attrsToDOM(tok.Attrs))
		return
	case formattingTags[name]:
		tb.reconstructActiveFormatting()
		id := tb.insertHTMLElement(name, tok.Attrs)
		tb.afe.push(id, name, attrsToDOM(tok.Attrs))
		return
	case name == "nobr":
		tb.reconstructActiveFormatting()
		if tb.open.hasElementInDefaultScope("nobr") {
			tb.adoptionAgency("nobr")
			tb.reconstructActiveFormatting()
		}
		id := tb.insertHTMLElement(name, tok.Attrs)
		tb.afe.push(id, name, attrsToDOM(tok.Attrs))
		return
	case name == "applet" || name == "marquee" || name == "object":
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.afe.pushMarker()
		tb.framesetOK = false
		return
	case name == "table":
		tb.closePIfOpen()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		tb.mode = InTable
		return
	case name == "area" || name == "br" || name == "embed" || name == "img" ||
		name == "keygen" || name == "wbr":
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		return
	case name == "input":
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		if t, ok := attrVal(tok.Attrs, "type"); !ok || !strEqualFold(t, "hidden") {
			tb.framesetOK = false
		}
		return
	case name == "param" || name == "source" || name == "track":
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "textarea":
		tb.insertHTMLElement(name, tok.Attrs)
		tb.tz.SwitchTo(rawTextLike[name], name)
		tb.framesetOK = false
		tb.originalMode = InBody
		tb.mode = Text
		return
	case name == "xmp":
		tb.reconstructActiveFormatting()
		tb.framesetOK = false
		tb.insertHTMLElement(name, tok.Attrs)
		tb.tz.SwitchTo(rawTextLike[name], name)
		tb.originalMode = InBody
		tb.mode = Text
		return
	case name == "iframe":
		tb.framesetOK = false
		tb.insertHTMLElement(name, tok.Attrs)
		tb.tz.SwitchTo(rawTextLike[name], name)
		tb.originalMode = InBody
		tb.mode = Text
		return
	case name == "noembed":
		tb.insertHTMLElement(name, tok.Attrs)
		tb.tz.SwitchTo(rawTextLike[name], name)
		tb.originalMode = InBody
		tb.mode = Text
		return
	case name == "select":
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		tb.framesetOK = false
		if tb.mode == InTable || tb.mode == InCaption || tb.mode == InTableBody || tb.mode == InRow || tb.mode == InCell {
			tb.mode = InSelectInTable
		} else {
			tb.mode = InSelect
		}
		return
	case name == "optgroup" || name == "option":
		if _, cur := tb.currentNode(); cur == "option" {
			tb.open.pop()
		}
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "rb" || name == "rtc":
		if tb.open.hasElementInDefaultScope("ruby") {
			// generate implied end tags, simplified: pop non-ruby current node
		}
		tb.insertHTMLElement(name, tok.Attrs)
		return
	case name == "rp" || name == "rt":
		tb.insertHTMLElement(name, tok.Attrs)
		return
	default:
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement(name, tok.Attrs)
		return
	}
}

func (tb *TreeBuilder) closeListItem(name string, stop map[string]bool) {
	tb.framesetOK = false
	for i := len(tb.open.names) - 1; i >= 0; i-- {
		n := tb.open.names[i]
		if stop[n] {
			tb.open.popUntil(n)
			return
		}
		if isSpecialCategory(n) && n != "address" && n != "div" && n != "p" {
			return
		}
	}
}

func (tb *TreeBuilder) inBodyEndTag(tok tokenizer.Token) {
	name := tok.TagName
	switch {
	case name == "body":
		if tb.open.hasElementInDefaultScope("body") {
			tb.mode = AfterBody
		}
		return
	case name == "html":
		if tb.open.hasElementInDefaultScope("body") {
			tb.mode = AfterBody
			tb.afterBody(tok)
		}
		return
	case autoCloseP[name] && name != "hr":
		if !tb.open.hasElementInDefaultScope(name) {
			tb.errorf("unexpected-end-tag")
			return
		}
		tb.generateImpliedEndTags("")
		tb.open.popUntil(name)
		return
	case name == "form":
		node := tb.formID
		tb.formID = 0
		if dom.IsNil(node) || !tb.open.contains(node) {
			tb.errorf("unexpected-end-tag-form")
			return
		}
		tb.generateImpliedEndTags("")
		tb.open.popUntilID(node)
		return
	case name == "p":
		if !tb.open.hasElementInButtonScope("p") {
			tb.errorf("unexpected-end-tag-p")
			tb.insertHTMLElement("p", nil)
		}
		tb.closePIfOpen()
		return
	case name == "li":
		if !tb.open.hasElementInListItemScope("li") {
			tb.errorf("unexpected-end-tag-li")
			return
		}
		tb.generateImpliedEndTags("li")
		tb.open.popUntil("li")
		return
	case name == "dd" || name == "dt":
		if !tb.open.hasElementInDefaultScope(name) {
			tb.errorf("unexpected-end-tag")
			return
		}
		tb.generateImpliedEndTags(name)
		tb.open.popUntil(name)
		return
	case headingTags[name]:
		if !tb.open.hasElementInDefaultScope("h1") && !tb.open.hasElementInDefaultScope("h2") &&
			!tb.open.hasElementInDefaultScope("h3") && !tb.open.hasElementInDefaultScope("h4") &&
			!tb.open.hasElementInDefaultScope("h5") && !tb.open.hasElementInDefaultScope("h6") {
			tb.errorf("unexpected-end-tag")
			return
		}
		tb.generateImpliedEndTags("")
		for i := len(tb.open.names) - 1; i >= 0; i-- {
			if headingTags[tb.open.names[i]] {
				tb.open.ids = tb.open.ids[:i]
				tb.open.names = tb.open.names[:i]
				break
			}
		}
		return
	case formattingTags[name] || name == "nobr" || name == "a":
		tb.adoptionAgency(name)
		return
	case name == "applet" || name == "marquee" || name == "object":
		if !tb.open.hasElementInDefaultScope(name) {
			tb.errorf("unexpected-end-tag")
			return
		}
		tb.generateImpliedEndTags("")
		tb.open.popUntil(name)
		tb.afe.clearToLastMarker()
		return
	case name == "br":
		tb.errorf("unexpected-end-tag-br")
		tb.reconstructActiveFormatting()
		tb.insertHTMLElement("br", nil)
		return
	default:
		tb.inBodyAnyOtherEndTag(name)
		return
	}
}

// inBodyAnyOtherEndTag implements the spec's "any other end tag" fallback:
// walk the stack from the top looking for a matching element, popping
// everything above it (and it) only if nothing special-category blocks it.
func (tb *TreeBuilder) inBodyAnyOtherEndTag(name string) {
	for i := len(tb.open.names) - 1; i >= 0; i-- {
		n := tb.open.names[i]
		if n == name {
			tb.generateImpliedEndTags(name)
			tb.open.ids = tb.open.ids[:i]
			tb.open.names = tb.open.names[:i]
			return
		}
		if isSpecialCategory(n) {
			tb.errorf("unexpected-end-tag")
			return
		}
	}
}

// generateImpliedEndTags pops dd/dt/li/optgroup/option/p/rb/rp/rt/rtc
// elements, except one matching exceptFor.
func (tb *TreeBuilder) generateImpliedEndTags(exceptFor string) {
	impliedEnd := set("dd", "dt", "li", "optgroup", "option", "p", "rb", "rp", "rt", "rtc")
	for {
		_, cur := tb.currentNode()
		if cur == "" || cur == exceptFor || !impliedEnd[cur] {
			return
		}
		tb.open.pop()
	}
}

func (tb *TreeBuilder) inText(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		tb.insertText(tok.Data)
		return
	case tokenizer.EOF:
		tb.open.pop()
		tb.mode = tb.originalMode
		tb.dispatch(tok)
		return
	case tokenizer.EndTag:
		tb.open.pop()
		tb.mode = tb.originalMode
		return
	}
}

func attrVal(attrs []tokenizer.TokenAttr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func strEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 32
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}
