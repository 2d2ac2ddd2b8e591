package treebuilder

import "github.com/coreweb/engine/html/tokenizer"

// inTableFamily dispatches the table-related insertion modes (InTable,
// InTableText, InCaption, InColumnGroup, InTableBody, InRow, InCell).
// Content that the specific sub-mode doesn't recognize falls back to the
// "process using the rules for InBody" + foster-parenting pattern spec.md
// §4.10 describes for tables.
func (tb *TreeBuilder) inTableFamily(tok tokenizer.Token) {
	switch tb.mode {
	case InTable:
		tb.inTable(tok)
	case InCaption:
		tb.inCaption(tok)
	case InColumnGroup:
		tb.inColumnGroup(tok)
	case InTableBody:
		tb.inTableBody(tok)
	case InRow:
		tb.inRow(tok)
	case InCell:
		tb.inCell(tok)
	}
}

func (tb *TreeBuilder) clearStackToTableContext(stopAt map[string]bool) {
	for !stopAt[currentName(tb)] {
		tb.open.pop()
	}
}

func currentName(tb *TreeBuilder) string {
	_, n := tb.currentNode()
	return n
}

func (tb *TreeBuilder) inTable(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.Character:
		if isWhitespace(tok.Data) || true {
			// any character data inside a table context is text-only
			// buffered then foster-parented if non-whitespace, simplified
			// to direct foster-parenting per character.
			if isWhitespace(tok.Data) {
				tb.insertText(tok.Data)
			} else {
				tb.errorf("unexpected-character-in-table")
				id := tb.doc.CreateText(tok.Data)
				tb.fosterParent(id)
			}
			return
		}
	case tokenizer.Comment:
		tb.insertComment(tok.Data)
		return
	case tokenizer.StartTag:
		switch tok.TagName {
		case "caption":
			tb.clearStackToTableContext(set("table", "template", "html"))
			tb.afe.pushMarker()
			tb.insertHTMLElement("caption", tok.Attrs)
			tb.mode = InCaption
			return
		case "colgroup":
			tb.clearStackToTableContext(set("table", "template", "html"))
			tb.insertHTMLElement("colgroup", tok.Attrs)
			tb.mode = InColumnGroup
			return
		case "col":
			tb.clearStackToTableContext(set("table", "template", "html"))
			tb.insertHTMLElement("colgroup", nil)
			tb.mode = InColumnGroup
			tb.inColumnGroup(tok)
			return
		case "tbody", "tfoot", "thead":
			tb.clearStackToTableContext(set("table", "template", "html"))
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.mode = InTableBody
			return
		case "td", "th", "tr":
			tb.clearStackToTableContext(set("table", "template", "html"))
			tb.insertHTMLElement("tbody", nil)
			tb.mode = InTableBody
			tb.inTableBody(tok)
			return
		case "table":
			tb.errorf("unexpected-start-tag-table-nested")
			if tb.open.hasElementInTableScope("table") {
				tb.open.popUntil("table")
				tb.resetInsertionMode()
				tb.dispatch(tok)
			}
			return
		case "style", "script", "template":
			tb.inHead(tok)
			return
		case "input":
			if t, ok := attrVal(tok.Attrs, "type"); ok && strEqualFold(t, "hidden") {
				tb.insertHTMLElement("input", tok.Attrs)
				return
			}
		case "form":
			if tb.formID == 0 {
				tb.formID = tb.insertHTMLElement("form", tok.Attrs)
				tb.open.pop()
			}
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "table":
			if tb.open.hasElementInTableScope("table") {
				tb.open.popUntil("table")
				tb.resetInsertionMode()
			}
			return
		case "body", "caption", "col", "colgroup", "html", "tbody", "td", "tfoot", "th", "thead", "tr":
			tb.errorf("unexpected-end-tag")
			return
		case "template":
			tb.inHead(tok)
			return
		}
	}
	// anything-else: foster-parent through InBody rules.
	tb.inBody(tok)
}

func (tb *TreeBuilder) inCaption(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.EndTag:
		if tok.TagName == "caption" {
			if tb.open.hasElementInTableScope("caption") {
				tb.generateImpliedEndTags("")
				tb.open.popUntil("caption")
				tb.afe.clearToLastMarker()
				tb.mode = InTable
			}
			return
		}
		if tok.TagName == "table" {
			if tb.open.hasElementInTableScope("caption") {
				tb.open.popUntil("caption")
				tb.afe.clearToLastMarker()
				tb.mode = InTable
				tb.inTable(tok)
			}
			return
		}
	case tokenizer.StartTag:
		switch tok.TagName {
		case "caption", "col", "colgroup", "tbody", "td", "tfoot", "th", "thead", "tr":
			if tb.open.hasElementInTableScope("caption") {
				tb.open.popUntil("caption")
				tb.afe.clearToLastMarker()
				tb.mode = InTable
				tb.inTable(tok)
			}
			return
		}
	}
	tb.inBody(tok)
}

func (tb *TreeBuilder) inColumnGroup(tok tokenizer.Token) {
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
		case "col":
			tb.insertHTMLElement("col", tok.Attrs)
			tb.open.pop()
			return
		case "template":
			tb.inHead(tok)
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "colgroup":
			if currentName(tb) == "colgroup" {
				tb.open.pop()
				tb.mode = InTable
			}
			return
		case "col":
			tb.errorf("unexpected-end-tag-col")
			return
		case "template":
			tb.inHead(tok)
			return
		}
	}
	if currentName(tb) != "colgroup" {
		return
	}
	tb.open.pop()
	tb.mode = InTable
	tb.inTable(tok)
}

func (tb *TreeBuilder) inTableBody(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.StartTag:
		switch tok.TagName {
		case "tr":
			tb.clearStackToTableContext(set("tbody", "tfoot", "thead", "template", "html"))
			tb.insertHTMLElement("tr", tok.Attrs)
			tb.mode = InRow
			return
		case "th", "td":
			tb.errorf("unexpected-start-tag-cell")
			tb.clearStackToTableContext(set("tbody", "tfoot", "thead", "template", "html"))
			tb.insertHTMLElement("tr", nil)
			tb.mode = InRow
			tb.inRow(tok)
			return
		case "caption", "col", "colgroup", "tbody", "tfoot", "thead":
			if tb.open.hasElementInTableScope("tbody") || tb.open.hasElementInTableScope("thead") || tb.open.hasElementInTableScope("tfoot") {
				tb.clearStackToTableContext(set("tbody", "tfoot", "thead", "template", "html"))
				tb.open.pop()
				tb.mode = InTable
				tb.inTable(tok)
			}
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "tbody", "tfoot", "thead":
			if tb.open.hasElementInTableScope(tok.TagName) {
				tb.clearStackToTableContext(set("tbody", "tfoot", "thead", "template", "html"))
				tb.open.pop()
				tb.mode = InTable
			}
			return
		case "table":
			if tb.open.hasElementInTableScope("tbody") || tb.open.hasElementInTableScope("thead") || tb.open.hasElementInTableScope("tfoot") {
				tb.clearStackToTableContext(set("tbody", "tfoot", "thead", "template", "html"))
				tb.open.pop()
				tb.mode = InTable
				tb.inTable(tok)
			}
			return
		case "body", "caption", "col", "colgroup", "html", "td", "th", "tr":
			tb.errorf("unexpected-end-tag")
			return
		}
	}
	tb.inTable(tok)
}

func (tb *TreeBuilder) inRow(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.StartTag:
		switch tok.TagName {
		case "th", "td":
			tb.clearStackToTableContext(set("tr", "template", "html"))
			tb.insertHTMLElement(tok.TagName, tok.Attrs)
			tb.mode = InCell
			tb.afe.pushMarker()
			return
		case "caption", "col", "colgroup", "tbody", "tfoot", "thead", "tr":
			if tb.open.hasElementInTableScope("tr") {
				tb.clearStackToTableContext(set("tr", "template", "html"))
				tb.open.pop()
				tb.mode = InTableBody
				tb.inTableBody(tok)
			}
			return
		}
	case tokenizer.EndTag:
		switch tok.TagName {
		case "tr":
			if tb.open.hasElementInTableScope("tr") {
				tb.clearStackToTableContext(set("tr", "template", "html"))
				tb.open.pop()
				tb.mode = InTableBody
			}
			return
		case "table":
			if tb.open.hasElementInTableScope("tr") {
				tb.clearStackToTableContext(set("tr", "template", "html"))
				tb.open.pop()
				tb.mode = InTableBody
				tb.inTableBody(tok)
			}
			return
		case "tbody", "tfoot", "thead":
			if tb.open.hasElementInTableScope(tok.TagName) && tb.open.hasElementInTableScope("tr") {
				tb.clearStackToTableContext(set("tr", "template", "html"))
				tb.open.pop()
				tb.mode = InTableBody
				tb.inTableBody(tok)
			}
			return
		case "body", "caption", "col", "colgroup", "html", "td", "th":
			tb.errorf("unexpected-end-tag")
			return
		}
	}
	tb.inTable(tok)
}

func (tb *TreeBuilder) inCell(tok tokenizer.Token) {
	switch tok.Type {
	case tokenizer.EndTag:
		switch tok.TagName {
		case "td", "th":
			if tb.open.hasElementInTableScope(tok.TagName) {
				tb.generateImpliedEndTags("")
				tb.open.popUntil(tok.TagName)
				tb.afe.clearToLastMarker()
				tb.mode = InRow
			}
			return
		case "body", "caption", "col", "colgroup", "html":
			tb.errorf("unexpected-end-tag")
			return
		case "table", "tbody", "tfoot", "thead", "tr":
			if tb.open.hasElementInTableScope(tok.TagName) || tok.TagName == "table" {
				tb.closeCellThen(tok)
			}
			return
		}
	case tokenizer.StartTag:
		switch tok.TagName {
		case "caption", "col", "colgroup", "tbody", "td", "tfoot", "th", "thead", "tr":
			tb.closeCellThen(tok)
			return
		}
	}
	tb.inBody(tok)
}

func (tb *TreeBuilder) closeCellThen(tok tokenizer.Token) {
	var open string
	if tb.open.hasElementInTableScope("td") {
		open = "td"
	} else if tb.open.hasElementInTableScope("th") {
		open = "th"
	} else {
		tb.mode = InRow
		tb.inRow(tok)
		return
	}
	tb.generateImpliedEndTags("")
	tb.open.popUntil(open)
	tb.afe.clearToLastMarker()
	tb.mode = InRow
	tb.inRow(tok)
}

// resetInsertionMode implements the spec's "reset the insertion mode
// appropriately" algorithm, walking the open-elements stack from the top.
func (tb *TreeBuilder) resetInsertionMode() {
	for i := len(tb.open.names) - 1; i >= 0; i-- {
		n := tb.open.names[i]
		last := i == 0
		switch n {
		case "select":
			tb.mode = InSelect
			return
		case "td", "th":
			if !last {
				tb.mode = InCell
				return
			}
		case "tr":
			tb.mode = InRow
			return
		case "tbody", "thead", "tfoot":
			tb.mode = InTableBody
			return
		case "caption":
			tb.mode = InCaption
			return
		case "colgroup":
			tb.mode = InColumnGroup
			return
		case "table":
			tb.mode = InTable
			return
		case "template":
			if n := len(tb.templateModes); n > 0 {
				tb.mode = tb.templateModes[n-1]
			} else {
				tb.mode = InTemplate
			}
			return
		case "head":
			if !last {
				tb.mode = InHead
				return
			}
		case "body":
			tb.mode = InBody
			return
		case "frameset":
			tb.mode = InFrameset
			return
		case "html":
			if tb.headID == 0 {
				tb.mode = BeforeHead
			} else {
				tb.mode = AfterHead
			}
			return
		}
		if last {
			tb.mode = InBody
			return
		}
	}
	tb.mode = InBody
}
