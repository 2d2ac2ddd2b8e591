package treebuilder

import "github.com/coreweb/engine/dom"

const (
	aaaOuterLimit = 8
	aaaInnerLimit = 3
)

// formattingTags is the subset of elements the adoption agency algorithm
// cares about: elements created by formatting tags re-wrap misnested
// content around block boundaries (spec.md §4.10).
var formattingTags = set(
	"a", "b", "big", "code", "em", "font", "i", "nobr",
	"s", "small", "strike", "strong", "tt", "u",
)

// adoptionAgency runs the Adoption Agency Algorithm for subject (an end tag
// name) per spec.md §4.10's 10 numbered steps, outer loop bounded at 8
// iterations and the inner loop at 3.
func (tb *TreeBuilder) adoptionAgency(subject string) {
	for outer := 0; outer < aaaOuterLimit; outer++ {
		// Step 1: if the current node is subject and not in the AFE list,
		// pop it and stop.
		curID, curName := tb.open.current()
		if curName == subject && tb.afe.indexOf(curID) == -1 {
			tb.open.pop()
			return
		}

		// Step 2: find the formatting element (last occurrence of subject
		// in the AFE list, not past a marker).
		feIdx := tb.afe.lastMatching(subject)
		if feIdx == -1 {
			tb.inBodyAnyOtherEndTag(subject)
			return
		}
		fe := tb.afe.entries[feIdx]

		// Step 3: if fe isn't in the stack of open elements, remove it from
		// the AFE list and stop (parse error).
		if !tb.open.contains(fe.id) {
			tb.afe.remove(feIdx)
			return
		}

		// Step 4: if fe is in the stack but not in scope, stop (parse error).
		if !tb.open.hasElementInDefaultScope(fe.name) {
			return
		}

		// Step 5/6: find the furthest block: the topmost (lowest in the
		// stack, i.e. earliest index above fe) special-category element
		// above fe's position in the open-elements stack.
		feStackIdx := tb.open.indexOf(fe.id)
		var furthestBlock dom.ID
		var furthestBlockIdx = -1
		for i := feStackIdx + 1; i < len(tb.open.ids); i++ {
			if isSpecialCategory(tb.open.names[i]) {
				furthestBlock = tb.open.ids[i]
				furthestBlockIdx = i
				break
			}
		}

		if furthestBlockIdx == -1 {
			// Step 7: no furthest block — pop everything up to and
			// including fe, and remove fe from the AFE list.
			tb.open.popUntilID(fe.id)
			tb.afe.remove(feIdx)
			return
		}

		// Step 8: commonAncestor is the element immediately above fe in
		// the stack of open elements.
		commonAncestor := tb.open.ids[feStackIdx-1]

		// Step 9/10: the inner loop, bookmarking the AFE insertion point.
		bookmark := feIdx
		node := furthestBlock
		nodeIdx := furthestBlockIdx
		lastNode := furthestBlock

		for inner := 0; inner < aaaInnerLimit; inner++ {
			nodeIdx--
			if nodeIdx <= feStackIdx {
				break
			}
			node = tb.open.ids[nodeIdx]
			nodeAFEIdx := tb.afe.indexOf(node)
			if nodeAFEIdx == -1 {
				// node is not in the AFE list: remove it from the stack
				// of open elements and continue the inner loop.
				tb.open.ids = append(tb.open.ids[:nodeIdx], tb.open.ids[nodeIdx+1:]...)
				tb.open.names = append(tb.open.names[:nodeIdx], tb.open.names[nodeIdx+1:]...)
				continue
			}
			if node == fe.id {
				break
			}

			// Recreate node's element, replace its AFE and stack entries.
			entry := tb.afe.entries[nodeAFEIdx]
			clone := tb.doc.CreateElement(entry.name, "")
			for _, a := range entry.attrs {
				tb.doc.SetAttribute(clone, a.Name, a.Value)
			}
			tb.afe.entries[nodeAFEIdx] = afeEntry{id: clone, name: entry.name, attrs: entry.attrs}
			tb.open.ids[nodeIdx] = clone
			node = clone

			if bookmark == nodeAFEIdx {
				bookmark = nodeAFEIdx
			}
			if lastNode == furthestBlock {
				bookmark = nodeAFEIdx + 1
			}

			// Append lastNode to node, then advance lastNode.
			tb.doc.AppendChild(node, lastNode)
			lastNode = node
		}

		// Step 11: insert lastNode at the appropriate place for
		// commonAncestor (foster-parented if commonAncestor is a table
		// context; plain append otherwise).
		tb.insertAppropriate(commonAncestor, lastNode)

		// Step 12-15: create a new element for fe's tag/attrs, move all of
		// furthestBlock's children into it, append it to furthestBlock,
		// remove fe from the AFE list and the stack, insert the new
		// element into the AFE list at bookmark and onto the stack right
		// above furthestBlock.
		newFE := tb.doc.CreateElement(fe.name, "")
		for _, a := range fe.attrs {
			tb.doc.SetAttribute(newFE, a.Name, a.Value)
		}
		for _, c := range tb.doc.Children(furthestBlock) {
			tb.doc.AppendChild(newFE, c)
		}
		tb.doc.AppendChild(furthestBlock, newFE)

		tb.afe.remove(feIdx)
		if bookmark > feIdx {
			bookmark--
		}
		tb.afe.insertAt(bookmark, afeEntry{id: newFE, name: fe.name, attrs: fe.attrs})

		oldStackIdx := tb.open.indexOf(fe.id)
		if oldStackIdx != -1 {
			tb.open.ids = append(tb.open.ids[:oldStackIdx], tb.open.ids[oldStackIdx+1:]...)
			tb.open.names = append(tb.open.names[:oldStackIdx], tb.open.names[oldStackIdx+1:]...)
		}
		fbIdx := tb.open.indexOf(furthestBlock)
		tb.open.ids = append(tb.open.ids, dom.ID(0))
		tb.open.names = append(tb.open.names, "")
		copy(tb.open.ids[fbIdx+2:], tb.open.ids[fbIdx+1:])
		copy(tb.open.names[fbIdx+2:], tb.open.names[fbIdx+1:])
		tb.open.ids[fbIdx+1] = newFE
		tb.open.names[fbIdx+1] = fe.name
	}
}

// specialCategoryTags names the HTML spec's "special" element category used to
// locate the furthest block in the adoption agency algorithm. This is a
// practical subset covering the tags this tree constructor actually pushes.
var specialCategoryTags = set(
	"address", "applet", "area", "article", "aside", "base", "basefont",
	"bgsound", "blockquote", "body", "br", "button", "caption", "center",
	"col", "colgroup", "dd", "details", "dir", "div", "dl", "dt", "embed",
	"fieldset", "figcaption", "figure", "footer", "form", "frame", "frameset",
	"h1", "h2", "h3", "h4", "h5", "h6", "head", "header", "hgroup", "hr",
	"html", "iframe", "img", "input", "li", "link", "listing", "main",
	"marquee", "menu", "meta", "nav", "noembed", "noframes", "noscript",
	"object", "ol", "p", "param", "plaintext", "pre", "script", "section",
	"select", "style", "summary", "table", "tbody", "td", "template",
	"textarea", "tfoot", "th", "thead", "title", "tr", "ul", "wbr", "xmp",
)

func isSpecialCategory(name string) bool { return specialCategoryTags[name] }

// insertAppropriate appends child to target, foster-parenting it in front of
// the table if target is a table-context element (spec.md §4.10's "insert an
// element at the appropriate place").
func (tb *TreeBuilder) insertAppropriate(target, child dom.ID) {
	name := tb.doc.LocalName(target)
	if name == "table" || name == "tbody" || name == "tfoot" || name == "thead" || name == "tr" {
		tb.fosterParent(child)
		return
	}
	tb.doc.AppendChild(target, child)
}
