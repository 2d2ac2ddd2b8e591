package dom

// FilterResult is the NodeFilter callback's verdict (DOM Traversal).
type FilterResult int

const (
	FilterAccept FilterResult = 1
	FilterReject FilterResult = 2
	FilterSkip   FilterResult = 3
)

// NodeFilter is a predicate consulted by NodeIterator/TreeWalker.
type NodeFilter func(d *Document, id ID) FilterResult

// WhatToShow is a bitmask of node kinds a traversal should visit at all,
// applied before NodeFilter is invoked.
type WhatToShow uint32

const (
	ShowAll                  WhatToShow = 0xFFFFFFFF
	ShowElement              WhatToShow = 1 << 0
	ShowAttribute            WhatToShow = 1 << 1
	ShowText                 WhatToShow = 1 << 2
	ShowCDATASection         WhatToShow = 1 << 3
	ShowProcessingInstruction WhatToShow = 1 << 7
	ShowComment              WhatToShow = 1 << 8
	ShowDocument             WhatToShow = 1 << 9
	ShowDocumentType         WhatToShow = 1 << 10
	ShowDocumentFragment     WhatToShow = 1 << 11
)

func whatToShowBit(k Kind) WhatToShow {
	switch k {
	case KindElement:
		return ShowElement
	case KindAttribute:
		return ShowAttribute
	case KindText:
		return ShowText
	case KindCDATASection:
		return ShowCDATASection
	case KindProcessingInstruction:
		return ShowProcessingInstruction
	case KindComment:
		return ShowComment
	case KindDocument:
		return ShowDocument
	case KindDocumentType:
		return ShowDocumentType
	case KindDocumentFragment:
		return ShowDocumentFragment
	default:
		return 0
	}
}

func accepts(d *Document, id ID, mask WhatToShow, filter NodeFilter) FilterResult {
	if mask&whatToShowBit(d.Kind(id)) == 0 {
		return FilterSkip
	}
	if filter == nil {
		return FilterAccept
	}
	return filter(d, id)
}

// NodeIterator walks the document in depth-first document order, skipping
// nodes the mask/filter reject.
type NodeIterator struct {
	doc    *Document
	root   ID
	mask   WhatToShow
	filter NodeFilter
	cur    ID
	done   bool
}

// NewNodeIterator creates an iterator rooted at root.
func NewNodeIterator(d *Document, root ID, mask WhatToShow, filter NodeFilter) *NodeIterator {
	return &NodeIterator{doc: d, root: root, mask: mask, filter: filter, cur: nilID}
}

// Next advances to and returns the next accepted node, or (nilID, false)
// when traversal is exhausted.
func (it *NodeIterator) Next() (ID, bool) {
	if it.done {
		return nilID, false
	}
	n := it.cur
	for {
		n = it.advance(n)
		if IsNil(n) {
			it.done = true
			return nilID, false
		}
		if accepts(it.doc, n, it.mask, it.filter) == FilterAccept {
			it.cur = n
			return n, true
		}
	}
}

func (it *NodeIterator) advance(n ID) ID {
	if IsNil(n) {
		return it.root
	}
	if c := it.doc.FirstChild(n); !IsNil(c) {
		return c
	}
	for cur := n; !IsNil(cur) && cur != it.root; cur = it.doc.Parent(cur) {
		if sib := it.doc.NextSibling(cur); !IsNil(sib) {
			return sib
		}
	}
	return nilID
}

// TreeWalker exposes parent/sibling/child navigation, each step skipping
// nodes the mask/filter reject.
type TreeWalker struct {
	doc        *Document
	root       ID
	mask       WhatToShow
	filter     NodeFilter
	currentNode ID
}

// NewTreeWalker creates a walker rooted at root, initially positioned there.
func NewTreeWalker(d *Document, root ID, mask WhatToShow, filter NodeFilter) *TreeWalker {
	return &TreeWalker{doc: d, root: root, mask: mask, filter: filter, currentNode: root}
}

// CurrentNode returns the walker's current position.
func (w *TreeWalker) CurrentNode() ID { return w.currentNode }

func (w *TreeWalker) test(id ID) FilterResult {
	if IsNil(id) {
		return FilterReject
	}
	return accepts(w.doc, id, w.mask, w.filter)
}

// FirstChild moves to the first accepted child of the current node.
func (w *TreeWalker) FirstChild() (ID, bool) { return w.firstOrLast(true) }

// LastChild moves to the last accepted child of the current node.
func (w *TreeWalker) LastChild() (ID, bool) { return w.firstOrLast(false) }

func (w *TreeWalker) firstOrLast(first bool) (ID, bool) {
	var c ID
	if first {
		c = w.doc.FirstChild(w.currentNode)
	} else {
		c = w.doc.LastChild(w.currentNode)
	}
	for !IsNil(c) {
		switch w.test(c) {
		case FilterAccept:
			w.currentNode = c
			return c, true
		case FilterSkip:
			if gc := w.doc.FirstChild(c); first && !IsNil(gc) {
				c = gc
				continue
			}
		}
		if first {
			c = w.doc.NextSibling(c)
		} else {
			c = w.doc.PreviousSibling(c)
		}
	}
	return nilID, false
}

// NextSibling moves to the next accepted sibling of the current node.
func (w *TreeWalker) NextSibling() (ID, bool) {
	for c := w.doc.NextSibling(w.currentNode); !IsNil(c); c = w.doc.NextSibling(c) {
		if w.test(c) == FilterAccept {
			w.currentNode = c
			return c, true
		}
	}
	return nilID, false
}

// ParentNode moves to the nearest accepted ancestor, stopping at root.
func (w *TreeWalker) ParentNode() (ID, bool) {
	for p := w.doc.Parent(w.currentNode); !IsNil(p) && p != w.doc.Parent(w.root); p = w.doc.Parent(p) {
		if w.test(p) == FilterAccept {
			w.currentNode = p
			return p, true
		}
		if p == w.root {
			break
		}
	}
	return nilID, false
}
