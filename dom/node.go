// Package dom implements the DOM core: an arena-addressed node graph,
// traversal (NodeIterator/TreeWalker/NodeFilter), and a CSS-selector subset
// query engine (spec.md §4.11, §9 "Cyclic DOM graphs").
//
// Every node lives in one Document's arena and is addressed by a stable
// NodeID (an arena index), never by a long-lived pointer: tree edges are
// indices, which both permits the DOM's inherently cyclic sibling/parent
// structure and gives O(1) detach (overwrite the edge indices).
package dom

// Kind is the tagged-variant discriminant for a Node (spec.md §3).
type Kind uint8

const (
	KindDocument Kind = iota
	KindDocumentType
	KindElement
	KindText
	KindComment
	KindCDATASection
	KindProcessingInstruction
	KindDocumentFragment
	KindAttribute // legacy, per spec.md §3
	KindNotation  // legacy, per spec.md §3
)

// ID addresses a node within one Document's arena. The zero value is the
// "no node" sentinel.
type ID uint32

const nilID ID = 0

// Attr is one (namespace?, name, value) triple. Namespace is empty for
// unqualified HTML attributes.
type Attr struct {
	Namespace string
	Name      string
	Value     string
}

type node struct {
	kind Kind

	localName    string // Element / ProcessingInstruction target
	namespaceURI string
	data         string // Text/Comment/CDATASection/ProcessingInstruction/DocumentType data
	publicID     string // DocumentType
	systemID     string // DocumentType

	attrs []Attr

	parent, firstChild, lastChild, prevSibling, nextSibling ID

	// live is set on every allocated node. Detaching a node does not
	// clear it, and Document never reclaims or reuses slots (kept simple,
	// matching an arena/slab); only the reserved nilID slot is not live.
	live bool
}

// Document owns every node reachable from it. Nodes never outlive their
// Document; Node-to-Node links are indices into doc.nodes, never raw
// pointers (spec.md §9).
type Document struct {
	nodes []node
	root  ID // the KindDocument node itself, always index 1 (0 is nilID)

	docType ID
}

// NewDocument allocates an empty Document with its root Document node.
func NewDocument() *Document {
	d := &Document{nodes: make([]node, 1, 64)} // index 0 reserved as nilID
	d.root = d.alloc(node{kind: KindDocument, live: true})
	return d
}

func (d *Document) alloc(n node) ID {
	d.nodes = append(d.nodes, n)
	return ID(len(d.nodes) - 1)
}

func (d *Document) get(id ID) *node {
	if id == nilID || int(id) >= len(d.nodes) {
		return nil
	}
	return &d.nodes[id]
}

// Root returns the Document node's own ID.
func (d *Document) Root() ID { return d.root }

// CreateElement allocates a detached Element node.
func (d *Document) CreateElement(localName, namespaceURI string) ID {
	return d.alloc(node{kind: KindElement, localName: localName, namespaceURI: namespaceURI, live: true})
}

// CreateText allocates a detached Text node.
func (d *Document) CreateText(data string) ID {
	return d.alloc(node{kind: KindText, data: data, live: true})
}

// CreateComment allocates a detached Comment node.
func (d *Document) CreateComment(data string) ID {
	return d.alloc(node{kind: KindComment, data: data, live: true})
}

// CreateCDATASection allocates a detached CDATASection node.
func (d *Document) CreateCDATASection(data string) ID {
	return d.alloc(node{kind: KindCDATASection, data: data, live: true})
}

// CreateProcessingInstruction allocates a detached ProcessingInstruction node.
func (d *Document) CreateProcessingInstruction(target, data string) ID {
	return d.alloc(node{kind: KindProcessingInstruction, localName: target, data: data, live: true})
}

// CreateDocumentFragment allocates a detached DocumentFragment node.
func (d *Document) CreateDocumentFragment() ID {
	return d.alloc(node{kind: KindDocumentFragment, live: true})
}

// CreateDocumentType allocates a detached DocumentType node.
func (d *Document) CreateDocumentType(name, publicID, systemID string) ID {
	return d.alloc(node{kind: KindDocumentType, localName: name, publicID: publicID, systemID: systemID, live: true})
}

// Kind, LocalName, NamespaceURI, Data accessors.
func (d *Document) Kind(id ID) Kind           { return d.get(id).kind }
func (d *Document) LocalName(id ID) string    { return d.get(id).localName }
func (d *Document) NamespaceURI(id ID) string { return d.get(id).namespaceURI }
func (d *Document) Data(id ID) string         { return d.get(id).data }
func (d *Document) SetData(id ID, data string) {
	n := d.get(id)
	n.data = data
}
func (d *Document) PublicID(id ID) string { return d.get(id).publicID }
func (d *Document) SystemID(id ID) string { return d.get(id).systemID }

// Parent, FirstChild, LastChild, PreviousSibling, NextSibling walk tree
// edges; all return nilID ("no node") past the structure's boundary.
func (d *Document) Parent(id ID) ID          { return d.get(id).parent }
func (d *Document) FirstChild(id ID) ID      { return d.get(id).firstChild }
func (d *Document) LastChild(id ID) ID       { return d.get(id).lastChild }
func (d *Document) PreviousSibling(id ID) ID { return d.get(id).prevSibling }
func (d *Document) NextSibling(id ID) ID     { return d.get(id).nextSibling }

// IsNil reports whether id is the "no node" sentinel.
func IsNil(id ID) bool { return id == nilID }

// Children returns the ordered list of child IDs of id.
func (d *Document) Children(id ID) []ID {
	var out []ID
	for c := d.FirstChild(id); !IsNil(c); c = d.NextSibling(c) {
		out = append(out, c)
	}
	return out
}

// AppendChild detaches child if attached, then appends it as parent's last
// child.
func (d *Document) AppendChild(parent, child ID) {
	d.detach(child)
	p, c := d.get(parent), d.get(child)
	c.parent = parent
	if IsNil(p.lastChild) {
		p.firstChild, p.lastChild = child, child
		return
	}
	last := d.get(p.lastChild)
	last.nextSibling = child
	c.prevSibling = p.lastChild
	p.lastChild = child
}

// InsertBefore detaches child if attached, then inserts it immediately
// before reference under parent. If reference is nilID, behaves like
// AppendChild.
func (d *Document) InsertBefore(parent, child, reference ID) {
	if IsNil(reference) {
		d.AppendChild(parent, child)
		return
	}
	d.detach(child)
	p, c, ref := d.get(parent), d.get(child), d.get(reference)
	c.parent = parent
	c.nextSibling = reference
	c.prevSibling = ref.prevSibling
	if IsNil(ref.prevSibling) {
		p.firstChild = child
	} else {
		d.get(ref.prevSibling).nextSibling = child
	}
	ref.prevSibling = child
}

// RemoveChild detaches child from parent. child remains a valid, live,
// parentless node (not deallocated; the arena never shrinks).
func (d *Document) RemoveChild(parent, child ID) {
	cNode := d.get(child)
	if cNode.parent != parent {
		return
	}
	d.detach(child)
}

func (d *Document) detach(id ID) {
	n := d.get(id)
	if IsNil(n.parent) {
		return
	}
	p := d.get(n.parent)
	if IsNil(n.prevSibling) {
		p.firstChild = n.nextSibling
	} else {
		d.get(n.prevSibling).nextSibling = n.nextSibling
	}
	if IsNil(n.nextSibling) {
		p.lastChild = n.prevSibling
	} else {
		d.get(n.nextSibling).prevSibling = n.prevSibling
	}
	n.parent, n.prevSibling, n.nextSibling = nilID, nilID, nilID
}

// CloneNode copies id into a fresh, detached ID. If deep, children are
// cloned recursively too. The source node remains reachable and unchanged;
// the clone gets a brand-new ID (the spec's "old index becomes unreachable
// for collection" applies to the discarded original on a move, not to clone).
func (d *Document) CloneNode(id ID, deep bool) ID {
	src := d.get(id)
	clone := node{
		kind: src.kind, localName: src.localName, namespaceURI: src.namespaceURI,
		data: src.data, publicID: src.publicID, systemID: src.systemID,
		attrs: append([]Attr(nil), src.attrs...), live: true,
	}
	newID := d.alloc(clone)
	if deep {
		for c := src.firstChild; !IsNil(c); c = d.get(c).nextSibling {
			d.AppendChild(newID, d.CloneNode(c, true))
		}
	}
	return newID
}

// SetAttribute sets name=value on an element, replacing any existing
// attribute of the same name.
func (d *Document) SetAttribute(id ID, name, value string) {
	n := d.get(id)
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// GetAttribute returns an element's attribute value, if present.
func (d *Document) GetAttribute(id ID, name string) (string, bool) {
	for _, a := range d.get(id).attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// RemoveAttribute deletes an element's attribute, if present.
func (d *Document) RemoveAttribute(id ID, name string) {
	n := d.get(id)
	out := n.attrs[:0]
	for _, a := range n.attrs {
		if a.Name != name {
			out = append(out, a)
		}
	}
	n.attrs = out
}

// Attributes returns the element's attributes in insertion order.
func (d *Document) Attributes(id ID) []Attr {
	return append([]Attr(nil), d.get(id).attrs...)
}
