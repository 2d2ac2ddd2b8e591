package dom

import "strings"

// Selector is a parsed CSS-selector subset: type, id, class, descendant,
// child, attribute-presence, attribute-equals (spec.md §4.11).
type Selector struct {
	parts []compound // compound[0] combined by descendant; compound[i>0]'s combinator says how it relates to compound[i-1]
}

type combinator uint8

const (
	combDescendant combinator = iota
	combChild
)

type attrTest struct {
	name  string
	value string // empty => presence-only test
	equal bool
}

type compound struct {
	comb      combinator
	typeName  string // "" = any type ("*")
	id        string
	classes   []string
	attrs     []attrTest
}

// ParseSelector parses the supported subset: `tag`, `#id`, `.class`,
// `[attr]`, `[attr=value]`, combined (e.g. `div.card#x[data-ok]`), with
// ` ` (descendant) and `>` (child) combinators between compounds.
func ParseSelector(sel string) Selector {
	fields := splitCombinators(sel)
	var s Selector
	for _, f := range fields {
		s.parts = append(s.parts, parseCompound(f.text, f.comb))
	}
	return s
}

type rawPart struct {
	text string
	comb combinator
}

func splitCombinators(sel string) []rawPart {
	sel = strings.TrimSpace(sel)
	var out []rawPart
	comb := combDescendant
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, rawPart{text: cur.String(), comb: comb})
			cur.Reset()
			comb = combDescendant
		}
	}
	i := 0
	for i < len(sel) {
		c := sel[i]
		switch {
		case c == '>':
			flush()
			comb = combChild
			i++
		case c == ' ' || c == '\t' || c == '\n':
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return out
}

func parseCompound(text string, comb combinator) compound {
	c := compound{comb: comb}
	i := 0
	// optional leading type selector
	start := i
	for i < len(text) && text[i] != '#' && text[i] != '.' && text[i] != '[' {
		i++
	}
	if i > start {
		c.typeName = text[start:i]
	}
	for i < len(text) {
		switch text[i] {
		case '#':
			j := i + 1
			for j < len(text) && text[j] != '.' && text[j] != '[' {
				j++
			}
			c.id = text[i+1 : j]
			i = j
		case '.':
			j := i + 1
			for j < len(text) && text[j] != '.' && text[j] != '#' && text[j] != '[' {
				j++
			}
			c.classes = append(c.classes, text[i+1:j])
			i = j
		case '[':
			j := strings.IndexByte(text[i:], ']')
			if j < 0 {
				i = len(text)
				break
			}
			inner := text[i+1 : i+j]
			if eq := strings.IndexByte(inner, '='); eq >= 0 {
				c.attrs = append(c.attrs, attrTest{name: inner[:eq], value: strings.Trim(inner[eq+1:], `"'`), equal: true})
			} else {
				c.attrs = append(c.attrs, attrTest{name: inner})
			}
			i += j + 1
		default:
			i++
		}
	}
	return c
}

func (c compound) matches(d *Document, id ID) bool {
	if d.Kind(id) != KindElement {
		return false
	}
	if c.typeName != "" && c.typeName != "*" && !strings.EqualFold(d.LocalName(id), c.typeName) {
		return false
	}
	if c.id != "" {
		v, ok := d.GetAttribute(id, "id")
		if !ok || v != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		classAttr, _ := d.GetAttribute(id, "class")
		have := map[string]bool{}
		for _, cl := range strings.Fields(classAttr) {
			have[cl] = true
		}
		for _, want := range c.classes {
			if !have[want] {
				return false
			}
		}
	}
	for _, at := range c.attrs {
		v, ok := d.GetAttribute(id, at.name)
		if !ok {
			return false
		}
		if at.equal && v != at.value {
			return false
		}
	}
	return true
}

// QuerySelector returns the first element under root (root excluded,
// descendants in document order) matching sel, or (0, false).
func QuerySelector(d *Document, root ID, sel Selector) (ID, bool) {
	var found ID
	walkElements(d, root, func(id ID) bool {
		if matchesSelector(d, id, sel) {
			found = id
			return false
		}
		return true
	})
	return found, !IsNil(found)
}

// QuerySelectorAll returns every element under root matching sel, in
// document order.
func QuerySelectorAll(d *Document, root ID, sel Selector) []ID {
	var out []ID
	walkElements(d, root, func(id ID) bool {
		if matchesSelector(d, id, sel) {
			out = append(out, id)
		}
		return true
	})
	return out
}

func walkElements(d *Document, root ID, visit func(ID) bool) {
	it := NewNodeIterator(d, root, ShowElement, nil)
	for {
		id, ok := it.Next()
		if !ok {
			return
		}
		if id == root {
			continue
		}
		if !visit(id) {
			return
		}
	}
}

// matchesSelector checks the last compound against id, then walks ancestors
// (respecting combinators) for the remaining compounds, right to left.
func matchesSelector(d *Document, id ID, sel Selector) bool {
	if len(sel.parts) == 0 {
		return false
	}
	last := len(sel.parts) - 1
	if !sel.parts[last].matches(d, id) {
		return false
	}
	cur := id
	for i := last; i > 0; i-- {
		comb := sel.parts[i].comb
		target := sel.parts[i-1]
		switch comb {
		case combChild:
			p := d.Parent(cur)
			if IsNil(p) || !target.matches(d, p) {
				return false
			}
			cur = p
		default: // descendant
			found := false
			for p := d.Parent(cur); !IsNil(p); p = d.Parent(p) {
				if target.matches(d, p) {
					cur = p
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
