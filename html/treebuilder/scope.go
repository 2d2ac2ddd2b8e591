// Package treebuilder implements the HTML tree constructor: the 23-state
// insertion-mode machine, the open-elements stack, the active-formatting-
// elements list, and the Adoption Agency Algorithm (spec.md §4.10).
package treebuilder

import "github.com/coreweb/engine/dom"

// InsertionMode enumerates the tree constructor's 23 states (spec.md §3).
type InsertionMode uint8

const (
	Initial InsertionMode = iota
	BeforeHtml
	BeforeHead
	InHead
	InHeadNoscript
	AfterHead
	InBody
	Text
	InTable
	InTableText
	InCaption
	InColumnGroup
	InTableBody
	InRow
	InCell
	InSelect
	InSelectInTable
	InTemplate
	AfterBody
	InFrameset
	AfterFrameset
	AfterAfterBody
	AfterAfterFrameset
)

// elementStack is the open-elements stack: the elements whose end tags
// haven't yet been seen (spec.md §3, §4.10). Index 0 is the bottom (the
// <html> element); the last entry is "current node".
type elementStack struct {
	ids   []dom.ID
	names []string // lower-cased local names, parallel to ids
}

func (s *elementStack) push(id dom.ID, name string) {
	s.ids = append(s.ids, id)
	s.names = append(s.names, name)
}

func (s *elementStack) pop() (dom.ID, string) {
	n := len(s.ids) - 1
	id, name := s.ids[n], s.names[n]
	s.ids = s.ids[:n]
	s.names = s.names[:n]
	return id, name
}

func (s *elementStack) current() (dom.ID, string) {
	if len(s.ids) == 0 {
		return 0, ""
	}
	return s.ids[len(s.ids)-1], s.names[len(s.names)-1]
}

func (s *elementStack) empty() bool { return len(s.ids) == 0 }

func (s *elementStack) containsName(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

func (s *elementStack) contains(id dom.ID) bool {
	for _, x := range s.ids {
		if x == id {
			return true
		}
	}
	return false
}

func (s *elementStack) indexOf(id dom.ID) int {
	for i, x := range s.ids {
		if x == id {
			return i
		}
	}
	return -1
}

// popUntil pops elements (inclusive) until one named name has been popped.
func (s *elementStack) popUntil(name string) {
	for !s.empty() {
		_, n := s.pop()
		if n == name {
			return
		}
	}
}

// popUntilID pops elements (inclusive) until id has been popped.
func (s *elementStack) popUntilID(id dom.ID) {
	for !s.empty() {
		x, _ := s.pop()
		if x == id {
			return
		}
	}
}

// Scope boundary sets, per the HTML spec's scope definitions.
var defaultScopeBoundary = set(
	"applet", "caption", "html", "table", "td", "th", "marquee", "object", "template",
)
var listItemScopeBoundary = union(defaultScopeBoundary, set("ol", "ul"))
var buttonScopeBoundary = union(defaultScopeBoundary, set("button"))
var tableScopeBoundary = set("html", "table", "template")
var selectScopeBoundary = map[string]bool{} // special: inverse semantics, see hasElementInSelectScope

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func union(a, b map[string]bool) map[string]bool {
	m := make(map[string]bool, len(a)+len(b))
	for k := range a {
		m[k] = true
	}
	for k := range b {
		m[k] = true
	}
	return m
}

// hasElementInScope walks the stack top-down per the given boundary set,
// returning true if target is found before a boundary element.
func (s *elementStack) hasElementInScope(target string, boundary map[string]bool) bool {
	for i := len(s.names) - 1; i >= 0; i-- {
		n := s.names[i]
		if n == target {
			return true
		}
		if boundary[n] {
			return false
		}
	}
	return false
}

func (s *elementStack) hasElementInDefaultScope(target string) bool {
	return s.hasElementInScope(target, defaultScopeBoundary)
}
func (s *elementStack) hasElementInListItemScope(target string) bool {
	return s.hasElementInScope(target, listItemScopeBoundary)
}
func (s *elementStack) hasElementInButtonScope(target string) bool {
	return s.hasElementInScope(target, buttonScopeBoundary)
}
func (s *elementStack) hasElementInTableScope(target string) bool {
	return s.hasElementInScope(target, tableScopeBoundary)
}

// hasElementInSelectScope: true unless an element other than optgroup/option
// appears before target (inverse-boundary semantics per the HTML spec).
func (s *elementStack) hasElementInSelectScope(target string) bool {
	for i := len(s.names) - 1; i >= 0; i-- {
		n := s.names[i]
		if n == target {
			return true
		}
		if n != "optgroup" && n != "option" {
			return false
		}
	}
	return false
}
