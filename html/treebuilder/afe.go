package treebuilder

import "github.com/coreweb/engine/dom"

// afeEntry is one slot in the active-formatting-elements list. A marker
// entry (inserted at the start of a <table>/<template>/<object> etc.)
// has marker set (and a zero id) and blocks reconstruction/AAA lookups from
// crossing it.
type afeEntry struct {
	id     dom.ID
	name   string
	attrs  []dom.Attr
	marker bool
}

const maxNoahsArk = 3

// formattingList implements spec.md §4.10's active-formatting-elements list,
// including the Noah's Ark clause (at most 3 open elements with the same
// tag name, namespace, and attribute set between the end of the list and
// the last marker).
type formattingList struct {
	entries []afeEntry
}

func (f *formattingList) pushMarker() {
	f.entries = append(f.entries, afeEntry{marker: true})
}

func (f *formattingList) push(id dom.ID, name string, attrs []dom.Attr) {
	f.noahsArk(name, attrs)
	f.entries = append(f.entries, afeEntry{id: id, name: name, attrs: attrs})
}

// noahsArk removes the earliest matching entry once three identical
// (name, attrs) entries already exist since the last marker.
func (f *formattingList) noahsArk(name string, attrs []dom.Attr) {
	count := 0
	matchIdx := -1
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.marker {
			break
		}
		if e.name == name && sameAttrs(e.attrs, attrs) {
			count++
			matchIdx = i
		}
	}
	if count >= maxNoahsArk && matchIdx >= 0 {
		f.entries = append(f.entries[:matchIdx], f.entries[matchIdx+1:]...)
	}
}

func sameAttrs(a, b []dom.Attr) bool {
	if len(a) != len(b) {
		return false
	}
	idx := map[string]string{}
	for _, x := range a {
		idx[x.Name] = x.Value
	}
	for _, y := range b {
		v, ok := idx[y.Name]
		if !ok || v != y.Value {
			return false
		}
	}
	return true
}

func (f *formattingList) clearToLastMarker() {
	for len(f.entries) > 0 {
		n := len(f.entries) - 1
		marker := f.entries[n].marker
		f.entries = f.entries[:n]
		if marker {
			return
		}
	}
}

func (f *formattingList) indexOf(id dom.ID) int {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if !f.entries[i].marker && f.entries[i].id == id {
			return i
		}
	}
	return -1
}

// lastMatching finds the most recent entry named name, not crossing a
// marker, returning its index or -1.
func (f *formattingList) lastMatching(name string) int {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].marker {
			return -1
		}
		if f.entries[i].name == name {
			return i
		}
	}
	return -1
}

func (f *formattingList) remove(idx int) {
	f.entries = append(f.entries[:idx], f.entries[idx+1:]...)
}

func (f *formattingList) insertAt(idx int, e afeEntry) {
	f.entries = append(f.entries, afeEntry{})
	copy(f.entries[idx+1:], f.entries[idx:])
	f.entries[idx] = e
}
