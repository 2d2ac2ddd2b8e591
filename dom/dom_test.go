package dom

import "testing"

func build(t *testing.T) (*Document, ID) {
	d := NewDocument()
	html := d.CreateElement("html", "")
	d.AppendChild(d.Root(), html)
	body := d.CreateElement("body", "")
	d.AppendChild(html, body)
	p1 := d.CreateElement("p", "")
	d.SetAttribute(p1, "class", "card intro")
	d.SetAttribute(p1, "id", "first")
	d.AppendChild(body, p1)
	d.AppendChild(p1, d.CreateText("hello"))
	p2 := d.CreateElement("p", "")
	d.SetAttribute(p2, "data-ok", "")
	d.AppendChild(body, p2)
	return d, body
}

func TestAppendAndTraverseOrder(t *testing.T) {
	d, body := build(t)
	kids := d.Children(body)
	if len(kids) != 2 || d.LocalName(kids[0]) != "p" || d.LocalName(kids[1]) != "p" {
		t.Fatalf("unexpected children: %v", kids)
	}
}

func TestRemoveChildDetaches(t *testing.T) {
	d, body := build(t)
	kids := d.Children(body)
	d.RemoveChild(body, kids[0])
	remaining := d.Children(body)
	if len(remaining) != 1 || remaining[0] != kids[1] {
		t.Fatalf("unexpected remaining children: %v", remaining)
	}
	if !IsNil(d.Parent(kids[0])) {
		t.Fatal("removed child should have no parent")
	}
}

func TestCloneNodeDeep(t *testing.T) {
	d, body := build(t)
	kids := d.Children(body)
	clone := d.CloneNode(kids[0], true)
	if clone == kids[0] {
		t.Fatal("clone should have a distinct ID")
	}
	if len(d.Children(clone)) != len(d.Children(kids[0])) {
		t.Fatal("deep clone should copy children")
	}
	v, _ := d.GetAttribute(clone, "id")
	if v != "first" {
		t.Fatalf("clone should copy attributes, got %q", v)
	}
}

func TestQuerySelectorByClassAndID(t *testing.T) {
	d, body := build(t)
	if id, ok := QuerySelector(d, body, ParseSelector("#first")); !ok || d.LocalName(id) != "p" {
		t.Fatal("expected to find #first")
	}
	if id, ok := QuerySelector(d, body, ParseSelector(".card")); !ok {
		t.Fatal("expected to find .card")
	} else if v, _ := d.GetAttribute(id, "id"); v != "first" {
		t.Fatalf("got %q", v)
	}
	all := QuerySelectorAll(d, body, ParseSelector("p"))
	if len(all) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(all))
	}
}

func TestQuerySelectorAttributePresence(t *testing.T) {
	d, body := build(t)
	id, ok := QuerySelector(d, body, ParseSelector("p[data-ok]"))
	if !ok {
		t.Fatal("expected attribute-presence match")
	}
	if _, hasID := d.GetAttribute(id, "id"); hasID {
		t.Fatal("matched wrong element")
	}
}

func TestQuerySelectorChildCombinator(t *testing.T) {
	d, body := build(t)
	if _, ok := QuerySelector(d, body, ParseSelector("body > p")); !ok {
		t.Fatal("expected body > p to match")
	}
	html := d.Parent(body)
	if _, ok := QuerySelector(d, html, ParseSelector("html > p")); ok {
		t.Fatal("html > p should not match: p is a grandchild, not a child")
	}
}
