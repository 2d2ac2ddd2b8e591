package engine

import (
	"net/url"

	"github.com/coreweb/engine/dom"
	"github.com/coreweb/engine/prefetch"
)

// resourceTagTypes maps the element tags that name a fetchable subresource
// to the prefetch planner's resource type (spec.md §4.6).
var resourceTagTypes = map[string]prefetch.ResourceType{
	"img":    prefetch.TypeImage,
	"script": prefetch.TypeJS,
	"audio":  prefetch.TypeAudio,
	"video":  prefetch.TypeVideo,
	"source": prefetch.TypeVideo,
	"iframe": prefetch.TypeHTML,
}

// linkRelTypes maps a <link rel="..."> value to its resource type; only
// rels that name an actual fetchable resource are listed here.
var linkRelTypes = map[string]prefetch.ResourceType{
	"stylesheet": prefetch.TypeCSS,
	"preload":    prefetch.TypeOther,
	"prefetch":   prefetch.TypeOther,
	"icon":       prefetch.TypeImage,
}

// PlanPrefetch walks doc's element tree, builds the page's resource graph
// (img/script/link/iframe subresources resolved against pageURL), and
// returns the planner's dependency-aware ordered task list (spec.md §4.6).
// The Planner itself is retained under pageURL so later discoveries (for
// example, resources found while scripts run) can still call Add before a
// second Plan.
func (e *Engine) PlanPrefetch(doc *dom.Document, pageURL string) []prefetch.PrefetchTask {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	p := prefetch.NewPlanner()
	it := dom.NewNodeIterator(doc, doc.Root(), dom.ShowElement, nil)
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		for _, r := range resourcesFor(doc, id, base) {
			p.Add(r)
		}
	}

	e.mu.Lock()
	e.planners[pageURL] = p
	e.mu.Unlock()

	return p.Plan()
}

// resourcesFor extracts zero or one Resource from the element id, per its
// tag and attributes.
func resourcesFor(doc *dom.Document, id dom.ID, base *url.URL) []prefetch.Resource {
	tag := doc.LocalName(id)

	if tag == "link" {
		rel, _ := doc.GetAttribute(id, "rel")
		typ, ok := linkRelTypes[rel]
		if !ok {
			return nil
		}
		href, ok := doc.GetAttribute(id, "href")
		if !ok || href == "" {
			return nil
		}
		resolved, ok := resolve(base, href)
		if !ok {
			return nil
		}
		_, renderBlocking := doc.GetAttribute(id, "disabled")
		return []prefetch.Resource{{
			URL:            resolved,
			Type:           typ,
			RenderBlocking: rel == "stylesheet" && !renderBlocking,
			IsPreload:      rel == "preload" || rel == "prefetch",
		}}
	}

	typ, ok := resourceTagTypes[tag]
	if !ok {
		return nil
	}
	src, ok := doc.GetAttribute(id, "src")
	if !ok || src == "" {
		return nil
	}
	resolved, ok := resolve(base, src)
	if !ok {
		return nil
	}

	r := prefetch.Resource{URL: resolved, Type: typ}
	if tag == "script" {
		_, async := doc.GetAttribute(id, "async")
		_, defer_ := doc.GetAttribute(id, "defer")
		r.RenderBlocking = !async && !defer_
	}
	return []prefetch.Resource{r}
}

func resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}
