package prefetch

import "sort"

// Planner accumulates a page's resource graph and emits an ordered
// prefetch plan (spec.md §4.6). Not safe for concurrent use; callers
// build one Planner per navigation.
type Planner struct {
	resources map[string]*Resource
	order     []string // insertion order, for a stable starting sequence
}

func NewPlanner() *Planner {
	return &Planner{resources: make(map[string]*Resource)}
}

// Add registers a resource discovered while parsing the document. Adding
// the same URL twice replaces the earlier entry.
func (p *Planner) Add(r Resource) {
	if _, exists := p.resources[r.URL]; !exists {
		p.order = append(p.order, r.URL)
	}
	cp := r
	p.resources[r.URL] = &cp
}

// inboundCounts returns, for every URL, how many other resources declare
// it as a dependency.
func (p *Planner) inboundCounts() map[string]int {
	counts := make(map[string]int, len(p.resources))
	for _, r := range p.resources {
		for _, dep := range r.Dependencies {
			if _, ok := p.resources[dep]; ok {
				counts[dep]++
			}
		}
	}
	return counts
}

// markCriticalPath computes the transitive closure over the dependency
// graph starting from the seed set {HTML documents, CSS, render-blocking
// resources, in-viewport JS/fonts} (spec.md §4.6), setting IsCriticalPath
// on every resource reached.
func (p *Planner) markCriticalPath() {
	seed := make([]string, 0)
	for _, url := range p.order {
		r := p.resources[url]
		if r.Type == TypeHTML || r.Type == TypeCSS || r.RenderBlocking ||
			(r.InViewport && (r.Type == TypeJS || r.Type == TypeFont)) {
			seed = append(seed, url)
		}
	}

	visited := make(map[string]bool, len(seed))
	queue := append([]string(nil), seed...)
	for len(queue) > 0 {
		url := queue[0]
		queue = queue[1:]
		if visited[url] {
			continue
		}
		visited[url] = true
		r, ok := p.resources[url]
		if !ok {
			continue
		}
		r.IsCriticalPath = true
		for _, dep := range r.Dependencies {
			if !visited[dep] {
				queue = append(queue, dep)
			}
		}
	}
}

// Plan resolves bands and weights, marks the critical path, then emits
// PrefetchTasks in the order spec.md §4.6 prescribes: a stable sort
// within each band by (in-viewport > render-blocking > weight > type >
// url), followed by a topological pass that reorders dependencies before
// dependents, breaking cycles by dropping back-edges in URL lexical
// order. No step is destructive to the underlying resource map.
func (p *Planner) Plan() []PrefetchTask {
	p.markCriticalPath()

	inbound := p.inboundCounts()
	urls := append([]string(nil), p.order...)
	for _, url := range urls {
		r := p.resources[url]
		r.Band = computeBand(r)
		r.Weight = computeWeight(r, inbound[url], len(r.Dependencies))
	}

	sort.SliceStable(urls, func(i, j int) bool {
		a, b := p.resources[urls[i]], p.resources[urls[j]]
		if a.Band != b.Band {
			return a.Band > b.Band
		}
		if a.InViewport != b.InViewport {
			return a.InViewport
		}
		if a.RenderBlocking != b.RenderBlocking {
			return a.RenderBlocking
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.URL < b.URL
	})

	ordered := p.topoSort(urls)

	tasks := make([]PrefetchTask, 0, len(ordered))
	for _, url := range ordered {
		r := p.resources[url]
		tasks = append(tasks, PrefetchTask{
			URL:      r.URL,
			Type:     r.Type,
			Priority: r.Band,
			Purpose:  PurposePrefetch,
		})
	}
	return tasks
}

// topoSort reorders urls (already band/weight sorted) so every resource's
// dependencies precede it, preserving the incoming order as the
// tie-break whenever two resources are mutually unordered. A back-edge
// (one that would complete a cycle) is dropped rather than followed;
// among candidate back-edges the one naming the lexically smallest URL
// is dropped first, so cycle-breaking is deterministic.
func (p *Planner) topoSort(urls []string) []string {
	pos := make(map[string]int, len(urls))
	for i, u := range urls {
		pos[u] = i
	}

	state := make(map[string]int, len(urls)) // 0=unvisited, 1=in-progress, 2=done
	out := make([]string, 0, len(urls))

	var visit func(url string, stack map[string]bool)
	visit = func(url string, stack map[string]bool) {
		if state[url] == 2 || stack[url] {
			return
		}
		r, ok := p.resources[url]
		if !ok {
			return
		}
		stack[url] = true
		state[url] = 1

		deps := append([]string(nil), r.Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, known := p.resources[dep]; !known {
				continue
			}
			if stack[dep] {
				continue // back-edge: dropped
			}
			visit(dep, stack)
		}

		delete(stack, url)
		state[url] = 2
		out = append(out, url)
	}

	for _, url := range urls {
		visit(url, make(map[string]bool))
	}
	return out
}
