package prefetch

import (
	"testing"
	"time"
)

func TestDefaultBandAssignsHTMLHighest(t *testing.T) {
	p := NewPlanner()
	p.Add(Resource{URL: "https://a.example/index.html", Type: TypeHTML})
	p.Add(Resource{URL: "https://a.example/icon.png", Type: TypeImage})
	tasks := p.Plan()
	if tasks[0].URL != "https://a.example/index.html" {
		t.Fatalf("expected HTML first, got %v", tasks[0].URL)
	}
}

func TestInViewportBumpsBandByOne(t *testing.T) {
	p := NewPlanner()
	p.Add(Resource{URL: "https://a.example/a.js", Type: TypeJS})
	p.Add(Resource{URL: "https://a.example/b.js", Type: TypeJS, InViewport: true})
	tasks := p.Plan()
	if tasks[0].URL != "https://a.example/b.js" {
		t.Fatalf("expected in-viewport JS to outrank a plain JS resource, got order %v", tasks)
	}
}

func TestRenderBlockingFloorsAtHigh(t *testing.T) {
	band := computeBand(&Resource{Type: TypeImage, RenderBlocking: true})
	if band < BandHigh {
		t.Fatalf("expected render-blocking to floor at BandHigh, got %v", band)
	}
}

func TestUserHintOverridesComputedBand(t *testing.T) {
	hint := BandLowest
	band := computeBand(&Resource{Type: TypeHTML, UserHint: &hint})
	if band != BandLowest {
		t.Fatalf("expected user hint to override the computed band, got %v", band)
	}
}

func TestWeightFormulaAppliesAllMultipliers(t *testing.T) {
	r := &Resource{
		Type:           TypeHTML,
		InViewport:     true,
		RenderBlocking: true,
		IsCriticalPath: true,
		IsPreload:      true,
		SizeEstimate:   200 * 1024,
	}
	w := computeWeight(r, 2, 3)
	expected := 1.0 * 1.5 * 2.0 * (1 + 0.2*2) * (1 / (1 + 0.1*3)) * 0.9 * 1.5 * 1.2 * 1.5
	if diff := w - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected weight %v, got %v", expected, w)
	}
}

func TestCriticalPathDiscoveryFollowsDependencies(t *testing.T) {
	p := NewPlanner()
	p.Add(Resource{URL: "/index.html", Type: TypeHTML, Dependencies: []string{"/main.css"}})
	p.Add(Resource{URL: "/main.css", Type: TypeCSS, Dependencies: []string{"/font.woff2"}})
	p.Add(Resource{URL: "/font.woff2", Type: TypeFont})
	p.Add(Resource{URL: "/unrelated.png", Type: TypeImage})
	p.markCriticalPath()
	if !p.resources["/font.woff2"].IsCriticalPath {
		t.Fatal("expected the transitive dependency to be marked critical-path")
	}
	if p.resources["/unrelated.png"].IsCriticalPath {
		t.Fatal("did not expect an unreferenced resource to be marked critical-path")
	}
}

func TestTopoSortOrdersDependenciesBeforeDependents(t *testing.T) {
	p := NewPlanner()
	p.Add(Resource{URL: "/index.html", Type: TypeHTML, Dependencies: []string{"/main.css"}})
	p.Add(Resource{URL: "/main.css", Type: TypeCSS, Dependencies: []string{"/font.woff2"}})
	p.Add(Resource{URL: "/font.woff2", Type: TypeFont})

	tasks := p.Plan()
	index := make(map[string]int, len(tasks))
	for i, tk := range tasks {
		index[tk.URL] = i
	}
	if index["/font.woff2"] >= index["/main.css"] {
		t.Fatalf("expected font to precede css, order: %v", tasks)
	}
	if index["/main.css"] >= index["/index.html"] {
		t.Fatalf("expected css to precede html, order: %v", tasks)
	}
}

func TestTopoSortBreaksCyclesDeterministically(t *testing.T) {
	p := NewPlanner()
	p.Add(Resource{URL: "/a.js", Type: TypeJS, Dependencies: []string{"/b.js"}})
	p.Add(Resource{URL: "/b.js", Type: TypeJS, Dependencies: []string{"/a.js"}})

	tasks := p.Plan()
	if len(tasks) != 2 {
		t.Fatalf("expected both cyclic resources to still appear exactly once, got %v", tasks)
	}
}

func TestTaskDueRespectsScheduleAndTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	task := &PrefetchTask{ScheduledTime: now.Add(-time.Minute), TTLExpiration: now.Add(time.Minute)}
	if !task.Due(now) {
		t.Fatal("expected task to be due")
	}
	expired := &PrefetchTask{ScheduledTime: now.Add(-time.Hour), TTLExpiration: now.Add(-time.Minute)}
	if expired.Due(now) {
		t.Fatal("expected expired task to not be due")
	}
}
