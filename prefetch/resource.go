// Package prefetch implements the resource graph and priority planner
// that feeds the connection pool and cache ahead of render (spec.md
// §4.6): default band assignment by resource type, the weight formula,
// critical-path discovery, and dependency-aware stable ordering.
package prefetch

// ResourceType is the kind of resource a page references, driving both
// the default priority band and the weight's type multiplier.
type ResourceType string

const (
	TypeHTML  ResourceType = "html"
	TypeCSS   ResourceType = "css"
	TypeJS    ResourceType = "js"
	TypeImage ResourceType = "image"
	TypeFont  ResourceType = "font"
	TypeAudio ResourceType = "audio"
	TypeVideo ResourceType = "video"
	TypeJSON  ResourceType = "json"
	TypeXML   ResourceType = "xml"
	TypeOther ResourceType = "other"
)

// PriorityBand is the 5-level scheduling priority (spec.md §3: "priority
// ∈ 5 bands"), ordered lowest to highest.
type PriorityBand int

const (
	BandLowest PriorityBand = iota
	BandLow
	BandMedium
	BandHigh
	BandHighest
)

// defaultBandByType is the starting band before in-viewport/render-blocking/
// user-hint adjustments (spec.md §4.6 "Default band by type").
var defaultBandByType = map[ResourceType]PriorityBand{
	TypeHTML:  BandHighest,
	TypeCSS:   BandHigh,
	TypeJS:    BandMedium,
	TypeFont:  BandMedium,
	TypeJSON:  BandMedium,
	TypeXML:   BandMedium,
	TypeImage: BandLow,
	TypeAudio: BandLow,
	TypeVideo: BandLow,
	TypeOther: BandLowest,
}

// typeWeightMultiplier is the per-type factor in the weight formula
// (spec.md §4.6: "HTML 1.5, CSS 1.3, JS 1.2, font 1.1").
var typeWeightMultiplier = map[ResourceType]float64{
	TypeHTML: 1.5,
	TypeCSS:  1.3,
	TypeJS:   1.2,
	TypeFont: 1.1,
}

// Resource is one known fetchable item in the page's resource graph
// (spec.md §4.6).
type Resource struct {
	URL             string
	Type            ResourceType
	Band            PriorityBand
	Weight          float64
	Dependencies    []string // URLs this resource depends on (outbound edges)
	RenderBlocking  bool
	UserHint        *PriorityBand // non-nil overrides the computed band entirely
	InViewport      bool
	SizeEstimate    int64
	IsPreload       bool
	IsCriticalPath  bool

	inboundDeps int // not set by Planner; Plan counts inbound edges itself
}

// computeBand applies spec.md §4.6's default-band-by-type logic, then the
// in-viewport/render-blocking/user-hint adjustments, in that order so a
// user hint always has the final word.
func computeBand(r *Resource) PriorityBand {
	band, ok := defaultBandByType[r.Type]
	if !ok {
		band = BandLowest
	}
	if r.InViewport && band < BandHighest {
		band++
	}
	if r.RenderBlocking && band < BandHigh {
		band = BandHigh
	}
	if r.UserHint != nil {
		band = *r.UserHint
	}
	return band
}

// computeWeight applies spec.md §4.6's weight formula verbatim, given the
// resource's own flags plus the outbound/inbound dependency counts the
// Planner has already resolved.
func computeWeight(r *Resource, inboundDeps, outboundDeps int) float64 {
	w := 1.0
	if r.InViewport {
		w *= 1.5
	}
	if r.RenderBlocking {
		w *= 2.0
	}
	w *= 1 + 0.2*float64(inboundDeps)
	w *= 1 / (1 + 0.1*float64(outboundDeps))
	if r.SizeEstimate > 100*1024 {
		w *= 0.9
	}
	if r.IsCriticalPath {
		w *= 1.5
	}
	if r.IsPreload {
		w *= 1.2
	}
	if m, ok := typeWeightMultiplier[r.Type]; ok {
		w *= m
	}
	return w
}
