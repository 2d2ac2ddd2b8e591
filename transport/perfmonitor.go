package transport

import (
	"sync"
	"time"
)

// Profile is an optimization profile a per-origin PerfMonitor can select
// (spec.md §4.5).
type Profile string

const (
	ProfileBalanced        Profile = "balanced"
	ProfileLowLatency      Profile = "low_latency"
	ProfileHighThroughput  Profile = "high_throughput"
	ProfileLowBandwidth    Profile = "low_bandwidth"
	ProfileBatteryEfficient Profile = "battery_efficient"
	ProfileMobile          Profile = "mobile"
	ProfileDesktop         Profile = "desktop"
)

// H3Params are the QUIC/QPACK knobs a Profile resolves to (spec.md §4.5).
type H3Params struct {
	QPACKTableCapacity  uint64
	MaxFieldSectionSize uint64
	QPACKBlockedStreams uint64
	FlowControlWindow   uint64 // bytes
	MaxConcurrentStreams uint64
	InitialRTT          time.Duration
	IdleTimeout         time.Duration
}

const (
	minFlowControlWindow = 4 << 20
	maxFlowControlWindow = 128 << 20
)

// Sample is one measurement window fed to a PerfMonitor.
type Sample struct {
	RTT               time.Duration
	Jitter            time.Duration
	PacketLossEstimate float64 // 0..1
	ThroughputBps     float64
	SuccessRate       float64 // 0..1
	CompressionRatio  float64
	SignalStrength    float64 // 0..1, best-effort
	BatteryFraction   float64 // 0..1, best-effort; -1 if unknown (wall power / unsupported platform)
}

// PerfMonitor tracks one origin's link characteristics and selects an
// optimization Profile, damped against oscillation: a candidate profile
// must be favored for hysteresisWindows consecutive samples before taking
// effect (SPEC_FULL.md §13 Open Question decision).
type PerfMonitor struct {
	mu sync.Mutex

	current   Profile
	candidate Profile
	streak    int

	bandwidthDelayBytes float64
}

const hysteresisWindows = 3

func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{current: ProfileBalanced}
}

// Observe folds in one sample, advancing the hysteresis counter, and
// returns the currently active profile (which may lag the sample-implied
// one until the streak clears).
func (m *PerfMonitor) Observe(s Sample) Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bandwidthDelayBytes = s.ThroughputBps * s.RTT.Seconds()

	next := classify(s)
	if next == m.current {
		m.candidate = ""
		m.streak = 0
		return m.current
	}
	if next == m.candidate {
		m.streak++
	} else {
		m.candidate = next
		m.streak = 1
	}
	if m.streak >= hysteresisWindows {
		m.current = m.candidate
		m.candidate = ""
		m.streak = 0
	}
	return m.current
}

func classify(s Sample) Profile {
	switch {
	case s.BatteryFraction >= 0 && s.BatteryFraction < 0.2:
		return ProfileBatteryEfficient
	case s.PacketLossEstimate > 0.05 || s.Jitter > 100*time.Millisecond:
		return ProfileLowBandwidth
	case s.RTT < 30*time.Millisecond && s.PacketLossEstimate < 0.01:
		return ProfileLowLatency
	case s.ThroughputBps > 50_000_000:
		return ProfileHighThroughput
	case s.SignalStrength > 0 && s.SignalStrength < 0.5:
		return ProfileMobile
	default:
		return ProfileBalanced
	}
}

// Params resolves the active profile (and the last observed
// bandwidth-delay product) into concrete H3 transport settings.
func (m *PerfMonitor) Params(lastSample Sample) H3Params {
	m.mu.Lock()
	profile := m.current
	bdp := m.bandwidthDelayBytes
	m.mu.Unlock()

	window := clampWindow(bdp * 1.5)

	p := H3Params{
		QPACKTableCapacity:   4096,
		MaxFieldSectionSize:  16384,
		QPACKBlockedStreams:  16,
		FlowControlWindow:    window,
		MaxConcurrentStreams: 100,
		InitialRTT:           100 * time.Millisecond,
		IdleTimeout:          30 * time.Second,
	}

	switch profile {
	case ProfileLowLatency:
		p.InitialRTT = 20 * time.Millisecond
		p.MaxConcurrentStreams = 64
	case ProfileHighThroughput:
		p.QPACKTableCapacity = 16384
		p.MaxConcurrentStreams = 200
		p.FlowControlWindow = clampWindow(window * 1.5)
	case ProfileLowBandwidth:
		p.QPACKTableCapacity = 2048
		p.MaxFieldSectionSize = 8192
		p.FlowControlWindow = clampWindow(window * 0.5)
	case ProfileBatteryEfficient:
		p.MaxConcurrentStreams = 32
		p.IdleTimeout = 10 * time.Second
	case ProfileMobile:
		p.InitialRTT = 150 * time.Millisecond
		p.IdleTimeout = 15 * time.Second
	}

	if lastSample.PacketLossEstimate > 0.05 {
		p.MaxConcurrentStreams = uint64(float64(p.MaxConcurrentStreams) * 0.7)
		p.InitialRTT = time.Duration(float64(p.InitialRTT) * 1.2)
	}

	return p
}

func clampWindow(w float64) uint64 {
	if w < minFlowControlWindow {
		return minFlowControlWindow
	}
	if w > maxFlowControlWindow {
		return maxFlowControlWindow
	}
	return uint64(w)
}
