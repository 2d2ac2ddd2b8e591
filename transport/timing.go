package transport

import "time"

// Timing is the per-request timing record spec.md §4.5 requires: DNS,
// connect, TLS, first-byte, total, all in milliseconds.
type Timing struct {
	start time.Time

	dnsStart, dnsEnd         time.Time
	connectStart, connectEnd time.Time
	tlsStart, tlsEnd         time.Time
	firstByte                time.Time
	end                      time.Time
}

func NewTiming() *Timing {
	return &Timing{start: time.Now()}
}

func (t *Timing) MarkDNSStart()     { t.dnsStart = time.Now() }
func (t *Timing) MarkDNSEnd()       { t.dnsEnd = time.Now() }
func (t *Timing) MarkConnectStart() { t.connectStart = time.Now() }
func (t *Timing) MarkConnectEnd()   { t.connectEnd = time.Now() }
func (t *Timing) MarkTLSStart()     { t.tlsStart = time.Now() }
func (t *Timing) MarkTLSEnd()       { t.tlsEnd = time.Now() }
func (t *Timing) MarkFirstByte()    { t.firstByte = time.Now() }
func (t *Timing) MarkEnd()          { t.end = time.Now() }

// TimingRecord is the exported, immutable snapshot of Timing's marks.
type TimingRecord struct {
	DNSMillis       float64
	ConnectMillis   float64
	TLSMillis       float64
	FirstByteMillis float64
	TotalMillis     float64
}

func ms(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	return float64(b.Sub(a)) / float64(time.Millisecond)
}

func (t *Timing) Record() TimingRecord {
	end := t.end
	if end.IsZero() {
		end = time.Now()
	}
	return TimingRecord{
		DNSMillis:       ms(t.dnsStart, t.dnsEnd),
		ConnectMillis:   ms(t.connectStart, t.connectEnd),
		TLSMillis:       ms(t.tlsStart, t.tlsEnd),
		FirstByteMillis: ms(t.start, t.firstByte),
		TotalMillis:     ms(t.start, end),
	}
}
