package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quic-go/qpack"
	"github.com/quic-go/quic-go"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
)

// HTTP/3 frame type codes (draft/RFC 9114 §7.2).
const (
	h3FrameData    = 0x0
	h3FrameHeaders = 0x1
)

// h3Conn owns one QUIC connection and its QPACK encoder/decoder state,
// shared across every request stream opened on it (spec.md §4.5).
type h3Conn struct {
	origin OriginKey
	qconn  quic.Connection

	mu   sync.Mutex
	henc *qpack.Encoder
	hbuf bytes.Buffer
	hdec *qpack.Decoder

	perf *PerfMonitor

	idle      bool
	idleSince time.Time
	closed    bool
}

func (c *h3Conn) Origin() OriginKey    { return c.origin }
func (c *h3Conn) Idle() bool           { c.mu.Lock(); defer c.mu.Unlock(); return c.idle }
func (c *h3Conn) IdleSince() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.idleSince }
func (c *h3Conn) Closed() bool         { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }

func (c *h3Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.qconn.CloseWithError(0, "")
}

// H3Transport dials QUIC connections and drives requests over HTTP/3-style
// framed bidirectional streams (spec.md §4.5). A per-origin PerfMonitor's
// Params set the QUIC idle timeout, incoming-stream limit and stream
// receive window at dial time; the QPACK encoder and decoder are created
// with their defaults, so QPACKTableCapacity, MaxFieldSectionSize and
// QPACKBlockedStreams are not applied.
type H3Transport struct {
	tlsConfig *tls.Config
	monitors  map[string]*PerfMonitor
	mu        sync.Mutex
}

func NewH3Transport(tlsConfig *tls.Config) *H3Transport {
	return &H3Transport{tlsConfig: tlsConfig, monitors: make(map[string]*PerfMonitor)}
}

func (t *H3Transport) monitorFor(authority string) *PerfMonitor {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.monitors[authority]
	if !ok {
		m = NewPerfMonitor()
		t.monitors[authority] = m
	}
	return m
}

// Dial implements the Pool's Dialer contract for ALPNH3.
func (t *H3Transport) Dial(ctx context.Context, origin OriginKey) (Conn, error) {
	tc := t.tlsConfig.Clone()
	if tc == nil {
		tc = &tls.Config{}
	}
	tc.NextProtos = []string{"h3"}

	perf := t.monitorFor(origin.Authority)
	params := perf.Params(Sample{})

	qcfg := &quic.Config{
		MaxIdleTimeout:       params.IdleTimeout,
		MaxIncomingStreams:   int64(params.MaxConcurrentStreams),
		InitialStreamReceiveWindow: uint64(params.FlowControlWindow),
	}

	qconn, err := quic.DialAddr(ctx, origin.Authority, tc, qcfg)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindNetwork, "h3-dial-failed").WithContext("authority", origin.Authority)
	}

	c := &h3Conn{
		origin: origin,
		qconn:  qconn,
		perf:   perf,
		idle:   true,
	}
	c.henc = qpack.NewEncoder(&c.hbuf)
	c.hdec = qpack.NewDecoder(nil)
	return c, nil
}

// RoundTrip opens a new bidirectional QUIC stream, writes a HEADERS frame
// (QPACK-encoded) and an optional DATA frame, then reads the response
// frames back.
func (t *H3Transport) RoundTrip(ctx context.Context, conn Conn, method, path, authority string, reqHeaders *headers.Store, body []byte) (int, *headers.Store, []byte, error) {
	c, ok := conn.(*h3Conn)
	if !ok {
		return 0, nil, nil, cmn.New(cmn.KindInternal, "not-an-h3-conn")
	}

	c.mu.Lock()
	c.idle = false
	stream, err := c.qconn.OpenStreamSync(ctx)
	if err != nil {
		c.mu.Unlock()
		return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h3-open-stream-failed")
	}

	c.hbuf.Reset()
	_ = c.henc.WriteField(qpack.HeaderField{Name: ":method", Value: method})
	_ = c.henc.WriteField(qpack.HeaderField{Name: ":scheme", Value: c.origin.Scheme})
	_ = c.henc.WriteField(qpack.HeaderField{Name: ":authority", Value: authority})
	_ = c.henc.WriteField(qpack.HeaderField{Name: ":path", Value: path})
	reqHeaders.Range(func(name, value string) bool {
		_ = c.henc.WriteField(qpack.HeaderField{Name: lowerASCII(name), Value: value})
		return true
	})
	block := append([]byte(nil), c.hbuf.Bytes()...)
	c.mu.Unlock()

	if err := writeH3Frame(stream, h3FrameHeaders, block); err != nil {
		return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h3-headers-write-failed")
	}
	if len(body) > 0 {
		if err := writeH3Frame(stream, h3FrameData, body); err != nil {
			return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h3-data-write-failed")
		}
	}
	if err := stream.Close(); err != nil {
		return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h3-stream-close-failed")
	}

	status := 0
	respHeaders := headers.New()
	var respBody []byte

	for {
		typ, payload, err := readH3Frame(stream)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h3-frame-read-failed")
		}
		switch typ {
		case h3FrameHeaders:
			c.mu.Lock()
			fields, decErr := c.hdec.DecodeFull(payload)
			c.mu.Unlock()
			if decErr != nil {
				return 0, nil, nil, cmn.Wrap(decErr, cmn.KindProtocol, "h3-qpack-decode-failed")
			}
			for _, f := range fields {
				if f.Name == ":status" {
					fmt.Sscanf(f.Value, "%d", &status)
					continue
				}
				respHeaders.Append(f.Name, f.Value)
			}
		case h3FrameData:
			respBody = append(respBody, payload...)
		}
	}

	c.mu.Lock()
	c.idle = true
	c.idleSince = time.Now()
	c.mu.Unlock()

	return status, respHeaders, respBody, nil
}

func writeH3Frame(w io.Writer, typ uint64, payload []byte) error {
	var hdr [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], typ)
	n += binary.PutUvarint(hdr[n:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readH3Frame(r io.Reader) (uint64, []byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	typ, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, err
	}
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return typ, payload, nil
}

// byteReader adapts an io.Reader lacking ReadByte (quic.Stream does not
// implement io.ByteReader) for binary.ReadUvarint.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
