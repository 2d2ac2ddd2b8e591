package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
)

// StreamReset is the per-request error a RST_STREAM surfaces as
// (spec.md §4.5).
type StreamReset struct {
	Code http2.ErrCode
}

func (e *StreamReset) Error() string {
	return fmt.Sprintf("stream reset: %s", e.Code)
}

const (
	initialWindowSize    = 65535
	defaultConnBufferCap = 1 << 20
)

// h2Stream is one in-flight request/response exchange on an h2Conn.
type h2Stream struct {
	id       uint32
	headers  chan *headers.Store
	data     chan []byte
	done     chan struct{}
	closed   bool // guards done against a second close (GOAWAY racing RST/END_STREAM)
	err      error
	status   int
	sendWindow, recvWindow int32
}

// h2Conn owns the HTTP/2 stream table, HPACK encoder/decoder, and
// connection-level flow-control window for one pooled connection
// (spec.md §4.5).
type h2Conn struct {
	origin OriginKey
	nc     net.Conn
	framer *http2.Framer

	henc *hpack.Encoder
	hbuf bytes.Buffer
	hdec *hpack.Decoder

	mu          sync.Mutex
	nextStream  uint32 // client streams are odd-numbered
	streams     map[uint32]*h2Stream
	connSendWin int32
	connRecvWin int32
	goAway      bool
	lastStreamID uint32
	closed      bool
	idle        bool
	idleSince   time.Time
}

func (c *h2Conn) Origin() OriginKey    { return c.origin }
func (c *h2Conn) Idle() bool           { c.mu.Lock(); defer c.mu.Unlock(); return c.idle && !c.goAway }
func (c *h2Conn) IdleSince() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.idleSince }
func (c *h2Conn) Closed() bool         { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }

func (c *h2Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}

// closeStream marks a stream finished and closes its done channel exactly
// once. readLoop is the only goroutine that ever closes done, but it can
// reach the same stream from two different frame handlers in sequence (a
// RST_STREAM after GOAWAY already failed it, say), so the guard is still
// needed even single-threaded.
func (c *h2Conn) closeStream(s *h2Stream, err error) {
	c.mu.Lock()
	already := s.closed
	s.closed = true
	c.mu.Unlock()
	if already {
		return
	}
	if err != nil {
		s.err = err
	}
	close(s.done)
}

// H2Transport dials TLS connections negotiating "h2" via ALPN and drives
// the HTTP/2 wire protocol over golang.org/x/net/http2's Framer.
type H2Transport struct {
	tlsConfig *tls.Config
}

func NewH2Transport(tlsConfig *tls.Config) *H2Transport {
	return &H2Transport{tlsConfig: tlsConfig}
}

// Dial implements the Pool's Dialer contract for ALPNH2: TLS handshake,
// client preface, initial SETTINGS exchange.
func (t *H2Transport) Dial(ctx context.Context, origin OriginKey) (Conn, error) {
	d := net.Dialer{}
	tc := t.tlsConfig.Clone()
	if tc == nil {
		tc = &tls.Config{}
	}
	tc.NextProtos = []string{"h2"}
	host, _, err := net.SplitHostPort(origin.Authority)
	if err == nil {
		tc.ServerName = host
	}
	nc, err := tls.DialWithDialer(&d, "tcp", origin.Authority, tc)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindNetwork, "h2-dial-failed").WithContext("authority", origin.Authority)
	}

	if _, err := nc.Write([]byte(http2.ClientPreface)); err != nil {
		nc.Close()
		return nil, cmn.Wrap(err, cmn.KindNetwork, "h2-preface-write-failed")
	}

	framer := http2.NewFramer(nc, nc)
	if err := framer.WriteSettings(); err != nil {
		nc.Close()
		return nil, cmn.Wrap(err, cmn.KindProtocol, "h2-settings-write-failed")
	}

	c := &h2Conn{
		origin:      origin,
		nc:          nc,
		framer:      framer,
		hdec:        hpack.NewDecoder(4096, nil),
		nextStream:  1,
		streams:     make(map[uint32]*h2Stream),
		connSendWin: initialWindowSize,
		connRecvWin: initialWindowSize,
		idle:        true,
	}
	c.henc = hpack.NewEncoder(&c.hbuf)
	go c.readLoop()
	return c, nil
}

// readLoop drains frames off the wire until the connection closes,
// dispatching HEADERS/DATA to the owning stream and handling
// RST_STREAM/GOAWAY/WINDOW_UPDATE at the connection level.
func (c *h2Conn) readLoop() {
	for {
		f, err := c.framer.ReadFrame()
		if err != nil {
			c.mu.Lock()
			var inFlight []*h2Stream
			for _, s := range c.streams {
				inFlight = append(inFlight, s)
			}
			c.closed = true
			c.mu.Unlock()
			failErr := cmn.Wrap(err, cmn.KindNetwork, "h2-connection-failed")
			for _, s := range inFlight {
				c.closeStream(s, failErr)
			}
			return
		}
		switch fr := f.(type) {
		case *http2.HeadersFrame:
			c.handleHeaders(fr)
		case *http2.DataFrame:
			c.handleData(fr)
		case *http2.RSTStreamFrame:
			c.handleRST(fr)
		case *http2.GoAwayFrame:
			c.mu.Lock()
			c.goAway = true
			c.lastStreamID = fr.LastStreamID
			var unprocessed []*h2Stream
			for id, s := range c.streams {
				if id > fr.LastStreamID {
					unprocessed = append(unprocessed, s)
				}
			}
			c.mu.Unlock()
			// Streams above the server's last processed ID will never get a
			// response on this connection (spec.md §4.5); fail them now
			// instead of leaving RoundTrip blocked until the socket closes.
			for _, s := range unprocessed {
				c.closeStream(s, cmn.New(cmn.KindNetwork, "h2-goaway-unprocessed"))
			}
		case *http2.WindowUpdateFrame:
			c.mu.Lock()
			if fr.StreamID == 0 {
				c.connSendWin += int32(fr.Increment)
			} else if s, ok := c.streams[fr.StreamID]; ok {
				s.sendWindow += int32(fr.Increment)
			}
			c.mu.Unlock()
		case *http2.SettingsFrame:
			if !fr.IsAck() {
				_ = c.framer.WriteSettingsAck()
			}
		case *http2.PingFrame:
			if !fr.IsAck() {
				_ = c.framer.WritePing(true, fr.Data)
			}
		}
	}
}

func (c *h2Conn) handleHeaders(fr *http2.HeadersFrame) {
	c.mu.Lock()
	s, ok := c.streams[fr.StreamID]
	c.mu.Unlock()
	if !ok {
		return
	}
	hf, err := c.hdec.DecodeFull(fr.HeaderBlockFragment())
	if err != nil {
		c.closeStream(s, cmn.Wrap(err, cmn.KindProtocol, "h2-hpack-decode-failed"))
		return
	}
	hs := headers.New()
	for _, f := range hf {
		if f.Name == ":status" {
			fmt.Sscanf(f.Value, "%d", &s.status)
			continue
		}
		hs.Append(f.Name, f.Value)
	}
	s.headers <- hs
	if fr.StreamEnded() {
		c.closeStream(s, nil)
	}
}

// handleData hands the frame payload to RoundTrip's drain loop, which reads
// s.data concurrently with waiting on s.done — s.data is only 8 frames
// deep, and a response with more DATA frames than that would otherwise
// block this send forever, which would in turn stall every other stream
// multiplexed on the same connection (readLoop is single-threaded).
func (c *h2Conn) handleData(fr *http2.DataFrame) {
	c.mu.Lock()
	s, ok := c.streams[fr.StreamID]
	c.mu.Unlock()
	if !ok {
		return
	}
	payload := append([]byte(nil), fr.Data()...)
	s.data <- payload
	if fr.StreamEnded() {
		c.closeStream(s, nil)
	}
}

func (c *h2Conn) handleRST(fr *http2.RSTStreamFrame) {
	c.mu.Lock()
	s, ok := c.streams[fr.StreamID]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.closeStream(s, &StreamReset{Code: fr.ErrCode})
}

// RoundTrip opens a new client stream, sends HEADERS (and optional DATA),
// and collects the response headers + body.
func (c *H2Transport) RoundTrip(ctx context.Context, conn Conn, method, path, authority string, reqHeaders *headers.Store, body []byte) (int, *headers.Store, []byte, error) {
	c2, ok := conn.(*h2Conn)
	if !ok {
		return 0, nil, nil, cmn.New(cmn.KindInternal, "not-an-h2-conn")
	}

	c2.mu.Lock()
	if c2.goAway {
		c2.mu.Unlock()
		return 0, nil, nil, cmn.New(cmn.KindNetwork, "h2-connection-draining")
	}
	streamID := c2.nextStream
	c2.nextStream += 2
	s := &h2Stream{
		id:         streamID,
		headers:    make(chan *headers.Store, 1),
		data:       make(chan []byte, 8),
		done:       make(chan struct{}),
		sendWindow: initialWindowSize,
		recvWindow: initialWindowSize,
	}
	c2.streams[streamID] = s
	c2.idle = false
	c2.mu.Unlock()

	c2.hbuf.Reset()
	_ = c2.henc.WriteField(hpack.HeaderField{Name: ":method", Value: method})
	_ = c2.henc.WriteField(hpack.HeaderField{Name: ":scheme", Value: c2.origin.Scheme})
	_ = c2.henc.WriteField(hpack.HeaderField{Name: ":authority", Value: authority})
	_ = c2.henc.WriteField(hpack.HeaderField{Name: ":path", Value: path})
	reqHeaders.Range(func(name, value string) bool {
		_ = c2.henc.WriteField(hpack.HeaderField{Name: lowerASCII(name), Value: value})
		return true
	})

	if err := c2.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: c2.hbuf.Bytes(),
		EndHeaders:    true,
		EndStream:     len(body) == 0,
	}); err != nil {
		return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h2-headers-write-failed")
	}
	if len(body) > 0 {
		if err := c2.framer.WriteData(streamID, true, body); err != nil {
			return 0, nil, nil, cmn.Wrap(err, cmn.KindNetwork, "h2-data-write-failed")
		}
	}

	// Drain s.data concurrently with waiting for done/cancellation: it is
	// only buffered 8 frames deep, and handleData's send would otherwise
	// block readLoop (and with it every other stream on this connection)
	// on any response carrying more DATA frames than that.
	var respBody []byte
	cancelled := false
drain:
	for {
		select {
		case chunk := <-s.data:
			respBody = append(respBody, chunk...)
		case <-s.done:
			break drain
		case <-ctx.Done():
			_ = c2.framer.WriteRSTStream(streamID, http2.ErrCodeCancel)
			cancelled = true
			break drain
		}
	}

	c2.mu.Lock()
	delete(c2.streams, streamID)
	c2.idle = len(c2.streams) == 0
	c2.idleSince = time.Now()
	c2.mu.Unlock()

	if cancelled {
		return 0, nil, nil, cmn.Wrap(ctx.Err(), cmn.KindCancelled, "h2-roundtrip-cancelled")
	}
	if s.err != nil {
		return 0, nil, nil, s.err
	}

	var respHeaders *headers.Store
	select {
	case respHeaders = <-s.headers:
	default:
		respHeaders = headers.New()
	}

	// done and a final buffered chunk can become ready in the same instant
	// (handleData sends the last chunk, then closes done); select between
	// them above is unordered, so sweep for anything left over.
	for {
		select {
		case chunk := <-s.data:
			respBody = append(respBody, chunk...)
		default:
			return s.status, respHeaders, respBody, nil
		}
	}
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
