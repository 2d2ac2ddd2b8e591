package httpcache

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tinylib/msgp/msgp"

	"github.com/coreweb/engine/cmn"
	"github.com/coreweb/engine/headers"
	"github.com/coreweb/engine/internal/xlog"
)

// journalMagic identifies the on-disk format (spec.md §6, cache journal).
// Bumping the version byte is a hard break: Load refuses files stamped with
// a magic it doesn't recognize rather than guessing at a layout.
var journalMagic = [4]byte{'H', 'C', 'J', 1}

// Journal is the append-only on-disk persistence layer backing Cache: each
// Put appends one self-contained, integrity-checked record, and Load
// replays every record it can verify. A record that fails its trailer
// check — the tail of a file cut short by an unclean shutdown — truncates
// the read there; Load never refuses to start the cache over a damaged
// tail record (Open Question decision, SPEC_FULL.md §13).
type Journal struct {
	path string
	mu   sync.Mutex
	f    *os.File
	log  zapSugar
}

// OpenJournal opens (creating if absent) the journal file at path, stamping
// a fresh magic header on an empty file.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "journal-open-failed").WithContext("path", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, cmn.Wrap(err, cmn.KindInternal, "journal-stat-failed")
	}
	if info.Size() == 0 {
		if _, err := f.Write(journalMagic[:]); err != nil {
			f.Close()
			return nil, cmn.Wrap(err, cmn.KindInternal, "journal-header-write-failed")
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, cmn.Wrap(err, cmn.KindInternal, "journal-seek-failed")
	}
	return &Journal{path: path, f: f, log: xlog.For("httpcache.journal")}, nil
}

// Append serializes e's metadata and body as one trailer-checked record and
// writes it at the current end of file.
func (j *Journal) Append(e *Entry) error {
	rec, err := encodeRecord(e)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(rec); err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-append-failed")
	}
	return nil
}

// Load replays the journal from the start, returning every entry whose
// record passed its integrity trailer. A truncated or corrupt trailer on
// the final record is logged and the read stops there rather than failing
// the whole load.
func (j *Journal) Load() ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindInternal, "journal-open-failed")
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, cmn.Wrap(err, cmn.KindInternal, "journal-header-read-failed")
	}
	if magic != journalMagic {
		return nil, cmn.New(cmn.KindCache, cmn.ReasonCacheIntegrityMismatch).WithContext("path", j.path, "reason", "bad-magic")
	}

	var entries []*Entry
	for {
		e, ok, err := decodeRecord(r)
		if err != nil {
			j.log.Warnw("journal record failed integrity check, truncating read", "path", j.path, "err", err)
			break
		}
		if !ok {
			break // clean EOF
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Compact atomically rewrites the journal to contain exactly entries,
// dropping anything evicted or expired since the file was last written
// (spec.md §4.7.3's periodic cleanup sweep). The swap is tmp-file-then-
// rename so a crash mid-compaction never leaves a half-written journal.
func (j *Journal) Compact(entries []*Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, ".journal-compact-*")
	if err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-tmp-failed")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(journalMagic[:]); err != nil {
		tmp.Close()
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-write-failed")
	}
	for _, e := range entries {
		rec, err := encodeRecord(e)
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := tmp.Write(rec); err != nil {
			tmp.Close()
			return cmn.Wrap(err, cmn.KindInternal, "journal-compact-write-failed")
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-sync-failed")
	}
	if err := tmp.Close(); err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-close-failed")
	}

	if err := j.f.Close(); err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-close-old-failed")
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-rename-failed")
	}
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return cmn.Wrap(err, cmn.KindInternal, "journal-compact-reopen-failed")
	}
	j.f = f
	return nil
}

// Close releases the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func encodeRecord(e *Entry) ([]byte, error) {
	meta, err := encodeMeta(e)
	if err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	writeUvarintBytes(&payload, []byte(e.Key))
	writeUvarintBytes(&payload, meta)
	writeUvarintBytes(&payload, e.Body)

	sum := sha256.Sum256(payload.Bytes())

	var out bytes.Buffer
	out.Write(payload.Bytes())
	out.Write(sum[:])
	return out.Bytes(), nil
}

func decodeRecord(r *bufio.Reader) (*Entry, bool, error) {
	key, err := readUvarintBytes(r)
	if err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, err
	}
	meta, err := readUvarintBytes(r)
	if err != nil {
		return nil, false, err
	}
	body, err := readUvarintBytes(r)
	if err != nil {
		return nil, false, err
	}

	var trailer [32]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, false, err
	}

	var payload bytes.Buffer
	writeUvarintBytes(&payload, key)
	writeUvarintBytes(&payload, meta)
	writeUvarintBytes(&payload, body)
	want := sha256.Sum256(payload.Bytes())
	if !bytes.Equal(want[:], trailer[:]) {
		return nil, false, cmn.New(cmn.KindCache, cmn.ReasonCacheIntegrityMismatch)
	}

	e, err := decodeMeta(meta)
	if err != nil {
		return nil, false, err
	}
	e.Key = string(key)
	e.Body = body
	e.IntegrityDigest = sha256.Sum256(body)
	return e, true, nil
}

func writeUvarintBytes(buf *bytes.Buffer, b []byte) {
	var lenbuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenbuf[:], uint64(len(b)))
	buf.Write(lenbuf[:n])
	buf.Write(b)
}

func readUvarintBytes(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encodeMeta serializes an Entry's non-body fields as a msgpack map, using
// msgp's low-level Writer directly rather than a generated Encodable (the
// journal's record shape is hand-rolled, not a msgp-generated struct).
func encodeMeta(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteMapHeader(13); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	fields := []struct {
		name string
		fn   func() error
	}{
		{"url", func() error { return w.WriteString(e.URL) }},
		{"method", func() error { return w.WriteString(e.Method) }},
		{"status", func() error { return w.WriteInt(e.Status) }},
		{"etag", func() error { return w.WriteString(e.ETag) }},
		{"last_modified", func() error { return w.WriteString(e.LastModified) }},
		{"response_time", func() error { return w.WriteTime(e.ResponseTime) }},
		{"request_time", func() error { return w.WriteTime(e.RequestTime) }},
		{"original_size", func() error { return w.WriteInt64(e.OriginalSize) }},
		{"compressed_size", func() error { return w.WriteInt64(e.CompressedSize) }},
		{"compressed", func() error { return w.WriteBool(e.Encoding.Compressed) }},
		{"codec", func() error { return w.WriteString(e.Encoding.CodecName) }},
		{"encrypted", func() error { return w.WriteBool(e.Encoding.Encrypted) }},
		{"vary", func() error { return writeStringArray(w, e.VaryHeaders) }},
	}
	for _, field := range fields {
		if err := w.WriteString(field.name); err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		if err := field.fn(); err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat).WithContext("field", field.name)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}

	// Response headers ride along as a second, self-contained map so
	// decodeMeta can reconstruct a *headers.Store verbatim.
	var hbuf bytes.Buffer
	hw := msgp.NewWriter(&hbuf)
	headerPairs := headerPairsOf(e.Headers)
	if err := hw.WriteArrayHeader(uint32(len(headerPairs) * 2)); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	for _, p := range headerPairs {
		if err := hw.WriteString(p[0]); err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		if err := hw.WriteString(p[1]); err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
	}
	if err := hw.Flush(); err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}

	var out bytes.Buffer
	writeUvarintBytes(&out, buf.Bytes())
	writeUvarintBytes(&out, hbuf.Bytes())
	return out.Bytes(), nil
}

func decodeMeta(meta []byte) (*Entry, error) {
	r := bufio.NewReader(bytes.NewReader(meta))
	mainBytes, err := readUvarintBytes(r)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecTruncated)
	}
	headerBytes, err := readUvarintBytes(r)
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecTruncated)
	}

	dc := msgp.NewReader(bytes.NewReader(mainBytes))
	n, err := dc.ReadMapHeader()
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	e := &Entry{}
	for i := uint32(0); i < n; i++ {
		name, err := dc.ReadString()
		if err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		switch name {
		case "url":
			e.URL, err = dc.ReadString()
		case "method":
			e.Method, err = dc.ReadString()
		case "status":
			e.Status, err = dc.ReadInt()
		case "etag":
			e.ETag, err = dc.ReadString()
		case "last_modified":
			e.LastModified, err = dc.ReadString()
		case "response_time":
			e.ResponseTime, err = dc.ReadTime()
		case "request_time":
			e.RequestTime, err = dc.ReadTime()
		case "original_size":
			e.OriginalSize, err = dc.ReadInt64()
		case "compressed_size":
			e.CompressedSize, err = dc.ReadInt64()
		case "compressed":
			e.Encoding.Compressed, err = dc.ReadBool()
		case "codec":
			e.Encoding.CodecName, err = dc.ReadString()
		case "encrypted":
			e.Encoding.Encrypted, err = dc.ReadBool()
		case "vary":
			e.VaryHeaders, err = readStringArray(dc)
		default:
			err = dc.Skip()
		}
		if err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat).WithContext("field", name)
		}
	}

	hc := msgp.NewReader(bytes.NewReader(headerBytes))
	count, err := hc.ReadArrayHeader()
	if err != nil {
		return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
	}
	hs := headers.New()
	for i := uint32(0); i < count; i += 2 {
		name, err := hc.ReadString()
		if err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		val, err := hc.ReadString()
		if err != nil {
			return nil, cmn.Wrap(err, cmn.KindCodec, cmn.ReasonCodecBadFormat)
		}
		hs.Append(name, val)
	}
	e.Headers = hs

	return e, nil
}

func writeStringArray(w *msgp.Writer, ss []string) error {
	if err := w.WriteArrayHeader(uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

func readStringArray(r *msgp.Reader) ([]string, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func headerPairsOf(h *headers.Store) [][2]string {
	if h == nil {
		return nil
	}
	var out [][2]string
	h.Range(func(name, value string) bool {
		out = append(out, [2]string{name, value})
		return true
	})
	return out
}
