package httpcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreweb/engine/headers"
)

func TestJournalAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.journal")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}

	h := headers.New()
	h.Set("Content-Type", "text/plain")
	h.Set("Cache-Control", "max-age=60")

	e := &Entry{
		Key:            "fp-1",
		URL:            "https://example.com/",
		Method:         "GET",
		Status:         200,
		Headers:        h,
		Body:           []byte("hello journal"),
		VaryHeaders:    []string{"Accept-Encoding"},
		ResponseTime:   time.Now().Truncate(time.Second),
		RequestTime:    time.Now().Truncate(time.Second),
		OriginalSize:   13,
		CompressedSize: 13,
	}
	if err := j.Append(e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen OpenJournal: %v", err)
	}
	entries, err := j2.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.URL != e.URL || got.Method != e.Method || string(got.Body) != string(e.Body) {
		t.Fatalf("round-tripped entry mismatch: %+v", got)
	}
	if ct, _ := got.Headers.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("expected Content-Type to survive, got %q", ct)
	}
	if len(got.VaryHeaders) != 1 || got.VaryHeaders[0] != "Accept-Encoding" {
		t.Fatalf("expected VaryHeaders to survive, got %v", got.VaryHeaders)
	}
}

func TestJournalTruncatesAtCorruptTailRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.journal")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	h := headers.New()
	good := &Entry{Key: "fp-good", URL: "https://example.com/good", Method: "GET", Headers: h, Body: []byte("ok")}
	if err := j.Append(good); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("reopen for corruption: %v", err)
	}
	if _, err := f.Write([]byte{0x01, 0x02, 0x03, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen OpenJournal: %v", err)
	}
	entries, err := j2.Load()
	if err != nil {
		t.Fatalf("Load should tolerate a corrupt tail, got error: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "fp-good" {
		t.Fatalf("expected only the valid leading record to survive, got %+v", entries)
	}
}
