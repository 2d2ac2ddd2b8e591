// Package headers implements the ordered, case-insensitive HTTP header
// multi-map shared by requests, responses, and the cache (spec.md §4.3).
package headers

import (
	"strconv"
	"strings"

	"github.com/coreweb/engine/cmn"
)

type pair struct {
	name  string // original case, as inserted
	value string
}

// Store is an ordered Vec<(name, value)> with ASCII-case-insensitive
// lookup. Duplicate names are permitted; retrieval order equals insertion
// order.
type Store struct {
	pairs []pair
}

// New returns an empty header store.
func New() *Store { return &Store{} }

// Append adds (name, value) without removing any existing entry with the
// same name.
func (s *Store) Append(name, value string) {
	s.pairs = append(s.pairs, pair{name: name, value: value})
}

// Set removes every prior entry named name, then appends (name, value).
func (s *Store) Set(name, value string) {
	s.Del(name)
	s.Append(name, value)
}

// Del removes every entry named name.
func (s *Store) Del(name string) {
	out := s.pairs[:0]
	for _, p := range s.pairs {
		if !strings.EqualFold(p.name, name) {
			out = append(out, p)
		}
	}
	s.pairs = out
}

// Get returns the first value stored under name, in insertion order.
func (s *Store) Get(name string) (string, bool) {
	for _, p := range s.pairs {
		if strings.EqualFold(p.name, name) {
			return p.value, true
		}
	}
	return "", false
}

// GetAll returns every value stored under name, in insertion order.
func (s *Store) GetAll(name string) []string {
	var out []string
	for _, p := range s.pairs {
		if strings.EqualFold(p.name, name) {
			out = append(out, p.value)
		}
	}
	return out
}

// Has reports whether any entry is stored under name.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of (name, value) pairs, duplicates included.
func (s *Store) Len() int { return len(s.pairs) }

// Range calls fn for every (name, value) pair in insertion order. Stops
// early if fn returns false.
func (s *Store) Range(fn func(name, value string) bool) {
	for _, p := range s.pairs {
		if !fn(p.name, p.value) {
			return
		}
	}
}

// Clone returns an independent deep copy.
func (s *Store) Clone() *Store {
	out := &Store{pairs: make([]pair, len(s.pairs))}
	copy(out.pairs, s.pairs)
	return out
}

// HasContentType reports whether the stored Content-Type header's MIME
// part (before any ';' parameter, trimmed) equals mime, case-insensitively.
func (s *Store) HasContentType(mime string) bool {
	ct, ok := s.Get("Content-Type")
	if !ok {
		return false
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.EqualFold(strings.TrimSpace(ct), mime)
}

// ContentLength parses the Content-Length header as a non-negative
// integer, or returns an InvalidInput error.
func (s *Store) ContentLength() (int64, error) {
	v, ok := s.Get("Content-Length")
	if !ok {
		return 0, cmn.New(cmn.KindInvalidInput, "content-length missing")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, cmn.Wrap(err, cmn.KindInvalidInput, "malformed content-length")
	}
	if n < 0 {
		return 0, cmn.New(cmn.KindInvalidInput, "malformed content-length")
	}
	return n, nil
}

// VaryKey builds the part of a cache fingerprint contributed by the
// request headers listed in vary, in the order vary names them
// (spec.md §3, §4.7.2). For each listed header the key gets its lower-cased
// name, '=', its first value (or the empty string if absent), and a \x00
// terminator.
func (s *Store) VaryKey(vary []string) string {
	if len(vary) == 0 {
		return ""
	}
	var b strings.Builder
	for _, name := range vary {
		v, _ := s.Get(name)
		b.WriteString(strings.ToLower(name))
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(0)
	}
	return b.String()
}
