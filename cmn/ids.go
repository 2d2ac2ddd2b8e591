// Package cmn provides common low-level types and utilities shared by every
// package in the engine: IDs, invariant assertions, and the error taxonomy.
package cmn

import (
	"math/rand"

	"github.com/teris-io/shortid"
	"go.uber.org/atomic"
)

// Alphabet for generating IDs, chosen so the first/last character fixups
// below (isAlpha) stay cheap; len(idABC) > 0x3f, see Tie().
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid  *shortid.Shortid
	rtie atomic.Int32
)

// InitIDs seeds the process-wide ID generator. Call once at startup.
func InitIDs(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, idABC, seed)
}

// NewID generates a short, human-readable, URL-safe ID for requests,
// connections, and cache-journal entries.
func NewID() string {
	id := sid.MustGenerate()
	var h, t string
	if !isAlpha(id[0]) {
		h = string(rune('A' + rand.Int()%26))
	}
	if c := id[len(id)-1]; c == '-' || c == '_' {
		t = string(rune('a' + rand.Int()%26))
	}
	return h + id + t
}

// IsValidID reports whether s looks like an ID minted by NewID.
func IsValidID(s string) bool {
	const minLen = 9
	return len(s) >= minLen && isAlpha(s[0])
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Tie produces a short, monotonically-varying tie-breaker string used to
// disambiguate same-millisecond filenames (e.g. journal tmp files).
func Tie() string {
	tie := rtie.Add(1)
	b0 := idABC[tie&0x3f]
	b1 := idABC[-tie&0x3f]
	b2 := idABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
