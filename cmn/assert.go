package cmn

import (
	"fmt"
)

// Assert panics if cond is false. Reserved for internal invariants that
// cannot be violated without a programming bug (see spec.md §9,
// "Exceptions / panics for control flow"); every component boundary instead
// returns (T, error).
func Assert(cond bool, a ...interface{}) {
	if !cond {
		panic(panicMsg(a...))
	}
}

// Assertf is Assert with a format string.
func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		panic(panicMsg(fmt.Sprintf(f, a...)))
	}
}

// AssertNoErr panics on a non-nil error. Use only where err can only be
// non-nil due to a programming bug (e.g. a hardcoded regexp failing to
// compile), never for anything originating outside the process.
func AssertNoErr(err error) {
	if err != nil {
		panic(panicMsg(err))
	}
}

func panicMsg(a ...interface{}) string {
	msg := "internal invariant violated"
	if len(a) > 0 {
		msg += ": " + fmt.Sprint(a...)
	}
	return msg
}
