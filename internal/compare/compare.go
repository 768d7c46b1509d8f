// Package compare implements the reference-schedule comparator: per-bundle,
// per-slot diffing with whitespace/case normalization and ALU-slot-swap
// equivalence, grounded on original_source's compare.py.
package compare

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	slotALU0 = iota
	slotALU1
	slotMulu
	slotMem
	slotBranch
)

var slotNames = [5]string{"ALU0", "ALU1", "Mult", "Mem", "Branch"}

var whitespace = regexp.MustCompile(`\s+`)

// rawInst strips whitespace and lowercases an instruction string so that
// formatting differences (spacing, case) never register as a mismatch.
func rawInst(inst string) string {
	return strings.ToLower(whitespace.ReplaceAllString(inst, ""))
}

func sameInst(a, b string) bool {
	return rawInst(a) == rawInst(b)
}

func swapALUs(bundle [5]string) [5]string {
	bundle[slotALU0], bundle[slotALU1] = bundle[slotALU1], bundle[slotALU0]
	return bundle
}

// Mismatch describes a single bundle/slot that failed to match.
type Mismatch struct {
	Bundle int
	Slot   string
	Got    string
	Want   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("bundle %d, slot %s: %q != %q", m.Bundle, m.Slot, m.Got, m.Want)
}

// Report is the result of comparing a produced schedule against a reference.
type Report struct {
	Passed     bool
	Mismatches []Mismatch
}

func bundlesEqual(got, want [5]string) (Mismatch, bool) {
	for slot := range got {
		if !sameInst(got[slot], want[slot]) {
			return Mismatch{Slot: slotNames[slot], Got: got[slot], Want: want[slot]}, false
		}
	}
	return Mismatch{}, true
}

// Compare reports per-bundle, per-slot mismatches between a produced
// schedule and a reference one. A bundle whose two ALU slots are swapped
// relative to the reference is treated as equivalent, mirroring
// compare.py's swapALUs fallback.
func Compare(got, want [][5]string) Report {
	if len(got) != len(want) {
		n := len(got)
		if len(want) > n {
			n = len(want)
		}
		return Report{Mismatches: []Mismatch{{
			Bundle: n - 1,
			Slot:   "(length)",
			Got:    fmt.Sprintf("%d bundles", len(got)),
			Want:   fmt.Sprintf("%d bundles", len(want)),
		}}}
	}

	var mismatches []Mismatch
	for i := range got {
		if _, ok := bundlesEqual(got[i], want[i]); ok {
			continue
		}
		swapped := swapALUs(got[i])
		if mismatch, ok := bundlesEqual(swapped, want[i]); !ok {
			mismatch.Bundle = i
			mismatches = append(mismatches, mismatch)
		}
	}
	return Report{Passed: len(mismatches) == 0, Mismatches: mismatches}
}
