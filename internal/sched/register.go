// Package sched holds the data model shared by every stage of the VLIW
// scheduler: registers, instructions, bundles, and the auto-extending cycle
// axis the schedulers write into.
package sched

import "fmt"

// RegKind identifies which register file a Register names.
type RegKind int

const (
	KindGeneral RegKind = iota
	KindPredicate
	KindLC
	KindEC
)

func (k RegKind) String() string {
	switch k {
	case KindGeneral:
		return "GENERAL"
	case KindPredicate:
		return "PREDICATE"
	case KindLC:
		return "LC"
	case KindEC:
		return "EC"
	default:
		return "UNKNOWN"
	}
}

// Register is a tagged (kind, index) pair. LC and EC carry no index. A
// rotating register additionally carries iterOffset/stageOffset; its
// displayed index is idx+iterOffset+stageOffset. Resolution only ever
// happens at render time — the offsets never mutate Idx.
type Register struct {
	Kind        RegKind
	Idx         int
	Rotating    bool
	IterOffset  int
	StageOffset int
}

// General builds a non-rotating general register.
func General(idx int) Register { return Register{Kind: KindGeneral, Idx: idx} }

// Predicate builds a non-rotating predicate register.
func Predicate(idx int) Register { return Register{Kind: KindPredicate, Idx: idx} }

// LC is the loop-count register; it carries no index.
func LC() Register { return Register{Kind: KindLC} }

// EC is the epilog-count register; it carries no index.
func EC() Register { return Register{Kind: KindEC} }

// Rotate returns a copy of r with the rotating flag set and the given
// offsets applied on top of whatever offsets r already carries.
func (r Register) Rotate(iterOffset, stageOffset int) Register {
	r.Rotating = true
	r.IterOffset += iterOffset
	r.StageOffset += stageOffset
	return r
}

// Resolved returns the displayed index after applying the rotating offsets.
// For non-rotating registers this is just Idx.
func (r Register) Resolved() int {
	return r.Idx + r.IterOffset + r.StageOffset
}

// String renders the register the way the decoder/emitter textual forms
// expect: xN, pN, LC, or EC.
func (r Register) String() string {
	switch r.Kind {
	case KindGeneral:
		return fmt.Sprintf("x%d", r.Resolved())
	case KindPredicate:
		return fmt.Sprintf("p%d", r.Resolved())
	case KindLC:
		return "LC"
	case KindEC:
		return "EC"
	default:
		return "?"
	}
}
