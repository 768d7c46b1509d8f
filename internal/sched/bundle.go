package sched

import "sort"

// Bundle is a fixed-capacity container for one cycle's worth of issued
// instructions: at most two ALU-class instructions and at most one of each
// other class. Empty slots are materialized as "nop" only at emission time.
type Bundle struct {
	insts   []*ScheduledInstruction
	classes []Class
}

// CanInsert reports whether class still has room in the bundle.
func (b *Bundle) CanInsert(class Class) bool {
	if class == ALU {
		return b.countALU() < 2
	}
	for _, c := range b.classes {
		if c == class {
			return false
		}
	}
	return true
}

// Insert tries to place inst into the bundle under class. It returns false,
// leaving the bundle unchanged, if the slot is already taken.
func (b *Bundle) Insert(inst *ScheduledInstruction, class Class) bool {
	if !b.CanInsert(class) {
		return false
	}
	b.insts = append(b.insts, inst)
	b.classes = append(b.classes, class)
	return true
}

func (b *Bundle) countALU() int {
	n := 0
	for _, c := range b.classes {
		if c == ALU {
			n++
		}
	}
	return n
}

// Insts returns the instructions currently packed into the bundle, in
// whatever order they were inserted (or canonical order, after Sort).
func (b *Bundle) Insts() []*ScheduledInstruction { return b.insts }

// Classes returns the per-instruction class, parallel to Insts().
func (b *Bundle) Classes() []Class { return b.classes }

// classPriority orders the canonical slot layout: ALU, ALU, Mulu, Mem, Branch.
var classPriority = map[Class]int{ALU: 0, Mulu: 1, Mem: 2, Branch: 3}

// Sort stably reorders the bundle's instructions into canonical slot order.
// It must be called before emission.
func (b *Bundle) Sort() {
	if len(b.insts) <= 1 {
		return
	}
	idx := make([]int, len(b.insts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return classPriority[b.classes[idx[i]]] < classPriority[b.classes[idx[j]]]
	})
	insts := make([]*ScheduledInstruction, len(b.insts))
	classes := make([]Class, len(b.classes))
	for newPos, oldPos := range idx {
		insts[newPos] = b.insts[oldPos]
		classes[newPos] = b.classes[oldPos]
	}
	b.insts, b.classes = insts, classes
}

// Slots returns the bundle's five canonical slots (ALU0, ALU1, Mulu, Mem,
// Branch); a slot not occupied by this bundle is nil. Sort must be called
// first.
func (b *Bundle) Slots() [5]*ScheduledInstruction {
	var out [5]*ScheduledInstruction
	format := [5]Class{ALU, ALU, Mulu, Mem, Branch}
	i := 0
	for slot, want := range format {
		if i < len(b.classes) && b.classes[i] == want {
			out[slot] = b.insts[i]
			i++
		}
	}
	return out
}

// CycleAxis is an auto-extending ordered sequence of Bundles indexed by
// cycle: reading or writing at an index beyond the current length
// implicitly appends empty Bundles up to that index, mirroring the
// AutoExtendList behavior the schedulers rely on.
type CycleAxis struct {
	bundles []*Bundle
}

func (a *CycleAxis) extend(n int) {
	for len(a.bundles) <= n {
		a.bundles = append(a.bundles, &Bundle{})
	}
}

// At returns the bundle at cycle i, extending the axis if necessary.
func (a *CycleAxis) At(i int) *Bundle {
	a.extend(i)
	return a.bundles[i]
}

// Len returns the current length of the axis.
func (a *CycleAxis) Len() int { return len(a.bundles) }

// Truncate shrinks the axis to length n, discarding bundles beyond it.
func (a *CycleAxis) Truncate(n int) {
	if n < len(a.bundles) {
		a.bundles = a.bundles[:n]
	}
}

// InsertEmptyAt inserts an empty Bundle at index i, shifting everything
// from i onward one cycle later.
func (a *CycleAxis) InsertEmptyAt(i int) {
	a.extend(i)
	a.bundles = append(a.bundles, nil)
	copy(a.bundles[i+1:], a.bundles[i:])
	a.bundles[i] = &Bundle{}
}

// All returns the full bundle slice in cycle order. The caller must not
// retain it across further mutation of the axis.
func (a *CycleAxis) All() []*Bundle { return a.bundles }

// SortAll calls Sort on every bundle in the axis.
func (a *CycleAxis) SortAll() {
	for _, b := range a.bundles {
		b.Sort()
	}
}
