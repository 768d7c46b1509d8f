package sched

// NoProducer is the sentinel used in place of a producer instruction ID
// when a dependency has no producer in the searched range.
const NoProducer = -1

// Dep is one dependency: the consumer's source-register operand, the
// producer's instruction ID, and — for inter-loop dependencies only — the
// BB1 producer ID alongside the BB0 first-iteration producer in ProducerID.
//
// Field order mirrors the original implementation's Dep tuple
// (consumer_operand, producer_isnt, producer_inst_interloop), which is the
// ordering the rest of the pipeline (Eq. 2 checks, rename fixups) assumes.
type Dep struct {
	ConsumerReg         Register
	ProducerID          int
	ProducerIDInterloop int
}

// Range is a half-open instruction index range [Start, End).
type Range struct {
	Start, End int
}

// Len reports the number of instructions in the range.
func (r Range) Len() int { return r.End - r.Start }

// DependencyTableEntry is the per-instruction record produced by the
// DependencyAnalyzer: opcode, destination, the four disjoint dependency
// lists, and the two fields later stages fill in (Stage for the pipelined
// schedule, RenamedDest by whichever renamer runs).
type DependencyTableEntry struct {
	ID     int
	Opcode Opcode
	Dest   *Register

	Local         []Dep
	InterLoop     []Dep
	LoopInvariant []Dep
	PostLoop      []Dep

	// Stage is populated only by the pipelined scheduler.
	Stage *int

	// RenamedDest is filled in by the renamer; must stay nil until then.
	RenamedDest *Register
}

// AllDeps returns the four dependency lists concatenated, in the order the
// schedulers scan them for the earliest-issue computation.
func (e *DependencyTableEntry) AllDeps() []Dep {
	out := make([]Dep, 0, len(e.Local)+len(e.InterLoop)+len(e.LoopInvariant)+len(e.PostLoop))
	out = append(out, e.Local...)
	out = append(out, e.InterLoop...)
	out = append(out, e.LoopInvariant...)
	out = append(out, e.PostLoop...)
	return out
}

// DependencyTable is the full, immutable-after-analysis structural view
// (BB ranges + per-instruction dependency entries). Stage/RenamedDest are
// the only fields a scheduler is allowed to mutate.
type DependencyTable struct {
	BB0, BB1, BB2 Range
	Entries       []DependencyTableEntry
}
