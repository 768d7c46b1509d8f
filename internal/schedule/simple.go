package schedule

import (
	"log"

	"github.com/wiggleman/vliwsched/internal/blocks"
	"github.com/wiggleman/vliwsched/internal/deps"
	"github.com/wiggleman/vliwsched/internal/sched"
)

// nullReg marks a source operand whose producer has not yet been resolved
// to a renamed register; Simple.cleanupNulls (Step 2.4) replaces every
// occurrence with a fresh register.
var nullReg = sched.Register{Kind: sched.KindGeneral, Idx: -1}

func isNullReg(r *sched.Register) bool {
	return r != nil && r.Kind == sched.KindGeneral && r.Idx == -1
}

// freshRegGen hands out fresh general registers, starting at 0. Counters
// are per-scheduler state, never global — two schedulers running on the
// same program must not share a renaming.
type freshRegGen struct{ next int }

func (g *freshRegGen) Next() sched.Register {
	r := sched.General(g.next)
	g.next++
	return r
}

// Simple is the ASAP list scheduler with inter-loop bundle-insertion
// fixups and linear SSA renaming (spec §4.3).
type Simple struct {
	Insts []sched.Instruction
	DT    *sched.DependencyTable
	Axis  sched.CycleAxis

	BB0End int
	BB1End int
	BB2End int

	regGen *freshRegGen

	// noProducerFixup holds, for an inter-loop Dep with no BB0 first-
	// iteration producer (no BB0 instruction writes the register, e.g. an
	// empty prolog as in spec §8 scenario 3), the one
	// fresh register every consumer occurrence of that Dep is renamed to.
	// fixupInterLoop's mov writes into this same register, since it is
	// both what the body reads on entry and what carries the recurrence.
	noProducerFixup map[sched.Dep]sched.Register
}

// NewSimple decodes nothing itself — insts must already be decoded — but
// performs basic-block splitting, dependency analysis, and the full
// schedule/rename pipeline.
func NewSimple(insts []sched.Instruction, logger *log.Logger) (*Simple, error) {
	bb0, bb1, bb2, err := blocks.Split(insts)
	if err != nil {
		return nil, err
	}
	dt := deps.Analyze(insts, bb0, bb1, bb2)

	s := &Simple{Insts: insts, DT: dt}
	if err := s.run(logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simple) run(logger *log.Logger) error {
	dt := s.DT
	finishedCycle := make([]int, len(s.Insts))

	s.BB0End = scheduleASAP(&s.Axis, s.Insts, dt, finishedCycle, dt.BB0, 0)

	hasLoop := dt.BB1.Len() > 0
	if hasLoop {
		body := sched.Range{Start: dt.BB1.Start, End: dt.BB1.End - 1}
		s.BB1End = scheduleASAP(&s.Axis, s.Insts, dt, finishedCycle, body, s.BB0End)
	} else {
		s.BB1End = s.BB0End
	}
	s.BB2End = scheduleASAP(&s.Axis, s.Insts, dt, finishedCycle, dt.BB2, s.BB1End)

	if !hasLoop {
		return s.rename()
	}

	// Step 1.2: delay the loop instruction so Eq. 2 holds for every
	// inter-loop pair: finished(producer) <= II + issue(consumer).
	ii := s.BB1End - s.BB0End
	maxDiff := 0
	for cycle := s.BB0End; cycle < s.BB1End; cycle++ {
		for _, inst := range s.Axis.At(cycle).Insts() {
			for _, dep := range dt.Entries[inst.ID].InterLoop {
				spFinish := finishedCycle[dep.ProducerIDInterloop]
				if diff := spFinish - (ii + cycle); diff > maxDiff {
					maxDiff = diff
				}
			}
		}
	}
	if logger != nil && maxDiff > 0 {
		logger.Printf("simple: delaying loop by %d cycle(s) to satisfy recurrence bound", maxDiff)
	}
	for i := 0; i < maxDiff; i++ {
		s.Axis.InsertEmptyAt(s.BB1End)
		s.BB1End++
		s.BB2End++
	}

	if err := s.rename(); err != nil {
		return err
	}
	return s.fixupInterLoop(finishedCycle)
}

// rename performs the two-pass linear SSA renaming of Step 2.1/2.2 and the
// null-register cleanup of Step 2.4 (fixupInterLoop runs between 2.2 and
// 2.4 when there is a loop).
func (s *Simple) rename() error {
	dt := s.DT
	s.Axis.SortAll()

	gen := &freshRegGen{}
	s.regGen = gen
	for _, bundle := range s.Axis.All() {
		for _, inst := range bundle.Insts() {
			if inst.Rd != nil && inst.Rd.Kind == sched.KindGeneral {
				r := gen.Next()
				inst.Rd = &r
				if inst.ID >= 0 {
					dt.Entries[inst.ID].RenamedDest = &r
				}
			}
		}
	}

	// An inter-loop Dep with no BB0 producer (ProducerID == NoProducer but
	// ProducerIDInterloop does name a real BB1 producer) still needs every
	// consumer occurrence to agree on one register, so the fixup mov below
	// has somewhere consistent to write the carried value.
	noProducer := make(map[sched.Dep]sched.Register)
	for i := dt.BB1.Start; i < dt.BB1.End; i++ {
		for _, dep := range dt.Entries[i].InterLoop {
			if dep.ProducerID != sched.NoProducer {
				continue
			}
			if _, ok := noProducer[dep]; !ok {
				noProducer[dep] = gen.Next()
			}
		}
	}
	s.noProducerFixup = noProducer

	for _, bundle := range s.Axis.All() {
		for _, inst := range bundle.Insts() {
			if inst.ID < 0 {
				continue
			}
			entry := &dt.Entries[inst.ID]
			allDeps := entry.AllDeps()
			if inst.Rs1 != nil {
				inst.Rs1 = resolveOperand(dt, allDeps, *inst.Rs1, noProducer)
			}
			if inst.Rs2 != nil {
				inst.Rs2 = resolveOperand(dt, allDeps, *inst.Rs2, noProducer)
			}
		}
	}

	if s.DT.BB1.Len() == 0 {
		return s.cleanupNulls()
	}
	return nil
}

func resolveOperand(dt *sched.DependencyTable, allDeps []sched.Dep, operand sched.Register, noProducer map[sched.Dep]sched.Register) *sched.Register {
	for _, dep := range allDeps {
		if dep.ConsumerReg != operand {
			continue
		}
		if dep.ProducerID == sched.NoProducer {
			if dep.ProducerIDInterloop != sched.NoProducer {
				if r, ok := noProducer[dep]; ok {
					reg := r
					return &reg
				}
			}
			r := nullReg
			return &r
		}
		return dt.Entries[dep.ProducerID].RenamedDest
	}
	r := nullReg
	return &r
}

// fixupInterLoop implements Step 2.3: for each distinct inter-loop Dep,
// insert a mov carrying this iteration's value into next iteration's
// register, then place the loop instruction.
func (s *Simple) fixupInterLoop(finishedCycle []int) error {
	dt := s.DT
	bb1 := dt.BB1

	seen := make(map[sched.Dep]struct{})
	var distinct []sched.Dep
	for i := bb1.Start; i < bb1.End; i++ {
		for _, dep := range dt.Entries[i].InterLoop {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				distinct = append(distinct, dep)
			}
		}
	}

	oldBB1End := s.BB1End
	for _, dep := range distinct {
		var rd *sched.Register
		if dep.ProducerID == sched.NoProducer {
			// No BB0 writer of the register (e.g. an empty prolog, spec §8
			// scenario 3): there is no BB0 value to
			// carry forward, so the consumer occurrences were already
			// renamed onto the shared fallback register computed in
			// rename(); the fixup mov just writes this iteration's value
			// there so the next pass through the body reads it.
			reg, ok := s.noProducerFixup[dep]
			if !ok {
				return &sched.InvariantViolation{Detail: "inter-loop dependency has no first-iteration producer and no fallback register"}
			}
			rd = &reg
		} else {
			rd = dt.Entries[dep.ProducerID].RenamedDest
		}
		rs1 := dt.Entries[dep.ProducerIDInterloop].RenamedDest
		if rd == nil || rs1 == nil {
			return &sched.InvariantViolation{Detail: "inter-loop fixup producer missing renamed destination"}
		}
		moveInst := &sched.ScheduledInstruction{ID: -1, Opcode: sched.OpMov, Rd: rd, Rs1: rs1}

		prodFinish := finishedCycle[dep.ProducerIDInterloop]
		cycle := oldBB1End - 1
		for cycle < prodFinish || !s.Axis.At(cycle).CanInsert(sched.ALU) {
			cycle++
			if cycle >= s.BB1End {
				s.Axis.InsertEmptyAt(cycle)
				s.BB1End++
				s.BB2End++
			}
		}
		s.Axis.At(cycle).Insert(moveInst, sched.ALU)
	}

	loopIdx := bb1.End - 1
	loopInst := sched.FromInstruction(s.Insts[loopIdx], loopIdx)
	bb0End := int64(s.BB0End)
	loopInst.Imm = &bb0End
	if !s.Axis.At(s.BB1End - 1).Insert(loopInst, sched.Branch) {
		return &sched.InvariantViolation{Detail: "loop instruction could not be placed in the last body bundle"}
	}

	return s.cleanupNulls()
}

func (s *Simple) cleanupNulls() error {
	// Reuses the same counter as rd-renaming, so fresh operand registers
	// never collide with a renamed destination.
	gen := s.regGen
	for _, bundle := range s.Axis.All() {
		for _, inst := range bundle.Insts() {
			if isNullReg(inst.Rs1) {
				r := gen.Next()
				inst.Rs1 = &r
			}
			if isNullReg(inst.Rs2) {
				r := gen.Next()
				inst.Rs2 = &r
			}
		}
	}
	return nil
}
