package schedule

import (
	"log"

	"github.com/wiggleman/vliwsched/internal/blocks"
	"github.com/wiggleman/vliwsched/internal/deps"
	"github.com/wiggleman/vliwsched/internal/sched"
)

// rotRegGen hands out rotating register bases, starting at 32 and stepping
// by numStage+1 per allocation, so that iteration/stage offsets from two
// different bases never collide.
type rotRegGen struct{ next, step int }

func (g *rotRegGen) Next() sched.Register {
	r := sched.Register{Kind: sched.KindGeneral, Idx: g.next, Rotating: true}
	g.next += g.step
	return r
}

// Pipeline is the modulo scheduler: II search over a circular reservation
// table, stage-aware rename onto a rotating register file, and the
// prolog/predicate setup a `loop.pip` needs (spec §4.4).
type Pipeline struct {
	Insts []sched.Instruction
	DT    *sched.DependencyTable
	Axis  sched.CycleAxis

	II            int
	NumStage      int
	BB0End        int
	BB1End        int
	BB2End        int
	PrologPadding int

	// CollapsedBody holds exactly II bundles once scheduling succeeds; a nil
	// slice means the program had no loop and Axis alone is the schedule
	// (identical to the simple schedule, per spec's end-to-end scenario 1).
	CollapsedBody []*sched.Bundle

	loopInst *sched.ScheduledInstruction
}

// NewPipeline decodes nothing itself — insts must already be decoded — and
// performs basic-block splitting, dependency analysis, II search, and the
// full stage-aware rename. maxII <= 0 means no configured ceiling beyond the
// body-length bound that spec §9 guarantees will always succeed.
func NewPipeline(insts []sched.Instruction, logger *log.Logger, maxII int) (*Pipeline, error) {
	bb0, bb1, bb2, err := blocks.Split(insts)
	if err != nil {
		return nil, err
	}
	dt := deps.Analyze(insts, bb0, bb1, bb2)

	p := &Pipeline{Insts: insts, DT: dt}
	if err := p.run(logger, maxII); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) run(logger *log.Logger, maxII int) error {
	dt := p.DT
	finishedCycle := make([]int, len(p.Insts))
	schedInst := make([]*sched.ScheduledInstruction, len(p.Insts))

	p.BB0End = scheduleASAPTracked(&p.Axis, p.Insts, dt, finishedCycle, schedInst, dt.BB0, 0)

	if dt.BB1.Len() == 0 {
		// No loop: identical to the simple schedule (spec §8 scenario 1).
		p.BB2End = scheduleASAPTracked(&p.Axis, p.Insts, dt, finishedCycle, schedInst, dt.BB2, p.BB0End)
		p.BB1End = p.BB0End
		return p.renameLinear()
	}

	body := sched.Range{Start: dt.BB1.Start, End: dt.BB1.End - 1}
	loopIdx := dt.BB1.End - 1

	ii0 := resourceBoundII(p.Insts, dt.BB1)
	bound := body.Len()
	if bound < 1 {
		bound = 1
	}

	issueCycle := make([]int, len(p.Insts))
	var ii, bodyEnd int
	for ii = ii0; ; ii++ {
		if maxII > 0 && ii > maxII {
			return &sched.SchedulingError{Reason: "II search exceeded configured ceiling"}
		}
		ok := false
		ok, bodyEnd = p.tryScheduleBody(dt, body, p.BB0End, ii, finishedCycle, issueCycle, schedInst)
		if ok {
			break
		}
		p.Axis.Truncate(p.BB0End)
		for i := body.Start; i < len(p.Insts); i++ {
			finishedCycle[i] = 0
			issueCycle[i] = 0
			schedInst[i] = nil
		}
		if ii > ii0+bound {
			return &sched.InvariantViolation{Detail: "II search exceeded the provably-safe body-length bound"}
		}
	}
	if logger != nil {
		logger.Printf("pipeline: chose II=%d after %d attempt(s)", ii, ii-ii0+1)
	}
	p.II = ii

	for (bodyEnd - p.BB0End) % ii != 0 {
		bodyEnd++
	}
	if bodyEnd == p.BB0End {
		// An empty body still needs one bundle to carry the loop instruction.
		bodyEnd = p.BB0End + ii
	}
	p.BB1End = bodyEnd

	origBB0End := p.BB0End
	loopInst := sched.FromInstruction(p.Insts[loopIdx], loopIdx)
	loopInst.Imm = sched.Imm64(int64(origBB0End))
	if !p.Axis.At(p.BB1End - 1).Insert(loopInst, sched.Branch) {
		return &sched.InvariantViolation{Detail: "loop.pip could not be placed in the last body bundle"}
	}
	p.loopInst = loopInst
	schedInst[loopIdx] = loopInst

	p.BB2End = scheduleASAPTracked(&p.Axis, p.Insts, dt, finishedCycle, schedInst, dt.BB2, p.BB1End)

	p.NumStage = (p.BB1End - p.BB0End) / ii
	for i := body.Start; i < body.End; i++ {
		stage := (issueCycle[i] - p.BB0End) / ii
		dt.Entries[i].Stage = &stage
	}

	if err := p.renameStageAware(body, dt.BB2, schedInst); err != nil {
		return err
	}

	if err := p.primeProlog(origBB0End); err != nil {
		return err
	}

	p.collapseBody()
	return nil
}

// resourceBoundII is II₀ = max over class c of ceil(count_c / units_c),
// counted over BB1 including the loop instruction.
func resourceBoundII(insts []sched.Instruction, bb1 sched.Range) int {
	units := map[sched.Class]int{sched.ALU: 2, sched.Mulu: 1, sched.Mem: 1, sched.Branch: 1}
	counts := map[sched.Class]int{}
	for i := bb1.Start; i < bb1.End; i++ {
		counts[insts[i].Class]++
	}
	ii0 := 1
	for class, unit := range units {
		n := counts[class]
		if n == 0 {
			continue
		}
		c := (n + unit - 1) / unit
		if c > ii0 {
			ii0 = c
		}
	}
	return ii0
}

// tryScheduleBody attempts to schedule the body at a fixed II, returning the
// block's finish cycle on success.
func (p *Pipeline) tryScheduleBody(dt *sched.DependencyTable, body sched.Range, bb0End, ii int, finishedCycle, issueCycle []int, schedInst []*sched.ScheduledInstruction) (bool, int) {
	rt := newReservedTable(ii, bb0End)
	bodyEnd := bb0End

	for i := body.Start; i < body.End; i++ {
		inst := p.Insts[i]

		earliest := bb0End
		for _, dep := range dt.Entries[i].AllDeps() {
			if dep.ProducerID == sched.NoProducer {
				continue
			}
			if f := finishedCycle[dep.ProducerID]; f > earliest {
				earliest = f
			}
		}

		failed := 0
		for rt.IsReserved(earliest, inst.Class) {
			earliest++
			failed++
			if failed == ii {
				return false, 0
			}
		}

		finish := earliest + sched.Latency(inst.Opcode)
		finishedCycle[i] = finish
		issueCycle[i] = earliest

		for j := body.Start; j <= i; j++ {
			for _, dep := range dt.Entries[j].InterLoop {
				if dep.ProducerIDInterloop != i {
					continue
				}
				if finish > ii+issueCycle[j] {
					return false, 0
				}
			}
		}

		rt.MarkReserved(earliest, inst.Class)
		si := sched.FromInstruction(inst, i)
		if !p.Axis.At(earliest).Insert(si, inst.Class) {
			return false, 0
		}
		schedInst[i] = si

		if finish > bodyEnd {
			bodyEnd = finish
		}
	}
	return true, bodyEnd
}

// renameLinear is the no-loop fallback: identical to Simple's renaming, so
// the pipelined output matches the simple output exactly.
func (p *Pipeline) renameLinear() error {
	s := &Simple{Insts: p.Insts, DT: p.DT, Axis: p.Axis, BB0End: p.BB0End, BB1End: p.BB1End, BB2End: p.BB2End}
	if err := s.rename(); err != nil {
		return err
	}
	p.Axis = s.Axis
	return nil
}

// setOperand replaces every occurrence of original in si's source operands
// with a fresh copy of replacement.
func setOperand(si *sched.ScheduledInstruction, original, replacement sched.Register) {
	if si.Rs1 != nil && *si.Rs1 == original {
		r := replacement
		si.Rs1 = &r
	}
	if si.Rs2 != nil && *si.Rs2 == original {
		r := replacement
		si.Rs2 = &r
	}
}

func setOperandNull(si *sched.ScheduledInstruction, original sched.Register) {
	if si.Rs1 != nil && *si.Rs1 == original {
		r := nullReg
		si.Rs1 = &r
	}
	if si.Rs2 != nil && *si.Rs2 == original {
		r := nullReg
		si.Rs2 = &r
	}
}

// renameStageAware implements spec §4.4's stage-aware renaming onto the
// rotating register file.
func (p *Pipeline) renameStageAware(body, bb2 sched.Range, schedInst []*sched.ScheduledInstruction) error {
	dt := p.DT

	// Rotating bases for every body instruction with a general destination.
	rot := &rotRegGen{next: 32, step: p.NumStage + 1}
	for i := body.Start; i < body.End; i++ {
		if dt.Entries[i].Dest != nil && dt.Entries[i].Dest.Kind == sched.KindGeneral {
			r := rot.Next()
			dt.Entries[i].RenamedDest = &r
		}
	}

	static := &freshRegGen{}
	loopInvariantStatic := func(producer int) (*sched.Register, error) {
		if dt.Entries[producer].RenamedDest == nil {
			r := static.Next()
			dt.Entries[producer].RenamedDest = &r
			if schedInst[producer] == nil {
				return nil, &sched.InvariantViolation{Detail: "loop-invariant producer was never scheduled"}
			}
			schedInst[producer].Rd = &r
		}
		return dt.Entries[producer].RenamedDest, nil
	}

	// Loop-invariant rewrite applies identically to BB1 and BB2 consumers.
	for _, i := range concatRanges(body, bb2) {
		for _, dep := range dt.Entries[i].LoopInvariant {
			reg, err := loopInvariantStatic(dep.ProducerID)
			if err != nil {
				return err
			}
			setOperand(schedInst[i], dep.ConsumerReg, *reg)
		}
	}

	// Local and inter-loop rewrites within BB1.
	for i := body.Start; i < body.End; i++ {
		entry := &dt.Entries[i]
		for _, dep := range entry.Local {
			producerBase := dt.Entries[dep.ProducerID].RenamedDest
			if producerBase == nil {
				return &sched.InvariantViolation{Detail: "local body producer missing a rotating base"}
			}
			reg := producerBase.Rotate(0, *dt.Entries[i].Stage-*dt.Entries[dep.ProducerID].Stage)
			setOperand(schedInst[i], dep.ConsumerReg, reg)
		}
		for _, dep := range entry.InterLoop {
			p1 := dep.ProducerIDInterloop
			producerBase := dt.Entries[p1].RenamedDest
			if producerBase == nil {
				return &sched.InvariantViolation{Detail: "inter-loop body producer missing a rotating base"}
			}
			stageP1 := *dt.Entries[p1].Stage
			reg := producerBase.Rotate(1, *dt.Entries[i].Stage-stageP1)
			setOperand(schedInst[i], dep.ConsumerReg, reg)

			if p0 := dep.ProducerID; p0 != sched.NoProducer && dt.Entries[p0].RenamedDest == nil {
				priming := producerBase.Rotate(1, -stageP1)
				dt.Entries[p0].RenamedDest = &priming
				if schedInst[p0] == nil {
					return &sched.InvariantViolation{Detail: "inter-loop first-iteration producer was never scheduled"}
				}
				schedInst[p0].Rd = &priming
			}
		}
	}

	// Post-loop rewrite: BB2 consumer, BB1 producer.
	for i := bb2.Start; i < bb2.End; i++ {
		for _, dep := range dt.Entries[i].PostLoop {
			producerBase := dt.Entries[dep.ProducerID].RenamedDest
			if producerBase == nil {
				return &sched.InvariantViolation{Detail: "post-loop producer missing a rotating base"}
			}
			reg := producerBase.Rotate(0, p.NumStage-1-*dt.Entries[dep.ProducerID].Stage)
			setOperand(schedInst[i], dep.ConsumerReg, reg)
		}
	}

	// BB0/BB2 local renaming with the fresh static allocator, skipping any
	// destination already claimed above.
	for _, r := range []sched.Range{dt.BB0, bb2} {
		for i := r.Start; i < r.End; i++ {
			if dt.Entries[i].Dest != nil && dt.Entries[i].Dest.Kind == sched.KindGeneral && dt.Entries[i].RenamedDest == nil {
				reg := static.Next()
				dt.Entries[i].RenamedDest = &reg
				schedInst[i].Rd = &reg
			}
		}
	}
	for i := dt.BB0.Start; i < dt.BB0.End; i++ {
		for _, dep := range dt.Entries[i].Local {
			reg := dt.Entries[dep.ProducerID].RenamedDest
			if reg == nil {
				setOperandNull(schedInst[i], dep.ConsumerReg)
				continue
			}
			setOperand(schedInst[i], dep.ConsumerReg, *reg)
		}
	}
	for i := bb2.Start; i < bb2.End; i++ {
		for _, dep := range dt.Entries[i].Local {
			reg := dt.Entries[dep.ProducerID].RenamedDest
			if reg == nil {
				setOperandNull(schedInst[i], dep.ConsumerReg)
				continue
			}
			setOperand(schedInst[i], dep.ConsumerReg, *reg)
		}
	}

	// Any operand with no recorded dependency at all is externally defined;
	// give it a fresh static register too, same as Simple's null cleanup.
	for _, r := range []sched.Range{dt.BB0, body, bb2} {
		for i := r.Start; i < r.End; i++ {
			si := schedInst[i]
			if si == nil {
				continue
			}
			if si.Rs1 != nil && !isResolved(p.Insts[i].Rs1, si.Rs1) {
				reg := static.Next()
				si.Rs1 = &reg
			}
			if si.Rs2 != nil && !isResolved(p.Insts[i].Rs2, si.Rs2) {
				reg := static.Next()
				si.Rs2 = &reg
			}
		}
	}

	return cleanupNullsPipeline(static, schedInst, dt.BB0, body, bb2)
}

// isResolved reports whether operand has already been rewritten away from
// the original decoded register (i.e. a dependency rule already fired for
// it), or is a non-general register that is never renamed.
func isResolved(orig *sched.Register, current *sched.Register) bool {
	if orig == nil || orig.Kind != sched.KindGeneral {
		return true
	}
	return *current != *orig
}

func cleanupNullsPipeline(gen *freshRegGen, schedInst []*sched.ScheduledInstruction, ranges ...sched.Range) error {
	for _, r := range ranges {
		for i := r.Start; i < r.End; i++ {
			inst := schedInst[i]
			if inst == nil {
				continue
			}
			if isNullReg(inst.Rs1) {
				reg := gen.Next()
				inst.Rs1 = &reg
			}
			if isNullReg(inst.Rs2) {
				reg := gen.Next()
				inst.Rs2 = &reg
			}
		}
	}
	return nil
}

func concatRanges(a, b sched.Range) []int {
	out := make([]int, 0, a.Len()+b.Len())
	for i := a.Start; i < a.End; i++ {
		out = append(out, i)
	}
	for i := b.Start; i < b.End; i++ {
		out = append(out, i)
	}
	return out
}

// primeProlog inserts `mov p32, true` and `mov EC, numStage-1` at the end of
// BB0, growing the prolog if no room remains (an empty prolog always gets a
// new bundle); the number of bundles it had to add is recorded in
// PrologPadding (spec §4.4's padding count added to the loop.pip immediate).
func (p *Pipeline) primeProlog(origBB0End int) error {
	cycle := origBB0End - 1
	bb0End := origBB0End
	if cycle < 0 {
		p.Axis.InsertEmptyAt(0)
		bb0End = 1
		p.BB1End++
		p.BB2End++
		cycle = 0
	}

	place := func(si *sched.ScheduledInstruction) {
		for !p.Axis.At(cycle).CanInsert(sched.ALU) {
			if cycle+1 < bb0End {
				cycle++
				continue
			}
			p.Axis.InsertEmptyAt(bb0End)
			bb0End++
			p.BB1End++
			p.BB2End++
			cycle = bb0End - 1
		}
		p.Axis.At(cycle).Insert(si, sched.ALU)
	}

	pred := sched.Predicate(32)
	place(&sched.ScheduledInstruction{ID: -1, Opcode: sched.OpMov, Rd: &pred, PredicateInit: true})

	ec := sched.EC()
	ecImm := int64(p.NumStage - 1)
	place(&sched.ScheduledInstruction{ID: -1, Opcode: sched.OpMov, Rd: &ec, Imm: &ecImm})

	p.PrologPadding = bb0End - origBB0End
	p.BB0End = bb0End
	return nil
}

// collapseBody overlays the padded body's II-congruent cycles onto exactly
// II final bundles (spec §4.4's body collapse).
func (p *Pipeline) collapseBody() {
	collapsed := make([]*sched.Bundle, p.II)
	for j := range collapsed {
		collapsed[j] = &sched.Bundle{}
	}
	for c := p.BB0End; c < p.BB1End; c++ {
		j := (c - p.BB0End) % p.II
		bundle := p.Axis.At(c)
		for k, inst := range bundle.Insts() {
			collapsed[j].Insert(inst, bundle.Classes()[k])
		}
	}
	for _, b := range collapsed {
		b.Sort()
	}
	p.CollapsedBody = collapsed
}

// Bundles returns the full rendered bundle sequence: BB0, the collapsed
// body (nothing, if there is no loop), then BB2.
func (p *Pipeline) Bundles() []*sched.Bundle {
	p.Axis.SortAll()
	var out []*sched.Bundle
	for c := 0; c < p.BB0End; c++ {
		out = append(out, p.Axis.At(c))
	}
	if p.CollapsedBody != nil {
		out = append(out, p.CollapsedBody...)
	}
	for c := p.BB1End; c < p.BB2End; c++ {
		out = append(out, p.Axis.At(c))
	}
	return out
}

// LoopImmediate returns the `loop.pip` target: the prolog length including
// any padding bundles primeProlog had to insert.
func (p *Pipeline) LoopImmediate() int64 {
	if p.loopInst == nil || p.loopInst.Imm == nil {
		return int64(p.BB0End)
	}
	return *p.loopInst.Imm + int64(p.PrologPadding)
}
