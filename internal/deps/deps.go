// Package deps implements the four-category dependency analysis: for each
// instruction and each of its source operands, at most one dependency is
// recorded, assigned to exactly one of local / inter-loop / loop-invariant /
// post-loop.
package deps

import "github.com/wiggleman/vliwsched/internal/sched"

// sameReg compares the (kind, idx) identity of two registers, ignoring any
// rotating offsets — dependency analysis runs before renaming, so no
// register is rotating yet.
func sameReg(a, b sched.Register) bool {
	return a.Kind == b.Kind && a.Idx == b.Idx
}

// lastWriter returns the highest index in [start, end) whose Rd matches reg,
// or sched.NoProducer if none does.
func lastWriter(insts []sched.Instruction, reg sched.Register, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if insts[i].Rd != nil && sameReg(*insts[i].Rd, reg) {
			return i
		}
	}
	return sched.NoProducer
}

// Analyze builds the DependencyTable for a decoded program already split
// into bb0/bb1/bb2 by blocks.Split.
func Analyze(insts []sched.Instruction, bb0, bb1, bb2 sched.Range) *sched.DependencyTable {
	entries := make([]sched.DependencyTableEntry, len(insts))
	for i, inst := range insts {
		entries[i] = sched.DependencyTableEntry{
			ID:     i,
			Opcode: inst.Opcode,
			Dest:   inst.Rd,
		}
	}

	for i := bb0.Start; i < bb0.End; i++ {
		analyzeBB0(insts, entries, i)
	}
	for i := bb1.Start; i < bb1.End; i++ {
		analyzeBB1(insts, entries, i, bb0, bb1, bb2)
	}
	for i := bb2.Start; i < bb2.End; i++ {
		analyzeBB2(insts, entries, i, bb0, bb1, bb2)
	}

	return &sched.DependencyTable{BB0: bb0, BB1: bb1, BB2: bb2, Entries: entries}
}

// operands returns the distinct non-nil source registers of an instruction
// (rs1, rs2), collapsing a duplicate rs1==rs2 into a single operand.
func operands(inst sched.Instruction) []sched.Register {
	var out []sched.Register
	if inst.Rs1 != nil {
		out = append(out, *inst.Rs1)
	}
	if inst.Rs2 != nil && (inst.Rs1 == nil || !sameReg(*inst.Rs1, *inst.Rs2)) {
		out = append(out, *inst.Rs2)
	}
	return out
}

func analyzeBB0(insts []sched.Instruction, entries []sched.DependencyTableEntry, i int) {
	for _, r := range operands(insts[i]) {
		if p := lastWriter(insts, r, 0, i); p != sched.NoProducer {
			entries[i].Local = append(entries[i].Local, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
		}
	}
}

func analyzeBB1(insts []sched.Instruction, entries []sched.DependencyTableEntry, i int, bb0, bb1, bb2 sched.Range) {
	for _, r := range operands(insts[i]) {
		if p := lastWriter(insts, r, bb1.Start, i); p != sched.NoProducer {
			entries[i].Local = append(entries[i].Local, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
			continue
		}
		if p := lastWriter(insts, r, i, bb2.Start); p != sched.NoProducer {
			bb0Producer := lastWriter(insts, r, bb0.Start, bb0.End)
			entries[i].InterLoop = append(entries[i].InterLoop, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          bb0Producer,
				ProducerIDInterloop: p,
			})
			continue
		}
		if p := lastWriter(insts, r, bb0.Start, bb0.End); p != sched.NoProducer {
			entries[i].LoopInvariant = append(entries[i].LoopInvariant, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
		}
	}
}

func analyzeBB2(insts []sched.Instruction, entries []sched.DependencyTableEntry, i int, bb0, bb1, bb2 sched.Range) {
	for _, r := range operands(insts[i]) {
		if p := lastWriter(insts, r, bb2.Start, i); p != sched.NoProducer {
			entries[i].Local = append(entries[i].Local, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
			continue
		}
		if p := lastWriter(insts, r, bb1.Start, bb1.End); p != sched.NoProducer {
			entries[i].PostLoop = append(entries[i].PostLoop, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
			continue
		}
		if p := lastWriter(insts, r, bb0.Start, bb0.End); p != sched.NoProducer {
			entries[i].LoopInvariant = append(entries[i].LoopInvariant, sched.Dep{
				ConsumerReg:         r,
				ProducerID:          p,
				ProducerIDInterloop: sched.NoProducer,
			})
		}
	}
}
