// Package blocks partitions a decoded instruction stream into the prolog,
// body, and epilog basic blocks around the program's single counted loop.
package blocks

import (
	"github.com/wiggleman/vliwsched/internal/sched"
)

// Split locates the program's loop instruction and returns the three
// half-open basic-block ranges BB0 = [0,T), BB1 = [T, L+1), BB2 = [L+1, N),
// where L is the loop instruction's index and T its immediate. If no loop
// instruction is present, BB0 = [0, N) and BB1/BB2 are empty.
//
// The last instruction of BB1 is always the loop instruction — callers may
// rely on this invariant.
func Split(insts []sched.Instruction) (bb0, bb1, bb2 sched.Range, err error) {
	loopIdx := -1
	for i, inst := range insts {
		if inst.Opcode == sched.OpLoop {
			if loopIdx != -1 {
				return bb0, bb1, bb2, &sched.MalformedProgramError{
					Index:  i,
					Reason: "multiple loop instructions",
				}
			}
			loopIdx = i
		}
	}

	n := len(insts)
	if loopIdx == -1 {
		return sched.Range{Start: 0, End: n}, sched.Range{}, sched.Range{}, nil
	}

	t := int(*insts[loopIdx].Imm)
	if t > loopIdx || t < 0 {
		return bb0, bb1, bb2, &sched.MalformedProgramError{
			Index:  loopIdx,
			Reason: "loop immediate out of range",
		}
	}

	bb0 = sched.Range{Start: 0, End: t}
	bb1 = sched.Range{Start: t, End: loopIdx + 1}
	bb2 = sched.Range{Start: loopIdx + 1, End: n}
	return bb0, bb1, bb2, nil
}
