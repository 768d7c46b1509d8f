// Package schedule implements the two scheduling algorithms: the simple
// ASAP list scheduler (Simple) and the modulo scheduler with stage-aware
// rename onto a rotating register file (Pipeline).
package schedule

import "github.com/wiggleman/vliwsched/internal/sched"

// scheduleASAP schedules a single basic block's instructions, in program
// order, using the ASAP list-scheduling rule shared by §4.3 step 1 and the
// BB0/BB2 passes of §4.4: each instruction issues at the earliest cycle not
// before prevBBEnd at which its class still has room in the bundle, after
// all of its dependencies (by producer_id, the first-iteration producer for
// inter-loop deps) have finished. It returns the finish cycle of the basic
// block — the maximum instruction finish cycle seen, or prevBBEnd if the
// range is empty.
func scheduleASAP(axis *sched.CycleAxis, insts []sched.Instruction, dt *sched.DependencyTable, finishedCycle []int, r sched.Range, prevBBEnd int) int {
	return scheduleASAPTracked(axis, insts, dt, finishedCycle, nil, r, prevBBEnd)
}

// scheduleASAPTracked is scheduleASAP plus an optional parallel slice that,
// when non-nil, records the *ScheduledInstruction placed for each index —
// the pipeline scheduler uses this to reach BB0/BB2 instructions again
// during stage-aware rename.
func scheduleASAPTracked(axis *sched.CycleAxis, insts []sched.Instruction, dt *sched.DependencyTable, finishedCycle []int, placed []*sched.ScheduledInstruction, r sched.Range, prevBBEnd int) int {
	bbEnd := prevBBEnd
	for i := r.Start; i < r.End; i++ {
		inst := insts[i]
		earliest := prevBBEnd
		for _, dep := range dt.Entries[i].AllDeps() {
			if dep.ProducerID == sched.NoProducer {
				continue
			}
			if f := finishedCycle[dep.ProducerID]; f > earliest {
				earliest = f
			}
		}
		if earliest < prevBBEnd {
			earliest = prevBBEnd
		}

		si := sched.FromInstruction(inst, i)
		for !axis.At(earliest).Insert(si, inst.Class) {
			earliest++
		}
		if placed != nil {
			placed[i] = si
		}

		finish := earliest + sched.Latency(inst.Opcode)
		finishedCycle[i] = finish
		if finish > bbEnd {
			bbEnd = finish
		}
	}
	return bbEnd
}
