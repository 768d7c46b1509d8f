package deps

import (
	"testing"

	"github.com/wiggleman/vliwsched/internal/sched"
)

func reg(idx int) *sched.Register {
	r := sched.General(idx)
	return &r
}

func imm(v int64) *int64 { return &v }

func TestAnalyzeLocalBB0(t *testing.T) {
	insts := []sched.Instruction{
		{Opcode: sched.OpAddi, Rd: reg(1), Rs1: reg(0), Imm: imm(1)},
		{Opcode: sched.OpAddi, Rd: reg(2), Rs1: reg(1), Imm: imm(1)},
	}
	bb0 := sched.Range{Start: 0, End: 2}
	dt := Analyze(insts, bb0, sched.Range{}, sched.Range{})

	if len(dt.Entries[1].Local) != 1 {
		t.Fatalf("expected 1 local dep, got %d", len(dt.Entries[1].Local))
	}
	if dt.Entries[1].Local[0].ProducerID != 0 {
		t.Errorf("expected producer 0, got %d", dt.Entries[1].Local[0].ProducerID)
	}
}

func TestAnalyzeInterLoopAndLoopInvariant(t *testing.T) {
	// bb0: x1 = 0 (invariant source for the body's addi)
	// bb1: x2 = x2 + x1  (self inter-loop recurrence); x2 also loop-invariant-sourced via x1
	//      loop 1
	insts := []sched.Instruction{
		{Opcode: sched.OpAddi, Rd: reg(1), Rs1: reg(0), Imm: imm(0)}, // 0: bb0
		{Opcode: sched.OpAdd, Rd: reg(2), Rs1: reg(2), Rs2: reg(1)},  // 1: bb1 body
		{Opcode: sched.OpLoop, Imm: imm(1)},                         // 2: bb1 loop
	}
	bb0 := sched.Range{Start: 0, End: 1}
	bb1 := sched.Range{Start: 1, End: 3}
	bb2 := sched.Range{Start: 3, End: 3}
	dt := Analyze(insts, bb0, bb1, bb2)

	entry := dt.Entries[1]
	if len(entry.InterLoop) != 1 {
		t.Fatalf("expected 1 inter-loop dep (self recurrence on x2), got %d: %+v", len(entry.InterLoop), entry)
	}
	if entry.InterLoop[0].ProducerIDInterloop != 1 {
		t.Errorf("expected self-producer 1, got %d", entry.InterLoop[0].ProducerIDInterloop)
	}
	if entry.InterLoop[0].ProducerID != sched.NoProducer {
		t.Errorf("expected no first-iteration producer for x2, got %d", entry.InterLoop[0].ProducerID)
	}

	if len(entry.LoopInvariant) != 1 {
		t.Fatalf("expected 1 loop-invariant dep (x1), got %d", len(entry.LoopInvariant))
	}
	if entry.LoopInvariant[0].ProducerID != 0 {
		t.Errorf("expected loop-invariant producer 0, got %d", entry.LoopInvariant[0].ProducerID)
	}
}

func TestAnalyzePostLoop(t *testing.T) {
	insts := []sched.Instruction{
		{Opcode: sched.OpAddi, Rd: reg(2), Rs1: reg(2), Imm: imm(1)}, // 0: bb1 body
		{Opcode: sched.OpLoop, Imm: imm(0)},                         // 1: bb1 loop
		{Opcode: sched.OpAdd, Rd: reg(3), Rs1: reg(2), Rs2: reg(2)},  // 2: bb2, reads x2 post-loop
	}
	bb0 := sched.Range{Start: 0, End: 0}
	bb1 := sched.Range{Start: 0, End: 2}
	bb2 := sched.Range{Start: 2, End: 3}
	dt := Analyze(insts, bb0, bb1, bb2)

	entry := dt.Entries[2]
	if len(entry.PostLoop) != 1 {
		t.Fatalf("expected 1 post-loop dep, got %d", len(entry.PostLoop))
	}
	if entry.PostLoop[0].ProducerID != 0 {
		t.Errorf("expected post-loop producer 0, got %d", entry.PostLoop[0].ProducerID)
	}
}

func TestAnalyzeDuplicateOperandCollapsed(t *testing.T) {
	insts := []sched.Instruction{
		{Opcode: sched.OpAddi, Rd: reg(1), Rs1: reg(0), Imm: imm(1)},
		{Opcode: sched.OpAdd, Rd: reg(2), Rs1: reg(1), Rs2: reg(1)},
	}
	dt := Analyze(insts, sched.Range{Start: 0, End: 2}, sched.Range{}, sched.Range{})
	if len(dt.Entries[1].Local) != 1 {
		t.Errorf("expected rs1==rs2 to collapse into a single dep, got %d", len(dt.Entries[1].Local))
	}
}

func TestAnalyzeNoDependency(t *testing.T) {
	insts := []sched.Instruction{
		{Opcode: sched.OpAddi, Rd: reg(1), Rs1: reg(9), Imm: imm(1)},
	}
	dt := Analyze(insts, sched.Range{Start: 0, End: 1}, sched.Range{}, sched.Range{})
	if len(dt.Entries[0].AllDeps()) != 0 {
		t.Errorf("expected no deps for an unwritten source register, got %+v", dt.Entries[0].AllDeps())
	}
}
