package isa

import (
	"testing"

	"github.com/wiggleman/vliwsched/internal/sched"
)

func TestDecode(t *testing.T) {
	lines := []string{
		"addi x1, x0, 1",
		"add x3, x1, x2",
		"sub x4, x3, x1",
		"mulu x5, x3, x4",
		"mov x6, x5",
		"mov x7, 42",
		"ld x8, 8(x1)",
		"st x8, 16(x1)",
		"loop 2",
	}
	insts, err := Decode(lines)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(insts) != len(lines) {
		t.Fatalf("expected %d instructions, got %d", len(lines), len(insts))
	}

	if insts[0].Class != sched.ALU || insts[0].Opcode != sched.OpAddi {
		t.Errorf("addi: got %+v", insts[0])
	}
	if *insts[0].Imm != 1 {
		t.Errorf("addi imm: got %d", *insts[0].Imm)
	}

	if insts[3].Class != sched.Mulu {
		t.Errorf("mulu: expected Mulu class, got %v", insts[3].Class)
	}

	if insts[4].Rs1 == nil || insts[4].Rs1.Idx != 5 {
		t.Errorf("mov reg form: got %+v", insts[4])
	}
	if insts[5].Imm == nil || *insts[5].Imm != 42 {
		t.Errorf("mov imm form: got %+v", insts[5])
	}

	if insts[6].Class != sched.Mem || insts[6].Opcode != sched.OpLd {
		t.Errorf("ld: got %+v", insts[6])
	}
	if *insts[6].Imm != 8 {
		t.Errorf("ld offset: got %d", *insts[6].Imm)
	}

	if insts[7].Opcode != sched.OpSt || insts[7].Rs1 == nil || insts[7].Rs1.Idx != 8 {
		t.Errorf("st: got %+v", insts[7])
	}
	if insts[7].Rs2 == nil || insts[7].Rs2.Idx != 1 || *insts[7].Imm != 16 {
		t.Errorf("st base/offset: got %+v", insts[7])
	}

	if insts[8].Class != sched.Branch || *insts[8].Imm != 2 {
		t.Errorf("loop: got %+v", insts[8])
	}
}

func TestDecodeLCAndEC(t *testing.T) {
	insts, err := Decode([]string{"mov LC, 9", "mov x1, EC"})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if insts[0].Rd.Kind != sched.KindLC {
		t.Errorf("expected LC destination, got %+v", insts[0].Rd)
	}
	if insts[1].Rs1.Kind != sched.KindEC {
		t.Errorf("expected EC source, got %+v", insts[1].Rs1)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown opcode", "frob x1, x2, x3"},
		{"missing operands", "add"},
		{"too few operands", "add x1, x2"},
		{"malformed register", "add x1, y2, x3"},
		{"malformed immediate", "addi x1, x0, abc"},
		{"malformed memory operand", "ld x1 8(x2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]string{tt.line})
			if err == nil {
				t.Fatalf("Decode(%q) expected an error, got nil", tt.line)
			}
			var decodeErr *sched.DecodeError
			if !asDecodeError(err, &decodeErr) {
				t.Fatalf("expected a *sched.DecodeError, got %T", err)
			}
			if decodeErr.Index != 0 {
				t.Errorf("expected error at index 0, got %d", decodeErr.Index)
			}
		})
	}
}

func asDecodeError(err error, target **sched.DecodeError) bool {
	de, ok := err.(*sched.DecodeError)
	if ok {
		*target = de
	}
	return ok
}
