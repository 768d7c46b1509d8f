// Package isa decodes the textual instruction forms accepted by the
// scheduler into sched.Instruction values.
package isa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wiggleman/vliwsched/internal/sched"
)

// Decode parses a full program, one instruction string per line, into
// sched.Instruction values. It returns a *sched.DecodeError (wrapped) for
// the first malformed line.
func Decode(lines []string) ([]sched.Instruction, error) {
	out := make([]sched.Instruction, 0, len(lines))
	for i, line := range lines {
		inst, err := decodeOne(line)
		if err != nil {
			return nil, &sched.DecodeError{Index: i, Text: line, Err: err}
		}
		out = append(out, inst)
	}
	return out, nil
}

func decodeOne(line string) (sched.Instruction, error) {
	line = strings.TrimSpace(line)
	opcode, rest, ok := strings.Cut(line, " ")
	if !ok {
		return sched.Instruction{}, fmt.Errorf("missing operands")
	}
	rest = strings.TrimSpace(rest)

	switch sched.Opcode(opcode) {
	case sched.OpAdd, sched.OpSub, sched.OpMulu:
		regs, err := splitN(rest, 3)
		if err != nil {
			return sched.Instruction{}, err
		}
		rd, err := parseReg(regs[0])
		if err != nil {
			return sched.Instruction{}, err
		}
		rs1, err := parseReg(regs[1])
		if err != nil {
			return sched.Instruction{}, err
		}
		rs2, err := parseReg(regs[2])
		if err != nil {
			return sched.Instruction{}, err
		}
		op := sched.Opcode(opcode)
		return sched.Instruction{Opcode: op, Rd: &rd, Rs1: &rs1, Rs2: &rs2, Class: sched.ClassOf(op)}, nil

	case sched.OpAddi:
		parts, err := splitN(rest, 3)
		if err != nil {
			return sched.Instruction{}, err
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return sched.Instruction{}, err
		}
		rs1, err := parseReg(parts[1])
		if err != nil {
			return sched.Instruction{}, err
		}
		immVal, err := parseImm(parts[2])
		if err != nil {
			return sched.Instruction{}, err
		}
		return sched.Instruction{Opcode: sched.OpAddi, Rd: &rd, Rs1: &rs1, Imm: &immVal, Class: sched.ALU}, nil

	case sched.OpMov:
		parts, err := splitN(rest, 2)
		if err != nil {
			return sched.Instruction{}, err
		}
		rd, err := parseReg(parts[0])
		if err != nil {
			return sched.Instruction{}, err
		}
		src := strings.TrimSpace(parts[1])
		if len(src) > 0 && (src[0] == 'x' || src == "LC" || src == "EC") {
			rs1, err := parseReg(src)
			if err != nil {
				return sched.Instruction{}, err
			}
			return sched.Instruction{Opcode: sched.OpMov, Rd: &rd, Rs1: &rs1, Class: sched.ALU}, nil
		}
		immVal, err := parseImm(src)
		if err != nil {
			return sched.Instruction{}, err
		}
		return sched.Instruction{Opcode: sched.OpMov, Rd: &rd, Imm: &immVal, Class: sched.ALU}, nil

	case sched.OpLd:
		rd, base, offset, err := parseMemOperand(rest)
		if err != nil {
			return sched.Instruction{}, err
		}
		return sched.Instruction{Opcode: sched.OpLd, Rd: &rd, Rs1: &base, Imm: &offset, Class: sched.Mem}, nil

	case sched.OpSt:
		// `st rs, off(rs2)`: source operand first, per this dialect.
		src, base, offset, err := parseMemOperand(rest)
		if err != nil {
			return sched.Instruction{}, err
		}
		return sched.Instruction{Opcode: sched.OpSt, Rs1: &src, Rs2: &base, Imm: &offset, Class: sched.Mem}, nil

	case sched.OpLoop:
		immVal, err := parseImm(strings.TrimSpace(rest))
		if err != nil {
			return sched.Instruction{}, err
		}
		return sched.Instruction{Opcode: sched.OpLoop, Imm: &immVal, Class: sched.Branch}, nil

	default:
		return sched.Instruction{}, fmt.Errorf("unknown opcode %q", opcode)
	}
}

// parseMemOperand parses the shared `reg, off(base)` shape used by both
// ld and st (the first operand is rd for ld, the store source for st).
func parseMemOperand(rest string) (reg, base sched.Register, offset int64, err error) {
	first, addr, ok := strings.Cut(rest, ",")
	if !ok {
		return reg, base, 0, fmt.Errorf("malformed memory operand %q", rest)
	}
	reg, err = parseReg(strings.TrimSpace(first))
	if err != nil {
		return reg, base, 0, err
	}
	addr = strings.TrimSpace(addr)
	offStr, baseStr, ok := strings.Cut(addr, "(")
	if !ok || !strings.HasSuffix(baseStr, ")") {
		return reg, base, 0, fmt.Errorf("malformed memory address %q", addr)
	}
	offset, err = parseImm(strings.TrimSpace(offStr))
	if err != nil {
		return reg, base, 0, err
	}
	base, err = parseReg(strings.TrimSpace(strings.TrimSuffix(baseStr, ")")))
	if err != nil {
		return reg, base, 0, err
	}
	return reg, base, offset, nil
}

func splitN(s string, n int) ([]string, error) {
	parts := strings.SplitN(s, ",", n)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d operands, got %d in %q", n, len(parts), s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseReg(tok string) (sched.Register, error) {
	switch {
	case tok == "LC":
		return sched.LC(), nil
	case tok == "EC":
		return sched.EC(), nil
	case strings.HasPrefix(tok, "x"):
		idx, err := strconv.Atoi(tok[1:])
		if err != nil {
			return sched.Register{}, fmt.Errorf("malformed general register %q: %w", tok, err)
		}
		return sched.General(idx), nil
	case strings.HasPrefix(tok, "p"):
		idx, err := strconv.Atoi(tok[1:])
		if err != nil {
			return sched.Register{}, fmt.Errorf("malformed predicate register %q: %w", tok, err)
		}
		return sched.Predicate(idx), nil
	default:
		return sched.Register{}, fmt.Errorf("malformed register %q", tok)
	}
}

// parseImm accepts any base recognized as an integer literal: decimal or
// hex with a 0x prefix.
func parseImm(tok string) (int64, error) {
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed immediate %q: %w", tok, err)
	}
	return v, nil
}
