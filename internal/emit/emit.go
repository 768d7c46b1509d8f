// Package emit renders scheduled bundles to the textual instruction forms
// and writes them out as JSON or CSV, one five-slot row per bundle.
package emit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wiggleman/vliwsched/internal/sched"
)

// slotHeader is the fixed column order every emitted schedule uses.
var slotHeader = []string{"ALU1", "ALU2", "Mulu", "Mem", "Branch"}

func renderOperand(r *sched.Register) string {
	if r == nil {
		return ""
	}
	return r.String()
}

// renderInst renders a single instruction's textual form, the way the
// decoder's grammar expects it to round-trip (spec §6).
func renderInst(inst *sched.ScheduledInstruction) string {
	switch inst.Opcode {
	case sched.OpAdd, sched.OpSub, sched.OpMulu:
		return fmt.Sprintf("%s %s, %s, %s", inst.Opcode, renderOperand(inst.Rd), renderOperand(inst.Rs1), renderOperand(inst.Rs2))
	case sched.OpAddi:
		return fmt.Sprintf("addi %s, %s, %d", renderOperand(inst.Rd), renderOperand(inst.Rs1), derefImm(inst.Imm))
	case sched.OpMov:
		if inst.PredicateInit {
			return fmt.Sprintf("mov %s, true", renderOperand(inst.Rd))
		}
		if inst.Rs1 != nil {
			return fmt.Sprintf("mov %s, %s", renderOperand(inst.Rd), renderOperand(inst.Rs1))
		}
		return fmt.Sprintf("mov %s, %d", renderOperand(inst.Rd), derefImm(inst.Imm))
	case sched.OpLd:
		return fmt.Sprintf("ld %s, %d(%s)", renderOperand(inst.Rd), derefImm(inst.Imm), renderOperand(inst.Rs1))
	case sched.OpSt:
		return fmt.Sprintf("st %s, %d(%s)", renderOperand(inst.Rs1), derefImm(inst.Imm), renderOperand(inst.Rs2))
	case sched.OpLoop:
		return fmt.Sprintf("loop %d", derefImm(inst.Imm))
	default:
		return string(inst.Opcode)
	}
}

func derefImm(imm *int64) int64 {
	if imm == nil {
		return 0
	}
	return *imm
}

// ToStrings renders a simple (non-pipelined) schedule: one [5]string row per
// bundle, in canonical slot order, with empty slots as "nop".
func ToStrings(bundles []*sched.Bundle) [][5]string {
	out := make([][5]string, len(bundles))
	for i, b := range bundles {
		b.Sort()
		slots := b.Slots()
		for j, inst := range slots {
			if inst == nil {
				out[i][j] = "nop"
				continue
			}
			out[i][j] = renderInst(inst)
		}
	}
	return out
}

// ToStringsPipelined renders a pipelined schedule: `loop` becomes
// `loop.pip <loopImm>`, body instructions with a recorded stage are
// prefixed `(p{32+stage}) `, and synthetic prolog instructions (negative ID)
// are rendered without a predicate prefix — matching the priority order
// original_source's `Bundle.to_list_pip` uses.
func ToStringsPipelined(bundles []*sched.Bundle, dt *sched.DependencyTable, loopImm int64) [][5]string {
	out := make([][5]string, len(bundles))
	for i, b := range bundles {
		b.Sort()
		slots := b.Slots()
		for j, inst := range slots {
			if inst == nil {
				out[i][j] = "nop"
				continue
			}
			out[i][j] = renderPipelinedInst(inst, dt, loopImm)
		}
	}
	return out
}

func renderPipelinedInst(inst *sched.ScheduledInstruction, dt *sched.DependencyTable, loopImm int64) string {
	if inst.Opcode == sched.OpLoop {
		return fmt.Sprintf("loop.pip %d", loopImm)
	}
	if inst.ID < 0 {
		return renderInst(inst)
	}
	if stage := dt.Entries[inst.ID].Stage; stage != nil {
		return fmt.Sprintf("(p%d) %s", 32+*stage, renderInst(inst))
	}
	return renderInst(inst)
}

// WriteJSON writes rows (as produced by ToStrings/ToStringsPipelined) to
// path as a JSON array of five-element arrays.
func WriteJSON(path string, rows [][5]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("emit: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("emit: encode %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes rows to path with the fixed ALU1,ALU2,Mulu,Mem,Branch
// header, grounded on original_source SimpleScheduler.py's to_csv fieldnames.
func WriteCSV(path string, rows [][5]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("emit: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(slotHeader); err != nil {
		return fmt.Errorf("emit: write header %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row[:]); err != nil {
			return fmt.Errorf("emit: write row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("emit: flush %s: %w", path, err)
	}
	return nil
}
