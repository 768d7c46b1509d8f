package schedule

import "github.com/wiggleman/vliwsched/internal/sched"

// reservedTable is a circular reservation of length II, indexed by
// (cycle - bb0End) mod II; each cell tracks counts per execution class. It
// is local to a single II attempt and discarded on retry.
type reservedTable struct {
	ii     int
	bb0End int
	counts []map[sched.Class]int
}

func newReservedTable(ii, bb0End int) *reservedTable {
	counts := make([]map[sched.Class]int, ii)
	for i := range counts {
		counts[i] = make(map[sched.Class]int)
	}
	return &reservedTable{ii: ii, bb0End: bb0End, counts: counts}
}

func (t *reservedTable) slot(cycle int) int {
	i := (cycle - t.bb0End) % t.ii
	if i < 0 {
		i += t.ii
	}
	return i
}

// IsReserved reports whether a class's slot is full in cycle's phase: 2 for
// ALU, 1 for anything else.
func (t *reservedTable) IsReserved(cycle int, class sched.Class) bool {
	n := t.counts[t.slot(cycle)][class]
	if class == sched.ALU {
		return n >= 2
	}
	return n >= 1
}

// MarkReserved reserves a slot for class at cycle. Callers must check
// IsReserved first.
func (t *reservedTable) MarkReserved(cycle int, class sched.Class) {
	t.counts[t.slot(cycle)][class]++
}
