package observ

import (
	"fmt"
	"strings"
)

// Counters collects the statistics of one compilation. Each unit owns its
// own Counters; Add merges them after the fact.
type Counters struct {
	SlotsAllocated    int `json:"slots_allocated"`
	AliasesResolved   int `json:"aliases_resolved"`
	RangesAllocated   int `json:"ranges_allocated"`
	OperandsRewritten int `json:"operands_rewritten"`

	EdgesResolved      int `json:"edges_resolved"`
	MovesEmitted       int `json:"moves_emitted"`
	MovesElided        int `json:"moves_elided"`
	CyclesBroken       int `json:"cycles_broken"`
	EdgeBlocksInserted int `json:"edge_blocks_inserted"`
}

// Add accumulates other into c.
func (c *Counters) Add(other *Counters) {
	if c == nil || other == nil {
		return
	}
	c.SlotsAllocated += other.SlotsAllocated
	c.AliasesResolved += other.AliasesResolved
	c.RangesAllocated += other.RangesAllocated
	c.OperandsRewritten += other.OperandsRewritten
	c.EdgesResolved += other.EdgesResolved
	c.MovesEmitted += other.MovesEmitted
	c.MovesElided += other.MovesElided
	c.CyclesBroken += other.CyclesBroken
	c.EdgeBlocksInserted += other.EdgeBlocksInserted
}

// Summary renders the non-zero counters, one per line.
func (c *Counters) Summary() string {
	if c == nil {
		return ""
	}
	rows := []struct {
		name string
		n    int
	}{
		{"slots allocated", c.SlotsAllocated},
		{"aliases resolved", c.AliasesResolved},
		{"ranges allocated", c.RangesAllocated},
		{"operands rewritten", c.OperandsRewritten},
		{"edges resolved", c.EdgesResolved},
		{"moves emitted", c.MovesEmitted},
		{"moves elided", c.MovesElided},
		{"cycles broken", c.CyclesBroken},
		{"edge blocks", c.EdgeBlocksInserted},
	}
	var sb strings.Builder
	sb.WriteString("counters:\n")
	for _, r := range rows {
		if r.n != 0 {
			fmt.Fprintf(&sb, "  %-20s %7d\n", r.name, r.n)
		}
	}
	return sb.String()
}
