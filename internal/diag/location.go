package diag

import (
	"fmt"
	"strings"
)

// Location points at the part of a compilation unit a diagnostic is about.
// Negative indices mean "not applicable".
type Location struct {
	Func  string
	Block int32
	Instr int32
	Slot  int32
}

// NoLocation is a location that points nowhere in particular.
var NoLocation = Location{Block: -1, Instr: -1, Slot: -1}

// At returns a location for function fn.
func At(fn string) Location {
	loc := NoLocation
	loc.Func = fn
	return loc
}

// InBlock returns loc narrowed to block b.
func (loc Location) InBlock(b int32) Location {
	loc.Block = b
	return loc
}

// AtInstr returns loc narrowed to instruction i of its block.
func (loc Location) AtInstr(i int32) Location {
	loc.Instr = i
	return loc
}

// ForSlot returns loc narrowed to virtual slot id.
func (loc Location) ForSlot(id int32) Location {
	loc.Slot = id
	return loc
}

func (loc Location) String() string {
	var parts []string
	if loc.Func != "" {
		parts = append(parts, loc.Func)
	}
	if loc.Block >= 0 {
		if loc.Instr >= 0 {
			parts = append(parts, fmt.Sprintf("bb%d#%d", loc.Block, loc.Instr))
		} else {
			parts = append(parts, fmt.Sprintf("bb%d", loc.Block))
		}
	}
	if loc.Slot >= 0 {
		parts = append(parts, fmt.Sprintf("vs%d", loc.Slot))
	}
	if len(parts) == 0 {
		return "<unit>"
	}
	return strings.Join(parts, ":")
}

// Less orders locations by function, block, instruction, slot.
func (loc Location) Less(other Location) bool {
	if loc.Func != other.Func {
		return loc.Func < other.Func
	}
	if loc.Block != other.Block {
		return loc.Block < other.Block
	}
	if loc.Instr != other.Instr {
		return loc.Instr < other.Instr
	}
	return loc.Slot < other.Slot
}
