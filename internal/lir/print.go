package lir

import (
	"fmt"
	"io"
	"strings"

	"framekit/internal/storage"
)

// Dump writes f in the LIR text syntax understood by lirio.ParseFunc.
func Dump(w io.Writer, f *Func) error {
	if w == nil || f == nil {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s\n", f.Name)
	if f.Entry != 0 {
		fmt.Fprintf(&sb, "entry bb%d\n", f.Entry)
	}
	if f.FrameSize != 0 {
		fmt.Fprintf(&sb, "frame %d\n", f.FrameSize)
	}
	for _, s := range f.Slots {
		sb.WriteString("slot ")
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(&sb, "bb%d:\n", bb.ID)
		for j := range bb.Instrs {
			sb.WriteString("  ")
			sb.WriteString(FormatInstr(&bb.Instrs[j]))
			sb.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders f with Dump.
func (f *Func) String() string {
	var sb strings.Builder
	_ = Dump(&sb, f)
	return sb.String()
}

// FormatInstr renders one instruction as a single line.
func FormatInstr(ins *Instr) string {
	if ins == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(ins.Op.String())
	switch ins.Op {
	case OpLabel:
		writeList(&sb, "in", ins.Label.Incoming)
	case OpJump:
		fmt.Fprintf(&sb, " bb%d", ins.Jump.Target)
		writeList(&sb, "out", ins.Jump.Outgoing)
		if ins.Jump.NoSplice {
			sb.WriteString(" nosplice")
		}
	case OpBranch:
		fmt.Fprintf(&sb, " %s bb%d bb%d", ins.Branch.Cond, ins.Branch.Then, ins.Branch.Else)
	case OpReturn:
		if ins.Return.HasValue {
			sb.WriteByte(' ')
			sb.WriteString(ins.Return.Value.String())
		}
	case OpMove:
		fmt.Fprintf(&sb, " %s <- %s", ins.Move.Dst, ins.Move.Src)
	case OpGeneric:
		sb.WriteByte(' ')
		sb.WriteString(ins.Generic.Name)
		writeList(&sb, "def", ins.Generic.Defs)
		writeList(&sb, "use", ins.Generic.Uses)
		writeList(&sb, "alive", ins.Generic.Alives)
		writeList(&sb, "temp", ins.Generic.Temps)
		writeList(&sb, "state", ins.Generic.State)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, key string, vs []storage.Value) {
	if len(vs) == 0 {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	for i, v := range vs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(v.String())
	}
}
