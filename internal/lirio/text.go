package lirio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"framekit/internal/lir"
	"framekit/internal/storage"
)

// ParseInstr parses one instruction line (see lir.FormatInstr).
func ParseInstr(line string) (lir.Instr, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return lir.Instr{}, fmt.Errorf("empty instruction")
	}
	op, args := fields[0], fields[1:]
	switch op {
	case "nop":
		if len(args) != 0 {
			return lir.Instr{}, fmt.Errorf("nop takes no operands")
		}
		return lir.Instr{Op: lir.OpNop}, nil

	case "label":
		lists, _, err := parseKeyed(args, "in")
		if err != nil {
			return lir.Instr{}, fmt.Errorf("label: %w", err)
		}
		return lir.NewLabel(lists["in"]...), nil

	case "jump":
		if len(args) == 0 {
			return lir.Instr{}, fmt.Errorf("jump: missing target")
		}
		target, err := parseBlockRef(args[0])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("jump: %w", err)
		}
		lists, flags, err := parseKeyed(args[1:], "out")
		if err != nil {
			return lir.Instr{}, fmt.Errorf("jump: %w", err)
		}
		ins := lir.NewJump(target, lists["out"]...)
		for _, fl := range flags {
			if fl != "nosplice" {
				return lir.Instr{}, fmt.Errorf("jump: unknown flag %q", fl)
			}
			ins.Jump.NoSplice = true
		}
		return ins, nil

	case "branch":
		if len(args) != 3 {
			return lir.Instr{}, fmt.Errorf("branch: want <cond> <then> <else>")
		}
		cond, err := ParseValue(args[0])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("branch: %w", err)
		}
		then, err := parseBlockRef(args[1])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("branch: %w", err)
		}
		els, err := parseBlockRef(args[2])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("branch: %w", err)
		}
		return lir.NewBranch(cond, then, els), nil

	case "return":
		switch len(args) {
		case 0:
			return lir.NewReturn(), nil
		case 1:
			v, err := ParseValue(args[0])
			if err != nil {
				return lir.Instr{}, fmt.Errorf("return: %w", err)
			}
			return lir.NewReturnValue(v), nil
		}
		return lir.Instr{}, fmt.Errorf("return: too many operands")

	case "move":
		if len(args) != 3 || args[1] != "<-" {
			return lir.Instr{}, fmt.Errorf("move: want <dst> <- <src>")
		}
		dst, err := ParseValue(args[0])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("move: %w", err)
		}
		src, err := ParseValue(args[2])
		if err != nil {
			return lir.Instr{}, fmt.Errorf("move: %w", err)
		}
		return lir.NewMove(dst, src), nil

	case "op":
		if len(args) == 0 {
			return lir.Instr{}, fmt.Errorf("op: missing name")
		}
		name := args[0]
		lists, flags, err := parseKeyed(args[1:], "def", "use", "alive", "temp", "state")
		if err != nil {
			return lir.Instr{}, fmt.Errorf("op %s: %w", name, err)
		}
		if len(flags) > 0 {
			return lir.Instr{}, fmt.Errorf("op %s: unexpected %q", name, flags[0])
		}
		ins := lir.NewGeneric(name, lists["def"], lists["use"])
		ins.Generic.Alives = lists["alive"]
		ins.Generic.Temps = lists["temp"]
		ins.Generic.State = lists["state"]
		return ins, nil
	}
	return lir.Instr{}, fmt.Errorf("unknown instruction %q", op)
}

// parseKeyed splits key=list arguments; bare words are returned as flags.
func parseKeyed(args []string, keys ...string) (map[string][]storage.Value, []string, error) {
	lists := make(map[string][]storage.Value, len(keys))
	var flags []string
	for _, a := range args {
		key, val, ok := strings.Cut(a, "=")
		if !ok {
			flags = append(flags, a)
			continue
		}
		known := false
		for _, k := range keys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, fmt.Errorf("unknown operand list %q", key)
		}
		if _, dup := lists[key]; dup {
			return nil, nil, fmt.Errorf("operand list %q given twice", key)
		}
		vs, err := ParseValueList(val)
		if err != nil {
			return nil, nil, err
		}
		lists[key] = vs
	}
	return lists, flags, nil
}

func parseBlockRef(s string) (lir.BlockID, error) {
	if !strings.HasPrefix(s, "bb") {
		return lir.NoBlockID, fmt.Errorf("bad block reference %q", s)
	}
	n, err := strconv.ParseInt(s[2:], 10, 32)
	if err != nil || n < 0 {
		return lir.NoBlockID, fmt.Errorf("bad block reference %q", s)
	}
	return lir.BlockID(n), nil
}

// ParseSlot parses a slot description such as "vs1 alias vs0 i32".
func ParseSlot(s string) (storage.VirtualSlot, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return storage.VirtualSlot{}, fmt.Errorf("slot %q: want vsN <variant> ...", s)
	}
	id, err := parseSlotRef(fields[0])
	if err != nil {
		return storage.VirtualSlot{}, err
	}
	variant, err := storage.ParseSlotVariant(fields[1])
	if err != nil {
		return storage.VirtualSlot{}, err
	}
	switch variant {
	case storage.SlotSimple:
		if len(fields) != 3 {
			return storage.VirtualSlot{}, fmt.Errorf("slot %q: want vsN simple <kind>", s)
		}
		kind, err := storage.ParseKind(fields[2])
		if err != nil {
			return storage.VirtualSlot{}, err
		}
		return storage.NewSimpleSlot(id, kind), nil
	case storage.SlotAlias:
		if len(fields) != 4 {
			return storage.VirtualSlot{}, fmt.Errorf("slot %q: want vsN alias vsM <kind>", s)
		}
		target, err := parseSlotRef(fields[2])
		if err != nil {
			return storage.VirtualSlot{}, err
		}
		kind, err := storage.ParseKind(fields[3])
		if err != nil {
			return storage.VirtualSlot{}, err
		}
		return storage.NewAliasSlot(id, target, kind), nil
	default:
		size, align := 0, 0
		for _, f := range fields[2:] {
			key, val, ok := strings.Cut(f, "=")
			n, err := strconv.Atoi(val)
			if !ok || err != nil {
				return storage.VirtualSlot{}, fmt.Errorf("slot %q: bad attribute %q", s, f)
			}
			switch key {
			case "size":
				size = n
			case "align":
				align = n
			default:
				return storage.VirtualSlot{}, fmt.Errorf("slot %q: unknown attribute %q", s, key)
			}
		}
		return storage.NewRangeSlot(id, size, align), nil
	}
}

func parseSlotRef(s string) (storage.VirtualSlotID, error) {
	if !strings.HasPrefix(s, "vs") {
		return storage.NoVirtualSlot, fmt.Errorf("bad slot reference %q", s)
	}
	n, err := strconv.ParseInt(s[2:], 10, 32)
	if err != nil || n < 0 {
		return storage.NoVirtualSlot, fmt.Errorf("bad slot reference %q", s)
	}
	return storage.VirtualSlotID(n), nil
}

// ParseFunc reads a unit in the text form produced by lir.Dump and
// computes its edges.
func ParseFunc(r io.Reader) (*lir.Func, error) {
	f := &lir.Func{}
	var cur *lir.Block
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parseFuncLine(f, &cur, line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if f.Name == "" {
		return nil, fmt.Errorf("missing fn header")
	}
	f.ComputeEdges()
	return f, nil
}

// ParseFuncString is ParseFunc over a string.
func ParseFuncString(src string) (*lir.Func, error) {
	return ParseFunc(strings.NewReader(src))
}

func parseFuncLine(f *lir.Func, cur **lir.Block, line string) error {
	head, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch {
	case head == "fn":
		if f.Name != "" {
			return fmt.Errorf("duplicate fn header")
		}
		if rest == "" {
			return fmt.Errorf("fn needs a name")
		}
		f.Name = NormalizeName(rest)
		return nil
	case head == "entry":
		id, err := parseBlockRef(rest)
		if err != nil {
			return err
		}
		f.Entry = id
		return nil
	case head == "frame":
		n, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return fmt.Errorf("bad frame size %q", rest)
		}
		f.FrameSize = int32(n)
		return nil
	case head == "slot":
		s, err := ParseSlot(rest)
		if err != nil {
			return err
		}
		if int(s.ID) != len(f.Slots) {
			return fmt.Errorf("slot vs%d out of order, want vs%d", s.ID, len(f.Slots))
		}
		f.Slots = append(f.Slots, s)
		return nil
	case strings.HasSuffix(head, ":") && rest == "":
		id, err := parseBlockRef(strings.TrimSuffix(head, ":"))
		if err != nil {
			return err
		}
		if int(id) != len(f.Blocks) {
			return fmt.Errorf("block bb%d out of order, want bb%d", id, len(f.Blocks))
		}
		f.AddBlock()
		*cur = f.Block(id)
		return nil
	}
	if *cur == nil {
		return fmt.Errorf("instruction outside of a block")
	}
	ins, err := ParseInstr(line)
	if err != nil {
		return err
	}
	(*cur).Instrs = append((*cur).Instrs, ins)
	return nil
}

// NormalizeName returns the NFC form of a unit name so that names typed in
// different Unicode forms key the same cache entries.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
