package lirio

import (
	"fmt"
	"strconv"
	"strings"

	"framekit/internal/storage"
)

// ParseValue parses one operand in the LIR text syntax:
//
//	r3:i64        register
//	fs-16:i64     stack slot relative to the frame size
//	sp+8:i64      stack slot at a fixed offset
//	vs2:i32       virtual stack slot
//	r1|fs-8:ref   shadowed register + stack pair (stack half may be vsN)
//	$42:i32       constant
func ParseValue(s string) (storage.Value, error) {
	s = strings.TrimSpace(s)
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return storage.IllegalValue(), fmt.Errorf("value %q: missing kind suffix", s)
	}
	kind, err := storage.ParseKind(s[colon+1:])
	if err != nil {
		return storage.IllegalValue(), fmt.Errorf("value %q: %w", s, err)
	}
	loc := s[:colon]

	if regPart, stackPart, ok := strings.Cut(loc, "|"); ok {
		r, err := parseRegister(regPart)
		if err != nil {
			return storage.IllegalValue(), fmt.Errorf("value %q: %w", s, err)
		}
		stack, err := parseLocation(stackPart, kind)
		if err != nil {
			return storage.IllegalValue(), fmt.Errorf("value %q: %w", s, err)
		}
		if stack.Tag != storage.TagStack && stack.Tag != storage.TagVirtualStack {
			return storage.IllegalValue(), fmt.Errorf("value %q: shadow needs a stack half", s)
		}
		return storage.Shadow(r, stack), nil
	}

	v, err := parseLocation(loc, kind)
	if err != nil {
		return storage.IllegalValue(), fmt.Errorf("value %q: %w", s, err)
	}
	return v, nil
}

func parseLocation(loc string, kind storage.Kind) (storage.Value, error) {
	switch {
	case strings.HasPrefix(loc, "$"):
		imm, err := strconv.ParseInt(loc[1:], 10, 64)
		if err != nil {
			return storage.IllegalValue(), fmt.Errorf("bad constant %q", loc)
		}
		return storage.Const(imm, kind), nil
	case strings.HasPrefix(loc, "vs"):
		id, err := strconv.ParseInt(loc[2:], 10, 32)
		if err != nil || id < 0 {
			return storage.IllegalValue(), fmt.Errorf("bad virtual slot %q", loc)
		}
		return storage.VStack(storage.VirtualSlotID(id), kind), nil
	case strings.HasPrefix(loc, "fs"), strings.HasPrefix(loc, "sp"):
		off, err := strconv.ParseInt(loc[2:], 10, 32)
		if err != nil {
			return storage.IllegalValue(), fmt.Errorf("bad stack offset %q", loc)
		}
		slot := storage.StackSlot{Offset: int32(off), AddFrameSize: loc[0] == 'f'}
		return storage.Stack(slot, kind), nil
	case strings.HasPrefix(loc, "r"):
		r, err := parseRegister(loc)
		if err != nil {
			return storage.IllegalValue(), err
		}
		return storage.Reg(r, kind), nil
	}
	return storage.IllegalValue(), fmt.Errorf("unknown location %q", loc)
}

func parseRegister(s string) (storage.Register, error) {
	if !strings.HasPrefix(s, "r") {
		return storage.NoRegister, fmt.Errorf("bad register %q", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 16)
	if err != nil || n < 0 {
		return storage.NoRegister, fmt.Errorf("bad register %q", s)
	}
	return storage.Register(n), nil
}

// ParseValueList parses a comma separated list of operands. An empty string
// yields an empty list.
func ParseValueList(s string) ([]storage.Value, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]storage.Value, 0, len(parts))
	for _, p := range parts {
		v, err := ParseValue(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
