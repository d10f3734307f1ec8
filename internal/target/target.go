package target

import (
	"fmt"
	"strings"

	"framekit/internal/storage"
)

// RegClass groups registers that can hold the same kinds of values.
type RegClass uint8

const (
	// ClassGeneral holds integers and references.
	ClassGeneral RegClass = iota
	// ClassFloat holds floating point values.
	ClassFloat
)

func (c RegClass) String() string {
	switch c {
	case ClassGeneral:
		return "general"
	case ClassFloat:
		return "float"
	default:
		return "unknown"
	}
}

// ParseRegClass converts a class name to a RegClass.
func ParseRegClass(s string) (RegClass, error) {
	switch strings.ToLower(s) {
	case "general", "gp", "int":
		return ClassGeneral, nil
	case "float", "fp":
		return ClassFloat, nil
	default:
		return ClassGeneral, fmt.Errorf("invalid register class: %q (expected: general|float)", s)
	}
}

// ClassOf returns the register class that holds values of kind k.
func ClassOf(k storage.Kind) RegClass {
	if k.Platform.IsFloat() {
		return ClassFloat
	}
	return ClassGeneral
}

// RegisterInfo describes one machine register.
type RegisterInfo struct {
	Name  string
	Class RegClass
}

// Target describes the register file and frame conventions of a machine.
type Target struct {
	Name       string
	WordSize   int // bytes
	StackAlign int // bytes
	Registers  []RegisterInfo

	// Scratch registers are reserved per class and never handed to the
	// register allocator; the edge resolver uses them to break copy cycles.
	Scratch map[RegClass]storage.Register
}

// AMD64 returns the default 64-bit target: r0-r15 general, r16-r31 float,
// with r15 and r31 reserved as scratch.
func AMD64() *Target {
	gp := []string{"rax", "rcx", "rdx", "rbx", "rsi", "rdi", "r8", "r9",
		"r10", "r11", "r12", "r13", "r14", "rbp", "rsp", "r15"}
	regs := make([]RegisterInfo, 0, 32)
	for _, name := range gp {
		regs = append(regs, RegisterInfo{Name: name, Class: ClassGeneral})
	}
	for i := range 16 {
		regs = append(regs, RegisterInfo{Name: fmt.Sprintf("xmm%d", i), Class: ClassFloat})
	}
	return &Target{
		Name:       "amd64",
		WordSize:   8,
		StackAlign: 16,
		Registers:  regs,
		Scratch: map[RegClass]storage.Register{
			ClassGeneral: 15,
			ClassFloat:   31,
		},
	}
}

// RegisterName returns the assembler name of r, or its generic form.
func (t *Target) RegisterName(r storage.Register) string {
	if t == nil || r < 0 || int(r) >= len(t.Registers) {
		return r.String()
	}
	return t.Registers[r].Name
}

// ClassOfRegister returns the class of r.
func (t *Target) ClassOfRegister(r storage.Register) (RegClass, bool) {
	if t == nil || r < 0 || int(r) >= len(t.Registers) {
		return ClassGeneral, false
	}
	return t.Registers[r].Class, true
}

// ScratchFor returns the reserved scratch register able to hold kind k.
func (t *Target) ScratchFor(k storage.Kind) (storage.Register, bool) {
	if t == nil || t.Scratch == nil {
		return storage.NoRegister, false
	}
	r, ok := t.Scratch[ClassOf(k)]
	return r, ok
}

// IsScratch reports whether r is reserved as a scratch register.
func (t *Target) IsScratch(r storage.Register) bool {
	if t == nil {
		return false
	}
	for _, s := range t.Scratch {
		if s == r {
			return true
		}
	}
	return false
}

// Validate checks that the description is usable.
func (t *Target) Validate() error {
	if t == nil {
		return fmt.Errorf("nil target")
	}
	if t.WordSize != 4 && t.WordSize != 8 {
		return fmt.Errorf("target %s: unsupported word size %d", t.Name, t.WordSize)
	}
	if t.StackAlign <= 0 || t.StackAlign&(t.StackAlign-1) != 0 {
		return fmt.Errorf("target %s: stack alignment %d is not a power of two", t.Name, t.StackAlign)
	}
	for class, r := range t.Scratch {
		got, ok := t.ClassOfRegister(r)
		if !ok {
			return fmt.Errorf("target %s: scratch register %s out of range", t.Name, r)
		}
		if got != class {
			return fmt.Errorf("target %s: scratch register %s is %s, want %s", t.Name, t.RegisterName(r), got, class)
		}
	}
	return nil
}

// Lookup finds a register by assembler name.
func (t *Target) Lookup(name string) (storage.Register, bool) {
	if t == nil {
		return storage.NoRegister, false
	}
	for i, info := range t.Registers {
		if info.Name == name {
			return storage.Register(i), true
		}
	}
	return storage.NoRegister, false
}

// Fingerprint returns a stable description used to key cached results.
func (t *Target) Fingerprint() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/w%d/a%d", t.Name, t.WordSize, t.StackAlign)
	for _, r := range t.Registers {
		fmt.Fprintf(&sb, "/%s:%d", r.Name, r.Class)
	}
	for _, class := range []RegClass{ClassGeneral, ClassFloat} {
		if r, ok := t.Scratch[class]; ok {
			fmt.Fprintf(&sb, "/s%d=%d", class, r)
		}
	}
	return sb.String()
}
