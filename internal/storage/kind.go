package storage

import (
	"fmt"
	"strings"
)

// Platform is the machine representation of a value.
type Platform uint8

const (
	// PlatformIllegal marks a missing or invalid representation.
	PlatformIllegal Platform = iota
	PlatformByte
	PlatformWord
	PlatformDWord
	PlatformQWord
	PlatformSingle
	PlatformDouble
)

// Size returns the width of the representation in bytes.
func (p Platform) Size() int {
	switch p {
	case PlatformByte:
		return 1
	case PlatformWord:
		return 2
	case PlatformDWord, PlatformSingle:
		return 4
	case PlatformQWord, PlatformDouble:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether values of this representation live in float registers.
func (p Platform) IsFloat() bool {
	return p == PlatformSingle || p == PlatformDouble
}

func (p Platform) String() string {
	switch p {
	case PlatformByte:
		return "byte"
	case PlatformWord:
		return "word"
	case PlatformDWord:
		return "dword"
	case PlatformQWord:
		return "qword"
	case PlatformSingle:
		return "single"
	case PlatformDouble:
		return "double"
	default:
		return "illegal"
	}
}

// RefKind tells the garbage collector how to treat a value.
type RefKind uint8

const (
	// RefNone is a plain (non-pointer) value.
	RefNone RefKind = iota
	// RefTracked is a reference the collector must trace.
	RefTracked
	// RefUnknown is the untyped "reference unknown" supertype.
	RefUnknown
)

// Kind describes the platform representation of a value.
type Kind struct {
	Platform Platform
	Ref      RefKind
}

var (
	Illegal    = Kind{}
	I8         = Kind{Platform: PlatformByte}
	I16        = Kind{Platform: PlatformWord}
	I32        = Kind{Platform: PlatformDWord}
	I64        = Kind{Platform: PlatformQWord}
	F32        = Kind{Platform: PlatformSingle}
	F64        = Kind{Platform: PlatformDouble}
	Ref        = Kind{Platform: PlatformQWord, Ref: RefTracked}
	UnknownRef = Kind{Platform: PlatformQWord, Ref: RefUnknown}
)

// Size returns the width in bytes.
func (k Kind) Size() int { return k.Platform.Size() }

// Align returns the natural alignment in bytes.
func (k Kind) Align() int {
	if s := k.Size(); s > 0 {
		return s
	}
	return 1
}

// IsIllegal reports whether k carries no representation.
func (k Kind) IsIllegal() bool { return k.Platform == PlatformIllegal }

// IsReference reports whether k is a tracked or unknown reference.
func (k Kind) IsReference() bool { return k.Ref != RefNone }

// IsUnknownReference reports whether k is the untyped reference supertype.
func (k Kind) IsUnknownReference() bool { return k.Ref == RefUnknown }

// PhiCompatible reports whether a value of kind out may flow into a phi of kind in.
// The kinds must be equal, or in must be the unknown-reference supertype of a
// concrete out of the same platform width.
func PhiCompatible(in, out Kind) bool {
	if in == out {
		return true
	}
	return in.IsUnknownReference() && !out.IsIllegal() && !out.IsUnknownReference() &&
		in.Platform == out.Platform
}

func (k Kind) String() string {
	switch k {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Ref:
		return "ref"
	case UnknownRef:
		return "uref"
	case Illegal:
		return "illegal"
	}
	return fmt.Sprintf("%s/ref%d", k.Platform, k.Ref)
}

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "i8":
		return I8, nil
	case "i16":
		return I16, nil
	case "i32":
		return I32, nil
	case "i64":
		return I64, nil
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	case "ref":
		return Ref, nil
	case "uref":
		return UnknownRef, nil
	case "illegal":
		return Illegal, nil
	default:
		return Illegal, fmt.Errorf("invalid kind: %q (expected: i8|i16|i32|i64|f32|f64|ref|uref)", s)
	}
}
