package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Storage model and frame allocation
	ErrUnknownSlotVariant Code = 1001
	ErrAliasDefinition    Code = 1002
	ErrAliasTarget        Code = 1003
	ErrSlotOutOfRange     Code = 1004
	ErrFrameFinished      Code = 1005
	ErrFrameRequest       Code = 1006
	ErrVirtualRemains     Code = 1007

	// Control flow structure
	ErrMalformedBlock   Code = 2001
	ErrBadTarget        Code = 2002
	ErrCriticalEdge     Code = 2003
	ErrNotPredecessor   Code = 2004
	ErrNotSingleSucc    Code = 2005
	ErrPhiCountMismatch Code = 2006
	ErrStaleEdges       Code = 2007

	// Phi structure
	ErrMalformedPhi    Code = 3001
	ErrPhiKindMismatch Code = 3002
	ErrPhiRemains      Code = 3003

	// Move resolution
	ErrDuplicateDestination Code = 4001
	ErrUnresolvedCycle      Code = 4002
	ErrNoScratch            Code = 4003
	ErrBadMoveOperand       Code = 4004
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	ErrUnknownSlotVariant: "Unknown virtual stack slot variant",
	ErrAliasDefinition:    "Alias slot used as a definition",
	ErrAliasTarget:        "Alias slot does not target a simple slot",
	ErrSlotOutOfRange:     "Virtual stack slot id out of range",
	ErrFrameFinished:      "Frame already finalized",
	ErrFrameRequest:       "Invalid frame allocation request",
	ErrVirtualRemains:     "Virtual operand remains after allocation",

	ErrMalformedBlock:   "Malformed block",
	ErrBadTarget:        "Branch target does not exist",
	ErrCriticalEdge:     "Critical edge",
	ErrNotPredecessor:   "Block is not a predecessor of the merge",
	ErrNotSingleSucc:    "Predecessor does not have a single successor",
	ErrPhiCountMismatch: "Phi count differs between predecessors",
	ErrStaleEdges:       "Block edges do not match terminators",

	ErrMalformedPhi:    "Expected phi carrying instruction",
	ErrPhiKindMismatch: "Incompatible phi value kinds",
	ErrPhiRemains:      "Phi state remains after resolution",

	ErrDuplicateDestination: "Location written twice on one edge",
	ErrUnresolvedCycle:      "Move cycle cannot be broken",
	ErrNoScratch:            "No scratch register for value class",
	ErrBadMoveOperand:       "Operand cannot take part in a move",
}

// ID returns the stable identifier of the code, e.g. "ICE3002".
func (c Code) ID() string {
	if c == UnknownCode {
		return "ICE0000"
	}
	return fmt.Sprintf("ICE%04d", int(c))
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Error lets codes act as sentinels for errors.Is.
func (c Code) Error() string {
	return c.String()
}
