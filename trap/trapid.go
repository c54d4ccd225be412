// Package trap enumerates the reasons generated code can abort into the
// runtime. These are distinct from the CodeRangeKind sentinels in the
// object package: a trap.ID identifies *why* a TrapExit range was
// reached, while a CodeRangeKind identifies *which* region of the code
// image was executing.
package trap

import (
	"fmt"
)

type ID int

const (
	Unreachable = ID(iota)
	CallStackExhausted
	MemoryOutOfBounds
	IndirectCallIndex
	IndirectCallSignature
	IntegerDivideByZero
	IntegerOverflow

	NumTraps
)

func (id ID) String() string {
	switch id {
	case Unreachable:
		return "unreachable"

	case CallStackExhausted:
		return "call stack exhausted"

	case MemoryOutOfBounds:
		return "memory access out of bounds"

	case IndirectCallIndex:
		return "indirect call index out of bounds"

	case IndirectCallSignature:
		return "indirect call signature mismatch"

	case IntegerDivideByZero:
		return "integer divide by zero"

	case IntegerOverflow:
		return "integer overflow"

	default:
		return fmt.Sprintf("unknown trap %d", id)
	}
}

func (id ID) Error() string {
	return "trap: " + id.String()
}
