// Package object defines the per-task and module-global side-table
// records produced while lowering function bodies into machine code:
// code ranges, call sites, their parallel target table, and the
// export/import records consumed by the module finalizer.
package object

import (
	"github.com/wasmforge/modgen/trap"
	"github.com/wasmforge/modgen/wa"
)

// CodeRangeKind tags the [Begin, End) interval a CodeRange describes.
type CodeRangeKind uint8

const (
	Function = CodeRangeKind(iota)
	Entry
	ImportJitExit
	ImportInterpExit
	TrapExit
	DebugTrap
	OutOfBoundsExit
	UnalignedExit
	Interrupt
	Throw
	FarJumpIsland
	BuiltinThunk
)

func (k CodeRangeKind) String() string {
	switch k {
	case Function:
		return "function"
	case Entry:
		return "entry"
	case ImportJitExit:
		return "import jit exit"
	case ImportInterpExit:
		return "import interp exit"
	case TrapExit:
		return "trap exit"
	case DebugTrap:
		return "debug trap"
	case OutOfBoundsExit:
		return "out of bounds exit"
	case UnalignedExit:
		return "unaligned exit"
	case Interrupt:
		return "interrupt"
	case Throw:
		return "throw"
	case FarJumpIsland:
		return "far jump island"
	case BuiltinThunk:
		return "builtin thunk"
	default:
		return "<invalid code range kind>"
	}
}

// CodeRange is a [Begin, End) byte interval in the master code buffer.
// FuncIndex holds a function index for Function and Entry ranges and an
// import index for ImportJitExit and ImportInterpExit ranges; Trap is
// meaningful only for TrapExit ranges.
type CodeRange struct {
	Kind      CodeRangeKind
	Begin     uint32
	End       uint32
	FuncIndex uint32
	Trap      trap.ID
}

// CallSiteKind tags what kind of branch instruction was written at a
// call site's return address.
type CallSiteKind uint8

const (
	Func = CallSiteKind(iota)
	Dynamic
	Symbolic
	CallSiteTrapExit
	Breakpoint
	EnterFrame
	LeaveFrame
)

func (k CallSiteKind) String() string {
	switch k {
	case Func:
		return "func"
	case Dynamic:
		return "dynamic"
	case Symbolic:
		return "symbolic"
	case CallSiteTrapExit:
		return "call site trap exit"
	case Breakpoint:
		return "breakpoint"
	case EnterFrame:
		return "enter frame"
	case LeaveFrame:
		return "leave frame"
	default:
		return "<invalid call site kind>"
	}
}

// CallSite records a branch instruction's return address, in module-global
// or task-local offset space depending on whether it has been linked yet.
type CallSite struct {
	ReturnAddrOffset uint32
	Kind             CallSiteKind
}

// CallSiteTarget is parallel to a CallSite: it carries the callee function
// index for a Func call site, or the trap id for a CallSiteTrapExit call
// site. It is the zero value for call sites that carry no target
// (Dynamic, Symbolic, Breakpoint, EnterFrame, LeaveFrame).
type CallSiteTarget struct {
	FuncIndex uint32
	Trap      trap.ID
}

// MemoryAccess is a pass-through record of a load/store instruction's
// offset; this generator never acts on it, only relocates it.
type MemoryAccess struct {
	Offset uint32
}

// SymbolicTarget names a runtime helper whose address is not known until
// the module is loaded.
type SymbolicTarget uint8

const (
	SymbolicMemoryGrow = SymbolicTarget(iota)
	SymbolicMemorySize
	SymbolicTableGet
	SymbolicTableSet
	SymbolicFuncRef
)

// SymbolicAccess records an offset to patch with a named runtime symbol's
// address once it is known.
type SymbolicAccess struct {
	PatchAt uint32
	Target  SymbolicTarget
}

// CodeLabel records an internal offset-to-offset relocation: PatchAt holds
// a reference to Target, both task-local until linked.
type CodeLabel struct {
	PatchAt uint32
	Target  uint32
}

// FarJumpRequest is a pending patch-point discovered while walking a
// task's call sites; it is resolved once the target's final address is
// known.
type FarJumpRequest struct {
	JumpPatchOffset uint32
}

// CallFarJump is a FarJumpRequest keyed by callee function index.
type CallFarJump struct {
	FuncIndex uint32
	FarJumpRequest
}

// TrapFarJump is a FarJumpRequest keyed by trap id.
type TrapFarJump struct {
	Trap trap.ID
	FarJumpRequest
}

// CompiledCode is the output of the per-function compiler or stub
// generator for one task: an opaque byte slice plus every side-table
// needed to splice it into the master buffer. All offsets inside are
// task-local (zero-based) until the Linker rebases them.
type CompiledCode struct {
	Bytes            []byte
	CodeRanges       []CodeRange
	CallSites        []CallSite
	CallSiteTargets  []CallSiteTarget
	TrapFarJumps     []TrapFarJump
	CallFarJumps     []CallFarJump
	MemoryAccesses   []MemoryAccess
	SymbolicAccesses []SymbolicAccess
	CodeLabels       []CodeLabel
}

// FuncExport is a sorted-by-FuncIndex record built only at finalization.
type FuncExport struct {
	FuncIndex      uint32
	Signature      wa.FuncType
	EntryOffset    uint32
	CodeRangeIndex int
}

// FuncImport is a per-import record of the import's reserved global-data
// slot and its two possible exit trampolines.
type FuncImport struct {
	Signature        wa.FuncType
	GlobalDataOffset uint32
	InterpExitOffset uint32
	JitExitOffset    uint32
}
