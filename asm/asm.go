// Package asm implements the Assembler Facade: an append-only machine
// code buffer with patchable call/jump placeholders and the per-batch
// side-tables a compiler or stub generator fills in while it emits one
// task's worth of code.
//
// Encodings follow the teacher's x86/asm.go: 0xe8 is a relative CALL,
// 0xe9 a relative JMP, 0xf4 (HLT) is the halting-alignment padding byte,
// and REX.W (0x48) selects the 64-bit operand size.
package asm

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/wasmforge/modgen/buffer"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
)

const (
	rex  = 1 << 6
	rexW = rex | (1 << 3)

	opCall = 0xe8
	opJmp  = 0xe9

	paddingByte = 0xf4 // HLT

	placeholderLen = 4 // rel32
)

// JumpImmediateRange is the true range of an x86-64 rel32 branch
// displacement.
const JumpImmediateRange = 1<<31 - 1

// Assembler is the per-task machine-code buffer plus side-tables. A
// single Assembler is reused across tasks via Drain, which snapshots its
// state into a CompiledCode and resets the buffer for the next task.
type Assembler struct {
	buf     buffer.Dynamic
	oom     bool
	maxSize int

	codeRanges       []object.CodeRange
	callSites        []object.CallSite
	callSiteTargets  []object.CallSiteTarget
	trapFarJumps     []object.TrapFarJump
	callFarJumps     []object.CallFarJump
	memoryAccesses   []object.MemoryAccess
	symbolicAccesses []object.SymbolicAccess
	codeLabels       []object.CodeLabel
}

// New assembler with a size hint and hard cap. A maxSize of 0 means
// unbounded.
func New(sizeHint, maxSize int) *Assembler {
	a := &Assembler{
		maxSize: maxSize,
	}
	a.buf = *buffer.NewDynamicHint(nil, maxSize)
	if sizeHint > 0 {
		a.Reserve(sizeHint)
	}
	return a
}

// Reserve ensures at least n bytes of spare capacity without changing
// Size.
func (a *Assembler) Reserve(n int) {
	if a.oom {
		return
	}
	b := a.buf.Extend(n)
	a.buf.ResizeBytes(a.buf.Len() - len(b))
}

// Size is the current length of the buffer in bytes.
func (a *Assembler) Size() uint32 {
	return uint32(a.buf.Len())
}

// CurrentOffset is an alias for Size used at call sites where "offset of
// the next byte to be written" reads more naturally.
func (a *Assembler) CurrentOffset() uint32 {
	return a.Size()
}

// HaltingAlign pads the buffer with HLT bytes up to the next multiple of
// alignment.
func (a *Assembler) HaltingAlign(alignment int) {
	if alignment <= 1 {
		return
	}
	rem := a.buf.Len() % alignment
	if rem == 0 {
		return
	}
	pad := alignment - rem
	b := a.safeExtend(pad)
	for i := range b {
		b[i] = paddingByte
	}
}

// AppendRawCode appends opaque machine code bytes. It returns false (and
// sets OOM) if the maximum size would be exceeded.
func (a *Assembler) AppendRawCode(code []byte) bool {
	b := a.safeExtend(len(code))
	if b == nil {
		return false
	}
	copy(b, code)
	return true
}

// FarJumpWithPatch emits a placeholder relative jump (opcode + 4 zero
// bytes) and returns the offset of the displacement field, to be filled
// in later by PatchFarJump.
func (a *Assembler) FarJumpWithPatch() uint32 {
	b := a.safeExtend(1 + placeholderLen)
	if b == nil {
		return 0
	}
	b[0] = opJmp
	patchOffset := a.buf.Len() - placeholderLen
	return uint32(patchOffset)
}

// PatchCall overwrites the 4-byte displacement of the CALL instruction
// that ends at callerOffset (its return address: the opcode byte sits at
// callerOffset-5 and the displacement in the 4 bytes before callerOffset,
// the conventional layout for a 5-byte relative call) so that it targets
// calleeOffset.
func (a *Assembler) PatchCall(callerOffset, calleeOffset uint32) {
	a.patchRel32(callerOffset-placeholderLen, callerOffset, calleeOffset)
}

// PatchFarJump overwrites the displacement field at codeOffset (as
// returned by FarJumpWithPatch) so that the jump targets targetOffset.
func (a *Assembler) PatchFarJump(codeOffset, targetOffset uint32) {
	nextInsnOffset := codeOffset + placeholderLen
	a.patchRel32(codeOffset, nextInsnOffset, targetOffset)
}

func (a *Assembler) patchRel32(dispOffset, nextInsnOffset, targetOffset uint32) {
	rel := int32(targetOffset) - int32(nextInsnOffset)
	binary.LittleEndian.PutUint32(a.buf.Bytes()[dispOffset:dispOffset+placeholderLen], uint32(rel))
}

// EmitCall appends a direct relative CALL to target and records a Func
// call site for later patching; it returns the call site's index.
func (a *Assembler) EmitCall(funcIndex uint32) int {
	b := a.safeExtend(1 + placeholderLen)
	if b == nil {
		return -1
	}
	b[0] = opCall
	returnAddr := uint32(a.buf.Len())
	a.callSites = append(a.callSites, object.CallSite{
		ReturnAddrOffset: returnAddr,
		Kind:             object.Func,
	})
	a.callSiteTargets = append(a.callSiteTargets, object.CallSiteTarget{FuncIndex: funcIndex})
	return len(a.callSites) - 1
}

// EmitTrapCall appends a direct relative CALL to a trap handler and
// records a trap-exit call site keyed by trapID.
func (a *Assembler) EmitTrapCall(trapID trap.ID) int {
	b := a.safeExtend(1 + placeholderLen)
	if b == nil {
		return -1
	}
	b[0] = opCall
	returnAddr := uint32(a.buf.Len())
	a.callSites = append(a.callSites, object.CallSite{
		ReturnAddrOffset: returnAddr,
		Kind:             object.CallSiteTrapExit,
	})
	a.callSiteTargets = append(a.callSiteTargets, object.CallSiteTarget{Trap: trapID})
	return len(a.callSites) - 1
}

// LoadPtr emits a TLS-register reload: mov reg, [rbp+offset], REX.W
// qword load from the frame pointer. It is used in trap and breakpoint
// far-jump island preludes, which must restore the TLS register because
// intervening code may have clobbered it.
func (a *Assembler) LoadPtr(frameOffset int8, reg byte) {
	const (
		modDisp8 = (0 << 1) | (1 << 0)
		rbp      = 5
	)
	b := a.safeExtend(3 + 1)
	if b == nil {
		return
	}
	b[0] = rexW
	b[1] = 0x8b
	b[2] = (modDisp8 << 6) | (reg << 3) | rbp
	b[3] = byte(frameOffset)
}

// Flush is a no-op placeholder for assemblers that buffer writes through
// an mmap'd region; the Dynamic-backed buffer here has nothing to flush.
func (a *Assembler) Flush() {}

// Finish returns the final machine code. It is an error to call Finish
// while any side-table is non-empty: the caller must have drained them
// into a CompiledCode first.
func (a *Assembler) Finish() ([]byte, error) {
	if len(a.callSites) != 0 || len(a.trapFarJumps) != 0 || len(a.callFarJumps) != 0 ||
		len(a.memoryAccesses) != 0 || len(a.symbolicAccesses) != 0 || len(a.codeLabels) != 0 {
		return nil, errors.New("asm: side-tables not drained before finish")
	}
	return a.buf.Bytes(), nil
}

// OOM reports whether any emission has failed due to the size cap.
func (a *Assembler) OOM() bool {
	return a.oom
}

func (a *Assembler) safeExtend(n int) []byte {
	if a.oom {
		return nil
	}
	if a.maxSize != 0 && a.buf.Len()+n > a.maxSize {
		a.oom = true
		return nil
	}
	return a.buf.Extend(n)
}

// AppendCodeRange records a code range produced by the caller (a
// compiler or stub generator) for inclusion in the next Drain.
func (a *Assembler) AppendCodeRange(r object.CodeRange) {
	a.codeRanges = append(a.codeRanges, r)
}

// CodeRanges returns the code ranges recorded since the last Drain.
func (a *Assembler) CodeRanges() []object.CodeRange { return a.codeRanges }

// CallSites returns the call sites recorded since the last Drain.
func (a *Assembler) CallSites() []object.CallSite { return a.callSites }

// CallSiteTargets returns the call site targets parallel to CallSites.
func (a *Assembler) CallSiteTargets() []object.CallSiteTarget { return a.callSiteTargets }

// TrapFarJumps returns the pending trap far-jump patch requests.
func (a *Assembler) TrapFarJumps() []object.TrapFarJump { return a.trapFarJumps }

// CallFarJumps returns the pending call far-jump patch requests.
func (a *Assembler) CallFarJumps() []object.CallFarJump { return a.callFarJumps }

// MemoryAccesses returns the recorded memory access offsets.
func (a *Assembler) MemoryAccesses() []object.MemoryAccess { return a.memoryAccesses }

// SymbolicAccesses returns the recorded symbolic relocation requests.
func (a *Assembler) SymbolicAccesses() []object.SymbolicAccess { return a.symbolicAccesses }

// CodeLabels returns the recorded internal label relocations.
func (a *Assembler) CodeLabels() []object.CodeLabel { return a.codeLabels }

// Drain snapshots the buffer and side-tables into a CompiledCode and
// resets the Assembler so it can be reused for the next task.
func (a *Assembler) Drain() object.CompiledCode {
	cc := object.CompiledCode{
		Bytes:            a.buf.Bytes(),
		CodeRanges:       a.codeRanges,
		CallSites:        a.callSites,
		CallSiteTargets:  a.callSiteTargets,
		TrapFarJumps:     a.trapFarJumps,
		CallFarJumps:     a.callFarJumps,
		MemoryAccesses:   a.memoryAccesses,
		SymbolicAccesses: a.symbolicAccesses,
		CodeLabels:       a.codeLabels,
	}
	a.buf = *buffer.NewDynamicHint(nil, a.maxSize)
	a.codeRanges = nil
	a.callSites = nil
	a.callSiteTargets = nil
	a.trapFarJumps = nil
	a.callFarJumps = nil
	a.memoryAccesses = nil
	a.symbolicAccesses = nil
	a.codeLabels = nil
	a.oom = false
	return cc
}
