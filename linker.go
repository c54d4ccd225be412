package modgen

import (
	"github.com/pkg/errors"

	"github.com/wasmforge/modgen/metadata"
	"github.com/wasmforge/modgen/object"
)

// codeAlignment is the byte alignment the master buffer is padded to
// before splicing in each CompiledCode, matching the x86-64 convention
// of aligning function entries to a cache-line-friendly boundary.
const codeAlignment = 16

// linkCompiledCode appends one task's output into the master buffer,
// rebasing every task-local offset by the append position B, per
// spec.md §4.4. It is the Generator's only caller of noteCodeRange.
func (g *Generator) linkCompiledCode(code object.CompiledCode) error {
	g.master.HaltingAlign(codeAlignment)
	b := g.master.CurrentOffset()

	if !g.master.AppendRawCode(code.Bytes) {
		return errors.New("modgen: out of memory appending compiled code")
	}

	for _, r := range code.CodeRanges {
		r.Begin += b
		r.End += b
		idx := len(g.metadataTier.CodeRanges)
		g.metadataTier.CodeRanges = append(g.metadataTier.CodeRanges, r)
		if err := g.noteCodeRange(r, idx); err != nil {
			return err
		}
	}

	for _, cs := range code.CallSites {
		cs.ReturnAddrOffset += b
		g.metadataTier.CallSites = append(g.metadataTier.CallSites, cs)
	}
	g.callSiteTargets = append(g.callSiteTargets, code.CallSiteTargets...)

	for _, tfj := range code.TrapFarJumps {
		tfj.JumpPatchOffset += b
		g.trapFarJumps = append(g.trapFarJumps, tfj)
	}
	for _, cfj := range code.CallFarJumps {
		cfj.JumpPatchOffset += b
		g.callFarJumps = append(g.callFarJumps, cfj)
	}

	for _, ma := range code.MemoryAccesses {
		ma.Offset += b
		g.metadataTier.MemoryAccesses = append(g.metadataTier.MemoryAccesses, ma)
	}

	for _, sa := range code.SymbolicAccesses {
		g.linkData.SymbolicLinks[sa.Target] = append(g.linkData.SymbolicLinks[sa.Target], b+sa.PatchAt)
	}

	for _, cl := range code.CodeLabels {
		g.linkData.InternalLinks = append(g.linkData.InternalLinks, metadata.InternalLink{
			PatchAtOffset: b + cl.PatchAt,
			TargetOffset:  b + cl.Target,
		})
	}

	return g.maybeLinkCallSites()
}

// noteCodeRange is the closed dispatch over CodeRangeKind, sinking each
// newly appended range's per-kind side effect, per spec.md §4.5.
func (g *Generator) noteCodeRange(r object.CodeRange, idx int) error {
	switch r.Kind {
	case object.Function:
		if g.funcToCodeRange[r.FuncIndex] != noCodeRange {
			panic("modgen: function code range noted twice for the same function")
		}
		g.funcToCodeRange[r.FuncIndex] = idx

	case object.Entry:
		g.entryOffsetByFunc[r.FuncIndex] = r.Begin

	case object.ImportJitExit:
		g.funcImports[r.FuncIndex].JitExitOffset = r.Begin

	case object.ImportInterpExit:
		g.funcImports[r.FuncIndex].InterpExitOffset = r.Begin

	case object.TrapExit:
		if g.trapCodeOffsetsSet[r.Trap] {
			panic("modgen: trap exit code range noted twice for the same trap")
		}
		g.trapCodeOffsets[r.Trap] = r.Begin
		g.trapCodeOffsetsSet[r.Trap] = true

	case object.DebugTrap:
		if g.debugTrapCodeOffsetSet {
			panic("modgen: debug trap code range noted twice")
		}
		g.debugTrapCodeOffset = r.Begin
		g.debugTrapCodeOffsetSet = true

	case object.OutOfBoundsExit:
		if g.linkData.HasOutOfBoundsOffset {
			panic("modgen: out-of-bounds exit code range noted twice")
		}
		g.linkData.OutOfBoundsOffset = r.Begin
		g.linkData.HasOutOfBoundsOffset = true

	case object.UnalignedExit:
		if g.linkData.HasUnalignedAccessOffset {
			panic("modgen: unaligned exit code range noted twice")
		}
		g.linkData.UnalignedAccessOffset = r.Begin
		g.linkData.HasUnalignedAccessOffset = true

	case object.Interrupt:
		if g.linkData.HasInterruptOffset {
			panic("modgen: interrupt code range noted twice")
		}
		g.linkData.InterruptOffset = r.Begin
		g.linkData.HasInterruptOffset = true

	case object.Throw:
		// No-op: Throw ranges are only ever jumped to, never linked.

	case object.FarJumpIsland, object.BuiltinThunk:
		panic("modgen: noteCodeRange called with a patcher-only kind")

	default:
		panic("modgen: noteCodeRange called with an unexpected kind")
	}
	return nil
}
