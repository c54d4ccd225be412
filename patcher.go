package modgen

import (
	"github.com/wasmforge/modgen/asm"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
)

// branchRange is min(jumpThreshold, asm.JumpImmediateRange), per
// spec.md §4.6.
func (g *Generator) branchRange() uint32 {
	if g.config.JumpThreshold != 0 && g.config.JumpThreshold < asm.JumpImmediateRange {
		return g.config.JumpThreshold
	}
	return asm.JumpImmediateRange
}

// inRange reports whether a and b are within branchRange of each other.
// The caller's offset is approximated by the call site's return-address
// offset, which the spec notes is conservative (Open Question 1: the
// slack this approximation needs is not quantified upstream).
func (g *Generator) inRange(a, b uint32) bool {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return uint64(d) < uint64(g.branchRange())
}

// maybeLinkCallSites triggers linkCallSites when continuing to append
// without patching would push the master buffer out of range of the
// oldest unpatched call site, per spec.md §4.6 trigger (a).
func (g *Generator) maybeLinkCallSites() error {
	if !g.inRange(g.master.CurrentOffset(), g.startOfUnpatchedCallSites) {
		return g.linkCallSites()
	}
	return nil
}

// linkCallSites walks call sites from lastPatchedCallSite to the current
// end, patching direct calls, synthesizing far-jump islands for
// out-of-range or not-yet-compiled callees, and advancing the two
// watermarks. Islands are cached per callee/trap for the duration of
// this one pass only (spec.md §9: "pass-local... a later pass may need
// to emit its own island for the same callee").
func (g *Generator) linkCallSites() error {
	start := g.lastPatchedCallSite
	end := len(g.metadataTier.CallSites)

	funcIslands := make(map[uint32]uint32)
	var trapIslandSet [trap.NumTraps]bool
	var trapIslandOffset [trap.NumTraps]uint32

	for i := start; i < end; i++ {
		cs := g.metadataTier.CallSites[i]
		target := g.callSiteTargets[i]

		switch cs.Kind {
		case object.Dynamic, object.Symbolic:
			continue

		case object.Func:
			if idx := g.funcToCodeRange[target.FuncIndex]; idx != noCodeRange {
				calleeEntry := g.metadataTier.CodeRanges[idx].Begin
				if g.inRange(cs.ReturnAddrOffset, calleeEntry) {
					g.master.PatchCall(cs.ReturnAddrOffset, calleeEntry)
					continue
				}
			}

			entry, ok := funcIslands[target.FuncIndex]
			if !ok {
				var patchOffset uint32
				entry, patchOffset = g.emitFarJumpIsland(false)
				funcIslands[target.FuncIndex] = entry
				g.callFarJumps = append(g.callFarJumps, object.CallFarJump{
					FuncIndex:      target.FuncIndex,
					FarJumpRequest: object.FarJumpRequest{JumpPatchOffset: patchOffset},
				})
			}
			g.master.PatchCall(cs.ReturnAddrOffset, entry)

		case object.CallSiteTrapExit:
			if !trapIslandSet[target.Trap] {
				_, patchOffset := g.emitFarJumpIsland(true)
				trapIslandSet[target.Trap] = true
				trapIslandOffset[target.Trap] = patchOffset
				g.trapFarJumps = append(g.trapFarJumps, object.TrapFarJump{
					Trap:           target.Trap,
					FarJumpRequest: object.FarJumpRequest{JumpPatchOffset: patchOffset},
				})
			}
			entry, _ := g.islandEntryFromPatchOffset(trapIslandOffset[target.Trap])
			g.master.PatchCall(cs.ReturnAddrOffset, entry)

		case object.Breakpoint, object.EnterFrame, object.LeaveFrame:
			n := len(g.debugTrapFarJumpOffsets)
			if n == 0 || !g.inRange(cs.ReturnAddrOffset, g.debugTrapFarJumpOffsets[n-1]) {
				entry, patchOffset := g.emitFarJumpIsland(true)
				g.debugTrapFarJumps = append(g.debugTrapFarJumps, object.FarJumpRequest{JumpPatchOffset: patchOffset})
				g.debugTrapFarJumpOffsets = append(g.debugTrapFarJumpOffsets, entry)
			}
			// The call site itself is not patched: the breakpoint
			// mechanism searches debugTrapFarJumpOffsets at runtime.

		default:
			panic("modgen: linkCallSites encountered an unexpected call site kind")
		}
	}

	g.lastPatchedCallSite = end
	g.startOfUnpatchedCallSites = g.master.CurrentOffset()
	return nil
}

// emitFarJumpIsland appends a patchable far jump at the master buffer's
// current end and records it as a FarJumpIsland code range. When
// withTLSReload is set, a TLS-register reload prelude (required on trap
// and breakpoint paths, since intervening code may have clobbered the
// TLS register) is emitted before the jump placeholder.
func (g *Generator) emitFarJumpIsland(withTLSReload bool) (entry, patchOffset uint32) {
	begin := g.master.CurrentOffset()
	if withTLSReload {
		g.master.LoadPtr(tlsFrameOffset, tlsScratchReg)
	}
	patchOffset = g.master.FarJumpWithPatch()
	end := g.master.CurrentOffset()

	g.metadataTier.CodeRanges = append(g.metadataTier.CodeRanges, object.CodeRange{
		Kind:  object.FarJumpIsland,
		Begin: begin,
		End:   end,
	})
	return begin, patchOffset
}

// islandEntryFromPatchOffset recovers an island's entry offset from its
// jump placeholder's patch offset: the prelude, if any, always precedes
// the placeholder by a fixed number of bytes. Since trap/debug islands
// always emit the TLS reload, the entry is patchOffset minus the jump's
// opcode byte and the prelude length.
func (g *Generator) islandEntryFromPatchOffset(patchOffset uint32) (entry uint32, ok bool) {
	return patchOffset - jmpOpcodeLen - tlsReloadLen, true
}

const (
	tlsFrameOffset = int8(-8) // conventional TLS-register save slot below rbp
	tlsScratchReg  = byte(0)  // rax
	tlsReloadLen   = 4        // bytes emitted by Assembler.LoadPtr
	jmpOpcodeLen   = 1        // opcode byte preceding FarJumpWithPatch's displacement
)
