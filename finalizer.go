package modgen

import (
	"crypto/sha1"

	"golang.org/x/sys/unix"

	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/metadata"
	"github.com/wasmforge/modgen/object"
)

// finishLinking runs the final call-site pass and patches every recorded
// far-jump request to its now-known target, per spec.md §4.7 bullet 1.
// The Assembler itself is finished later, by finishCodeSegment.
func (g *Generator) finishLinking() error {
	if err := g.linkCallSites(); err != nil {
		return err
	}

	for _, cfj := range g.callFarJumps {
		idx := g.funcToCodeRange[cfj.FuncIndex]
		if idx == noCodeRange {
			panic("modgen: far jump island targets a function that was never compiled")
		}
		g.master.PatchFarJump(cfj.JumpPatchOffset, g.metadataTier.CodeRanges[idx].Begin)
	}
	g.callFarJumps = nil

	for _, tfj := range g.trapFarJumps {
		if !g.trapCodeOffsetsSet[tfj.Trap] {
			panic("modgen: trap far jump targets a trap with no exit code range")
		}
		g.master.PatchFarJump(tfj.JumpPatchOffset, g.trapCodeOffsets[tfj.Trap])
	}
	g.trapFarJumps = nil

	for _, dtfj := range g.debugTrapFarJumps {
		if !g.debugTrapCodeOffsetSet {
			panic("modgen: debug trap far jump emitted with no debug trap code range")
		}
		g.master.PatchFarJump(dtfj.JumpPatchOffset, g.debugTrapCodeOffset)
	}
	g.debugTrapFarJumps = nil

	return nil
}

// finishFuncExports builds the sorted FuncExports vector for the given
// already-deduplicated, sorted exported function index set, per
// spec.md §4.7 bullet 2.
func (g *Generator) finishFuncExports(exportedFuncs []uint32) {
	exports := make([]object.FuncExport, len(exportedFuncs))
	for i, fi := range exportedFuncs {
		idx := g.funcToCodeRange[fi]
		if idx == noCodeRange {
			panic("modgen: exported function has no code range after finishLinking")
		}
		exports[i] = object.FuncExport{
			FuncIndex:      fi,
			Signature:      g.mod.FuncSignature(fi),
			EntryOffset:    g.entryOffsetByFunc[fi],
			CodeRangeIndex: idx,
		}
	}
	object.SortExports(exports)
	g.metadataTier.FuncExports = exports
	g.metadataTier.FuncImports = g.funcImports
}

// finishMetadata copies memory limits, tables and globals from the
// environment, rounds globalDataLength up to the real OS page size, and,
// if debug is enabled, stores the full 20-byte SHA-1 of the bytecode as
// the module hash, per spec.md §4.7 bullet 3. FuncNames, SectionRanges
// and Insns are left empty.
func (g *Generator) finishMetadata(bytecode []byte) (*metadata.Metadata, error) {
	g.shrinkMetadataTier()
	g.metadataTier.DebugTrapFarJumpOffsets = g.debugTrapFarJumpOffsets

	pageSize := uint32(unix.Getpagesize())
	length := alignUp(g.globalData.length, pageSize)

	meta := &metadata.Metadata{
		Tier:             g.metadataTier,
		MemorySizeLimit:  g.mod.MemorySizeLimit,
		GlobalDataLength: length,
		Tables:           append([]env.Table(nil), g.mod.Tables...),
		Globals:          append([]env.Global(nil), g.mod.Globals...),
		ElemSegments:     g.resolveElemSegments(),
		Debug:            g.mod.Debug,
	}

	if g.mod.Debug {
		sum := sha1.Sum(bytecode)
		meta.DebugHash = sum
	}

	return meta, nil
}

// shrinkMetadataTier reallocates CodeRanges, CallSites and MemoryAccesses
// at their final lengths so InitLegacy's fixed per-function presizing
// (and Init's own over-allocation, via append's growth factor) never
// leaks spare capacity into the finished artifacts, per spec.md §4.7
// bullet 3. Init and InitLegacy reach identical finished metadata; only
// peak capacity during compilation differs.
func (g *Generator) shrinkMetadataTier() {
	g.metadataTier.CodeRanges = append([]object.CodeRange(nil), g.metadataTier.CodeRanges...)
	g.metadataTier.CallSites = append([]object.CallSite(nil), g.metadataTier.CallSites...)
	g.metadataTier.MemoryAccesses = append([]object.MemoryAccess(nil), g.metadataTier.MemoryAccesses...)
}

// resolveElemSegments fills a parallel CodeRangeIndices for every
// element segment from funcToCodeRange, per spec.md §4.7 bullet 3.
// Functions an element segment references but that were never compiled
// resolve to noCodeRange, the same ⊥ sentinel createJumpTable uses.
func (g *Generator) resolveElemSegments() []metadata.ElemSegment {
	segs := make([]metadata.ElemSegment, len(g.mod.ElemSegments))
	for i, seg := range g.mod.ElemSegments {
		indices := make([]int, len(seg.FuncIndexes))
		for j, fi := range seg.FuncIndexes {
			indices[j] = g.funcToCodeRange[fi]
		}
		segs[i] = metadata.ElemSegment{
			TableIndex:       seg.TableIndex,
			Offset:           seg.Offset,
			CodeRangeIndices: indices,
		}
	}
	return segs
}

// finishCodeSegment finishes the master Assembler and wraps its bytes in
// a CodeSegment.
func (g *Generator) finishCodeSegment() (*metadata.CodeSegment, error) {
	text, err := g.master.Finish()
	if err != nil {
		return nil, err
	}
	return &metadata.CodeSegment{Text: text}, nil
}

// createJumpTable builds a tier-1 jump table: one entry per declared
// function, holding its Function code range's Begin offset, or -1 if it
// was never compiled.
func (g *Generator) createJumpTable() metadata.JumpTable {
	jt := make(metadata.JumpTable, len(g.mod.Functions))
	for i := range jt {
		idx := g.funcToCodeRange[i]
		if idx == noCodeRange {
			jt[i] = -1
			continue
		}
		jt[i] = int32(g.metadataTier.CodeRanges[idx].Begin)
	}
	return jt
}
