// Package metadata defines the artifacts the generator emits once a
// module has been finalized: the metadata side-tables, the link-data
// relocation table, the executable code segment, and the optional
// tier-1 jump table.
package metadata

import (
	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/object"
)

// MetadataTier is the accumulated, module-global side-table state built
// up over the whole module's lifetime.
type MetadataTier struct {
	CodeRanges     []object.CodeRange
	CallSites      []object.CallSite
	MemoryAccesses []object.MemoryAccess

	FuncImports []object.FuncImport
	FuncExports []object.FuncExport

	DebugTrapFarJumpOffsets []uint32
}

// InternalLink is a patch-at/target-at pair, both module-global offsets.
type InternalLink struct {
	PatchAtOffset  uint32
	TargetOffset   uint32
}

// LinkDataTier is the relocation table produced alongside MetadataTier.
type LinkDataTier struct {
	InternalLinks []InternalLink
	SymbolicLinks map[object.SymbolicTarget][]uint32

	OutOfBoundsOffset    uint32
	HasOutOfBoundsOffset bool

	UnalignedAccessOffset    uint32
	HasUnalignedAccessOffset bool

	InterruptOffset    uint32
	HasInterruptOffset bool
}

// NewLinkDataTier returns a LinkDataTier with its map initialized.
func NewLinkDataTier() *LinkDataTier {
	return &LinkDataTier{
		SymbolicLinks: make(map[object.SymbolicTarget][]uint32),
	}
}

// CodeSegment is the finished, contiguous executable code image.
type CodeSegment struct {
	Text []byte
}

// SectionRange records where one section of the original bytecode lived,
// carried through for diagnostics only.
type SectionRange struct {
	Name  string
	Begin uint32
	End   uint32
}

// InsnMap is an optional per-instruction source map: ModuleOffset is the
// offset of the instruction in the original bytecode, CodeOffset its
// offset in the finished CodeSegment. The Generator never fills one, so
// Metadata.Insns stays nil even when env.Module.Debug is set.
type InsnMap struct {
	ModuleOffset []uint32
	CodeOffset   []uint32
}

// Sorted reports whether the map's CodeOffset column is non-decreasing,
// the invariant callers rely on for binary search.
func (m InsnMap) Sorted() bool {
	for i := 1; i < len(m.CodeOffset); i++ {
		if m.CodeOffset[i] < m.CodeOffset[i-1] {
			return false
		}
	}
	return true
}

// ElemSegment mirrors one env.ElemSegment, resolved: CodeRangeIndices
// runs parallel to the original FuncIndexes, holding each function's
// index into MetadataTier.CodeRanges (or -1 if that function was never
// compiled), per spec.md §4.7 bullet 3.
type ElemSegment struct {
	TableIndex       uint32
	Offset           uint32
	CodeRangeIndices []int
}

// Metadata is the full set of module-describing artifacts produced at
// finalization, excluding the code bytes themselves (see CodeSegment).
type Metadata struct {
	Tier *MetadataTier

	MemorySizeLimit  int
	GlobalDataLength uint32

	Tables  []env.Table
	Globals []env.Global

	ElemSegments []ElemSegment

	FuncNames []string

	SectionRanges []SectionRange

	Debug    bool
	DebugHash [20]byte
	Insns    *InsnMap
}

// JumpTable is a tier-1 jump table: one entry per function, holding the
// offset (not a pointer — this module never executes code) of that
// function's tier-entry within the CodeSegment.
type JumpTable []int32
