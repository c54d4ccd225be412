// Package env describes the module environment consumed by the
// generator: signatures, function declarations, imports, exports,
// tables, globals, element/data segments and tier/debug selection. It is
// filled in directly by the caller (or by tests); the bytecode parser
// that would normally populate it from a binary is an external
// collaborator, out of scope here.
package env

import (
	"sort"

	"github.com/wasmforge/modgen/wa"
)

// Tier selects a compilation quality level.
type Tier uint8

const (
	Baseline = Tier(iota)
	Optimizing
)

// FuncDecl is one function's signature index and body, in declaration
// order.
type FuncDecl struct {
	SignatureIndex uint32
	Body           []byte
}

// Import is an imported function's module/field name and signature.
type Import struct {
	Module    string
	Field     string
	Signature wa.FuncType
}

// Export names an exported function by its function index.
type Export struct {
	Name     string
	FuncIndex uint32
}

// Table describes one function table. External tables are reachable
// from outside the module (via import or export) and so their elements
// must be kept in the exported-function set.
type Table struct {
	MinSize  uint32
	MaxSize  uint32
	External bool
}

// Global describes one module-level global of the given type.
type Global struct {
	Type    wa.GlobalType
	InitI64 int64 // Interpretation depends on Type; constant initializers only.
}

// ElemSegment initializes a range of one table's elements with function
// indices.
type ElemSegment struct {
	TableIndex uint32
	Offset     uint32
	FuncIndexes []uint32
}

// DataSegment initializes a range of linear memory; carried through
// untouched by this generator (memory management is out of scope).
type DataSegment struct {
	MemoryIndex uint32
	Offset      uint32
	Bytes       []byte
}

// Module is the complete module environment the generator compiles
// against.
type Module struct {
	Signatures   []wa.FuncType
	Functions    []FuncDecl
	Imports      []Import
	Exports      []Export
	Tables       []Table
	Globals      []Global
	ElemSegments []ElemSegment
	DataSegments []DataSegment

	StartFunc      uint32
	HasStartFunc   bool
	MemorySizeLimit int

	Tier  Tier
	Debug bool

	// Legacy marks a module for ModuleGenerator::initAsmJS's fixed-size
	// presizing path, which is Generator.InitLegacy: it pre-sizes the
	// side-tables to fixed maxima instead of growing on demand, and
	// FinishModule still shrinks them to fit. The Generator does not read
	// this field; Generator.Init grows on demand whatever its value.
	Legacy bool
}

// FuncSignature returns the FuncType for a declared function index.
func (m *Module) FuncSignature(funcIndex uint32) wa.FuncType {
	return m.Signatures[m.Functions[funcIndex].SignatureIndex]
}

// ExternalTableFuncIndexes returns, in ascending order with duplicates
// removed, every function index referenced by an element segment of an
// externally-visible table.
func (m *Module) ExternalTableFuncIndexes() []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	for _, seg := range m.ElemSegments {
		if int(seg.TableIndex) >= len(m.Tables) || !m.Tables[seg.TableIndex].External {
			continue
		}
		for _, fi := range seg.FuncIndexes {
			if !seen[fi] {
				seen[fi] = true
				out = append(out, fi)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
