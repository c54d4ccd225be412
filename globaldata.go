package modgen

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/wasmforge/modgen/wa"
)

// globalDataAllocator assigns offsets in the module-global data region,
// generalizing WasmGenerator.cpp's allocateGlobalBytes/allocateGlobal:
// function-import TLS records, then table TLS records, then
// pointer-sized global signature-id slots, then mutable globals, each
// laid out at its natural alignment. Overflow is checked the way the
// teacher's buffer/dynamic.go checks it in grow(): compare the sum
// against its unsigned operands rather than trust the addition not to
// wrap.
type globalDataAllocator struct {
	length uint32
}

const pointerSize = 8

// allocateBytes reserves size bytes at the given alignment and returns
// the offset of the reservation's first byte.
func (g *globalDataAllocator) allocateBytes(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	aligned := alignUp(g.length, align)
	if aligned < g.length {
		return 0, errors.New("modgen: global data offset overflow")
	}
	sum := aligned + size
	if sum < aligned {
		return 0, errors.New("modgen: global data offset overflow")
	}
	g.length = sum
	return aligned, nil
}

func alignUp(n, align uint32) uint32 {
	if bits.OnesCount32(align) != 1 {
		panic("modgen: alignment must be a power of two")
	}
	return (n + align - 1) &^ (align - 1)
}

// allocateFuncImportTLS reserves one pointer-sized TLS record per
// import, in import order.
func (g *globalDataAllocator) allocateFuncImportTLS(numImports int) ([]uint32, error) {
	offsets := make([]uint32, numImports)
	for i := range offsets {
		off, err := g.allocateBytes(pointerSize, pointerSize)
		if err != nil {
			return nil, err
		}
		offsets[i] = off
	}
	return offsets, nil
}

// allocateTableTLS reserves one pointer-sized TLS record per table, in
// table order.
func (g *globalDataAllocator) allocateTableTLS(numTables int) ([]uint32, error) {
	return g.allocateFuncImportTLS(numTables) // same shape: one pointer each
}

// allocateSignatureIDSlots reserves one pointer-sized slot per signature
// whose id cannot be represented as an immediate; needsSlot[i] selects
// which signatures require one, so unused entries stay -1.
func (g *globalDataAllocator) allocateSignatureIDSlots(needsSlot []bool) ([]int64, error) {
	offsets := make([]int64, len(needsSlot))
	for i := range offsets {
		offsets[i] = -1
	}
	for i, need := range needsSlot {
		if !need {
			continue
		}
		off, err := g.allocateBytes(pointerSize, pointerSize)
		if err != nil {
			return nil, err
		}
		offsets[i] = int64(off)
	}
	return offsets, nil
}

// globalWidth returns the storage width in bytes of a mutable global of
// the given type, per spec.md §4.2: 4 for I32/F32, 8 for I64/F64, 16 for
// V128.
func globalWidth(t wa.Type) uint32 {
	return uint32(t.Size())
}

// allocateMutableGlobals reserves one naturally-aligned slot per mutable
// global, in declaration order; immutable globals (folded into code as
// immediates) get no slot and their offset is left at 0.
func (g *globalDataAllocator) allocateMutableGlobals(types []wa.GlobalType) ([]uint32, error) {
	offsets := make([]uint32, len(types))
	for i, gt := range types {
		if !gt.Mutable() {
			continue
		}
		w := globalWidth(gt.Type())
		off, err := g.allocateBytes(w, w)
		if err != nil {
			return nil, err
		}
		offsets[i] = off
	}
	return offsets, nil
}
