//go:build gapstone

// Package dump implements DumpText, an optional debug aid that
// disassembles a finished CodeSegment and annotates it with code range
// boundaries. It is gated behind the gapstone build tag because gapstone
// is a cgo binding onto the native capstone library, the same opt-in
// posture the teacher's own disasm package has for this tooling.
package dump

import (
	"fmt"
	"io"

	"github.com/bnagy/gapstone"

	"github.com/wasmforge/modgen/object"
)

// DumpText disassembles text in AT&T syntax and writes one line per
// instruction to w, prefixing the line with the kind of code range the
// instruction falls in (per ranges, assumed sorted by Begin) whenever a
// range boundary is crossed.
func DumpText(w io.Writer, text []byte, ranges []object.CodeRange) error {
	engine, err := gapstone.New(gapstone.CS_ARCH_X86, gapstone.CS_MODE_64)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.SetOption(gapstone.CS_OPT_SYNTAX, gapstone.CS_OPT_SYNTAX_ATT); err != nil {
		return err
	}

	insns, err := engine.Disasm(text, 0, 0)
	if err != nil {
		return err
	}

	rangeMap := object.CodeRangeMap{Ranges: ranges}
	lastIdx := -2 // never equal to a valid or -1 FindCodeRange result on the first iteration

	for i := range insns {
		insn := insns[i]

		if idx := rangeMap.FindCodeRange(uint32(insn.Address)); idx != lastIdx {
			lastIdx = idx
			if idx >= 0 {
				fmt.Fprintf(w, "; --- %s ---\n", ranges[idx].Kind)
			}
		}

		fmt.Fprintf(w, "%8x:\t%s\t%s\n", insn.Address, insn.Mnemonic, insn.OpStr)
	}

	return nil
}
