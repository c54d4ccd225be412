// Package stub implements the stub generator black box: it emits the
// fixed machine-code trampolines every module needs regardless of its
// function bodies — entry points, import exits, trap exits, the debug
// trap, and the guard-page sentinel stubs — and returns them as a single
// CompiledCode, the same shape a per-function compiler task produces.
package stub

import (
	"github.com/pkg/errors"

	"github.com/wasmforge/modgen/asm"
	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
)

const stubAlign = 16

// Generate emits one code range per entry-point kind: one Entry
// trampoline per export, one ImportJitExit and one ImportInterpExit per
// import, one TrapExit per trap id (whether or not the module uses it),
// one shared DebugTrap, and the three guard-page sentinels
// OutOfBoundsExit, UnalignedExit and Interrupt. Throw has no code of its
// own to emit (it is only ever jumped to from elsewhere), so no Throw
// range is produced here.
func Generate(mod *env.Module, imports []object.FuncImport, exports []object.FuncExport) (object.CompiledCode, error) {
	a := asm.New(512+128*(len(imports)+len(exports)), 0)

	for i := range exports {
		if err := emitEntry(a, exports[i].FuncIndex); err != nil {
			return object.CompiledCode{}, err
		}
	}

	for i := range imports {
		if err := emitImportExit(a, uint32(i), object.ImportJitExit); err != nil {
			return object.CompiledCode{}, err
		}
		if err := emitImportExit(a, uint32(i), object.ImportInterpExit); err != nil {
			return object.CompiledCode{}, err
		}
	}

	for t := trap.ID(0); t < trap.NumTraps; t++ {
		if err := emitTrapExit(a, t); err != nil {
			return object.CompiledCode{}, err
		}
	}

	if err := emitSentinel(a, object.DebugTrap); err != nil {
		return object.CompiledCode{}, err
	}
	if err := emitSentinel(a, object.OutOfBoundsExit); err != nil {
		return object.CompiledCode{}, err
	}
	if err := emitSentinel(a, object.UnalignedExit); err != nil {
		return object.CompiledCode{}, err
	}
	if err := emitSentinel(a, object.Interrupt); err != nil {
		return object.CompiledCode{}, err
	}

	return a.Drain(), nil
}

func emitEntry(a *asm.Assembler, funcIndex uint32) error {
	a.HaltingAlign(stubAlign)
	begin := a.CurrentOffset()
	if !a.AppendRawCode(entryTrampoline()) {
		return errors.Errorf("stub: out of memory emitting entry for func %d", funcIndex)
	}
	a.AppendCodeRange(object.CodeRange{
		Kind:      object.Entry,
		Begin:     begin,
		End:       a.CurrentOffset(),
		FuncIndex: funcIndex,
	})
	return nil
}

func emitImportExit(a *asm.Assembler, importIndex uint32, kind object.CodeRangeKind) error {
	a.HaltingAlign(stubAlign)
	begin := a.CurrentOffset()
	if !a.AppendRawCode(importExitTrampoline()) {
		return errors.Errorf("stub: out of memory emitting import exit for import %d", importIndex)
	}
	a.AppendCodeRange(object.CodeRange{
		Kind:      kind,
		Begin:     begin,
		End:       a.CurrentOffset(),
		FuncIndex: importIndex,
	})
	return nil
}

func emitTrapExit(a *asm.Assembler, t trap.ID) error {
	a.HaltingAlign(stubAlign)
	begin := a.CurrentOffset()
	if !a.AppendRawCode(trapExitBody()) {
		return errors.Errorf("stub: out of memory emitting trap exit for %s", t)
	}
	a.AppendCodeRange(object.CodeRange{
		Kind:  object.TrapExit,
		Begin: begin,
		End:   a.CurrentOffset(),
		Trap:  t,
	})
	return nil
}

func emitSentinel(a *asm.Assembler, kind object.CodeRangeKind) error {
	a.HaltingAlign(stubAlign)
	begin := a.CurrentOffset()
	if !a.AppendRawCode(sentinelBody()) {
		return errors.Errorf("stub: out of memory emitting %s", kind)
	}
	a.AppendCodeRange(object.CodeRange{
		Kind:  kind,
		Begin: begin,
		End:   a.CurrentOffset(),
	})
	return nil
}

// The trampoline bodies below are placeholders for the real ABI
// transition sequences (stack frame setup, TLS register load, argument
// marshalling). They exist so code ranges have nonzero extent to patch
// far jumps against; a real backend would replace them function for
// function.

func entryTrampoline() []byte {
	return []byte{0x55, 0xc3} // push rbp; ret
}

func importExitTrampoline() []byte {
	return []byte{0x55, 0xc3}
}

func trapExitBody() []byte {
	return []byte{0xf4, 0xc3} // hlt; ret
}

func sentinelBody() []byte {
	return []byte{0xf4, 0xc3}
}
