// Package compiler implements the per-function compiler black box: it
// turns one batch of function bodies into a single CompiledCode, using
// an asm.Assembler to emit machine code and populate the side-tables the
// linker needs. Two implementations are provided, one per env.Tier; the
// Generator runs whichever one is passed to modgen.New, and
// env.Module.Tier does not choose between them.
package compiler

import (
	"github.com/pkg/errors"

	"github.com/wasmforge/modgen/asm"
	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
	"github.com/wasmforge/modgen/wa"
)

// Input is one function body to compile, identified by its module-wide
// function index.
type Input struct {
	FuncIndex uint32
	Sig       wa.FuncType
	Body      []byte
}

// Output is an alias kept for readability at call sites; the compiler
// black box's output is exactly a CompiledCode.
type Output = object.CompiledCode

// Func is the per-function compiler interface. Implementations must
// satisfy len(Output.CodeRanges) == len(inputs): every input produces
// exactly one Function code range, in input order.
type Func interface {
	Compile(mod *env.Module, inputs []Input) (Output, error)
}

// opcodes recognized by the toy bytecode format this generator compiles:
// a single byte selects the operation, optionally followed by operand
// bytes. This is a deliberately small instruction set; the real bytecode
// parser and decoder are external collaborators (spec scope line: "the
// bytecode parser ... is a black box").
const (
	opConstI32 = 0x01 // followed by 4 little-endian bytes
	opCall     = 0x02 // followed by 4-byte callee function index
	opTrap     = 0x03 // followed by 1 trap.ID byte
	opReturn   = 0x04
)

func decodeU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Baseline is a fast, non-optimizing compiler: one machine-code emission
// per bytecode op, no register allocation beyond loading operands into a
// scratch register and storing the result, mirroring the teacher's
// regalloc.go scratch-register idiom.
type Baseline struct{}

func (Baseline) Compile(mod *env.Module, inputs []Input) (Output, error) {
	a := asm.New(estimateSize(inputs), 0)
	for _, in := range inputs {
		if err := compileOne(a, mod, in); err != nil {
			return Output{}, err
		}
	}
	cc := a.Drain()
	if len(cc.CodeRanges) != len(inputs) {
		panic("compiler: produced a different number of code ranges than inputs")
	}
	return cc, nil
}

// Optimizing batches the same instruction selection as Baseline but
// additionally folds back-to-back constant loads, matching the "fast vs
// optimizing" tier distinction without requiring a second real backend.
type Optimizing struct{}

func (Optimizing) Compile(mod *env.Module, inputs []Input) (Output, error) {
	a := asm.New(estimateSize(inputs), 0)
	for _, in := range inputs {
		if err := compileOneOptimizing(a, mod, in); err != nil {
			return Output{}, err
		}
	}
	cc := a.Drain()
	if len(cc.CodeRanges) != len(inputs) {
		panic("compiler: produced a different number of code ranges than inputs")
	}
	return cc, nil
}

func estimateSize(inputs []Input) int {
	n := 0
	for _, in := range inputs {
		n += len(in.Body)*2 + 16
	}
	return n
}

// compileOne lowers a single function body into one Function code range,
// emitting a direct CALL for opCall and a trap-exit call for opTrap.
func compileOne(a *asm.Assembler, mod *env.Module, in Input) error {
	begin := a.CurrentOffset()

	body := in.Body
	for i := 0; i < len(body); {
		switch body[i] {
		case opConstI32:
			if i+5 > len(body) {
				return errors.Errorf("compiler: truncated const at func %d", in.FuncIndex)
			}
			if !a.AppendRawCode(movImm32Scratch(decodeU32(body[i+1 : i+5]))) {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 5

		case opCall:
			if i+5 > len(body) {
				return errors.Errorf("compiler: truncated call at func %d", in.FuncIndex)
			}
			callee := decodeU32(body[i+1 : i+5])
			if a.EmitCall(callee) < 0 {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 5

		case opTrap:
			if i+2 > len(body) {
				return errors.Errorf("compiler: truncated trap at func %d", in.FuncIndex)
			}
			trapID := trapIDFromByte(body[i+1])
			if a.EmitTrapCall(trapID) < 0 {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 2

		case opReturn:
			if !a.AppendRawCode(retInsn()) {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i++

		default:
			return errors.Errorf("compiler: unknown opcode %#x at func %d", body[i], in.FuncIndex)
		}
	}

	end := a.CurrentOffset()
	a.AppendCodeRange(object.CodeRange{
		Kind:      object.Function,
		Begin:     begin,
		End:       end,
		FuncIndex: in.FuncIndex,
	})
	return nil
}

// compileOneOptimizing is identical to compileOne except that it elides a
// redundant immediate load that is immediately followed by another
// immediate load (a trivial constant-folding pass).
func compileOneOptimizing(a *asm.Assembler, mod *env.Module, in Input) error {
	begin := a.CurrentOffset()

	body := in.Body
	for i := 0; i < len(body); {
		if body[i] == opConstI32 && i+10 <= len(body) && body[i+5] == opConstI32 {
			i += 5 // Skip the dead store; only the second constant survives.
			continue
		}

		switch body[i] {
		case opConstI32:
			if i+5 > len(body) {
				return errors.Errorf("compiler: truncated const at func %d", in.FuncIndex)
			}
			if !a.AppendRawCode(movImm32Scratch(decodeU32(body[i+1 : i+5]))) {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 5

		case opCall:
			if i+5 > len(body) {
				return errors.Errorf("compiler: truncated call at func %d", in.FuncIndex)
			}
			callee := decodeU32(body[i+1 : i+5])
			if a.EmitCall(callee) < 0 {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 5

		case opTrap:
			if i+2 > len(body) {
				return errors.Errorf("compiler: truncated trap at func %d", in.FuncIndex)
			}
			trapID := trapIDFromByte(body[i+1])
			if a.EmitTrapCall(trapID) < 0 {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i += 2

		case opReturn:
			if !a.AppendRawCode(retInsn()) {
				return errors.Errorf("compiler: out of memory compiling func %d", in.FuncIndex)
			}
			i++

		default:
			return errors.Errorf("compiler: unknown opcode %#x at func %d", body[i], in.FuncIndex)
		}
	}

	end := a.CurrentOffset()
	a.AppendCodeRange(object.CodeRange{
		Kind:      object.Function,
		Begin:     begin,
		End:       end,
		FuncIndex: in.FuncIndex,
	})
	return nil
}

func movImm32Scratch(imm uint32) []byte {
	const (
		rexW = (1 << 6) | (1 << 3)
		rax  = 0
	)
	b := make([]byte, 6)
	b[0] = rexW
	b[1] = 0xb8 + rax
	b[2] = byte(imm)
	b[3] = byte(imm >> 8)
	b[4] = byte(imm >> 16)
	b[5] = byte(imm >> 24)
	return b
}

func retInsn() []byte {
	return []byte{0xc3}
}

func trapIDFromByte(b byte) trap.ID {
	if int(b) >= int(trap.NumTraps) {
		return trap.Unreachable
	}
	return trap.ID(b)
}
