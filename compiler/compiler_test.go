package compiler

import (
	"testing"

	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/trap"
)

func encodeConst(v uint32) []byte {
	return []byte{opConstI32, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func encodeCall(fi uint32) []byte {
	return []byte{opCall, byte(fi), byte(fi >> 8), byte(fi >> 16), byte(fi >> 24)}
}

func TestBaselineProducesOneCodeRangePerInput(t *testing.T) {
	mod := &env.Module{}
	inputs := []Input{
		{FuncIndex: 0, Body: append(encodeConst(1), opReturn)},
		{FuncIndex: 1, Body: append(encodeCall(0), opReturn)},
	}
	out, err := Baseline{}.Compile(mod, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.CodeRanges) != 2 {
		t.Fatalf("got %d code ranges, want 2", len(out.CodeRanges))
	}
	if out.CodeRanges[0].FuncIndex != 0 || out.CodeRanges[1].FuncIndex != 1 {
		t.Fatal("code ranges out of input order")
	}
	if len(out.CallSites) != 1 {
		t.Fatalf("got %d call sites, want 1", len(out.CallSites))
	}
}

func TestBaselineTrapOpcode(t *testing.T) {
	mod := &env.Module{}
	body := []byte{opTrap, byte(trap.IntegerDivideByZero), opReturn}
	out, err := Baseline{}.Compile(mod, []Input{{FuncIndex: 0, Body: body}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.CallSites) != 1 || out.CallSiteTargets[0].Trap != trap.IntegerDivideByZero {
		t.Fatal("trap call site not recorded correctly")
	}
}

func TestCompileRejectsTruncatedBody(t *testing.T) {
	mod := &env.Module{}
	body := []byte{opConstI32, 1, 2} // truncated operand
	if _, err := (Baseline{}).Compile(mod, []Input{{FuncIndex: 0, Body: body}}); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestCompileRejectsUnknownOpcode(t *testing.T) {
	mod := &env.Module{}
	if _, err := (Baseline{}).Compile(mod, []Input{{FuncIndex: 0, Body: []byte{0xff}}}); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestOptimizingFoldsRedundantConst(t *testing.T) {
	mod := &env.Module{}
	body := append(append(encodeConst(1), encodeConst(2)...), opReturn)
	baseline, err := Baseline{}.Compile(mod, []Input{{FuncIndex: 0, Body: body}})
	if err != nil {
		t.Fatal(err)
	}
	optimized, err := Optimizing{}.Compile(mod, []Input{{FuncIndex: 0, Body: body}})
	if err != nil {
		t.Fatal(err)
	}
	if len(optimized.Bytes) >= len(baseline.Bytes) {
		t.Fatalf("optimizing pass did not shrink output: %d >= %d", len(optimized.Bytes), len(baseline.Bytes))
	}
}
