package modgen

import (
	"testing"

	"github.com/wasmforge/modgen/compiler"
	"github.com/wasmforge/modgen/env"
	moderrors "github.com/wasmforge/modgen/errors"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
	"github.com/wasmforge/modgen/wa"
)

func constBody(v uint32) []byte {
	return []byte{0x01, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24), 0x04}
}

func callBody(fi uint32) []byte {
	return []byte{0x02, byte(fi), byte(fi >> 8), byte(fi >> 16), byte(fi >> 24), 0x04}
}

func twoFuncModule() *env.Module {
	return &env.Module{
		Signatures: []wa.FuncType{{}},
		Functions: []env.FuncDecl{
			{SignatureIndex: 0},
			{SignatureIndex: 0},
		},
		Exports: []env.Export{{Name: "f0", FuncIndex: 0}},
	}
}

// runModule drives a Generator through its full lifecycle for a
// two-function module where function 1 calls function 0, and returns it
// for inspection.
func runModule(t *testing.T, cfg Config) *Generator {
	mod := twoFuncModule()
	g := New(mod, Baseline{}, nil, cfg)

	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	g.StartFuncDefs()

	if err := g.CompileFuncDef(0, mod.Signatures[0], constBody(7)); err != nil {
		t.Fatalf("CompileFuncDef(0): %v", err)
	}
	if err := g.CompileFuncDef(1, mod.Signatures[0], callBody(0)); err != nil {
		t.Fatalf("CompileFuncDef(1): %v", err)
	}
	if err := g.FinishFuncDefs(); err != nil {
		t.Fatalf("FinishFuncDefs: %v", err)
	}

	meta, linkData, code, _, err := g.FinishModule(nil)
	if err != nil {
		t.Fatalf("FinishModule: %v", err)
	}
	if meta == nil || linkData == nil || code == nil {
		t.Fatal("FinishModule returned a nil artifact")
	}
	return g
}

// Baseline is re-exported here only for test readability; it is the same
// compiler.Baseline used throughout the compiler package's own tests.
type Baseline = compiler.Baseline

func TestFullLifecycleDirectCall(t *testing.T) {
	g := runModule(t, Config{})

	if g.state != Finalized {
		t.Fatalf("state = %v, want Finalized", g.state)
	}
	if len(g.metadataTier.FuncExports) != 1 {
		t.Fatalf("got %d func exports, want 1", len(g.metadataTier.FuncExports))
	}
	if g.metadataTier.FuncExports[0].FuncIndex != 0 {
		t.Fatal("wrong exported function")
	}
}

func TestTightJumpThresholdForcesFarJumpIsland(t *testing.T) {
	g := runModule(t, Config{JumpThreshold: 1})

	foundIsland := false
	for _, r := range g.metadataTier.CodeRanges {
		if r.Kind == object.FarJumpIsland {
			foundIsland = true
		}
	}
	if !foundIsland {
		t.Fatal("expected a far-jump island with JumpThreshold=1")
	}
}

func TestCallSitesAllResolved(t *testing.T) {
	g := runModule(t, Config{})

	if g.lastPatchedCallSite != len(g.metadataTier.CallSites) {
		t.Fatalf("lastPatchedCallSite = %d, want %d", g.lastPatchedCallSite, len(g.metadataTier.CallSites))
	}
	if len(g.callFarJumps) != 0 || len(g.trapFarJumps) != 0 {
		t.Fatal("far jump requests left unpatched after finishLinking")
	}
}

func TestCodeRangesSorted(t *testing.T) {
	g := runModule(t, Config{})

	m := object.CodeRangeMap{Ranges: g.metadataTier.CodeRanges}
	if !m.Sorted() {
		t.Fatal("code ranges are not append-ordered by Begin")
	}
}

func TestRequireStatePanicsOutOfOrder(t *testing.T) {
	mod := twoFuncModule()
	g := New(mod, Baseline{}, nil, Config{})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling StartFuncDefs before Init")
		}
	}()
	g.StartFuncDefs()
}

func TestCancelBeforeFinishModule(t *testing.T) {
	mod := twoFuncModule()
	g := New(mod, Baseline{}, nil, Config{})

	if err := g.Init(); err != nil {
		t.Fatal(err)
	}
	g.StartFuncDefs()
	if err := g.CompileFuncDef(0, mod.Signatures[0], constBody(1)); err != nil {
		t.Fatal(err)
	}
	if err := g.CompileFuncDef(1, mod.Signatures[0], constBody(2)); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishFuncDefs(); err != nil {
		t.Fatal(err)
	}

	g.Cancel()
	_, _, _, _, err := g.FinishModule(nil)
	if err != moderrors.ErrCancelled {
		t.Fatalf("FinishModule error = %v, want ErrCancelled", err)
	}
}

func TestExportOfUnreachableFunctionPanics(t *testing.T) {
	mod := &env.Module{
		Signatures: []wa.FuncType{{}},
		Functions:  []env.FuncDecl{{SignatureIndex: 0}},
		Exports:    []env.Export{{Name: "missing", FuncIndex: 0}},
	}
	g := New(mod, Baseline{}, nil, Config{})
	if err := g.Init(); err != nil {
		t.Fatal(err)
	}
	g.StartFuncDefs()
	// Never compile function 0.
	if err := g.FinishFuncDefs(); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic exporting an uncompiled function")
		}
	}()
	g.FinishModule(nil)
}

func TestTrapExitReachableFromBaselineCompiler(t *testing.T) {
	mod := &env.Module{
		Signatures: []wa.FuncType{{}},
		Functions:  []env.FuncDecl{{SignatureIndex: 0}},
	}
	g := New(mod, Baseline{}, nil, Config{})
	if err := g.Init(); err != nil {
		t.Fatal(err)
	}
	g.StartFuncDefs()

	body := []byte{0x03, byte(trap.MemoryOutOfBounds), 0x04}
	if err := g.CompileFuncDef(0, mod.Signatures[0], body); err != nil {
		t.Fatal(err)
	}
	if err := g.FinishFuncDefs(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, _, err := g.FinishModule(nil); err != nil {
		t.Fatal(err)
	}

	if !g.trapCodeOffsetsSet[trap.MemoryOutOfBounds] {
		t.Fatal("trap exit never linked for MemoryOutOfBounds")
	}
}
