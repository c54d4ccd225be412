package stub

import (
	"testing"

	"github.com/wasmforge/modgen/env"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/trap"
)

func TestGenerateCoversEveryTrap(t *testing.T) {
	mod := &env.Module{}
	cc, err := Generate(mod, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[trap.ID]bool)
	for _, r := range cc.CodeRanges {
		if r.Kind == object.TrapExit {
			seen[r.Trap] = true
		}
	}
	for id := trap.ID(0); id < trap.NumTraps; id++ {
		if !seen[id] {
			t.Fatalf("no trap exit code range for %s", id)
		}
	}
}

func TestGenerateOneEntryPerExport(t *testing.T) {
	mod := &env.Module{}
	exports := []object.FuncExport{{FuncIndex: 3}, {FuncIndex: 7}}
	cc, err := Generate(mod, nil, exports)
	if err != nil {
		t.Fatal(err)
	}

	var entries []uint32
	for _, r := range cc.CodeRanges {
		if r.Kind == object.Entry {
			entries = append(entries, r.FuncIndex)
		}
	}
	if len(entries) != 2 || entries[0] != 3 || entries[1] != 7 {
		t.Fatalf("entries = %v, want [3 7]", entries)
	}
}

func TestGenerateOneExitPairPerImport(t *testing.T) {
	mod := &env.Module{}
	imports := []object.FuncImport{{}, {}}
	cc, err := Generate(mod, imports, nil)
	if err != nil {
		t.Fatal(err)
	}

	var jit, interp int
	for _, r := range cc.CodeRanges {
		switch r.Kind {
		case object.ImportJitExit:
			jit++
		case object.ImportInterpExit:
			interp++
		}
	}
	if jit != 2 || interp != 2 {
		t.Fatalf("jit=%d interp=%d, want 2 and 2", jit, interp)
	}
}

func TestGenerateSentinelsPresentOnce(t *testing.T) {
	mod := &env.Module{}
	cc, err := Generate(mod, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	count := map[object.CodeRangeKind]int{}
	for _, r := range cc.CodeRanges {
		count[r.Kind]++
	}
	for _, k := range []object.CodeRangeKind{object.DebugTrap, object.OutOfBoundsExit, object.UnalignedExit, object.Interrupt} {
		if count[k] != 1 {
			t.Fatalf("%s appears %d times, want 1", k, count[k])
		}
	}
}
