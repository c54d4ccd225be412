package asm

import (
	"encoding/binary"
	"testing"

	"github.com/wasmforge/modgen/trap"
)

func TestHaltingAlign(t *testing.T) {
	a := New(0, 0)
	a.AppendRawCode([]byte{1, 2, 3})
	a.HaltingAlign(16)
	if a.Size()%16 != 0 {
		t.Fatalf("size %d not aligned", a.Size())
	}
	b := a.Drain().Bytes
	for i := 3; i < len(b); i++ {
		if b[i] != paddingByte {
			t.Fatalf("pad byte %d = %#x, want %#x", i, b[i], paddingByte)
		}
	}
}

func TestEmitCallRecordsSite(t *testing.T) {
	a := New(0, 0)
	idx := a.EmitCall(42)
	if idx != 0 {
		t.Fatal("1")
	}
	if len(a.CallSites()) != 1 {
		t.Fatal("2")
	}
	if a.CallSiteTargets()[0].FuncIndex != 42 {
		t.Fatal("3")
	}
}

func TestEmitTrapCallRecordsSite(t *testing.T) {
	a := New(0, 0)
	a.EmitTrapCall(trap.IntegerOverflow)
	if len(a.CallSites()) != 1 {
		t.Fatal("1")
	}
	if a.CallSiteTargets()[0].Trap != trap.IntegerOverflow {
		t.Fatal("2")
	}
}

func TestPatchCallWritesRel32(t *testing.T) {
	a := New(0, 0)
	a.AppendRawCode([]byte{0x90}) // one nop, so the call isn't at offset 0
	a.EmitCall(0)
	ret := a.CallSites()[0].ReturnAddrOffset
	calleeOffset := uint32(100)
	a.PatchCall(ret, calleeOffset)

	b := a.Drain().Bytes
	rel := int32(binary.LittleEndian.Uint32(b[ret-placeholderLen : ret]))
	if got := int32(ret) + rel; got != int32(calleeOffset) {
		t.Fatalf("patched target = %d, want %d", got, calleeOffset)
	}
}

func TestFinishFailsWithUndrainedSideTables(t *testing.T) {
	a := New(0, 0)
	a.EmitCall(0)
	if _, err := a.Finish(); err == nil {
		t.Fatal("expected error with undrained side-tables")
	}
}

func TestFinishSucceedsAfterDrain(t *testing.T) {
	a := New(0, 0)
	a.EmitCall(0)
	a.Drain()
	if _, err := a.Finish(); err != nil {
		t.Fatal(err)
	}
}

func TestMaxSizeTripsOOM(t *testing.T) {
	a := New(0, 4)
	if !a.AppendRawCode([]byte{1, 2, 3, 4}) {
		t.Fatal("1")
	}
	if a.AppendRawCode([]byte{5}) {
		t.Fatal("2")
	}
	if !a.OOM() {
		t.Fatal("3")
	}
}
