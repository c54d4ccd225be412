package object

import "testing"

func TestCodeRangeKindStringsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for k := Function; k <= BuiltinThunk; k++ {
		s := k.String()
		if seen[s] {
			t.Fatalf("duplicate CodeRangeKind string %q", s)
		}
		seen[s] = true
	}
}

func TestCallSiteKindStringsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for k := Func; k <= LeaveFrame; k++ {
		s := k.String()
		if seen[s] {
			t.Fatalf("duplicate CallSiteKind string %q", s)
		}
		seen[s] = true
	}
}

func TestCallSiteTrapExitDistinctFromCodeRangeTrapExit(t *testing.T) {
	// object.TrapExit (CodeRangeKind) and object.CallSiteTrapExit
	// (CallSiteKind) must not collide as identifiers or render the same
	// string, even though both describe "a trap exit".
	if TrapExit.String() == CallSiteTrapExit.String() {
		t.Fatal("code range and call site trap-exit strings collide")
	}
}
