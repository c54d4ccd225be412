package trap

import "testing"

func TestStringUnique(t *testing.T) {
	seen := make(map[string]ID)
	for id := ID(0); id < NumTraps; id++ {
		s := id.String()
		if other, ok := seen[s]; ok {
			t.Fatalf("trap %d and %d share the string %q", id, other, s)
		}
		seen[s] = id
	}
}

func TestErrorPrefixed(t *testing.T) {
	if Unreachable.Error() != "trap: "+Unreachable.String() {
		t.Fatal("1")
	}
}

func TestUnknownTrap(t *testing.T) {
	if got := NumTraps.String(); got == "" {
		t.Fatal("1")
	}
}
