package wa

import "testing"

func TestTypeSize(t *testing.T) {
	cases := []struct {
		typ  Type
		want Size
	}{
		{I32, Size32},
		{F32, Size32},
		{I64, Size64},
		{F64, Size64},
		{V128, Size128},
	}
	for _, c := range cases {
		if got := c.typ.Size(); got != c.want {
			t.Fatalf("%s.Size() = %d, want %d", c.typ, got, c.want)
		}
	}
}

func TestTypeCategory(t *testing.T) {
	if I32.Category() != Int {
		t.Fatal("1")
	}
	if F64.Category() != Float {
		t.Fatal("2")
	}
}

func TestGlobalType(t *testing.T) {
	g := MakeGlobalType(I64, true)
	if g.Type() != I64 {
		t.Fatal("1")
	}
	if !g.Mutable() {
		t.Fatal("2")
	}

	g2 := MakeGlobalType(F32, false)
	if g2.Mutable() {
		t.Fatal("3")
	}
	if g2.Type() != F32 {
		t.Fatal("4")
	}
}

func TestFuncTypeEqual(t *testing.T) {
	a := FuncType{Params: []Type{I32, I64}, Results: []Type{F32}}
	b := FuncType{Params: []Type{I32, I64}, Results: []Type{F32}}
	c := FuncType{Params: []Type{I32}, Results: []Type{F32}}

	if !a.Equal(b) {
		t.Fatal("1")
	}
	if a.Equal(c) {
		t.Fatal("2")
	}
}
