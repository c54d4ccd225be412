package object

import "testing"

func TestSortExportsAndFind(t *testing.T) {
	exports := []FuncExport{
		{FuncIndex: 5},
		{FuncIndex: 1},
		{FuncIndex: 3},
	}
	SortExports(exports)

	m := FuncMap{Exports: exports}
	if !m.Sorted() {
		t.Fatal("1")
	}

	if _, ok := m.FindFuncExport(3); !ok {
		t.Fatal("2")
	}
	if _, ok := m.FindFuncExport(4); ok {
		t.Fatal("3")
	}
	if _, ok := m.FindFuncExport(0); ok {
		t.Fatal("4")
	}
}

func TestCallMapFind(t *testing.T) {
	m := CallMap{CallSites: []CallSite{
		{ReturnAddrOffset: 10},
		{ReturnAddrOffset: 20},
		{ReturnAddrOffset: 30},
	}}
	if !m.Sorted() {
		t.Fatal("1")
	}
	if i := m.FindCallSite(15); i != 1 {
		t.Fatalf("FindCallSite(15) = %d, want 1", i)
	}
	if i := m.FindCallSite(30); i != 2 {
		t.Fatalf("FindCallSite(30) = %d, want 2", i)
	}
	if i := m.FindCallSite(31); i != 3 {
		t.Fatalf("FindCallSite(31) = %d, want 3", i)
	}
}

func TestCodeRangeMapFind(t *testing.T) {
	m := CodeRangeMap{Ranges: []CodeRange{
		{Begin: 0, End: 10},
		{Begin: 10, End: 20},
		{Begin: 20, End: 30},
	}}
	if !m.Sorted() {
		t.Fatal("1")
	}
	if i := m.FindCodeRange(15); i != 1 {
		t.Fatalf("FindCodeRange(15) = %d, want 1", i)
	}
	if i := m.FindCodeRange(0); i != 0 {
		t.Fatalf("FindCodeRange(0) = %d, want 0", i)
	}
}
