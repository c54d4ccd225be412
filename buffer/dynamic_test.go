package buffer

import "testing"

func TestDynamicExtendGrows(t *testing.T) {
	d := NewDynamic(nil)
	b := d.Extend(8)
	if len(b) != 8 {
		t.Fatal("1")
	}
	if d.Len() != 8 {
		t.Fatal("2")
	}

	d.PutByte(0xff)
	if d.Len() != 9 {
		t.Fatal("3")
	}
	if d.Bytes()[8] != 0xff {
		t.Fatal("4")
	}
}

func TestDynamicResizeBytes(t *testing.T) {
	d := NewDynamic(nil)
	d.Extend(4)
	b := d.ResizeBytes(2)
	if len(b) != 2 {
		t.Fatal("1")
	}
	if d.Len() != 2 {
		t.Fatal("2")
	}
}

func TestLimitedPanicsAtCap(t *testing.T) {
	l := NewLimited(nil, 4)
	l.Extend(4)

	defer func() {
		if recover() != ErrSizeLimit {
			t.Fatal("expected ErrSizeLimit panic")
		}
	}()
	l.PutByte(1)
}

func TestStaticPanicsPastCapacity(t *testing.T) {
	s := NewStatic(make([]byte, 0, 2))
	s.Extend(2)

	defer func() {
		if recover() != ErrSizeLimit {
			t.Fatal("expected ErrSizeLimit panic")
		}
	}()
	s.Extend(1)
}
