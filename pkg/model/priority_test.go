package model

import "testing"

func TestPriorityOrdering(t *testing.T) {
	null := NullPriority()
	num := NumberPriority(5)
	str := StringPriority("x")

	if !null.Less(num) {
		t.Error("null priority should sort before numeric")
	}
	if !num.Less(str) {
		t.Error("numeric priority should sort before string")
	}
	if str.Less(num) {
		t.Error("string priority should not sort before numeric")
	}
}

func TestPriorityNumberOrdering(t *testing.T) {
	if !NumberPriority(1).Less(NumberPriority(2)) {
		t.Error("1 should sort before 2")
	}
	if NumberPriority(2).Less(NumberPriority(1)) {
		t.Error("2 should not sort before 1")
	}
}

func TestPriorityStringOrdering(t *testing.T) {
	if !StringPriority("a").Less(StringPriority("b")) {
		t.Error("a should sort before b")
	}
}

func TestPriorityWireRoundTrip(t *testing.T) {
	cases := []Priority{NullPriority(), NumberPriority(42), StringPriority("hi")}
	for _, p := range cases {
		got := PriorityFromWire(p.Wire())
		if !got.Equal(p) {
			t.Errorf("round trip of %#v produced %#v", p, got)
		}
	}
}

func TestPriorityEqual(t *testing.T) {
	if !NumberPriority(3).Equal(NumberPriority(3)) {
		t.Error("equal numeric priorities should compare equal")
	}
	if NumberPriority(3).Equal(StringPriority("3")) {
		t.Error("different kinds should never be equal")
	}
}
