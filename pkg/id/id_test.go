package id

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestCompareOrder(t *testing.T) {
	tests := []struct {
		name string
		a, b ID
		want int
	}{
		{"ms decides", ID{1, "z", 9}, ID{2, "a", 0}, -1},
		{"node breaks ms tie", ID{5, "a", 9}, ID{5, "b", 0}, -1},
		{"seq breaks node tie", ID{5, "a", 1}, ID{5, "a", 2}, -1},
		{"equal", ID{5, "a", 1}, ID{5, "a", 1}, 0},
		{"newer", ID{6, "a", 0}, ID{5, "b", 7}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Fatalf("Compare = %d, want %d", got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Fatalf("reverse Compare = %d, want %d", got, -tt.want)
			}
		})
	}
}

func TestComparatorMatchesProductionOrder(t *testing.T) {
	tm, _ := NewTimer("n")
	prev := tm.Next()
	for i := 0; i < 2000; i++ {
		cur := tm.Next()
		if !IsFirstOlder(prev, cur) {
			t.Fatalf("order broken at %d: %v then %v", i, prev, cur)
		}
		if i%500 == 0 {
			time.Sleep(time.Millisecond)
		}
		prev = cur
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	for _, v := range []ID{{1473564435318, "server", 0}, {1, "node with spaces", 12}, {0, "x", 0}} {
		got, err := Parse(v.String())
		if err != nil {
			t.Fatalf("parse %q: %v", v.String(), err)
		}
		if got != v {
			t.Fatalf("round trip: %+v != %+v", got, v)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "1", "1 a", "x a 1", "1 a y", " a 1", "1 a "} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("Parse(%q): expected ErrInvalidID, got %v", s, err)
		}
	}
}

func TestKeyOrderMatchesCompare(t *testing.T) {
	ids := []ID{
		{-5, "a", 0},
		{0, "a", 0},
		{1, "", 3},
		{1, "a", 0},
		{1, "a", 1},
		{1, "ab", 0},
		{1, "b", 0},
		{2, "a", 0},
	}
	for i := range ids {
		for j := range ids {
			ki := AppendKey(nil, ids[i])
			kj := AppendKey(nil, ids[j])
			if got, want := bytes.Compare(ki, kj), Compare(ids[i], ids[j]); got != want {
				t.Fatalf("key order %v vs %v: bytes %d compare %d", ids[i], ids[j], got, want)
			}
		}
	}
}

func TestDecodeKey(t *testing.T) {
	v := ID{Ms: 1473564435318, Node: "srv:1", Seq: 77}
	got, err := DecodeKey(AppendKey([]byte{}, v))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != v {
		t.Fatalf("decode: %+v != %+v", got, v)
	}
	if _, err := DecodeKey([]byte("short")); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestValidateKeyable(t *testing.T) {
	if err := ValidateKeyable(ID{Node: "ok"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := ValidateKeyable(ID{Node: "a\x00b"}); !errors.Is(err, ErrNodeNotKeyable) {
		t.Fatalf("expected ErrNodeNotKeyable, got %v", err)
	}
}

func TestIsZero(t *testing.T) {
	if !(ID{}).IsZero() {
		t.Fatalf("zero id")
	}
	if (ID{Node: "n"}).IsZero() {
		t.Fatalf("non-zero id")
	}
}
