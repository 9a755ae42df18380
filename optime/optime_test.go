package optime

import (
	"testing"
	"time"
)

func mkOp(term int64, secs int64) OpTime {
	return New(time.Unix(secs, 0), term)
}

func TestCompare_TermDominates(t *testing.T) {
	a := mkOp(1, 1000)
	b := mkOp(2, 1)
	if Compare(a, b) >= 0 {
		t.Error("higher term must sort after lower term regardless of timestamp")
	}
}

func TestCompare_TimestampWithinTerm(t *testing.T) {
	a := mkOp(1, 5)
	b := mkOp(1, 10)
	if !Less(a, b) {
		t.Error("expected a < b within the same term")
	}
	if !After(b, a) {
		t.Error("expected b > a within the same term")
	}
}

func TestEqual(t *testing.T) {
	a := mkOp(3, 10)
	b := mkOp(3, 10)
	if !Equal(a, b) {
		t.Error("expected equal OpTimes to compare equal")
	}
}

func TestMax(t *testing.T) {
	a := mkOp(1, 100)
	b := mkOp(2, 1)
	if Max(a, b) != b {
		t.Error("Max must pick the higher-term OpTime")
	}
}

func TestIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero value must report IsZero")
	}
	if mkOp(1, 0).IsZero() {
		t.Error("nonzero term must not report IsZero")
	}
}

func TestSortDescending(t *testing.T) {
	ops := []OpTime{mkOp(2, 5), mkOp(2, 10), mkOp(1, 100), mkOp(2, 7)}
	SortDescending(ops)

	want := []OpTime{mkOp(2, 10), mkOp(2, 7), mkOp(2, 5), mkOp(1, 100)}
	for i := range want {
		if !Equal(ops[i], want[i]) {
			t.Errorf("index %d: got %+v, want %+v", i, ops[i], want[i])
		}
	}
}
