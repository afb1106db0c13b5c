package shift

import "testing"

func window(startH, startM, endH, endM int) Window {
	return Window{Start: startH*60 + startM, End: endH*60 + endM}
}

func TestDisjointDaytimeWindows(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(18, 0, 21, 0) // 60 min gap, beyond tolerance
	if res := Overlaps(a, b, DefaultToleranceSeconds); res.Overlap {
		t.Fatalf("expected no overlap, got %+v", res)
	}
}

func TestGapInsideToleranceConflicts(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(17, 25, 21, 0) // 25 min gap, inside 30 min tolerance
	if res := Overlaps(a, b, DefaultToleranceSeconds); !res.Overlap {
		t.Fatalf("expected overlap, got %+v", res)
	}
}

func TestGapBeyondToleranceClears(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(17, 35, 21, 0) // 35 min gap, beyond 30 min tolerance
	if res := Overlaps(a, b, DefaultToleranceSeconds); res.Overlap {
		t.Fatalf("expected no overlap, got %+v", res)
	}
}

func TestRealOverlap(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(16, 0, 20, 0)
	if res := Overlaps(a, b, 0); !res.Overlap {
		t.Fatalf("expected overlap, got %+v", res)
	}
}

func TestOvernightAdjustedEnd(t *testing.T) {
	a := window(22, 0, 6, 0)
	res := Overlaps(a, window(9, 0, 10, 0), 0)
	if res.AdjEndA != 6*60+1440 {
		t.Fatalf("expected adjusted end %d, got %d", 6*60+1440, res.AdjEndA)
	}
}

func TestOvernightTailCollidesWithMorningShift(t *testing.T) {
	// 22:00-06:00 overnight vs 05:30-09:00: a 30 min real overlap at the
	// boundary that the tolerance must not absorb.
	a := window(22, 0, 6, 0)
	b := window(5, 30, 9, 0)
	if res := Overlaps(a, b, DefaultToleranceSeconds); !res.Overlap {
		t.Fatalf("expected overlap, got %+v", res)
	}
	if res := Overlaps(b, a, DefaultToleranceSeconds); !res.Overlap {
		t.Fatalf("expected symmetric overlap, got %+v", res)
	}
}

func TestOvernightClearOfLateMorning(t *testing.T) {
	a := window(22, 0, 6, 0)
	b := window(7, 0, 11, 0) // 60 min after the overnight tail
	if res := Overlaps(a, b, DefaultToleranceSeconds); res.Overlap {
		t.Fatalf("expected no overlap, got %+v", res)
	}
}

func TestZeroLengthWindows(t *testing.T) {
	a := window(10, 0, 10, 0)
	if res := Overlaps(a, a, 0); !res.Overlap {
		t.Fatal("zero-length window should overlap itself")
	}
	b := window(12, 0, 12, 0)
	if res := Overlaps(a, b, 0); res.Overlap {
		t.Fatal("distinct zero-length windows should not overlap at zero tolerance")
	}
}

func TestTouchingWindowsInsideToleranceBand(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(17, 0, 21, 0)
	if res := Overlaps(a, b, DefaultToleranceSeconds); !res.Overlap {
		t.Fatalf("boundary touch is inside the tolerance band, got %+v", res)
	}
}

func TestNegativeToleranceSelectsDefault(t *testing.T) {
	a := window(9, 0, 17, 0)
	b := window(17, 25, 21, 0)
	if res := Overlaps(a, b, -1); !res.Overlap {
		t.Fatalf("expected default tolerance to apply, got %+v", res)
	}
}

func TestClock(t *testing.T) {
	cases := map[int]string{
		0:    "0:00",
		330:  "5:30",
		1320: "22:00",
		1800: "6:00", // wrapped overnight end
	}
	for in, want := range cases {
		if got := Clock(in); got != want {
			t.Fatalf("Clock(%d)=%q, want %q", in, got, want)
		}
	}
}
