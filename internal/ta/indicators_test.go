package ta

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	if got := SMA(closes, 5); got != 3 {
		t.Fatalf("SMA(5) = %v, want 3", got)
	}
	if got := SMA(closes, 2); got != 4.5 {
		t.Fatalf("SMA(2) = %v, want 4.5", got)
	}
	if got := SMA(closes, 6); !math.IsNaN(got) {
		t.Fatalf("expected NaN for insufficient history, got %v", got)
	}
}

func TestRSIMonotoneSeries(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	if got := RSI(up, 14); got != 100 {
		t.Fatalf("RSI of strictly rising series = %v, want 100", got)
	}

	down := make([]float64, 30)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	if got := RSI(down, 14); got != 0 {
		t.Fatalf("RSI of strictly falling series = %v, want 0", got)
	}
}

func TestOBVSeries(t *testing.T) {
	closes := []float64{10, 11, 10.5, 10.5, 12}
	volumes := []float64{100, 200, 150, 80, 300}
	obv := OBVSeries(closes, volumes)
	want := []float64{0, 200, 50, 50, 350}
	for i := range want {
		if obv[i] != want[i] {
			t.Fatalf("obv[%d] = %v, want %v", i, obv[i], want[i])
		}
	}
	if OBVSeries(closes, volumes[:3]) != nil {
		t.Fatal("expected nil for mismatched lengths")
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{1, 2, 3, 4}); math.Abs(got-1) > 1e-12 {
		t.Fatalf("slope of linear series = %v, want 1", got)
	}
	if got := Slope([]float64{5, 5, 5}); got != 0 {
		t.Fatalf("slope of flat series = %v, want 0", got)
	}
	if got := Slope([]float64{1}); got != 0 {
		t.Fatalf("slope of single point = %v, want 0", got)
	}
}

func TestBollinger(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mid, up, low := Bollinger(values, 8, 2)
	if mid != 5 {
		t.Fatalf("middle = %v, want 5", mid)
	}
	if math.Abs(up-9) > 1e-9 || math.Abs(low-1) > 1e-9 {
		t.Fatalf("bands = (%v, %v), want (9, 1)", up, low)
	}
	mid, _, _ = Bollinger(values, 20, 2)
	if !math.IsNaN(mid) {
		t.Fatalf("expected NaN middle for short series, got %v", mid)
	}
}
