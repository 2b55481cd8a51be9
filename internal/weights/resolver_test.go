package weights

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

func sum(w litmatch.WeightVector) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func TestResolveNormalizesToOne(t *testing.T) {
	r := New("", zap.NewNop())
	for _, preset := range []string{"fast", "expert", "balanced", "unknown"} {
		for _, complexity := range []litmatch.Complexity{litmatch.ComplexityLow, litmatch.ComplexityMedium, litmatch.ComplexityHigh} {
			w := r.Resolve(preset, complexity)
			if s := sum(w); math.Abs(s-1) > 1e-9 {
				t.Fatalf("preset=%s complexity=%s: sum=%v, want 1", preset, complexity, s)
			}
			for k, v := range w {
				if v < 0 {
					t.Fatalf("preset=%s complexity=%s: negative weight %s=%v", preset, complexity, k, v)
				}
			}
		}
	}
}

func TestUnknownPresetFallsBackToDefault(t *testing.T) {
	r := New("", zap.NewNop())
	got := r.Resolve("does-not-exist", litmatch.ComplexityMedium)
	want := r.Resolve("balanced", litmatch.ComplexityMedium)
	for _, k := range litmatch.FeatureKeys {
		if math.Abs(got[k]-want[k]) > 1e-9 {
			t.Fatalf("key %s: got %v want %v", k, got[k], want[k])
		}
	}
}

func TestComplexityShiftsQAndTUp(t *testing.T) {
	r := New("", zap.NewNop())
	medium := r.Resolve("balanced", litmatch.ComplexityMedium)
	high := r.Resolve("balanced", litmatch.ComplexityHigh)
	if high["Q"] <= medium["Q"] {
		t.Fatalf("expected Q to increase under HIGH complexity: medium=%v high=%v", medium["Q"], high["Q"])
	}
	if high["T"] <= medium["T"] {
		t.Fatalf("expected T to increase under HIGH complexity: medium=%v high=%v", medium["T"], high["T"])
	}
	if high["U"] >= medium["U"] {
		t.Fatalf("expected U to decrease under HIGH complexity: medium=%v high=%v", medium["U"], high["U"])
	}
}

func TestReloadMissingFileKeepsPreviousVector(t *testing.T) {
	r := New("", zap.NewNop())
	before := r.Active()
	if _, err := r.Reload(); err == nil {
		t.Fatalf("expected reload of missing snapshot to fail")
	}
	after := r.Active()
	for _, k := range litmatch.FeatureKeys {
		if before[k] != after[k] {
			t.Fatalf("expected snapshot unchanged after failed reload, key %s: %v != %v", k, before[k], after[k])
		}
	}
}
