package trend

import (
	"math"
	"testing"
)

func TestClassifyDeadband(t *testing.T) {
	tests := []struct {
		name          string
		current       float64
		previous      float64
		wantDirection Direction
		wantPercent   float64
	}{
		{"slightly up stays flat", 104, 100, DirectionFlat, 4},
		{"slightly down stays flat", 96, 100, DirectionFlat, -4},
		{"clear increase", 120, 100, DirectionIncreasing, 20},
		{"clear decrease", 70, 100, DirectionDecreasing, -30},
		{"exactly at deadband counts as movement", 105, 100, DirectionIncreasing, 5},
		{"no change", 100, 100, DirectionFlat, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.current, tt.previous)
			if !got.HasBaseline {
				t.Fatal("expected baseline")
			}
			if got.Direction != tt.wantDirection {
				t.Fatalf("direction = %s, want %s", got.Direction, tt.wantDirection)
			}
			if math.Abs(got.PercentChange-tt.wantPercent) > 1e-9 {
				t.Fatalf("percent = %v, want %v", got.PercentChange, tt.wantPercent)
			}
		})
	}
}

func TestClassifyNoBaseline(t *testing.T) {
	got := Classify(42, 0)

	if got.HasBaseline {
		t.Fatal("zero previous total must not produce a baseline")
	}
	if got.Direction != DirectionFlat {
		t.Fatalf("direction = %s, want flat placeholder", got.Direction)
	}
	if got.PercentChange != 0 {
		t.Fatalf("percent = %v, want zero value when undefined", got.PercentChange)
	}
}

func TestClassifyWithCustomDeadband(t *testing.T) {
	got := ClassifyWithDeadband(104, 100, 3)
	if got.Direction != DirectionIncreasing {
		t.Fatalf("direction = %s, want increasing with 3%% deadband", got.Direction)
	}
}
