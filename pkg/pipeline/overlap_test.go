package pipeline

import (
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{10, 10, 110, 110}, Box{10, 10, 110, 110}, 1},
		{"disjoint", Box{0, 0, 50, 50}, Box{500, 500, 550, 550}, 0},
		{"touching edges", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"contained", Box{0, 0, 10, 10}, Box{0, 0, 5, 10}, 0.5},
		{"zero area with itself", Box{5, 5, 5, 5}, Box{5, 5, 5, 5}, 0},
		{"zero area inside box", Box{5, 5, 5, 8}, Box{0, 0, 10, 10}, 0},
		{"inverted box", Box{10, 10, 0, 0}, Box{0, 0, 10, 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IoU(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("IoU(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if rev := IoU(tt.b, tt.a); rev != got {
				t.Fatalf("IoU not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestIoUOverlappingScenario(t *testing.T) {
	got := IoU(Box{10, 10, 110, 110}, Box{15, 15, 115, 115})
	if got < 0.8 || got > 0.85 {
		t.Fatalf("expected IoU around 0.82, got %v", got)
	}
}

func TestResolveOverlaps_KeepsHigherScore(t *testing.T) {
	dets := []RawDetection{
		{Box: Box{15, 15, 115, 115}, Score: 0.8},
		{Box: Box{10, 10, 110, 110}, Score: 0.9},
	}

	kept, err := ResolveOverlaps(dets, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(kept))
	}
	if kept[0].Score != 0.9 {
		t.Fatalf("expected the 0.9 detection to survive, got %v", kept[0].Score)
	}
}

func TestResolveOverlaps_OrderAndTies(t *testing.T) {
	dets := []RawDetection{
		{Box: Box{0, 0, 10, 10}, Score: 0.75, Label: 1},
		{Box: Box{100, 100, 110, 110}, Score: 0.95, Label: 2},
		{Box: Box{200, 200, 210, 210}, Score: 0.75, Label: 3},
		{Box: Box{300, 300, 310, 310}, Score: 0.85, Label: 4},
	}

	kept, err := ResolveOverlaps(dets, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{2, 4, 1, 3}
	if len(kept) != len(want) {
		t.Fatalf("expected %d detections, got %d", len(want), len(kept))
	}
	for i, label := range want {
		if kept[i].Label != label {
			t.Fatalf("position %d: expected label %d, got %d", i, label, kept[i].Label)
		}
	}
}

func TestResolveOverlaps_TiedScoresDuplicateBoxes(t *testing.T) {
	dets := []RawDetection{
		{Box: Box{0, 0, 10, 10}, Score: 0.8, Label: 1},
		{Box: Box{0, 0, 10, 10}, Score: 0.8, Label: 2},
	}

	kept, err := ResolveOverlaps(dets, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 || kept[0].Label != 1 {
		t.Fatalf("expected the first of two tied duplicates to survive, got %+v", kept)
	}
}

func TestResolveOverlaps_StrictThreshold(t *testing.T) {
	// IoU of these boxes is exactly 1/3.
	dets := []RawDetection{
		{Box: Box{0, 0, 10, 10}, Score: 0.9},
		{Box: Box{5, 0, 15, 10}, Score: 0.8},
	}

	kept, err := ResolveOverlaps(dets, 50.0/150.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("IoU equal to the threshold must not suppress, got %d kept", len(kept))
	}
}

func TestResolveOverlaps_ZeroAreaNeverSuppresses(t *testing.T) {
	dets := []RawDetection{
		{Box: Box{0, 0, 10, 10}, Score: 0.9},
		{Box: Box{5, 5, 5, 5}, Score: 0.8},
	}

	kept, err := ResolveOverlaps(dets, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("expected zero area box to survive, got %d kept", len(kept))
	}
}

func TestResolveOverlaps_Idempotent(t *testing.T) {
	dets := []RawDetection{
		{Box: Box{0, 0, 100, 100}, Score: 0.9},
		{Box: Box{20, 20, 120, 120}, Score: 0.85},
		{Box: Box{60, 60, 160, 160}, Score: 0.8},
		{Box: Box{150, 0, 250, 100}, Score: 0.7},
		{Box: Box{160, 10, 240, 90}, Score: 0.95},
		{Box: Box{400, 400, 420, 420}, Score: 0.6},
	}

	for _, threshold := range []float64{0, 0.1, 0.3, 0.5, 1} {
		once, err := ResolveOverlaps(dets, threshold)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		twice, err := ResolveOverlaps(once, threshold)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(once) != len(twice) {
			t.Fatalf("threshold %v: second pass removed detections (%d -> %d)", threshold, len(once), len(twice))
		}
		for i := range once {
			for j := i + 1; j < len(once); j++ {
				if iou := IoU(once[i].Box, once[j].Box); iou > threshold {
					t.Fatalf("threshold %v: detections %d and %d overlap with IoU %v", threshold, i, j, iou)
				}
			}
		}
	}
}

func TestResolveOverlaps_InvalidThreshold(t *testing.T) {
	for _, v := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := ResolveOverlaps(nil, v); err == nil {
			t.Fatalf("expected error for overlap threshold %v", v)
		}
	}
}

func TestResolveOverlaps_Empty(t *testing.T) {
	kept, err := ResolveOverlaps(nil, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kept == nil || len(kept) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", kept)
	}
}
