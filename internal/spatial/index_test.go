package spatial

import (
	"math"
	"testing"
)

func TestNearest(t *testing.T) {
	ix := NewIndex([]Item{
		{X: 0, Y: 0, Key: "A1 1AA", Ref: 0},
		{X: 10, Y: 0, Key: "A1 1AB", Ref: 1},
		{X: 0, Y: 50, Key: "A1 1AC", Ref: 2},
	})

	tests := []struct {
		name     string
		x, y     float64
		wantKey  string
		wantDist float64
	}{
		{"exact hit", 0, 0, "A1 1AA", 0},
		{"closer to second", 8, 0, "A1 1AB", 2},
		{"far away still resolves", 1000, 1000, "A1 1AC", math.Hypot(1000, 950)},
		{"north", 0, 40, "A1 1AC", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dist, ok := ix.Nearest(tt.x, tt.y)
			if !ok {
				t.Fatal("Nearest() ok = false")
			}
			if got.Key != tt.wantKey {
				t.Errorf("Nearest(%v, %v) key = %v, want %v", tt.x, tt.y, got.Key, tt.wantKey)
			}
			if math.Abs(dist-tt.wantDist) > 1e-9 {
				t.Errorf("Nearest(%v, %v) dist = %v, want %v", tt.x, tt.y, dist, tt.wantDist)
			}
		})
	}
}

func TestNearestTieBreaksOnKey(t *testing.T) {
	ix := NewIndex([]Item{
		{X: 10, Y: 0, Key: "ZZ1 1ZZ", Ref: 0},
		{X: -10, Y: 0, Key: "AA1 1AA", Ref: 1},
		{X: 0, Y: 10, Key: "MM1 1MM", Ref: 2},
		{X: 0, Y: -10, Key: "AA1 1AA", Ref: 3},
	})

	for i := 0; i < 5; i++ {
		got, dist, ok := ix.Nearest(0, 0)
		if !ok || got.Key != "AA1 1AA" || got.Ref != 1 || dist != 10 {
			t.Fatalf("Nearest(0, 0) = %+v, %v, %v, want AA1 1AA ref 1 at 10", got, dist, ok)
		}
	}
}

func TestNearestEmptyIndex(t *testing.T) {
	ix := NewIndex(nil)
	if _, _, ok := ix.Nearest(1, 1); ok {
		t.Error("Nearest() on empty index ok = true")
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
}

func TestNearestManyPoints(t *testing.T) {
	var items []Item
	for i := 0; i < 40; i++ {
		for j := 0; j < 40; j++ {
			items = append(items, Item{X: float64(i * 100), Y: float64(j * 100), Key: "k", Ref: i*40 + j})
		}
	}
	ix := NewIndex(items)

	got, _, ok := ix.Nearest(1234, 2270)
	if !ok || got.X != 1200 || got.Y != 2300 {
		t.Errorf("Nearest(1234, 2270) = (%v, %v), want (1200, 2300)", got.X, got.Y)
	}
}
