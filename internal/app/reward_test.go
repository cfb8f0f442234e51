package app_test

import (
	"testing"

	"rapid-trivia-service/internal/app"
)

func TestRewardFor(t *testing.T) {
	tests := []struct {
		seconds float64
		want    int
	}{
		{-1, 20},
		{0, 20},
		{4.99, 20},
		{5, 17},
		{9.99, 17},
		{10, 15},
		{19.5, 15},
		{20, 13},
		{34.9, 13},
		{35, 11},
		{600, 11},
	}
	for _, tt := range tests {
		if got := app.RewardFor(tt.seconds); got != tt.want {
			t.Fatalf("RewardFor(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestRewardIsMonotonic(t *testing.T) {
	prev := app.RewardFor(0)
	for s := 0.0; s <= 120; s += 0.25 {
		got := app.RewardFor(s)
		if got > prev {
			t.Fatalf("reward grew from %d to %d at %vs", prev, got, s)
		}
		if got < app.BasePoints+1 {
			t.Fatalf("reward below floor at %vs: %d", s, got)
		}
		prev = got
	}
}
