package util

import (
	"math"
	"testing"
	"time"
)

func TestIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := IntervalDuration(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Errorf("%s = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "h", "0h", "1M", "xh", "-1m"} {
		if _, err := IntervalDuration(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestAnnualizationFactorHourly(t *testing.T) {
	got, err := AnnualizationFactor("1h")
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Sqrt(365 * 24); math.Abs(got-want) > 1e-9 {
		t.Fatalf("factor = %v, want %v", got, want)
	}
}
