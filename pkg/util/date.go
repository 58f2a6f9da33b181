package util

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// IntervalDuration converts an exchange kline interval ("1m", "4h", "1d", "1w")
// into a duration. Months are not supported.
func IntervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	unit := time.Duration(0)
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	return time.Duration(n) * unit, nil
}

// AnnualizationFactor returns sqrt(periods per year) for an interval, the
// multiplier that scales a per-period Sharpe ratio to a yearly one.
func AnnualizationFactor(interval string) (float64, error) {
	d, err := IntervalDuration(interval)
	if err != nil {
		return 0, err
	}
	year := 365 * 24 * time.Hour
	return math.Sqrt(float64(year) / float64(d)), nil
}
