package features

import "math"

// PeriodReturns computes simple returns r_t = B_t / B_{t-1} - 1 over an
// equity series. It returns nil if there is insufficient data.
func PeriodReturns(balances []float64) []float64 {
	if len(balances) < 2 {
		return nil
	}
	out := make([]float64, 0, len(balances)-1)
	for i := 1; i < len(balances); i++ {
		prev := balances[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, balances[i]/prev-1)
	}
	return out
}

// MeanStd returns the mean and sample standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	n := float64(len(xs))
	mean = sum / n
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

// MaxDrawdown returns the largest peak-to-trough decline along balances as a
// percentage of the peak.
func MaxDrawdown(balances []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, b := range balances {
		if b > peak {
			peak = b
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - b) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}
