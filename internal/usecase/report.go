package usecase

import (
	"math"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/services/features"
)

// highConfidence is the threshold above which a decision counts as strong.
const highConfidence = 70

// ComputationOutcome is one window's computation as seen by the driver.
type ComputationOutcome struct {
	OK         bool
	Latency    time.Duration
	Signal     models.Signal
	Confidence int
}

// ReportInput is everything the aggregator reads. It is only built after the
// run reached a terminal state.
type ReportInput struct {
	InitialBalance float64
	Ledger         *models.Ledger
	Outcomes       []ComputationOutcome
	RiskFreeRate   float64 // annual
	Annualization  float64 // sqrt(periods per year)
}

// BuildReport folds the final ledger into summary statistics. It is pure.
func BuildReport(in ReportInput) models.BacktestReport {
	l := in.Ledger
	r := models.BacktestReport{
		InitialBalance: in.InitialBalance,
		FinalBalance:   l.Cash,
		Trades:         append([]models.Trade(nil), l.Trades...),
		TotalTrades:    len(l.Trades),
	}
	if in.InitialBalance > 0 {
		r.TotalReturn = (l.Cash - in.InitialBalance) / in.InitialBalance * 100
	}
	r.TotalPnL = l.Cash - in.InitialBalance

	var grossWin, grossLoss, hours float64
	for _, t := range l.Trades {
		switch {
		case t.PnL > 0:
			r.WinningTrades++
			grossWin += t.PnL
		case t.PnL < 0:
			r.LosingTrades++
			grossLoss += -t.PnL
		}
		hours += t.ExitTime.Sub(t.EntryTime).Hours()
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
		r.AvgTradeHours = hours / float64(r.TotalTrades)
	}
	if r.WinningTrades > 0 {
		r.AvgWin = grossWin / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = grossLoss / float64(r.LosingTrades)
		pf := grossWin / grossLoss
		r.ProfitFactor = &pf
	}

	balances := make([]float64, 0, len(l.Equity)+1)
	balances = append(balances, in.InitialBalance)
	for _, e := range l.Equity {
		balances = append(balances, e.Balance)
	}
	r.MaxDrawdown = features.MaxDrawdown(balances)
	r.SharpeRatio = sharpe(balances, len(l.Equity), in.RiskFreeRate, in.Annualization)
	r.Computation = computationMetrics(in.Outcomes)
	return r
}

// sharpe is nil with fewer than two windows or a flat return series.
func sharpe(balances []float64, windows int, riskFree, annualization float64) *float64 {
	if windows < 2 {
		return nil
	}
	returns := features.PeriodReturns(balances)
	mean, std := features.MeanStd(returns)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	if annualization <= 0 {
		annualization = 1
	}
	perPeriodRF := riskFree / (annualization * annualization)
	s := (mean - perPeriodRF) / std * annualization
	return &s
}

func computationMetrics(outcomes []ComputationOutcome) models.ComputationMetrics {
	m := models.ComputationMetrics{Total: len(outcomes)}
	var latency time.Duration
	var confidence int
	for _, o := range outcomes {
		latency += o.Latency
		if !o.OK {
			m.Failed++
			continue
		}
		m.Succeeded++
		confidence += o.Confidence
		switch o.Signal {
		case models.Buy:
			m.BuySignals++
		case models.Sell:
			m.SellSignals++
		default:
			m.HoldSignals++
		}
		if o.Confidence > highConfidence {
			m.HighConfidence++
		}
	}
	if m.Total > 0 {
		m.AvgLatency = latency / time.Duration(m.Total)
	}
	if m.Succeeded > 0 {
		m.AvgConfidence = float64(confidence) / float64(m.Succeeded)
	}
	return m
}
