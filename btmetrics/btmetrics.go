// FILE: btmetrics.go
// Package btmetrics – Prometheus instrumentation for backtest runs.
//
// Exposes, per registered Recorder:
//   • backtest_equity_usd{run}               – portfolio value snapshot (gauge)
//   • backtest_bank_usd{run}                 – bank balance snapshot (gauge)
//   • backtest_transactions_total{run,action} – transaction counts by action
//   • backtest_skipped_buys_total{run}        – margin-skipped BUY count
//   • backtest_withdrawals_usd_total{run}     – cumulative withdrawals
//   • backtest_dividends_usd_total{run}       – cumulative dividend credits
//   • backtest_interest_usd_total{run}        – cumulative interest credits
//
// Grounded on the teacher's metrics.go (promauto-free prometheus.New* plus
// an explicit MustRegister in init()). Unlike the teacher's package-level
// globals, a Recorder here is a value owned by one backtest.Run call: §5
// requires independent runs to share nothing mutable, and package-level
// Prometheus collectors would violate that the moment two runs executed
// concurrently in the same process. backtest.Run accepts a *Recorder as an
// optional, nil-safe parameter — every method is a no-op on a nil receiver
// so callers who don't want Prometheus wiring can pass nil.
package btmetrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder owns one run's worth of Prometheus collectors, labeled by a
// caller-supplied run ID so multiple concurrent runs can be registered
// against the same default registry without collisions.
type Recorder struct {
	runID string

	equity      prometheus.Gauge
	bank        prometheus.Gauge
	txByAction  *prometheus.CounterVec
	skippedBuys prometheus.Counter
	withdrawn   prometheus.Counter
	dividends   prometheus.Counter
	interest    prometheus.Counter
}

// NewRecorder builds and registers a Recorder for runID against reg. Pass
// prometheus.DefaultRegisterer to expose metrics on the process's default
// /metrics handler, or a fresh *prometheus.Registry in tests.
func NewRecorder(reg prometheus.Registerer, runID string) (*Recorder, error) {
	r := &Recorder{
		runID: runID,
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "backtest_equity_usd",
			Help:        "Simulated portfolio value.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
		bank: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "backtest_bank_usd",
			Help:        "Simulated bank balance.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
		txByAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "backtest_transactions_total",
			Help:        "Transactions recorded, by action.",
			ConstLabels: prometheus.Labels{"run": runID},
		}, []string{"action"}),
		skippedBuys: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "backtest_skipped_buys_total",
			Help:        "BUY orders skipped by the margin check.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "backtest_withdrawals_usd_total",
			Help:        "Cumulative scheduled withdrawals.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
		dividends: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "backtest_dividends_usd_total",
			Help:        "Cumulative dividend credits.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
		interest: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "backtest_interest_usd_total",
			Help:        "Cumulative interest credits.",
			ConstLabels: prometheus.Labels{"run": runID},
		}),
	}

	collectors := []prometheus.Collector{r.equity, r.bank, r.txByAction, r.skippedBuys, r.withdrawn, r.dividends, r.interest}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) SetEquity(v float64) {
	if r == nil {
		return
	}
	r.equity.Set(v)
}

func (r *Recorder) SetBank(v float64) {
	if r == nil {
		return
	}
	r.bank.Set(v)
}

func (r *Recorder) IncTransaction(action string) {
	if r == nil {
		return
	}
	r.txByAction.WithLabelValues(action).Inc()
}

func (r *Recorder) IncSkippedBuy() {
	if r == nil {
		return
	}
	r.skippedBuys.Inc()
}

func (r *Recorder) AddWithdrawn(v float64) {
	if r == nil {
		return
	}
	r.withdrawn.Add(v)
}

func (r *Recorder) AddDividend(v float64) {
	if r == nil {
		return
	}
	r.dividends.Add(v)
}

func (r *Recorder) AddInterest(v float64) {
	if r == nil {
		return
	}
	r.interest.Add(v)
}
