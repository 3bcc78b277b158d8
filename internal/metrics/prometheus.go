package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "basis_sim"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry         *prometheus.Registry
	quotesApplied    prometheus.Counter
	quotesDiscarded  prometheus.Counter
	entries          prometheus.Counter
	exits            prometheus.Counter
	entriesSkipped   prometheus.Counter
	fundingSettled   prometheus.Counter
	degradedEngaged  prometheus.Counter
	degradedRestored prometheus.Counter
	snapshotsDropped prometheus.Counter
	basisPct         prometheus.Gauge
	equity           prometheus.Gauge
	liqDistancePct   prometheus.Gauge
	degraded         prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry:         prometheus.NewRegistry(),
		quotesApplied:    newCounter("quotes_applied_total", "Total number of quote updates applied to the store."),
		quotesDiscarded:  newCounter("quotes_discarded_total", "Total number of quote updates discarded as invalid."),
		entries:          newCounter("entries_total", "Total number of simulated position entries."),
		exits:            newCounter("exits_total", "Total number of simulated position exits."),
		entriesSkipped:   newCounter("entries_skipped_total", "Total number of qualifying entries skipped for sizing or balance."),
		fundingSettled:   newCounter("funding_settled_total", "Total number of funding boundaries settled against an open position."),
		degradedEngaged:  newCounter("degraded_engaged_total", "Total number of transitions into degraded mode."),
		degradedRestored: newCounter("degraded_restored_total", "Total number of recoveries from degraded mode."),
		snapshotsDropped: newCounter("snapshots_dropped_total", "Total number of snapshots dropped by a full report queue."),
		basisPct:         newGauge("basis_pct", "Latest perp-over-spot basis in percent."),
		equity:           newGauge("equity_usdt", "Latest simulated account equity in USDT."),
		liqDistancePct:   newGauge("liq_distance_pct", "Distance from the perp mark to the estimated liquidation price in percent."),
		degraded:         newGauge("degraded", "1 while either feed is stale."),
	}
	p.registry.MustRegister(
		p.quotesApplied, p.quotesDiscarded, p.entries, p.exits, p.entriesSkipped, p.fundingSettled,
		p.degradedEngaged, p.degradedRestored, p.snapshotsDropped,
		p.basisPct, p.equity, p.liqDistancePct, p.degraded,
	)
	p.Metrics = &Metrics{
		QuotesApplied:    promCounter{p.quotesApplied},
		QuotesDiscarded:  promCounter{p.quotesDiscarded},
		Entries:          promCounter{p.entries},
		Exits:            promCounter{p.exits},
		EntriesSkipped:   promCounter{p.entriesSkipped},
		FundingSettled:   promCounter{p.fundingSettled},
		DegradedEngaged:  promCounter{p.degradedEngaged},
		DegradedRestored: promCounter{p.degradedRestored},
		SnapshotsDropped: promCounter{p.snapshotsDropped},
		BasisPct:         promGauge{p.basisPct},
		Equity:           promGauge{p.equity},
		LiqDistancePct:   promGauge{p.liqDistancePct},
		Degraded:         promGauge{p.degraded},
	}
	return p
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
