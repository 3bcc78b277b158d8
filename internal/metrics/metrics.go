package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	QuotesApplied    Counter
	QuotesDiscarded  Counter
	Entries          Counter
	Exits            Counter
	EntriesSkipped   Counter
	FundingSettled   Counter
	DegradedEngaged  Counter
	DegradedRestored Counter
	SnapshotsDropped Counter
	BasisPct         Gauge
	Equity           Gauge
	LiqDistancePct   Gauge
	Degraded         Gauge
}

type noop struct{}

func (noop) Inc()        {}
func (noop) Set(float64) {}

func NewNoop() *Metrics {
	n := noop{}
	return &Metrics{
		QuotesApplied:    n,
		QuotesDiscarded:  n,
		Entries:          n,
		Exits:            n,
		EntriesSkipped:   n,
		FundingSettled:   n,
		DegradedEngaged:  n,
		DegradedRestored: n,
		SnapshotsDropped: n,
		BasisPct:         n,
		Equity:           n,
		LiqDistancePct:   n,
		Degraded:         n,
	}
}
