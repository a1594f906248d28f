// Package telemetry records packing activity in Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives packing events. Implementations must be safe for
// concurrent use.
type Sink interface {
	// SheetSolved records one per-sheet solver run and its outcome.
	SheetSolved(status string, nodes int64, seconds float64)
	// CacheResult records a layout cache lookup.
	CacheResult(hit bool)
	// PackCompleted records the outcome of a full packing run.
	PackCompleted(sheets, placed, unplaced int)
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) SheetSolved(string, int64, float64) {}
func (NopSink) CacheResult(bool)                   {}
func (NopSink) PackCompleted(int, int, int)        {}

// PromSink records packing events in Prometheus metrics.
type PromSink struct {
	sheets   *prometheus.CounterVec
	nodes    prometheus.Counter
	duration prometheus.Histogram
	cache    *prometheus.CounterVec
	packs    prometheus.Counter
	placed   prometheus.Counter
	unplaced prometheus.Counter
}

// NewPromSink registers packing metrics on the default Prometheus
// registerer.
func NewPromSink() (Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	sheets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panelcut_sheets_solved_total",
		Help: "Total number of per-sheet solver runs by outcome",
	}, []string{"status"})
	nodes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panelcut_solver_nodes_total",
		Help: "Total number of search nodes explored",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "panelcut_solve_duration_seconds",
		Help:    "Wall time of one per-sheet solver run",
		Buckets: prometheus.DefBuckets,
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panelcut_layout_cache_requests_total",
		Help: "Layout cache lookups by result",
	}, []string{"result"})
	packs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panelcut_packs_total",
		Help: "Total number of completed packing runs",
	})
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panelcut_parts_placed_total",
		Help: "Total number of part instances placed",
	})
	unplaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panelcut_parts_unplaced_total",
		Help: "Total number of part instances left unplaced",
	})

	if err := reg.Register(sheets); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			sheets = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(nodes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			nodes = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cache); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cache = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(packs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			packs = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(placed); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			placed = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(unplaced); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			unplaced = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		sheets:   sheets,
		nodes:    nodes,
		duration: duration,
		cache:    cache,
		packs:    packs,
		placed:   placed,
		unplaced: unplaced,
	}, nil
}

// SheetSolved increments the per-status sheet counter and records the
// node and wall-time cost of the run.
func (s *PromSink) SheetSolved(status string, nodes int64, seconds float64) {
	s.sheets.WithLabelValues(status).Inc()
	s.nodes.Add(float64(nodes))
	s.duration.Observe(seconds)
}

// CacheResult increments the cache counter for a hit or a miss.
func (s *PromSink) CacheResult(hit bool) {
	if hit {
		s.cache.WithLabelValues("hit").Inc()
	} else {
		s.cache.WithLabelValues("miss").Inc()
	}
}

// PackCompleted records the totals of one packing run.
func (s *PromSink) PackCompleted(sheets, placed, unplaced int) {
	s.packs.Inc()
	s.placed.Add(float64(placed))
	s.unplaced.Add(float64(unplaced))
}
