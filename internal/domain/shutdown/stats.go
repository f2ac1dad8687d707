package shutdown

import (
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes completed shutdowns
type Stats struct {
	Completed   uint64  `json:"completed"`
	Closed      uint64  `json:"closed"`
	ForceClosed uint64  `json:"force_closed"`
	Pending     int     `json:"pending"`
	Window      int     `json:"window"`
	MeanMs      float64 `json:"mean_ms"`
	StdDevMs    float64 `json:"stddev_ms"`
	P95Ms       float64 `json:"p95_ms"`
}

// recorder keeps outcome counts and a ring of recent latencies
type recorder struct {
	mu          sync.Mutex
	closed      uint64
	forceClosed uint64
	window      []float64
	next        int
	full        bool
}

func newRecorder(size int) *recorder {
	if size <= 0 {
		size = 256
	}
	return &recorder{window: make([]float64, size)}
}

func (r *recorder) add(outcome types.ShutdownOutcome, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome == types.OutcomeForceClosed {
		r.forceClosed++
	} else {
		r.closed++
	}

	r.window[r.next] = float64(d) / float64(time.Millisecond)
	r.next = (r.next + 1) % len(r.window)
	if r.next == 0 {
		r.full = true
	}
}

func (r *recorder) snapshot() Stats {
	r.mu.Lock()
	n := r.next
	if r.full {
		n = len(r.window)
	}
	samples := make([]float64, n)
	copy(samples, r.window[:n])
	s := Stats{
		Closed:      r.closed,
		ForceClosed: r.forceClosed,
		Completed:   r.closed + r.forceClosed,
		Window:      n,
	}
	r.mu.Unlock()

	if n == 0 {
		return s
	}

	sort.Float64s(samples)
	if n == 1 {
		s.MeanMs = samples[0]
	} else {
		s.MeanMs, s.StdDevMs = stat.MeanStdDev(samples, nil)
	}
	s.P95Ms = stat.Quantile(0.95, stat.Empirical, samples, nil)
	return s
}
