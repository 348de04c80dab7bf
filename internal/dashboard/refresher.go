package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/task"
)

// Lister fetches the job collection.
type Lister interface {
	List(ctx context.Context) ([]dpr.Job, error)
}

// Point is a chart-ready value at a specific timestamp.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History series names.
const (
	SeriesTotal   = "total"
	SeriesAverage = "average_score"
	SeriesRisk    = "risk_rate"
)

// State is what the dashboard view renders.
type State struct {
	Stats       Stats     `json:"stats"`
	Loaded      bool      `json:"loaded"`
	Error       string    `json:"error,omitempty"`
	Timeout     bool      `json:"timeout"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Running     bool      `json:"auto_refresh"`
}

// ConnectionError reports whether the last refresh failed.
func (s State) ConnectionError() bool {
	return s.Error != ""
}

// Refresher re-fetches dashboard statistics on a fixed period while started.
type Refresher struct {
	parent    context.Context
	lister    Lister
	interval  time.Duration
	maxPoints int

	ctrl   sync.Mutex
	handle *task.Handle

	mu      sync.RWMutex
	state   State
	history map[string][]Point
}

func NewRefresher(parent context.Context, lister Lister, interval time.Duration, maxPoints int) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxPoints <= 0 {
		maxPoints = 120
	}
	return &Refresher{
		parent:    parent,
		lister:    lister,
		interval:  interval,
		maxPoints: maxPoints,
		state:     State{Stats: Compute(nil)},
		history:   make(map[string][]Point),
	}
}

// Start begins periodic refreshes, fetching immediately. No-op when running.
func (r *Refresher) Start() {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	if r.handle.Running() {
		return
	}
	r.handle = task.Every(r.parent, r.interval, func(ctx context.Context) bool {
		_ = r.Refresh(ctx)
		return true
	})
}

// Stop cancels periodic refreshes and waits for an in-flight one to finish.
func (r *Refresher) Stop() {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	r.handle.Cancel()
	r.handle = nil
}

func (r *Refresher) Running() bool {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	return r.handle.Running()
}

// Refresh fetches the collection once. Failures are kept in State, with
// empty statistics, and never escalate past the dashboard.
func (r *Refresher) Refresh(ctx context.Context) error {
	jobs, err := r.lister.List(ctx)
	if ctx.Err() != nil && err != nil && !dpr.IsTimeout(err) {
		return err
	}
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Loaded = true
	r.state.RefreshedAt = now
	if err != nil {
		log.Warn().Err(err).Bool("timeout", dpr.IsTimeout(err)).Msg("dashboard refresh failed")
		r.state.Stats = Compute(nil)
		r.state.Error = err.Error()
		r.state.Timeout = dpr.IsTimeout(err)
		return err
	}
	r.state.Stats = Compute(jobs)
	r.state.Error = ""
	r.state.Timeout = false
	r.recordLocked(now, r.state.Stats)
	return nil
}

// Retry re-issues the list call immediately.
func (r *Refresher) Retry(ctx context.Context) error {
	return r.Refresh(ctx)
}

// State returns the latest dashboard state.
func (r *Refresher) State() State {
	running := r.Running()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.state
	out.Stats.Recent = append([]RecentJob(nil), r.state.Stats.Recent...)
	out.Running = running
	return out
}

// Series returns in-memory history for one series since cutoff.
func (r *Refresher) Series(name string, since time.Time) []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	points := append([]Point(nil), r.history[name]...)
	if since.IsZero() {
		return points
	}
	out := points[:0]
	for _, p := range points {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Refresher) recordLocked(ts time.Time, s Stats) {
	values := map[string]float64{
		SeriesTotal:   float64(s.Total),
		SeriesAverage: float64(s.AverageScore),
		SeriesRisk:    float64(s.RiskRate),
	}
	for name, v := range values {
		pts := append(r.history[name], Point{Timestamp: ts, Value: v})
		if len(pts) > r.maxPoints {
			pts = pts[len(pts)-r.maxPoints:]
		}
		r.history[name] = pts
	}
}
