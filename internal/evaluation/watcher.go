package evaluation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/task"
)

// StatusFetcher is the subset of the DPR client the watcher needs.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (*dpr.StatusResponse, error)
}

// State is the watcher's coarse outcome.
type State string

const (
	StateIdle         State = "idle"
	StatePolling      State = "polling"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateDecodeFailed State = "decode_failed"
)

// Snapshot is an immutable view of the watched job.
type Snapshot struct {
	JobID     string        `json:"job_id"`
	Lifecycle dpr.Lifecycle `json:"lifecycle"`
	Stage     dpr.Lifecycle `json:"stage,omitempty"`
	Filename  string        `json:"filename,omitempty"`
	Progress  int           `json:"progress"`
	State     State         `json:"state"`
	Analysis  *dpr.Analysis `json:"analysis,omitempty"`
	Sections  []SectionRow  `json:"sections"`
	Error     string        `json:"error,omitempty"`
	LastPoll  string        `json:"last_poll_error,omitempty"`
	Polls     int           `json:"polls"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Polling reports whether further status requests are expected.
func (s Snapshot) Polling() bool {
	return s.State == StatePolling
}

// Watcher polls one job at a time until it reaches a terminal state.
type Watcher struct {
	parent   context.Context
	fetcher  StatusFetcher
	interval time.Duration

	ctrl   sync.Mutex
	handle *task.Handle

	mu   sync.RWMutex
	snap Snapshot
}

func NewWatcher(parent context.Context, fetcher StatusFetcher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Watcher{
		parent:   parent,
		fetcher:  fetcher,
		interval: interval,
		snap:     idleSnapshot(""),
	}
}

// Watch re-arms the watcher for jobID. The previous poller is stopped before
// the new one starts, so requests for two ids never overlap.
func (w *Watcher) Watch(jobID string) {
	jobID = strings.TrimSpace(jobID)

	w.ctrl.Lock()
	defer w.ctrl.Unlock()

	if w.handle.Running() && w.Snapshot().JobID == jobID {
		return
	}
	w.handle.Cancel()
	w.handle = nil

	w.mu.Lock()
	w.snap = idleSnapshot(jobID)
	if jobID != "" {
		w.snap.State = StatePolling
	}
	w.mu.Unlock()

	if jobID == "" {
		return
	}
	w.handle = task.Every(w.parent, w.interval, func(ctx context.Context) bool {
		return w.poll(ctx, jobID)
	})
}

// Stop cancels polling and keeps the last snapshot.
func (w *Watcher) Stop() {
	w.ctrl.Lock()
	defer w.ctrl.Unlock()
	w.handle.Cancel()
	w.handle = nil

	w.mu.Lock()
	if w.snap.State == StatePolling {
		w.snap.State = StateIdle
	}
	w.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := w.snap
	out.Sections = append([]SectionRow(nil), w.snap.Sections...)
	return out
}

func (w *Watcher) poll(ctx context.Context, jobID string) bool {
	resp, err := w.fetcher.Status(ctx, jobID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status poll failed")
		w.update(jobID, func(s *Snapshot) { s.LastPoll = err.Error() })
		return true
	}

	lifecycle := resp.LifecycleStatus
	if lifecycle == "" {
		lifecycle = dpr.LifecycleNotStarted
	}

	keepPolling := true
	w.update(jobID, func(s *Snapshot) {
		s.Lifecycle = lifecycle
		s.Stage = resp.Status
		if resp.Filename != "" {
			s.Filename = resp.Filename
		}
		s.Progress = Progress(lifecycle)
		s.LastPoll = ""

		switch {
		case lifecycle == dpr.LifecycleCompleted && resp.HasResult():
			keepPolling = false
			analysis, err := dpr.DecodeAnalysis(resp.Result)
			if err != nil {
				log.Error().Err(err).Str("job_id", jobID).Msg("completed job has malformed result")
				s.State = StateDecodeFailed
				s.Error = err.Error()
				return
			}
			s.State = StateCompleted
			s.Analysis = analysis
			s.Sections = Rows(analysis)
		case lifecycle == dpr.LifecycleFailed:
			keepPolling = false
			s.State = StateFailed
			s.Error = strings.TrimSpace(resp.Error)
			if s.Error == "" {
				s.Error = "Unknown error"
			}
		}
	})
	if !keepPolling {
		log.Info().Str("job_id", jobID).Str("lifecycle", string(lifecycle)).Msg("evaluation polling finished")
	}
	return keepPolling
}

func (w *Watcher) update(jobID string, fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.snap.JobID != jobID {
		return
	}
	fn(&w.snap)
	w.snap.Polls++
	w.snap.UpdatedAt = time.Now().UTC()
}

func idleSnapshot(jobID string) Snapshot {
	return Snapshot{
		JobID:     jobID,
		Lifecycle: dpr.LifecycleNotStarted,
		Progress:  Progress(dpr.LifecycleNotStarted),
		State:     StateIdle,
		Sections:  Rows(nil),
	}
}
