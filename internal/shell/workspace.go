package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/dashboard"
	"github.com/LUMINOUX-HEHE/DPR/internal/evaluation"
	"github.com/LUMINOUX-HEHE/DPR/internal/management"
	"github.com/LUMINOUX-HEHE/DPR/internal/session"
)

// ErrViewUnavailable is returned when a view is locked or hidden for the role.
var ErrViewUnavailable = errors.New("view is not available")

// Backend is everything a workspace needs from the DPR API.
type Backend interface {
	List(ctx context.Context) ([]dpr.Job, error)
	Submit(ctx context.Context, filename string, content io.Reader) (string, error)
	Status(ctx context.Context, jobID string) (*dpr.StatusResponse, error)
	Remove(ctx context.Context, jobID string) (string, error)
}

// Settings tunes the per-workspace controllers.
type Settings struct {
	PollInterval     time.Duration
	RefreshInterval  time.Duration
	HistoryMaxPoints int
	SettleDelay      time.Duration
}

// Flash is a one-shot message shown on the next render.
type Flash struct {
	Kind    string
	Message string
}

const (
	FlashError   = "error"
	FlashSuccess = "success"
)

// Workspace is the server-side state of one signed-in browser.
type Workspace struct {
	SessionID  string
	User       session.User
	Management *management.Controller
	Evaluation *evaluation.Watcher
	Dashboard  *dashboard.Refresher

	cancel context.CancelFunc

	mu          sync.Mutex
	view        View
	selectedJob string
	watched     string
	flash       *Flash
	closed      bool
	expiresAt   time.Time
	lastSeen    time.Time
	paused      bool
}

func NewWorkspace(parent context.Context, sessionID string, user session.User, backend Backend, s Settings) *Workspace {
	ctx, cancel := context.WithCancel(parent)
	return &Workspace{
		SessionID:  sessionID,
		User:       user,
		Management: management.NewController(backend, s.SettleDelay),
		Evaluation: evaluation.NewWatcher(ctx, backend, s.PollInterval),
		Dashboard:  dashboard.NewRefresher(ctx, backend, s.RefreshInterval, s.HistoryMaxPoints),
		cancel:     cancel,
	}
}

// View is the active tab.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.view == "" {
		return ViewDashboard
	}
	return w.view
}

// SelectedJob is the job id shown by the evaluation tab.
func (w *Workspace) SelectedJob() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedJob
}

// Select switches tabs. The dashboard refresher runs only while the dashboard
// is active and the evaluation poller only while evaluation is active.
func (w *Workspace) Select(v View) error {
	if !v.Allowed(w.User.Role) {
		return fmt.Errorf("%w: %s", ErrViewUnavailable, v)
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("workspace closed")
	}
	prev := w.view
	w.view = v
	job := w.selectedJob
	rearm := v == ViewEvaluation && (prev != ViewEvaluation || job != w.watched)
	if rearm {
		w.watched = job
	}
	w.mu.Unlock()

	if v == ViewDashboard {
		w.Dashboard.Start()
	} else {
		w.Dashboard.Stop()
	}
	if rearm {
		w.Evaluation.Watch(job)
	} else if v != ViewEvaluation && prev == ViewEvaluation {
		w.Evaluation.Stop()
	}
	return nil
}

// Evaluate records jobID as the selected job and opens the evaluation tab,
// re-arming the poller for that id.
func (w *Workspace) Evaluate(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	w.mu.Lock()
	w.selectedJob = jobID
	w.mu.Unlock()
	return w.Select(ViewEvaluation)
}

// Upload submits a report and, like the repository view, jumps to its evaluation.
func (w *Workspace) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	jobID, err := w.Management.Upload(ctx, filename, content)
	if err != nil {
		return "", err
	}
	if err := w.Evaluate(jobID); err != nil {
		return jobID, err
	}
	return jobID, nil
}

// SetFlash queues a message for the next render.
func (w *Workspace) SetFlash(kind, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flash = &Flash{Kind: kind, Message: message}
}

// TakeFlash returns and clears the queued message.
func (w *Workspace) TakeFlash() *Flash {
	w.mu.Lock()
	defer w.mu.Unlock()
	f := w.flash
	w.flash = nil
	return f
}

// ExpiresAt is the expiry of the session that last used the workspace.
func (w *Workspace) ExpiresAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expiresAt
}

// LastSeen is when a request last used the workspace.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// touch records a request. A workspace paused for idleness resumes the
// dashboard refresher if the dashboard is still the active view.
func (w *Workspace) touch(now, expiresAt time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	if !expiresAt.IsZero() {
		w.expiresAt = expiresAt
	}
	resume := w.paused && !w.closed && w.view == ViewDashboard
	w.paused = false
	w.mu.Unlock()

	if resume {
		w.Dashboard.Start()
	}
}

// pause stops the dashboard refresher until the next request.
func (w *Workspace) pause() {
	w.mu.Lock()
	if w.closed || w.paused {
		w.mu.Unlock()
		return
	}
	w.paused = true
	w.mu.Unlock()
	w.Dashboard.Stop()
}

// Close stops every background task owned by the workspace.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.Dashboard.Stop()
	w.Evaluation.Stop()
	w.cancel()
}
