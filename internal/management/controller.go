package management

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

// Backend is the subset of the DPR client the controller drives.
type Backend interface {
	List(ctx context.Context) ([]dpr.Job, error)
	Submit(ctx context.Context, filename string, content io.Reader) (string, error)
	Remove(ctx context.Context, jobID string) (string, error)
}

// StatusAll disables the status filter.
const StatusAll = "ALL"

// Row is one rendered table line.
type Row struct {
	Job      dpr.Job
	Score    int
	HasScore bool
	Selected bool
}

// Controller holds the management table state for one workspace.
type Controller struct {
	backend     Backend
	settleDelay time.Duration
	now         func() time.Time

	mu       sync.Mutex
	jobs     []dpr.Job
	loaded   bool
	loadErr  error
	loadedAt time.Time
	query    string
	status   string
	sortKey  SortKey
	sortDesc bool
	selected map[string]struct{}
}

func NewController(backend Backend, settleDelay time.Duration) *Controller {
	return &Controller{
		backend:     backend,
		settleDelay: settleDelay,
		now:         time.Now,
		status:      StatusAll,
		sortKey:     SortDate,
		sortDesc:    true,
		selected:    map[string]struct{}{},
	}
}

// Refresh re-fetches the collection. On failure the collection is emptied and
// the error kept for the banner; the error is also returned for logging.
func (c *Controller) Refresh(ctx context.Context) error {
	jobs, err := c.backend.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.loadedAt = c.now().UTC()
	if err != nil {
		log.Warn().Err(err).Msg("dpr list refresh failed")
		c.jobs = nil
		c.loadErr = err
		return err
	}
	c.jobs = jobs
	c.loadErr = nil
	return nil
}

// EnsureLoaded fetches the collection once, on first use.
func (c *Controller) EnsureLoaded(ctx context.Context) {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if !loaded {
		_ = c.Refresh(ctx)
	}
}

// LoadError is the last refresh failure, or nil.
func (c *Controller) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// LoadedAt is when the collection was last fetched.
func (c *Controller) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}

// Total is the size of the unfiltered collection.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Jobs returns a copy of the unfiltered collection.
func (c *Controller) Jobs() []dpr.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dpr.Job(nil), c.jobs...)
}

func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = strings.TrimSpace(q)
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SetStatusFilter accepts ALL or one concrete lifecycle value.
func (c *Controller) SetStatusFilter(status string) error {
	status = strings.TrimSpace(status)
	if status == "" || strings.EqualFold(status, StatusAll) {
		status = StatusAll
	} else if !knownStatus(status) {
		return fmt.Errorf("unknown status filter %q", status)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	return nil
}

func (c *Controller) StatusFilter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ToggleSort flips the direction when key is already active, otherwise
// switches to key ascending.
func (c *Controller) ToggleSort(key SortKey) error {
	if !key.Valid() {
		return fmt.Errorf("unknown sort key %q", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sortKey == key {
		c.sortDesc = !c.sortDesc
		return nil
	}
	c.sortKey = key
	c.sortDesc = false
	return nil
}

// Sort returns the active key and whether it is descending.
func (c *Controller) Sort() (SortKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortKey, c.sortDesc
}

// Rows returns the filtered and sorted table.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowsLocked()
}

func (c *Controller) rowsLocked() []Row {
	visible := make([]dpr.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		if c.matchesLocked(job) {
			visible = append(visible, job)
		}
	}
	sortJobs(visible, c.sortKey, c.sortDesc)

	rows := make([]Row, 0, len(visible))
	for _, job := range visible {
		score, ok := dpr.ScoreOf(job)
		_, sel := c.selected[job.JobID]
		rows = append(rows, Row{Job: job, Score: score, HasScore: ok, Selected: sel})
	}
	return rows
}

func (c *Controller) matchesLocked(job dpr.Job) bool {
	if c.status != StatusAll && string(job.Status) != c.status {
		return false
	}
	if c.query == "" {
		return true
	}
	q := strings.ToLower(c.query)
	return strings.Contains(strings.ToLower(job.Filename), q) || strings.Contains(strings.ToLower(job.JobID), q)
}

// Toggle flips one id in the selection set.
func (c *Controller) Toggle(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selected[jobID]; ok {
		delete(c.selected, jobID)
		return
	}
	c.selected[jobID] = struct{}{}
}

// SelectAll selects exactly the currently filtered rows.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = map[string]struct{}{}
	for _, row := range c.rowsLocked() {
		c.selected[row.Job.JobID] = struct{}{}
	}
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = map[string]struct{}{}
}

// Selected returns the selected ids in table order, then any selected ids
// hidden by the current filter.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() []string {
	out := make([]string, 0, len(c.selected))
	seen := map[string]bool{}
	for _, row := range c.rowsLocked() {
		if row.Selected {
			out = append(out, row.Job.JobID)
			seen[row.Job.JobID] = true
		}
	}
	for _, job := range c.jobs {
		if _, ok := c.selected[job.JobID]; ok && !seen[job.JobID] {
			out = append(out, job.JobID)
			seen[job.JobID] = true
		}
	}
	return out
}

// Upload submits a file and refreshes the list once the backend settles.
func (c *Controller) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	jobID, err := c.backend.Submit(ctx, filename, content)
	if err != nil {
		return "", err
	}
	log.Info().Str("job_id", jobID).Str("filename", filename).Msg("dpr uploaded")
	c.settleAndRefresh(ctx)
	return jobID, nil
}

// Delete removes one job and refreshes the list once the backend settles.
func (c *Controller) Delete(ctx context.Context, jobID string) error {
	if _, err := c.backend.Remove(ctx, jobID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.selected, jobID)
	c.mu.Unlock()
	log.Info().Str("job_id", jobID).Msg("dpr deleted")
	c.settleAndRefresh(ctx)
	return nil
}

func (c *Controller) settleAndRefresh(ctx context.Context) {
	if c.settleDelay > 0 {
		timer := time.NewTimer(c.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	_ = c.Refresh(ctx)
}

func knownStatus(status string) bool {
	for _, s := range dpr.FilterableStatuses {
		if string(s) == status {
			return true
		}
	}
	return false
}
