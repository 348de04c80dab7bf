package shell

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/session"
)

type stubBackend struct {
	mu       sync.Mutex
	lists    int
	statuses map[string]int
}

func newStubBackend() *stubBackend {
	return &stubBackend{statuses: map[string]int{}}
}

func (b *stubBackend) List(context.Context) ([]dpr.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	return []dpr.Job{{JobID: "a", Status: dpr.LifecycleAnalyzing}}, nil
}

func (b *stubBackend) Submit(context.Context, string, io.Reader) (string, error) {
	return "fresh", nil
}

func (b *stubBackend) Status(_ context.Context, jobID string) (*dpr.StatusResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[jobID]++
	return &dpr.StatusResponse{JobID: jobID, LifecycleStatus: dpr.LifecycleInProgress}, nil
}

func (b *stubBackend) Remove(context.Context, string) (string, error) {
	return "ok", nil
}

func (b *stubBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists
}

func (b *stubBackend) statusCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statuses[id]
}

var fast = Settings{PollInterval: 5 * time.Millisecond, RefreshInterval: 5 * time.Millisecond, HistoryMaxPoints: 10}

func TestParseView(t *testing.T) {
	v, err := ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, v)

	v, err = ParseView("DPR-Management")
	require.NoError(t, err)
	assert.Equal(t, ViewManagement, v)

	_, err = ParseView("guidelines")
	assert.Error(t, err)
}

func TestNavHidesAdminForNonAdmins(t *testing.T) {
	find := func(groups []NavGroup, v View) (NavItem, bool) {
		for _, g := range groups {
			for _, item := range g.Items {
				if item.View == v {
					return item, true
				}
			}
		}
		return NavItem{}, false
	}

	adminNav := Nav(session.RoleAdmin, ViewDashboard)
	require.Len(t, adminNav, 3)
	_, ok := find(adminNav, ViewAdmin)
	assert.True(t, ok)
	settings, ok := find(adminNav, ViewSettings)
	require.True(t, ok)
	assert.True(t, settings.Locked)
	dash, _ := find(adminNav, ViewDashboard)
	assert.True(t, dash.Active)

	_, ok = find(Nav(session.RoleReviewer, ViewDashboard), ViewAdmin)
	assert.False(t, ok)
}

func TestWorkspaceSelectGatesViews(t *testing.T) {
	ws := NewWorkspace(context.Background(), "s1", session.User{ID: "u", Role: session.RoleDepartment}, newStubBackend(), fast)
	defer ws.Close()

	assert.ErrorIs(t, ws.Select(ViewAdmin), ErrViewUnavailable)
	assert.ErrorIs(t, ws.Select(ViewSettings), ErrViewUnavailable)
	require.NoError(t, ws.Select(ViewAnalytics))
	assert.Equal(t, ViewAnalytics, ws.View())
}

func TestWorkspaceDashboardRefreshOnlyWhileActive(t *testing.T) {
	backend := newStubBackend()
	ws := NewWorkspace(context.Background(), "s1", session.User{ID: "u", Role: session.RoleAdmin}, backend, fast)
	defer ws.Close()

	require.NoError(t, ws.Select(ViewDashboard))
	require.Eventually(t, func() bool { return backend.listCount() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, ws.Select(ViewManagement))
	assert.False(t, ws.Dashboard.Running())
	stopped := backend.listCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, backend.listCount())
}

func TestWorkspaceEvaluateSwitchesJobs(t *testing.T) {
	backend := newStubBackend()
	ws := NewWorkspace(context.Background(), "s1", session.User{ID: "u", Role: session.RoleAdmin}, backend, fast)
	defer ws.Close()

	require.NoError(t, ws.Evaluate("A"))
	assert.Equal(t, ViewEvaluation, ws.View())
	assert.Equal(t, "A", ws.SelectedJob())
	require.Eventually(t, func() bool { return backend.statusCount("A") >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, ws.Evaluate("B"))
	afterSwitch := backend.statusCount("A")
	require.Eventually(t, func() bool { return backend.statusCount("B") >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, afterSwitch, backend.statusCount("A"))

	require.NoError(t, ws.Select(ViewDashboard))
	stopped := backend.statusCount("B")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, backend.statusCount("B"), "leaving evaluation stops polling")
}

func TestWorkspaceUploadOpensEvaluation(t *testing.T) {
	ws := NewWorkspace(context.Background(), "s1", session.User{ID: "u", Role: session.RoleAdmin}, newStubBackend(), fast)
	defer ws.Close()

	jobID, err := ws.Upload(context.Background(), "a.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", jobID)
	assert.Equal(t, ViewEvaluation, ws.View())
	assert.Equal(t, "fresh", ws.SelectedJob())
}

func TestWorkspaceFlashIsOneShot(t *testing.T) {
	ws := NewWorkspace(context.Background(), "s1", session.User{ID: "u", Role: session.RoleAdmin}, newStubBackend(), fast)
	defer ws.Close()

	ws.SetFlash(FlashError, "Upload failed: timeout")
	f := ws.TakeFlash()
	require.NotNil(t, f)
	assert.Equal(t, FlashError, f.Kind)
	assert.Nil(t, ws.TakeFlash())
}

func TestRegistry(t *testing.T) {
	backend := newStubBackend()
	reg := NewRegistry(context.Background(), backend, fast)
	sess := &session.Session{ID: "sid", User: session.User{ID: "u", Role: session.RoleAdmin}}

	ws := reg.Acquire(sess)
	assert.Same(t, ws, reg.Acquire(sess))
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, ws.Select(ViewDashboard))
	reg.Release("sid")
	assert.Equal(t, 0, reg.Len())
	assert.False(t, ws.Dashboard.Running())
	_, ok := reg.Get("sid")
	assert.False(t, ok)

	err := ws.Select(ViewDashboard)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrViewUnavailable))

	reg.Acquire(&session.Session{ID: "other", User: session.User{ID: "v", Role: session.RoleReviewer}})
	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistrySweepReleasesExpiredWorkspaces(t *testing.T) {
	backend := newStubBackend()
	reg := NewRegistry(context.Background(), backend, fast)
	now := time.Now()

	expired := reg.Acquire(&session.Session{ID: "old", User: session.User{ID: "u", Role: session.RoleAdmin}, ExpiresAt: now.Add(-time.Minute)})
	live := reg.Acquire(&session.Session{ID: "new", User: session.User{ID: "v", Role: session.RoleAdmin}, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, expired.Select(ViewDashboard))
	require.Eventually(t, func() bool { return backend.listCount() >= 2 }, time.Second, time.Millisecond)

	released := reg.Sweep(func(ws *Workspace) bool { return ws.ExpiresAt().After(now) })
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Get("old")
	assert.False(t, ok)
	got, ok := reg.Get("new")
	require.True(t, ok)
	assert.Same(t, live, got)

	assert.False(t, expired.Dashboard.Running())
	stopped := backend.listCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, backend.listCount())

	reg.CloseAll()
}

func TestRegistryPauseIdleStopsRefresherUntilNextRequest(t *testing.T) {
	backend := newStubBackend()
	reg := NewRegistry(context.Background(), backend, fast)
	clock := time.Now()
	reg.now = func() time.Time { return clock }
	defer reg.CloseAll()

	sess := &session.Session{ID: "sid", User: session.User{ID: "u", Role: session.RoleAdmin}, ExpiresAt: clock.Add(time.Hour)}
	ws := reg.Acquire(sess)
	require.NoError(t, ws.Select(ViewDashboard))
	require.True(t, ws.Dashboard.Running())

	assert.Equal(t, 0, reg.PauseIdle(time.Minute))
	assert.True(t, ws.Dashboard.Running())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, reg.PauseIdle(time.Minute))
	assert.False(t, ws.Dashboard.Running())
	assert.Equal(t, 1, reg.Len(), "idle workspaces keep their state")

	assert.Same(t, ws, reg.Acquire(sess))
	assert.True(t, ws.Dashboard.Running())
}
