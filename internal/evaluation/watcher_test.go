package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	scripts map[string][]*dpr.StatusResponse
	errs    map[string]error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		calls:   map[string]int{},
		scripts: map[string][]*dpr.StatusResponse{},
		errs:    map[string]error{},
	}
}

func (f *scriptedFetcher) Status(ctx context.Context, jobID string) (*dpr.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[jobID]
	f.calls[jobID] = n + 1
	if err := f.errs[jobID]; err != nil && n == 0 {
		return nil, err
	}
	script := f.scripts[jobID]
	if len(script) == 0 {
		return &dpr.StatusResponse{JobID: jobID, LifecycleStatus: dpr.LifecycleInProgress}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func (f *scriptedFetcher) count(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[jobID]
}

func TestProgress(t *testing.T) {
	cases := map[dpr.Lifecycle]int{
		dpr.LifecycleNotStarted: 0,
		dpr.LifecycleQueued:     20,
		dpr.LifecycleExtracting: 40,
		dpr.LifecycleAnalyzing:  60,
		dpr.LifecycleInProgress: 60,
		dpr.LifecycleCompleted:  100,
		dpr.LifecycleFailed:     100,
		"SOMETHING_NEW":         30,
		"":                      30,
	}
	for lifecycle, want := range cases {
		if got := Progress(lifecycle); got != want {
			t.Fatalf("expected %d for %q, got %d", want, lifecycle, got)
		}
	}
}

func TestWatcher_ExtractingThenCompleted(t *testing.T) {
	result, _ := json.Marshal(`{"overallScore":{"score":82,"riskLevel":"LOW"}}`)
	f := newScriptedFetcher()
	f.scripts["abc123"] = []*dpr.StatusResponse{
		{JobID: "abc123", LifecycleStatus: dpr.LifecycleExtracting},
		{JobID: "abc123", LifecycleStatus: dpr.LifecycleCompleted, Result: result},
	}

	w := NewWatcher(context.Background(), f, 20*time.Millisecond)
	defer w.Stop()
	w.Watch("abc123")

	require.Eventually(t, func() bool { return w.Snapshot().Polls >= 1 }, time.Second, time.Millisecond)
	first := w.Snapshot()
	if first.State == StatePolling {
		assert.Equal(t, dpr.LifecycleExtracting, first.Lifecycle)
		assert.Equal(t, 40, first.Progress)
	}

	require.Eventually(t, func() bool { return w.Snapshot().State == StateCompleted }, 2*time.Second, time.Millisecond)
	snap := w.Snapshot()
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, 82, snap.Analysis.Score)
	assert.Equal(t, "LOW", snap.Analysis.RiskLevel)
	assert.Equal(t, 100, snap.Progress)
	assert.Len(t, snap.Sections, 5)

	calls := f.count("abc123")
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, f.count("abc123"), "polling continued after completion")
}

func TestWatcher_SwitchingCancelsPrevious(t *testing.T) {
	f := newScriptedFetcher()
	w := NewWatcher(context.Background(), f, 5*time.Millisecond)
	defer w.Stop()

	w.Watch("A")
	require.Eventually(t, func() bool { return f.count("A") >= 2 }, time.Second, time.Millisecond)

	w.Watch("B")
	afterSwitch := f.count("A")
	require.Eventually(t, func() bool { return f.count("B") >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, afterSwitch, f.count("A"), "requests for A continued after switching to B")
	assert.Equal(t, "B", w.Snapshot().JobID)
}

func TestWatcher_Failed(t *testing.T) {
	f := newScriptedFetcher()
	f.scripts["bad"] = []*dpr.StatusResponse{{LifecycleStatus: dpr.LifecycleFailed}}

	w := NewWatcher(context.Background(), f, 5*time.Millisecond)
	defer w.Stop()
	w.Watch("bad")

	require.Eventually(t, func() bool { return w.Snapshot().State == StateFailed }, time.Second, time.Millisecond)
	assert.Equal(t, "Unknown error", w.Snapshot().Error)
	assert.Equal(t, 100, w.Snapshot().Progress)
}

func TestWatcher_MalformedResultStopsWithDecodeFailure(t *testing.T) {
	f := newScriptedFetcher()
	f.scripts["m"] = []*dpr.StatusResponse{{LifecycleStatus: dpr.LifecycleCompleted, Result: json.RawMessage(`"{broken"`)}}

	w := NewWatcher(context.Background(), f, 5*time.Millisecond)
	defer w.Stop()
	w.Watch("m")

	require.Eventually(t, func() bool { return w.Snapshot().State == StateDecodeFailed }, time.Second, time.Millisecond)
	assert.Contains(t, w.Snapshot().Error, "malformed analysis payload")
	calls := f.count("m")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, f.count("m"))
}

func TestWatcher_TransportErrorKeepsPolling(t *testing.T) {
	f := newScriptedFetcher()
	f.errs["j"] = errors.New("connection refused")
	f.scripts["j"] = []*dpr.StatusResponse{{}, {LifecycleStatus: dpr.LifecycleQueued}}

	w := NewWatcher(context.Background(), f, 5*time.Millisecond)
	defer w.Stop()
	w.Watch("j")

	require.Eventually(t, func() bool { return w.Snapshot().Lifecycle == dpr.LifecycleQueued }, time.Second, time.Millisecond)
	assert.True(t, w.Snapshot().Polling())
	assert.Empty(t, w.Snapshot().LastPoll)
}

func TestWatcher_MissingLifecycleDefaultsToNotStarted(t *testing.T) {
	f := newScriptedFetcher()
	f.scripts["n"] = []*dpr.StatusResponse{{Status: dpr.LifecycleUploaded}}

	w := NewWatcher(context.Background(), f, time.Hour)
	defer w.Stop()
	w.Watch("n")

	require.Eventually(t, func() bool { return w.Snapshot().Polls >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, dpr.LifecycleNotStarted, w.Snapshot().Lifecycle)
	assert.Equal(t, dpr.LifecycleUploaded, w.Snapshot().Stage)
	assert.Equal(t, 0, w.Snapshot().Progress)
}

func TestWatcher_EmptyIDIsIdle(t *testing.T) {
	f := newScriptedFetcher()
	w := NewWatcher(context.Background(), f, time.Millisecond)
	w.Watch("")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateIdle, w.Snapshot().State)
	assert.Equal(t, 0, f.count(""))
}

func TestRows(t *testing.T) {
	analysis, err := dpr.DecodeAnalysis(json.RawMessage(`{"documentAnalysis":{"sections":[{"section":"FINANCIALS","presence":"PRESENT","score":64,"summary":"ok"}]}}`))
	require.NoError(t, err)
	rows := Rows(analysis)
	require.Len(t, rows, 5)
	assert.Equal(t, "Financials", rows[2].Label)
	assert.True(t, rows[2].Present)
	assert.Equal(t, "Analyzed", rows[2].Status)
	assert.Equal(t, "ok", rows[2].Flag)
	assert.Equal(t, "Pending", rows[0].Status)
}
