package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

func jobs(t *testing.T, body string) []dpr.Job {
	t.Helper()
	var out []dpr.Job
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestCompute(t *testing.T) {
	stats := Compute(jobs(t, `[
		{"jobId":"a","status":"COMPLETED","uploadDate":"2024-01-01T00:00:00Z","analysisResult":{"overallScore":{"score":90}}},
		{"jobId":"b","status":"COMPLETED","uploadDate":"2024-01-02T00:00:00Z","analysisResult":"{\"overallScore\":{\"score\":40}}"},
		{"jobId":"c","status":"COMPLETED","uploadDate":"2024-01-03T00:00:00Z","analysisResult":{"overallScore":{"score":65}}},
		{"jobId":"d","status":"ANALYZING","uploadDate":"2024-01-04T00:00:00Z"},
		{"jobId":"e","status":"ExtractingTEXT","uploadDate":"2024-01-05T00:00:00Z"},
		{"jobId":"f","status":"FAILED","uploadDate":"2024-01-06T00:00:00Z"},
		{"jobId":"g","status":"UPLOADED","uploadDate":"2024-01-07T00:00:00Z"}
	]`))

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 2, stats.Processing)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Scored)
	assert.Equal(t, 65, stats.AverageScore)
	assert.Equal(t, 1, stats.Compliant)
	assert.Equal(t, 1, stats.HighRisk)
	assert.Equal(t, 14, stats.RiskRate)
	assert.Equal(t, "Active", stats.TotalStatus)
	assert.Equal(t, "Fair", stats.AverageStatus)
	assert.Equal(t, "Low", stats.RiskStatus)
	assert.Equal(t, "65%", stats.AverageLabel())

	require.Len(t, stats.Recent, 6)
	assert.Equal(t, "g", stats.Recent[0].JobID)
	assert.Equal(t, "b", stats.Recent[5].JobID)
	assert.Equal(t, "low", stats.Recent[5].Band)
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.RiskRate)
	assert.Equal(t, "No Data", stats.TotalStatus)
	assert.Equal(t, "No Data", stats.AverageStatus)
	assert.Equal(t, "None", stats.RiskStatus)
	assert.Equal(t, "N/A", stats.AverageLabel())
	assert.NotNil(t, stats.Recent)
}

func TestRefresher_TimeoutThenRetry(t *testing.T) {
	var (
		mu   sync.Mutex
		slow = true
		hits atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mu.Lock()
		hang := slow
		mu.Unlock()
		if hang {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`[{"jobId":"a","status":"COMPLETED","analysisResult":{"overallScore":{"score":72}}}]`))
	}))
	defer srv.Close()

	client := dpr.NewClient(srv.URL, time.Second, 40*time.Millisecond)
	r := NewRefresher(context.Background(), client, time.Hour, 10)

	err := r.Refresh(context.Background())
	require.Error(t, err)
	state := r.State()
	assert.True(t, state.ConnectionError())
	assert.True(t, state.Timeout)
	assert.Equal(t, 0, state.Stats.Total)

	mu.Lock()
	slow = false
	mu.Unlock()

	require.NoError(t, r.Retry(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
	state = r.State()
	assert.False(t, state.ConnectionError())
	assert.Equal(t, 1, state.Stats.Total)
	assert.Equal(t, 72, state.Stats.AverageScore)
	assert.Len(t, r.Series(SeriesAverage, time.Time{}), 1)
}

type countingLister struct {
	calls atomic.Int32
}

func (c *countingLister) List(ctx context.Context) ([]dpr.Job, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestRefresher_StartStop(t *testing.T) {
	lister := &countingLister{}
	r := NewRefresher(context.Background(), lister, 5*time.Millisecond, 3)

	r.Start()
	r.Start()
	require.Eventually(t, func() bool { return lister.calls.Load() >= 5 }, time.Second, time.Millisecond)
	assert.True(t, r.State().Running)

	r.Stop()
	stopped := lister.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, lister.calls.Load())
	assert.False(t, r.State().Running)
	assert.Len(t, r.Series(SeriesTotal, time.Time{}), 3, "history is bounded")
}
