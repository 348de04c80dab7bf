package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/sessionstore"
	"github.com/LUMINOUX-HEHE/DPR/internal/dashboard"
	"github.com/LUMINOUX-HEHE/DPR/internal/shell"
)

// backendStatusHandler probes the backend with a full list call, so it is
// only served to signed-in users.
func backendStatusHandler(backend dprBackend, store *sessionstore.Store) workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, _ *shell.Workspace) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		services := map[string]any{
			"dpr_api":       dprStatus(ctx, backend),
			"session_store": sessionStoreStatus(ctx, store),
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"generated_at": time.Now().UTC(),
			"services":     services,
		})
	}
}

func dprStatus(ctx context.Context, backend dprBackend) map[string]any {
	if backend == nil || !backend.Enabled() {
		return map[string]any{"enabled": false, "ok": false, "error": "DPR backend is not configured"}
	}

	start := time.Now()
	jobs, err := backend.List(ctx)
	latency := time.Since(start)
	if err != nil {
		return map[string]any{
			"enabled":    true,
			"ok":         false,
			"endpoint":   backend.Endpoint(),
			"timeout":    dpr.IsTimeout(err),
			"latency_ms": latency.Milliseconds(),
			"error":      dpr.UserMessage(err),
		}
	}
	return map[string]any{
		"enabled":    true,
		"ok":         true,
		"endpoint":   backend.Endpoint(),
		"jobs":       len(jobs),
		"latency_ms": latency.Milliseconds(),
	}
}

func sessionStoreStatus(ctx context.Context, store *sessionstore.Store) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "session store disabled"}
	}
	if err := store.Ping(ctx); err != nil {
		return map[string]any{"enabled": true, "ok": false, "driver": store.Driver(), "error": err.Error()}
	}
	return map[string]any{"enabled": true, "ok": true, "driver": store.Driver()}
}

func evaluationSnapshotHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request, ws *shell.Workspace) {
		snap := ws.Evaluation.Snapshot()
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"view":         ws.View(),
				"selected_job": ws.SelectedJob(),
				"polling":      snap.Polling(),
			},
			"data": snap,
		})
	}
}

func dashboardStateHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request, ws *shell.Workspace) {
		writeJSON(w, nethttp.StatusOK, dashboardPayload(ws))
	}
}

func dashboardRetryHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		status := nethttp.StatusOK
		if err := ws.Dashboard.Retry(r.Context()); err != nil {
			status = nethttp.StatusBadGateway
		}
		writeJSON(w, status, dashboardPayload(ws))
	}
}

func dashboardPayload(ws *shell.Workspace) map[string]any {
	var since time.Time
	return map[string]any{
		"meta": map[string]any{
			"generated_at": time.Now().UTC(),
		},
		"data": ws.Dashboard.State(),
		"history": map[string]any{
			dashboard.SeriesTotal:   ws.Dashboard.Series(dashboard.SeriesTotal, since),
			dashboard.SeriesAverage: ws.Dashboard.Series(dashboard.SeriesAverage, since),
			dashboard.SeriesRisk:    ws.Dashboard.Series(dashboard.SeriesRisk, since),
		},
	}
}
