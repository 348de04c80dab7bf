package http

import (
	nethttp "net/http"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
)

func settingsHandler(cfg config.Config) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": map[string]any{
				"env":                          cfg.Env,
				"dpr_api_base_url":             cfg.DPRAPIBaseURL,
				"upload_timeout_sec":           cfg.UploadTimeout.Seconds(),
				"list_timeout_sec":             cfg.ListTimeout.Seconds(),
				"poll_interval_ms":             cfg.PollInterval.Milliseconds(),
				"dashboard_refresh_sec":        cfg.DashboardRefreshInterval.Seconds(),
				"dashboard_history_max_points": cfg.DashboardHistoryMaxPoints,
				"refresh_settle_ms":            cfg.RefreshSettleDelay.Milliseconds(),
				"max_upload_mb":                cfg.MaxUploadBytes >> 20,
				"session_driver":               cfg.SessionDriver,
				"session_ttl_hours":            cfg.SessionTTL.Hours(),
			},
		})
	}
}
