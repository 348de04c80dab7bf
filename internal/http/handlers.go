package http

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/management"
	"github.com/LUMINOUX-HEHE/DPR/internal/shell"
)

const multipartMemory = 8 << 20

func viewURL(v shell.View) string {
	return "/app?view=" + url.QueryEscape(string(v))
}

func backTo(w nethttp.ResponseWriter, r *nethttp.Request, v shell.View) {
	nethttp.Redirect(w, r, viewURL(v), nethttp.StatusSeeOther)
}

func appHandler(ui *renderer) workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		view := ws.View()
		if q := r.URL.Query(); q.Has("view") {
			v, err := shell.ParseView(q.Get("view"))
			if err != nil {
				ws.SetFlash(shell.FlashError, "Unknown view.")
				nethttp.Redirect(w, r, "/app", nethttp.StatusSeeOther)
				return
			}
			view = v
		}
		if err := ws.Select(view); err != nil {
			if errors.Is(err, shell.ErrViewUnavailable) {
				ws.SetFlash(shell.FlashError, "That section is not available.")
				nethttp.Redirect(w, r, "/app", nethttp.StatusSeeOther)
				return
			}
			nethttp.Redirect(w, r, "/login", nethttp.StatusSeeOther)
			return
		}
		ui.renderApp(w, r, ws)
	}
}

func evaluateHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		jobID := strings.TrimSpace(r.PathValue("jobId"))
		if jobID == "" {
			ws.SetFlash(shell.FlashError, "No DPR selected.")
			backTo(w, r, shell.ViewManagement)
			return
		}
		if err := ws.Evaluate(jobID); err != nil {
			ws.SetFlash(shell.FlashError, err.Error())
		}
		backTo(w, r, shell.ViewEvaluation)
	}
}

func uploadHandler(maxBytes int64) workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		if maxBytes > 0 {
			r.Body = nethttp.MaxBytesReader(w, r.Body, maxBytes)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *nethttp.MaxBytesError
			if errors.As(err, &tooLarge) {
				ws.SetFlash(shell.FlashError, fmt.Sprintf("Upload failed: file exceeds %d MB", maxBytes>>20))
			} else {
				ws.SetFlash(shell.FlashError, "Upload failed: choose a PDF file to upload")
			}
			backTo(w, r, shell.ViewManagement)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			ws.SetFlash(shell.FlashError, "Upload failed: choose a PDF file to upload")
			backTo(w, r, shell.ViewManagement)
			return
		}
		defer file.Close()

		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			ws.SetFlash(shell.FlashError, "Upload failed: only PDF files are accepted")
			backTo(w, r, shell.ViewManagement)
			return
		}

		_, err = ws.Upload(r.Context(), header.Filename, file)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("filename", header.Filename).Msg("upload failed")
			ws.SetFlash(shell.FlashError, "Upload failed: "+dpr.UserMessage(err))
			backTo(w, r, shell.ViewManagement)
			return
		}
		ws.SetFlash(shell.FlashSuccess, fmt.Sprintf("%s uploaded. Evaluation started.", header.Filename))
		backTo(w, r, shell.ViewEvaluation)
	}
}

func refreshHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		_ = ws.Management.Refresh(r.Context())
		backTo(w, r, shell.ViewManagement)
	}
}

func queryHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		if err := r.ParseForm(); err != nil {
			backTo(w, r, shell.ViewManagement)
			return
		}
		ws.Management.SetQuery(r.PostForm.Get("q"))
		if status := r.PostForm.Get("status"); status != "" {
			if err := ws.Management.SetStatusFilter(status); err != nil {
				ws.SetFlash(shell.FlashError, err.Error())
			}
		}
		backTo(w, r, shell.ViewManagement)
	}
}

func sortHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		if err := r.ParseForm(); err != nil {
			backTo(w, r, shell.ViewManagement)
			return
		}
		if err := ws.Management.ToggleSort(management.SortKey(r.PostForm.Get("key"))); err != nil {
			ws.SetFlash(shell.FlashError, err.Error())
		}
		backTo(w, r, shell.ViewManagement)
	}
}

func selectHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		if err := r.ParseForm(); err != nil {
			backTo(w, r, shell.ViewManagement)
			return
		}
		switch r.PostForm.Get("action") {
		case "all":
			ws.Management.SelectAll()
		case "clear":
			ws.Management.ClearSelection()
		default:
			if id := strings.TrimSpace(r.PostForm.Get("id")); id != "" {
				ws.Management.Toggle(id)
			}
		}
		backTo(w, r, shell.ViewManagement)
	}
}

func deleteHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		jobID := strings.TrimSpace(r.PathValue("jobId"))
		if err := ws.Management.Delete(r.Context(), jobID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("job_id", jobID).Msg("delete failed")
			ws.SetFlash(shell.FlashError, "Failed to delete DPR. Please try again.")
			backTo(w, r, shell.ViewManagement)
			return
		}
		ws.SetFlash(shell.FlashSuccess, "DPR deleted.")
		backTo(w, r, shell.ViewManagement)
	}
}

func bulkDeleteHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		requested := len(ws.Management.Selected())
		if requested == 0 {
			ws.SetFlash(shell.FlashError, "Select at least one DPR to delete.")
			backTo(w, r, shell.ViewManagement)
			return
		}
		err := ws.Management.DeleteSelected(r.Context())
		var bulk *management.BulkDeleteError
		switch {
		case errors.As(err, &bulk):
			ws.SetFlash(shell.FlashError, fmt.Sprintf("Failed to delete %d of %d DPRs (%s). Please try again.",
				len(bulk.Failed), bulk.Requested, strings.Join(bulk.Failed, ", ")))
		case err != nil:
			ws.SetFlash(shell.FlashError, "Failed to delete DPR. Please try again.")
		default:
			ws.SetFlash(shell.FlashSuccess, fmt.Sprintf("Deleted %d DPRs.", requested))
		}
		backTo(w, r, shell.ViewManagement)
	}
}

func exportHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		var (
			export *management.Export
			err    error
		)
		if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
			export, err = ws.Management.ExportSelectedCSV()
		} else {
			export, err = ws.Management.ExportSelected()
		}
		if err != nil {
			if errors.Is(err, management.ErrEmptySelection) {
				ws.SetFlash(shell.FlashError, "Select at least one DPR to export.")
			} else {
				ws.SetFlash(shell.FlashError, "Export failed: "+err.Error())
			}
			backTo(w, r, shell.ViewManagement)
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write(export.Body)
	}
}

func dashboardRetryPageHandler() workspaceHandler {
	return func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
		_ = ws.Dashboard.Retry(r.Context())
		backTo(w, r, shell.ViewDashboard)
	}
}
