package http

import (
	"bytes"
	"html/template"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/dashboard"
	"github.com/LUMINOUX-HEHE/DPR/internal/evaluation"
	"github.com/LUMINOUX-HEHE/DPR/internal/management"
	"github.com/LUMINOUX-HEHE/DPR/internal/session"
	"github.com/LUMINOUX-HEHE/DPR/internal/shell"
)

const analyticsPoints = 12

// renderer owns the parsed page templates.
type renderer struct {
	dev              bool
	pollInterval     time.Duration
	dashboardRefresh time.Duration
	pages            *template.Template
}

type loginForm struct {
	OfficialID string
	Fields     map[string]string
	Error      string
}

type appPage struct {
	User       session.User
	View       shell.View
	Nav        []shell.NavGroup
	Flash      *shell.Flash
	Dashboard  *dashboardPage
	Management *managementPage
	Evaluation *evaluationPage
	Analytics  *analyticsPage
	Admin      *adminPage
}

type dashboardPage struct {
	State         dashboard.State
	RefreshMillis int64
}

type sortColumn struct {
	Key   management.SortKey
	Label string
	Mark  string
}

type managementPage struct {
	Rows      []management.Row
	Total     int
	Query     string
	Status    string
	Statuses  []string
	Columns   []sortColumn
	Selected  int
	LoadError string
	Timeout   bool
}

type evaluationPage struct {
	JobID      string
	Snapshot   evaluation.Snapshot
	PollMillis int64
}

type analyticsPage struct {
	Stats   dashboard.Stats
	Loaded  bool
	Total   []dashboard.Point
	Average []dashboard.Point
	Risk    []dashboard.Point
}

type adminPage struct {
	User session.User
}

type failurePage struct {
	Detail string
	Stack  string
}

func newRenderer(cfg config.Config) (*renderer, error) {
	funcs := template.FuncMap{
		"statusClass": statusClass,
		"fmtDate":     fmtDate,
		"fmtValue":    fmtValue,
		"bandClass":   bandClass,
		"lower":       strings.ToLower,
	}
	pages, err := template.New("pages").Funcs(funcs).Parse(layoutHTML)
	if err != nil {
		return nil, err
	}
	for _, src := range []string{loginHTML, appHTML, dashboardHTML, managementHTML, evaluationHTML, analyticsHTML, adminHTML, failureHTML} {
		if _, err := pages.Parse(src); err != nil {
			return nil, err
		}
	}
	return &renderer{
		dev:              cfg.Development(),
		pollInterval:     cfg.PollInterval,
		dashboardRefresh: cfg.DashboardRefreshInterval,
		pages:            pages,
	}, nil
}

func (u *renderer) execute(w nethttp.ResponseWriter, r *nethttp.Request, code int, name string, data any) {
	buf := &bytes.Buffer{}
	if err := u.pages.ExecuteTemplate(buf, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("render failed")
		u.renderFailure(w, r, err.Error(), "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func (u *renderer) renderLogin(w nethttp.ResponseWriter, r *nethttp.Request, code int, form loginForm) {
	u.execute(w, r, code, "login", form)
}

// renderFailure draws the recovery page. It never panics: when the template
// itself fails a plain-text page is written instead.
func (u *renderer) renderFailure(w nethttp.ResponseWriter, r *nethttp.Request, detail, stack string) {
	data := failurePage{}
	if u.dev {
		data.Detail = detail
		data.Stack = stack
	}
	buf := &bytes.Buffer{}
	if err := u.pages.ExecuteTemplate(buf, "failure", data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render failure page")
		nethttp.Error(w, "Something went wrong. Please reload the page.", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(nethttp.StatusInternalServerError)
	_, _ = w.Write(buf.Bytes())
}

func (u *renderer) renderApp(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace) {
	view := ws.View()
	page := appPage{
		User:  ws.User,
		View:  view,
		Nav:   shell.Nav(ws.User.Role, view),
		Flash: ws.TakeFlash(),
	}

	ctx := r.Context()
	switch view {
	case shell.ViewDashboard:
		if !ws.Dashboard.State().Loaded {
			_ = ws.Dashboard.Refresh(ctx)
		}
		page.Dashboard = &dashboardPage{State: ws.Dashboard.State(), RefreshMillis: u.dashboardRefresh.Milliseconds()}
	case shell.ViewManagement:
		ws.Management.EnsureLoaded(ctx)
		page.Management = buildManagementPage(ws.Management)
	case shell.ViewEvaluation:
		page.Evaluation = &evaluationPage{
			JobID:      ws.SelectedJob(),
			Snapshot:   ws.Evaluation.Snapshot(),
			PollMillis: u.pollInterval.Milliseconds(),
		}
	case shell.ViewAnalytics:
		if !ws.Dashboard.State().Loaded {
			_ = ws.Dashboard.Refresh(ctx)
		}
		st := ws.Dashboard.State()
		page.Analytics = &analyticsPage{
			Stats:   st.Stats,
			Loaded:  st.Loaded && !st.ConnectionError(),
			Total:   lastPoints(ws.Dashboard.Series(dashboard.SeriesTotal, time.Time{})),
			Average: lastPoints(ws.Dashboard.Series(dashboard.SeriesAverage, time.Time{})),
			Risk:    lastPoints(ws.Dashboard.Series(dashboard.SeriesRisk, time.Time{})),
		}
	case shell.ViewAdmin:
		page.Admin = &adminPage{User: ws.User}
	}
	u.execute(w, r, nethttp.StatusOK, "app", page)
}

func buildManagementPage(c *management.Controller) *managementPage {
	key, desc := c.Sort()
	columns := []sortColumn{
		{Key: management.SortID, Label: "Job ID"},
		{Key: management.SortFilename, Label: "Filename"},
		{Key: management.SortDate, Label: "Upload Date"},
		{Key: management.SortStatus, Label: "Status"},
	}
	for i := range columns {
		if columns[i].Key == key {
			columns[i].Mark = "▲"
			if desc {
				columns[i].Mark = "▼"
			}
		}
	}
	statuses := []string{management.StatusAll}
	for _, s := range dpr.FilterableStatuses {
		statuses = append(statuses, string(s))
	}
	page := &managementPage{
		Rows:     c.Rows(),
		Total:    c.Total(),
		Query:    c.Query(),
		Status:   c.StatusFilter(),
		Statuses: statuses,
		Columns:  columns,
		Selected: len(c.Selected()),
	}
	if err := c.LoadError(); err != nil {
		page.LoadError = dpr.UserMessage(err)
		page.Timeout = dpr.IsTimeout(err)
	}
	return page
}

func lastPoints(points []dashboard.Point) []dashboard.Point {
	if len(points) > analyticsPoints {
		return points[len(points)-analyticsPoints:]
	}
	return points
}

func statusClass(l dpr.Lifecycle) string {
	switch {
	case l == dpr.LifecycleCompleted:
		return "ok"
	case l == dpr.LifecycleFailed:
		return "bad"
	case l.Processing():
		return "busy"
	default:
		return "idle"
	}
}

func bandClass(score int) string {
	return dashboard.Band(score)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006 15:04")
}

func fmtValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

const layoutHTML = `{{define "head"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Prasthav-AI</title>
  <style>
    :root {
      --gov-blue: #0b3d91;
      --gov-blue-2: #1456c8;
      --bg: #f4f6fa;
      --paper: #fff;
      --text: #1f2933;
      --muted: #6b7280;
      --line: #dde2ea;
      --ok-bg: #dff0d8;
      --ok-text: #2f6b2f;
      --bad-bg: #f8dede;
      --bad-text: #a13b3b;
      --busy-bg: #fff3cd;
      --busy-text: #7a5b00;
    }
    * { box-sizing: border-box; }
    body { margin: 0; background: var(--bg); color: var(--text); font-family: "Helvetica Neue", Arial, sans-serif; font-size: 14px; }
    a { color: var(--gov-blue-2); text-decoration: none; }
    button, .btn { font: inherit; border: 1px solid var(--line); background: var(--paper); padding: 6px 12px; border-radius: 4px; cursor: pointer; }
    .btn-primary { background: var(--gov-blue); border-color: var(--gov-blue); color: #fff; }
    .btn-danger { color: var(--bad-text); }
    .shell { display: flex; min-height: 100vh; }
    .sidebar { width: 220px; background: var(--gov-blue); color: #fff; padding: 16px 0; }
    .sidebar h1 { font-size: 18px; margin: 0 16px 16px; }
    .sidebar h2 { font-size: 11px; text-transform: uppercase; letter-spacing: .08em; opacity: .7; margin: 16px 16px 6px; }
    .sidebar a, .sidebar span { display: block; padding: 6px 16px; color: #fff; }
    .sidebar a.active { background: rgba(255,255,255,.15); font-weight: 600; }
    .sidebar span.locked { opacity: .45; cursor: not-allowed; }
    .main { flex: 1; padding: 20px 28px; }
    .topbar { display: flex; justify-content: space-between; align-items: center; margin-bottom: 16px; }
    .panel { background: var(--paper); border: 1px solid var(--line); border-radius: 6px; padding: 16px; margin-bottom: 16px; }
    .cards { display: grid; grid-template-columns: repeat(4, 1fr); gap: 12px; margin-bottom: 16px; }
    .card { background: var(--paper); border: 1px solid var(--line); border-radius: 6px; padding: 14px; }
    .card .value { font-size: 26px; font-weight: 700; }
    .card .label { color: var(--muted); font-size: 12px; text-transform: uppercase; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--line); }
    th button { border: 0; background: none; padding: 0; font-weight: 600; }
    .pill { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 12px; }
    .pill.ok { background: var(--ok-bg); color: var(--ok-text); }
    .pill.bad { background: var(--bad-bg); color: var(--bad-text); }
    .pill.busy { background: var(--busy-bg); color: var(--busy-text); }
    .pill.idle { background: #eceff4; color: var(--muted); }
    .band-good { color: var(--ok-text); }
    .band-fair { color: var(--busy-text); }
    .band-low { color: var(--bad-text); }
    .flash { padding: 10px 14px; border-radius: 4px; margin-bottom: 14px; }
    .flash.error { background: var(--bad-bg); color: var(--bad-text); }
    .flash.success { background: var(--ok-bg); color: var(--ok-text); }
    .banner { background: var(--bad-bg); color: var(--bad-text); padding: 10px 14px; border-radius: 4px; margin-bottom: 14px; display: flex; justify-content: space-between; align-items: center; }
    .offline { position: fixed; bottom: 0; left: 0; right: 0; background: #333; color: #fff; padding: 10px 16px; display: flex; gap: 12px; align-items: center; justify-content: center; }
    .offline[hidden] { display: none; }
    .progress { height: 10px; background: #eceff4; border-radius: 5px; overflow: hidden; }
    .progress > div { height: 100%; background: var(--gov-blue-2); transition: width .4s; }
    .muted { color: var(--muted); }
    .inline { display: inline; }
    .toolbar { display: flex; gap: 8px; align-items: center; flex-wrap: wrap; margin-bottom: 12px; }
    .field-error { color: var(--bad-text); font-size: 12px; }
    pre { white-space: pre-wrap; font-size: 12px; background: #f5f5f5; padding: 10px; }
  </style>
</head>
{{end}}
{{define "offline"}}
<div id="offline-banner" class="offline" hidden>
  <strong>Work Mode: Offline</strong>
  <span>Connection lost. Actions will resume when you are back online.</span>
  <button type="button" onclick="window.location.reload()">Try Sync Now</button>
</div>
<script>
(function () {
  var banner = document.getElementById("offline-banner");
  function update() { banner.hidden = navigator.onLine; }
  window.addEventListener("online", update);
  window.addEventListener("offline", update);
  update();
})();
</script>
{{end}}`

const loginHTML = `{{define "login"}}{{template "head"}}
<body>
  <div style="max-width:380px;margin:80px auto" class="panel">
    <p class="muted">Government of India · Official Authentication</p>
    <h1>Prasthav-AI</h1>
    {{if .Error}}<div class="flash error">{{.Error}}</div>{{end}}
    <form method="post" action="/login" novalidate>
      <p>
        <label for="official_id">Authorized ID</label><br />
        <input id="official_id" name="official_id" placeholder="Official ID" value="{{.OfficialID}}" required />
        {{with index .Fields "OfficialID"}}<br /><span class="field-error">{{.}}</span>{{end}}
      </p>
      <p>
        <label for="password">Security Code</label><br />
        <input id="password" name="password" type="password" required />
        {{with index .Fields "Password"}}<br /><span class="field-error">{{.}}</span>{{end}}
      </p>
      <button class="btn-primary" type="submit">Login to Portal</button>
    </form>
    <p class="muted">Official Use Only · Protected by NIC Assets</p>
  </div>
  {{template "offline"}}
</body>
</html>
{{end}}`

const appHTML = `{{define "app"}}{{template "head"}}
<body>
  <div class="shell">
    <nav class="sidebar">
      <h1>Prasthav-AI</h1>
      {{range .Nav}}
        <h2>{{.Title}}</h2>
        {{range .Items}}
          {{if .Locked}}<span class="locked" title="Coming soon">{{.Label}}</span>
          {{else}}<a href="/app?view={{.View}}"{{if .Active}} class="active"{{end}}>{{.Label}}</a>{{end}}
        {{end}}
      {{end}}
    </nav>
    <main class="main">
      <div class="topbar">
        <div><strong>{{.User.Name}}</strong> <span class="muted">{{.User.Role}} · {{.User.Department}}</span></div>
        <form method="post" action="/logout" class="inline"><button type="submit">Logout</button></form>
      </div>
      {{with .Flash}}<div class="flash {{.Kind}}" role="alert">{{.Message}}</div>{{end}}
      {{with .Dashboard}}{{template "dashboard" .}}{{end}}
      {{with .Management}}{{template "management" .}}{{end}}
      {{with .Evaluation}}{{template "evaluation" .}}{{end}}
      {{with .Analytics}}{{template "analytics" .}}{{end}}
      {{with .Admin}}{{template "admin" .}}{{end}}
    </main>
  </div>
  {{template "offline"}}
</body>
</html>
{{end}}`

const dashboardHTML = `{{define "dashboard"}}
<h2>Official Oversight Dashboard</h2>
{{if .State.Error}}
  <div class="banner" role="alert">
    <span>{{if .State.Timeout}}The DPR service did not respond in time.{{else}}Unable to reach the DPR service.{{end}} <small>{{.State.Error}}</small></span>
    <form method="post" action="/app/dashboard/retry" class="inline"><button type="submit">Retry</button></form>
  </div>
{{end}}
{{with .State.Stats}}
<div class="cards">
  <div class="card"><div class="label">Total DPRs</div><div class="value">{{.Total}}</div><div class="muted">{{.TotalStatus}}</div></div>
  <div class="card"><div class="label">Compliant Projects</div><div class="value">{{.Compliant}}</div><div class="muted">{{.CompliantStatus}}</div></div>
  <div class="card"><div class="label">Average Score</div><div class="value">{{.AverageLabel}}</div><div class="muted">{{.AverageStatus}}</div></div>
  <div class="card"><div class="label">Risk Flag Rate</div><div class="value">{{.RiskRate}}%</div><div class="muted">{{.RiskStatus}}</div></div>
</div>
<div class="panel">
  <h3>Recent Evaluations</h3>
  {{if .Recent}}
  <table>
    <thead><tr><th>Filename</th><th>Status</th><th>Score</th><th></th></tr></thead>
    <tbody>
    {{range .Recent}}
      <tr>
        <td>{{.Filename}}</td>
        <td><span class="pill {{statusClass .Status}}">{{.Status}}</span></td>
        <td>{{if .HasScore}}<span class="band-{{.Band}}">{{.Score}}%</span>{{else}}<span class="muted">Pending</span>{{end}}</td>
        <td><form method="post" action="/app/evaluate/{{.JobID}}" class="inline"><button type="submit">Open</button></form></td>
      </tr>
    {{end}}
    </tbody>
  </table>
  {{else}}<p class="muted">No Data Available</p>{{end}}
</div>
{{end}}
<p class="muted">Auto-refresh every {{.RefreshMillis}} ms while this view is open.{{if not .State.RefreshedAt.IsZero}} Last refreshed {{fmtDate .State.RefreshedAt}}.{{end}}</p>
<script>
(function () {
  var last = "{{.State.RefreshedAt.UTC.Format "2006-01-02T15:04:05.000Z07:00"}}";
  setInterval(function () {
    fetch("/api/v1/dashboard", { credentials: "same-origin" })
      .then(function (r) { return r.json(); })
      .then(function (p) {
        var at = p && p.data && p.data.refreshed_at;
        if (at && at !== last && new Date(at).getTime() !== new Date(last).getTime()) { window.location.reload(); }
      })
      .catch(function () {});
  }, {{.RefreshMillis}});
})();
</script>
{{end}}`

const managementHTML = `{{define "management"}}
<h2>Strategic Project Archive</h2>
{{if .LoadError}}
  <div class="banner" role="alert">
    <span>{{if .Timeout}}The DPR service did not respond in time.{{else}}Unable to load DPRs.{{end}} <small>{{.LoadError}}</small></span>
    <form method="post" action="/app/dpr/refresh" class="inline"><button type="submit">Retry</button></form>
  </div>
{{end}}
<div class="panel">
  <form method="post" action="/app/dpr/upload" enctype="multipart/form-data" class="toolbar">
    <input type="file" name="file" accept=".pdf,application/pdf" required />
    <button class="btn-primary" type="submit">Upload DPR</button>
  </form>
  <form method="post" action="/app/dpr/query" class="toolbar">
    <input type="search" name="q" value="{{.Query}}" placeholder="Search by DPR ID or Name..." />
    <select name="status">
      {{$current := .Status}}
      {{range .Statuses}}<option value="{{.}}"{{if eq . $current}} selected{{end}}>{{.}}</option>{{end}}
    </select>
    <button type="submit">Apply</button>
  </form>
  <div class="toolbar">
    <form method="post" action="/app/dpr/refresh" class="inline"><button type="submit" title="Refresh">Refresh</button></form>
    <form method="post" action="/app/dpr/select" class="inline"><input type="hidden" name="action" value="all" /><button type="submit">Select all</button></form>
    <form method="post" action="/app/dpr/select" class="inline"><input type="hidden" name="action" value="clear" /><button type="submit">Clear selection</button></form>
    <span class="muted">{{.Selected}} selected · {{len .Rows}} of {{.Total}} shown</span>
    {{if .Selected}}
      <a class="btn" href="/app/dpr/export">Export JSON</a>
      <a class="btn" href="/app/dpr/export?format=csv">Export CSV</a>
      <form method="post" action="/app/dpr/bulk-delete" class="inline" onsubmit="return confirm('Delete {{.Selected}} selected DPRs?');"><button class="btn-danger" type="submit">Delete selected</button></form>
    {{end}}
  </div>
  {{if .Rows}}
  <table>
    <thead>
      <tr>
        <th></th>
        {{range .Columns}}
          <th><form method="post" action="/app/dpr/sort" class="inline"><input type="hidden" name="key" value="{{.Key}}" /><button type="submit">{{.Label}} {{.Mark}}</button></form></th>
        {{end}}
        <th>Score</th>
        <th></th>
      </tr>
    </thead>
    <tbody>
    {{range .Rows}}
      <tr>
        <td>
          <form method="post" action="/app/dpr/select" class="inline">
            <input type="hidden" name="id" value="{{.Job.JobID}}" />
            <input type="checkbox" aria-label="Select {{.Job.Filename}}" onchange="this.form.submit()"{{if .Selected}} checked{{end}} />
            <noscript><button type="submit">{{if .Selected}}Unselect{{else}}Select{{end}}</button></noscript>
          </form>
        </td>
        <td><code>{{.Job.JobID}}</code></td>
        <td>{{.Job.Filename}}</td>
        <td>{{fmtDate .Job.UploadDate}}</td>
        <td><span class="pill {{statusClass .Job.Status}}">{{.Job.Status}}</span></td>
        <td>{{if .HasScore}}<span class="band-{{bandClass .Score}}">{{.Score}}%</span>{{else}}<span class="muted">Pending</span>{{end}}</td>
        <td>
          <form method="post" action="/app/evaluate/{{.Job.JobID}}" class="inline"><button type="submit" title="View Details">View</button></form>
          <form method="post" action="/app/dpr/{{.Job.JobID}}/delete" class="inline" onsubmit="return confirm('Delete this DPR?');"><button class="btn-danger" type="submit" title="Delete DPR">Delete</button></form>
        </td>
      </tr>
    {{end}}
    </tbody>
  </table>
  {{else if .Total}}
    <p class="muted">No DPRs match the current filter.</p>
  {{else if not .LoadError}}
    <p class="muted">No DPRs Uploaded Yet</p>
  {{end}}
</div>
{{end}}`

const evaluationHTML = `{{define "evaluation"}}
<h2>Official Case Scrutiny</h2>
{{if not .JobID}}
  <div class="panel"><p class="muted">No DPR selected. Choose a report from the <a href="/app?view=dpr-management">repository</a>.</p></div>
{{else}}
{{with .Snapshot}}
<div class="panel" id="eval" data-polling="{{.Polling}}" data-lifecycle="{{.Lifecycle}}" data-interval="{{$.PollMillis}}">
  <p><strong>{{if .Filename}}{{.Filename}}{{else}}{{.JobID}}{{end}}</strong> <span class="muted"><code>{{.JobID}}</code></span></p>
  <p>
    <span class="pill {{statusClass .Lifecycle}}">{{.Lifecycle}}</span>
    {{if .Stage}}<span class="muted">stage {{.Stage}}</span>{{end}}
    {{if .Polling}}<span class="muted">Unit Analysis Active...</span>{{end}}
  </p>
  <div class="progress"><div id="eval-bar" style="width: {{.Progress}}%"></div></div>
  {{if .LastPoll}}<p class="muted">Last status check failed: {{.LastPoll}}. Retrying.</p>{{end}}
  {{if .Error}}<div class="banner" role="alert"><span>{{.Error}}</span></div>{{end}}
</div>
<div class="panel">
  <h3>Overall Score</h3>
  {{with .Analysis}}
    {{if .HasScore}}<p class="card value band-{{bandClass .Score}}">{{.Score}}%</p>{{else}}<p class="muted">Pending Analysis</p>{{end}}
    {{if .RiskLevel}}<p>Risk level: <strong>{{.RiskLevel}}</strong></p>{{end}}
    {{if .ExtractionConfidence}}<p class="muted">Extraction confidence: {{.ExtractionConfidence}}</p>{{end}}
    {{if .Summary}}<h4>Executive Summary</h4><p>{{.Summary}}</p>{{end}}
    {{if .RiskFactors}}<h4>Risk Factors</h4><ul>{{range .RiskFactors}}<li>{{.}}</li>{{end}}</ul>{{end}}
    {{if .ComplianceObservations}}<h4>Compliance Observations</h4><ul>{{range .ComplianceObservations}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{else}}
    <p class="muted">{{if .Polling}}Awaiting AI evaluation{{else}}Pending Analysis{{end}}</p>
  {{end}}
</div>
<div class="panel">
  <h3>Structure Checklist</h3>
  <table>
    <thead><tr><th>Section</th><th>Presence</th><th>Score</th><th>Status</th><th>Notes</th></tr></thead>
    <tbody>
    {{range .Sections}}
      <tr>
        <td>{{.Label}}</td>
        <td>{{if .Present}}{{.Presence}}{{else}}<span class="muted">Not explicitly documented</span>{{end}}</td>
        <td>{{if .Present}}<span class="band-{{bandClass .Score}}">{{.Score}}</span>{{else}}-{{end}}</td>
        <td>{{.Status}}</td>
        <td>{{.Flag}}</td>
      </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}
<script>
(function () {
  var el = document.getElementById("eval");
  if (!el || el.dataset.polling !== "true") { return; }
  var stage = el.dataset.lifecycle;
  var timer = setInterval(function () {
    fetch("/api/v1/evaluation", { credentials: "same-origin" })
      .then(function (r) { return r.json(); })
      .then(function (p) {
        var d = (p && p.data) || {};
        var bar = document.getElementById("eval-bar");
        if (bar && typeof d.progress === "number") { bar.style.width = d.progress + "%"; }
        if (d.state !== "polling" || d.lifecycle !== stage) {
          clearInterval(timer);
          window.location.reload();
        }
      })
      .catch(function () {});
  }, parseInt(el.dataset.interval, 10) || 3000);
})();
</script>
{{end}}
{{end}}`

const analyticsHTML = `{{define "analytics"}}
<h2>Impact Analytics</h2>
<div class="cards">
  <div class="card"><div class="label">State Distribution</div><div class="value">{{.Stats.Total}}</div><div class="muted">{{.Stats.Completed}} completed · {{.Stats.Processing}} processing · {{.Stats.Failed}} failed</div></div>
  <div class="card"><div class="label">Risk Analysis</div><div class="value">{{.Stats.HighRisk}}</div><div class="muted">high-risk DPRs ({{.Stats.RiskRate}}%)</div></div>
  <div class="card"><div class="label">Performance Trends</div><div class="value">{{.Stats.AverageLabel}}</div><div class="muted">average score</div></div>
</div>
<div class="panel">
  <h3>Recent history</h3>
  {{if .Total}}
  <table>
    <thead><tr><th>Time</th><th>Total DPRs</th></tr></thead>
    <tbody>{{range .Total}}<tr><td>{{fmtDate .Timestamp}}</td><td>{{fmtValue .Value}}</td></tr>{{end}}</tbody>
  </table>
  {{if .Average}}<p class="muted">Average score samples: {{range .Average}}{{fmtValue .Value}} {{end}}</p>{{end}}
  {{if .Risk}}<p class="muted">Risk rate samples: {{range .Risk}}{{fmtValue .Value}}% {{end}}</p>{{end}}
  {{else}}
  <p class="muted">{{if .Loaded}}History is collected while the dashboard is open.{{else}}No Data Available{{end}}</p>
  {{end}}
</div>
{{end}}`

const adminHTML = `{{define "admin"}}
<h2>Administrative Control Center</h2>
<div class="panel">
  <h3>Active Authorized Personnel</h3>
  <table>
    <thead><tr><th>Official ID</th><th>Department</th><th>Access Level</th></tr></thead>
    <tbody><tr><td>{{.User.ID}}</td><td>{{.User.Department}}</td><td>{{.User.Role}}</td></tr></tbody>
  </table>
  <p class="muted">Personnel are provisioned by the identity provider.</p>
</div>
<div class="panel">
  <h3>System Architecture Health</h3>
  <p>Service status: <a href="/api/v1/status/backend">/api/v1/status/backend</a> · Metrics: <a href="/metrics">/metrics</a></p>
</div>
{{end}}`

const failureHTML = `{{define "failure"}}{{template "head"}}
<body>
  <div style="max-width:640px;margin:80px auto" class="panel" role="alert">
    <h1>Something went wrong</h1>
    <p>The component failed to load. Please try again.</p>
    <p>
      <a class="btn btn-primary" href="/app">Try Again</a>
      <button type="button" onclick="window.location.reload()">Reload Page</button>
    </p>
    {{if .Detail}}<h3>Error</h3><pre>{{.Detail}}</pre>{{end}}
    {{if .Stack}}<h3>Stack</h3><pre>{{.Stack}}</pre>{{end}}
  </div>
  {{template "offline"}}
</body>
</html>
{{end}}`
