package http

import (
	"errors"
	nethttp "net/http"

	"github.com/rs/zerolog"

	"github.com/LUMINOUX-HEHE/DPR/internal/session"
	"github.com/LUMINOUX-HEHE/DPR/internal/shell"
)

// workspaceHandler is a handler that runs for a signed-in browser.
type workspaceHandler func(w nethttp.ResponseWriter, r *nethttp.Request, ws *shell.Workspace)

type authenticator struct {
	sessions   *session.Manager
	workspaces *shell.Registry
}

// page restores the session or redirects to the login view.
func (a *authenticator) page(next workspaceHandler) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sess, err := a.sessions.Restore(r.Context(), r)
		if err != nil {
			a.sessions.Clear(w)
			nethttp.Redirect(w, r, "/login", nethttp.StatusSeeOther)
			return
		}
		next(w, r, a.workspaces.Acquire(sess))
	}
}

// api restores the session or answers 401.
func (a *authenticator) api(next workspaceHandler) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sess, err := a.sessions.Restore(r.Context(), r)
		if err != nil {
			writeJSON(w, nethttp.StatusUnauthorized, map[string]any{
				"error": "not signed in",
			})
			return
		}
		next(w, r, a.workspaces.Acquire(sess))
	}
}

func rootHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if _, err := sessions.Restore(r.Context(), r); err != nil {
			nethttp.Redirect(w, r, "/login", nethttp.StatusSeeOther)
			return
		}
		nethttp.Redirect(w, r, "/app", nethttp.StatusSeeOther)
	}
}

func loginPageHandler(ui *renderer, sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if _, err := sessions.Restore(r.Context(), r); err == nil {
			nethttp.Redirect(w, r, "/app", nethttp.StatusSeeOther)
			return
		}
		ui.renderLogin(w, r, nethttp.StatusOK, loginForm{})
	}
}

func loginHandler(ui *renderer, sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := r.ParseForm(); err != nil {
			ui.renderLogin(w, r, nethttp.StatusBadRequest, loginForm{Error: "Invalid form submission."})
			return
		}
		req := session.LoginRequest{
			OfficialID: r.PostForm.Get("official_id"),
			Password:   r.PostForm.Get("password"),
		}
		form := loginForm{OfficialID: req.OfficialID}

		sess, err := sessions.Login(r.Context(), req)
		if err != nil {
			var verr *session.ValidationError
			if errors.As(err, &verr) {
				form.Fields = verr.Fields
				ui.renderLogin(w, r, nethttp.StatusUnprocessableEntity, form)
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("login failed")
			form.Error = "Unable to sign in right now. Please try again."
			ui.renderLogin(w, r, nethttp.StatusInternalServerError, form)
			return
		}
		if err := sessions.Issue(w, sess); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue session cookie")
			form.Error = "Unable to sign in right now. Please try again."
			ui.renderLogin(w, r, nethttp.StatusInternalServerError, form)
			return
		}
		nethttp.Redirect(w, r, "/app?view="+string(shell.ViewDashboard), nethttp.StatusSeeOther)
	}
}

func logoutHandler(sessions *session.Manager, workspaces *shell.Registry) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sid, err := sessions.Logout(r.Context(), w, r)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("logout")
		}
		if sid != "" {
			workspaces.Release(sid)
		}
		nethttp.Redirect(w, r, "/login", nethttp.StatusSeeOther)
	}
}
