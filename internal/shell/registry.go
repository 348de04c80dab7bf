package shell

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LUMINOUX-HEHE/DPR/internal/session"
)

// Registry holds one workspace per session id.
type Registry struct {
	parent   context.Context
	backend  Backend
	settings Settings
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(parent context.Context, backend Backend, settings Settings) *Registry {
	return &Registry{
		parent:     parent,
		backend:    backend,
		settings:   settings,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Acquire returns the workspace for sess, creating it on first use, and
// marks it as seen.
func (r *Registry) Acquire(sess *session.Session) *Workspace {
	r.mu.Lock()
	ws, ok := r.workspaces[sess.ID]
	if !ok {
		ws = NewWorkspace(r.parent, sess.ID, sess.User, r.backend, r.settings)
		r.workspaces[sess.ID] = ws
		log.Debug().Str("session_id", sess.ID).Msg("workspace created")
	}
	r.mu.Unlock()

	ws.touch(r.now(), sess.ExpiresAt)
	return ws
}

// Get returns an existing workspace.
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[sessionID]
	return ws, ok
}

// Release closes and forgets the workspace for sessionID.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[sessionID]
	delete(r.workspaces, sessionID)
	r.mu.Unlock()
	if ok {
		ws.Close()
	}
}

// Sweep closes and forgets every workspace for which keep returns false and
// returns how many were released. keep runs without the registry lock held.
func (r *Registry) Sweep(keep func(ws *Workspace) bool) int {
	r.mu.Lock()
	all := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		all = append(all, ws)
	}
	r.mu.Unlock()

	released := 0
	for _, ws := range all {
		if keep(ws) {
			continue
		}
		r.mu.Lock()
		owned := r.workspaces[ws.SessionID] == ws
		if owned {
			delete(r.workspaces, ws.SessionID)
		}
		r.mu.Unlock()
		if !owned {
			continue
		}
		ws.Close()
		released++
		log.Debug().Str("session_id", ws.SessionID).Msg("workspace released")
	}
	return released
}

// PauseIdle stops the background refresher of every workspace no request
// has used for idle. The next request resumes it.
func (r *Registry) PauseIdle(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	all := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		all = append(all, ws)
	}
	r.mu.Unlock()

	paused := 0
	for _, ws := range all {
		if ws.LastSeen().Before(cutoff) && ws.Dashboard.Running() {
			ws.pause()
			paused++
		}
	}
	return paused
}

// Len is the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// CloseAll tears down every workspace.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range all {
		ws.Close()
	}
}
