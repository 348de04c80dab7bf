package shell

import (
	"fmt"
	"strings"

	"github.com/LUMINOUX-HEHE/DPR/internal/session"
)

// View identifies one tab of the console. Only the constants below are valid.
type View string

const (
	ViewDashboard  View = "dashboard"
	ViewManagement View = "dpr-management"
	ViewEvaluation View = "evaluation"
	ViewAnalytics  View = "analytics"
	ViewAdmin      View = "admin"
	ViewSettings   View = "settings"
)

var allViews = []View{ViewDashboard, ViewManagement, ViewEvaluation, ViewAnalytics, ViewAdmin, ViewSettings}

// ParseView maps a query value onto a View; empty means the dashboard.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ViewDashboard, nil
	}
	for _, v := range allViews {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Disabled reports whether the view is a locked placeholder.
func (v View) Disabled() bool {
	return v == ViewSettings
}

// Allowed reports whether role may open the view. This only drives
// navigation; it is not an authorization check.
func (v View) Allowed(role session.Role) bool {
	if v.Disabled() {
		return false
	}
	if v == ViewAdmin {
		return role == session.RoleAdmin
	}
	return true
}

// NavItem is one sidebar entry.
type NavItem struct {
	Label  string
	View   View
	Locked bool
	Active bool
}

// NavGroup is a titled block of sidebar entries.
type NavGroup struct {
	Title string
	Items []NavItem
}

type navSpec struct {
	label     string
	view      View
	adminOnly bool
}

var navLayout = []struct {
	title string
	items []navSpec
}{
	{"Executive", []navSpec{{"Dashboard", ViewDashboard, false}, {"Impact Analytics", ViewAnalytics, false}}},
	{"Evaluation", []navSpec{{"DPR Repository", ViewManagement, false}, {"AI Validation", ViewEvaluation, false}}},
	{"System", []navSpec{{"Personnel", ViewAdmin, true}, {"Settings", ViewSettings, false}}},
}

// Nav builds the sidebar for role. Admin-only entries are omitted entirely
// for other roles; disabled views appear locked.
func Nav(role session.Role, active View) []NavGroup {
	out := make([]NavGroup, 0, len(navLayout))
	for _, group := range navLayout {
		g := NavGroup{Title: group.title}
		for _, item := range group.items {
			if item.adminOnly && role != session.RoleAdmin {
				continue
			}
			g.Items = append(g.Items, NavItem{
				Label:  item.label,
				View:   item.view,
				Locked: item.view.Disabled(),
				Active: item.view == active,
			})
		}
		out = append(out, g)
	}
	return out
}
