package evaluation

import "github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"

// Progress maps a lifecycle state to the percentage shown on the progress bar.
func Progress(l dpr.Lifecycle) int {
	switch l {
	case dpr.LifecycleNotStarted:
		return 0
	case dpr.LifecycleQueued:
		return 20
	case dpr.LifecycleExtracting:
		return 40
	case dpr.LifecycleAnalyzing, dpr.LifecycleInProgress:
		return 60
	case dpr.LifecycleCompleted, dpr.LifecycleFailed:
		return 100
	default:
		return 30
	}
}

// SectionRow is one line of the structure checklist.
type SectionRow struct {
	Label    string `json:"label"`
	Section  string `json:"section"`
	Score    int    `json:"score"`
	Presence string `json:"presence"`
	Present  bool   `json:"present"`
	Status   string `json:"status"`
	Flag     string `json:"flag,omitempty"`
}

var checklist = []struct {
	label   string
	section string
}{
	{"Executive Summary", dpr.SectionExecutiveSummary},
	{"Technical Specs", dpr.SectionTechnicalSpecs},
	{"Financials", dpr.SectionFinancials},
	{"Risks", dpr.SectionRisks},
	{"Timeline", dpr.SectionTimeline},
}

// Rows returns the five canonical sections, filling absent ones as ABSENT.
func Rows(a *dpr.Analysis) []SectionRow {
	out := make([]SectionRow, 0, len(checklist))
	for _, item := range checklist {
		row := SectionRow{Label: item.label, Section: item.section, Presence: "ABSENT", Status: "Pending"}
		if sec, ok := a.Section(item.section); ok {
			row.Score = sec.Score
			row.Presence = sec.Presence
			row.Present = sec.Present()
			row.Flag = sec.Flag()
			if row.Present {
				row.Status = "Analyzed"
			}
		}
		out = append(out, row)
	}
	return out
}
