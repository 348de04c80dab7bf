package dashboard

import (
	"math"
	"sort"
	"strconv"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

const (
	compliantThreshold = 70
	highRiskThreshold  = 50
	recentLimit        = 6
)

// Stats summarizes the job collection for the executive dashboard.
type Stats struct {
	Total           int         `json:"total"`
	Completed       int         `json:"completed"`
	Processing      int         `json:"processing"`
	Failed          int         `json:"failed"`
	Scored          int         `json:"scored"`
	AverageScore    int         `json:"average_score"`
	Compliant       int         `json:"compliant"`
	HighRisk        int         `json:"high_risk"`
	RiskRate        int         `json:"risk_rate"`
	TotalStatus     string      `json:"total_status"`
	CompliantStatus string      `json:"compliant_status"`
	AverageStatus   string      `json:"average_status"`
	RiskStatus      string      `json:"risk_status"`
	Recent          []RecentJob `json:"recent"`
}

// RecentJob is one card in the recent submissions strip.
type RecentJob struct {
	JobID    string        `json:"job_id"`
	Filename string        `json:"filename"`
	Status   dpr.Lifecycle `json:"status"`
	Score    int           `json:"score"`
	HasScore bool          `json:"has_score"`
	Band     string        `json:"band,omitempty"`
}

// AverageLabel renders the average for display; N/A without scored jobs.
func (s Stats) AverageLabel() string {
	if s.AverageScore <= 0 {
		return "N/A"
	}
	return strconv.Itoa(s.AverageScore) + "%"
}

// Compute derives dashboard figures from the fetched jobs.
func Compute(jobs []dpr.Job) Stats {
	out := Stats{Total: len(jobs), Recent: []RecentJob{}}

	scoreSum := 0
	for _, job := range jobs {
		switch {
		case job.Status == dpr.LifecycleCompleted:
			out.Completed++
		case job.Status == dpr.LifecycleFailed:
			out.Failed++
		case job.Status.Processing():
			out.Processing++
		}
		score, ok := dpr.ScoreOf(job)
		if !ok {
			continue
		}
		out.Scored++
		scoreSum += score
		if score >= compliantThreshold {
			out.Compliant++
		}
		if score < highRiskThreshold {
			out.HighRisk++
		}
	}
	if out.Scored > 0 {
		out.AverageScore = int(math.Round(float64(scoreSum) / float64(out.Scored)))
	}
	if out.Total > 0 {
		out.RiskRate = int(math.Round(float64(out.HighRisk) / float64(out.Total) * 100))
	}

	out.TotalStatus = "No Data"
	if out.Completed > 0 {
		out.TotalStatus = "Active"
	}
	out.CompliantStatus = "None"
	if out.Compliant > 0 {
		out.CompliantStatus = "Validated"
	}
	switch {
	case out.AverageScore >= compliantThreshold:
		out.AverageStatus = "Good"
	case out.AverageScore >= highRiskThreshold:
		out.AverageStatus = "Fair"
	case out.AverageScore > 0:
		out.AverageStatus = "Low"
	default:
		out.AverageStatus = "No Data"
	}
	switch {
	case out.RiskRate > 20:
		out.RiskStatus = "High"
	case out.RiskRate > 0:
		out.RiskStatus = "Low"
	default:
		out.RiskStatus = "None"
	}

	out.Recent = recent(jobs)
	return out
}

// Band classifies a score for colouring.
func Band(score int) string {
	switch {
	case score >= compliantThreshold:
		return "good"
	case score >= highRiskThreshold:
		return "fair"
	default:
		return "low"
	}
}

func recent(jobs []dpr.Job) []RecentJob {
	ordered := append([]dpr.Job(nil), jobs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UploadDate.After(ordered[j].UploadDate)
	})
	if len(ordered) > recentLimit {
		ordered = ordered[:recentLimit]
	}
	out := make([]RecentJob, 0, len(ordered))
	for _, job := range ordered {
		item := RecentJob{JobID: job.JobID, Filename: job.Filename, Status: job.Status}
		if score, ok := dpr.ScoreOf(job); ok {
			item.Score, item.HasScore, item.Band = score, true, Band(score)
		}
		out = append(out, item)
	}
	return out
}
