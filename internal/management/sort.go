package management

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

// SortKey names a sortable table column.
type SortKey string

const (
	SortDate     SortKey = "date"
	SortFilename SortKey = "filename"
	SortStatus   SortKey = "status"
	SortID       SortKey = "id"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortDate, SortFilename, SortStatus, SortID:
		return true
	default:
		return false
	}
}

// sortJobs orders jobs in place. Missing dates sort as the Unix epoch.
func sortJobs(jobs []dpr.Job, key SortKey, desc bool) {
	// collate.Collator is not safe for concurrent use.
	col := collate.New(language.English)

	less := func(a, b dpr.Job) int {
		switch key {
		case SortFilename:
			return col.CompareString(a.Filename, b.Filename)
		case SortStatus:
			return col.CompareString(string(a.Status), string(b.Status))
		case SortID:
			return col.CompareString(a.JobID, b.JobID)
		default:
			am, bm := millis(a), millis(b)
			switch {
			case am < bm:
				return -1
			case am > bm:
				return 1
			default:
				return 0
			}
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		cmp := less(jobs[i], jobs[j])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func millis(j dpr.Job) int64 {
	if j.UploadDate.IsZero() {
		return 0
	}
	return j.UploadDate.UnixMilli()
}
