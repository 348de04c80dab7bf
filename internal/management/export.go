package management

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

// ErrEmptySelection is returned when an action needs at least one selected row.
var ErrEmptySelection = errors.New("no DPRs selected")

// Export is a downloadable file built from the selection.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
	Count       int
}

var csvHeaders = []string{"jobId", "filename", "status", "uploadDate", "score"}

// ExportSelected serializes the selected records, exactly as fetched, into a
// JSON array in table order. No backend call is made.
func (c *Controller) ExportSelected() (*Export, error) {
	jobs, err := c.selectedJobs()
	if err != nil {
		return nil, err
	}
	items := make([]json.RawMessage, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, job.Raw())
	}
	body, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return &Export{
		Filename:    exportName(c.now(), "json"),
		ContentType: "application/json",
		Body:        body,
		Count:       len(jobs),
	}, nil
}

// ExportSelectedCSV renders the selected rows as a flat CSV sheet.
func (c *Controller) ExportSelectedCSV() (*Export, error) {
	jobs, err := c.selectedJobs()
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, job := range jobs {
		uploaded := ""
		if !job.UploadDate.IsZero() {
			uploaded = job.UploadDate.Format(time.RFC3339)
		}
		score := ""
		if s, ok := dpr.ScoreOf(job); ok {
			score = strconv.Itoa(s)
		}
		if err := writer.Write([]string{job.JobID, job.Filename, string(job.Status), uploaded, score}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return &Export{
		Filename:    exportName(c.now(), "csv"),
		ContentType: "text/csv; charset=utf-8",
		Body:        buf.Bytes(),
		Count:       len(jobs),
	}, nil
}

func (c *Controller) selectedJobs() ([]dpr.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.selectedLocked()
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	byID := make(map[string]dpr.Job, len(c.jobs))
	for _, job := range c.jobs {
		byID[job.JobID] = job
	}
	out := make([]dpr.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := byID[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func exportName(now time.Time, ext string) string {
	return fmt.Sprintf("dpr-export-%d.%s", now.UnixMilli(), ext)
}
