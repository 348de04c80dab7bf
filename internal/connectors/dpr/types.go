package dpr

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Lifecycle is a job's stage in the backend processing pipeline.
type Lifecycle string

const (
	LifecycleNotStarted Lifecycle = "NOT_STARTED"
	LifecycleUploaded   Lifecycle = "UPLOADED"
	LifecycleQueued     Lifecycle = "QUEUED"
	LifecycleExtracting Lifecycle = "EXTRACTING"
	// LifecycleExtractingText is the spelling the backend uses for OCR extraction.
	LifecycleExtractingText Lifecycle = "ExtractingTEXT"
	LifecycleAnalyzing      Lifecycle = "ANALYZING"
	LifecycleInProgress     Lifecycle = "IN_PROGRESS"
	LifecycleCompleted      Lifecycle = "COMPLETED"
	LifecycleFailed         Lifecycle = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (l Lifecycle) Terminal() bool {
	return l == LifecycleCompleted || l == LifecycleFailed
}

// Processing reports whether the backend is actively working on the job.
func (l Lifecycle) Processing() bool {
	switch l {
	case LifecycleQueued, LifecycleExtracting, LifecycleExtractingText, LifecycleAnalyzing, LifecycleInProgress:
		return true
	default:
		return false
	}
}

// FilterableStatuses lists the concrete statuses offered by the management filter.
var FilterableStatuses = []Lifecycle{
	LifecycleUploaded,
	LifecycleQueued,
	LifecycleExtracting,
	LifecycleExtractingText,
	LifecycleAnalyzing,
	LifecycleCompleted,
	LifecycleFailed,
}

// Job is one backend-tracked DPR submission.
type Job struct {
	JobID          string          `json:"jobId"`
	Filename       string          `json:"filename"`
	Status         Lifecycle       `json:"status"`
	UploadDate     time.Time       `json:"-"`
	AnalysisResult json.RawMessage `json:"analysisResult,omitempty"`

	raw json.RawMessage
}

// Raw returns the exact JSON the record was decoded from.
func (j Job) Raw() json.RawMessage {
	if len(j.raw) > 0 {
		return j.raw
	}
	blob, _ := json.Marshal(j)
	return blob
}

// HasResult reports whether the record carries a non-null analysis payload.
func (j Job) HasResult() bool {
	return hasPayload(j.AnalysisResult)
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var wire struct {
		JobID          string          `json:"jobId"`
		Filename       string          `json:"filename"`
		Status         Lifecycle       `json:"status"`
		UploadDate     json.RawMessage `json:"uploadDate"`
		AnalysisResult json.RawMessage `json:"analysisResult"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	j.JobID = wire.JobID
	j.Filename = wire.Filename
	j.Status = wire.Status
	j.UploadDate = parseUploadDate(wire.UploadDate)
	j.AnalysisResult = wire.AnalysisResult
	j.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

func (j Job) MarshalJSON() ([]byte, error) {
	type wire struct {
		JobID          string          `json:"jobId"`
		Filename       string          `json:"filename"`
		Status         Lifecycle       `json:"status"`
		UploadDate     string          `json:"uploadDate,omitempty"`
		AnalysisResult json.RawMessage `json:"analysisResult,omitempty"`
	}
	out := wire{JobID: j.JobID, Filename: j.Filename, Status: j.Status, AnalysisResult: j.AnalysisResult}
	if !j.UploadDate.IsZero() {
		out.UploadDate = j.UploadDate.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// StatusResponse is the body of GET /dpr/status/{jobId}.
type StatusResponse struct {
	JobID           string          `json:"jobId"`
	Status          Lifecycle       `json:"status"`
	Filename        string          `json:"filename"`
	LifecycleStatus Lifecycle       `json:"lifecycleStatus"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// HasResult reports whether the response carries a non-null result payload.
func (s *StatusResponse) HasResult() bool {
	return s != nil && hasPayload(s.Result)
}

var uploadDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseUploadDate accepts RFC3339, zone-less ISO local date-times and epoch
// milliseconds. Anything else yields the zero time.
func parseUploadDate(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	if raw[0] != '"' {
		ms, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(int64(ms)).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range uploadDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func hasPayload(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && string(raw) != "null" && string(raw) != `""`
}
