package dpr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Section names used by the analysis backend.
const (
	SectionExecutiveSummary = "EXECUTIVE_SUMMARY"
	SectionTechnicalSpecs   = "TECHNICAL_SPECS"
	SectionFinancials       = "FINANCIALS"
	SectionRisks            = "RISKS"
	SectionTimeline         = "TIMELINE"
)

// Analysis is a decoded job result. Every field is optional upstream.
type Analysis struct {
	Score                  int               `json:"score"`
	HasScore               bool              `json:"has_score"`
	RiskLevel              string            `json:"risk_level,omitempty"`
	ExtractionConfidence   string            `json:"extraction_confidence,omitempty"`
	Summary                string            `json:"summary,omitempty"`
	Sections               []SectionAnalysis `json:"sections,omitempty"`
	RiskFactors            []string          `json:"risk_factors,omitempty"`
	ComplianceObservations []string          `json:"compliance_observations,omitempty"`
}

// SectionAnalysis is the backend's verdict on one report section.
type SectionAnalysis struct {
	Section  string   `json:"section"`
	Presence string   `json:"presence"`
	Score    int      `json:"score"`
	Summary  string   `json:"summary,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Gaps     []string `json:"gaps,omitempty"`
	Weakness string   `json:"weakness,omitempty"`
}

// Section returns the named section, if the backend reported it.
func (a *Analysis) Section(name string) (SectionAnalysis, bool) {
	if a == nil {
		return SectionAnalysis{}, false
	}
	for _, s := range a.Sections {
		if strings.EqualFold(s.Section, name) {
			return s, true
		}
	}
	return SectionAnalysis{}, false
}

// Present reports whether the section was found in the document.
func (s SectionAnalysis) Present() bool {
	switch strings.ToUpper(strings.TrimSpace(s.Presence)) {
	case "", "ABSENT", "MISSING", "NOT EXPLICITLY DOCUMENTED":
		return false
	default:
		return true
	}
}

// Flag is the most specific commentary available for the section.
func (s SectionAnalysis) Flag() string {
	for _, candidate := range []string{s.Summary, s.Reason, s.Weakness} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	if len(s.Gaps) > 0 {
		return s.Gaps[0]
	}
	return ""
}

// ParseError is returned when a result payload is not a decodable analysis.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed analysis payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// fields is a JSON object whose members are decoded one at a time, so a
// member of an unexpected type only loses that member.
type fields map[string]json.RawMessage

func asFields(raw json.RawMessage) (fields, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	return f, true
}

// text returns the first of keys that renders as non-empty text.
func (f fields) text(keys ...string) string {
	for _, key := range keys {
		if v := asText(f[key]); v != "" {
			return v
		}
	}
	return ""
}

// DecodeAnalysis decodes a result payload that may be a JSON object or a JSON
// string holding the encoded object. Only a payload that is not an object is
// an error; members of unexpected types are skipped.
func DecodeAnalysis(raw json.RawMessage) (*Analysis, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 || string(payload) == "null" {
		return nil, &ParseError{Err: fmt.Errorf("empty payload")}
	}
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, &ParseError{Payload: truncate(string(payload)), Err: err}
		}
		payload = bytes.TrimSpace([]byte(inner))
	}
	if len(payload) == 0 || payload[0] != '{' {
		return nil, &ParseError{Payload: truncate(string(payload)), Err: fmt.Errorf("expected JSON object")}
	}

	var wire fields
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, &ParseError{Payload: truncate(string(payload)), Err: err}
	}

	out := &Analysis{Summary: wire.text("summary")}
	decodeOverall(wire["overallScore"], out)
	for _, item := range sectionItems(wire["documentAnalysis"]) {
		if ws, ok := asFields(item); ok {
			out.Sections = append(out.Sections, decodeSection(ws))
		}
	}
	out.RiskFactors = asList(wire["riskFactors"])
	out.ComplianceObservations = asList(wire["complianceObservations"])
	return out, nil
}

// sectionItems accepts {"sections":[...]} or a bare array of sections.
func sectionItems(raw json.RawMessage) []json.RawMessage {
	if doc, ok := asFields(raw); ok {
		raw = doc["sections"]
	}
	var items []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &items); err != nil {
		return nil
	}
	return items
}

func decodeOverall(raw json.RawMessage, out *Analysis) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	if score, ok := asNumber(raw); ok {
		out.Score, out.HasScore = clampScore(score), true
		return
	}
	overall, ok := asFields(raw)
	if !ok {
		return
	}
	if score, ok := asNumber(overall["score"]); ok {
		out.Score, out.HasScore = clampScore(score), true
	}
	out.RiskLevel = strings.ToUpper(overall.text("riskLevel"))
	out.ExtractionConfidence = overall.text("extractionConfidence", "confidence")
}

func decodeSection(ws fields) SectionAnalysis {
	presence := ws.text("presence", "status")
	if presence == "" {
		presence = "ABSENT"
	}
	s := SectionAnalysis{
		Section:  ws.text("section"),
		Presence: presence,
		Summary:  ws.text("summary"),
		Reason:   ws.text("reason"),
		Gaps:     asList(ws["gaps"]),
	}
	if score, ok := asNumber(ws["score"]); ok {
		s.Score = clampScore(score)
	}
	if qa, ok := asFields(ws["qualityAssessment"]); ok {
		if weaknesses := asList(qa["weaknesses"]); len(weaknesses) > 0 {
			s.Weakness = weaknesses[0]
		}
	}
	return s
}

// ScoreOf derives a job's overall score. It is false unless the job completed
// with a decodable result carrying a score.
func ScoreOf(job Job) (int, bool) {
	if job.Status != LifecycleCompleted || !job.HasResult() {
		return 0, false
	}
	analysis, err := DecodeAnalysis(job.AnalysisResult)
	if err != nil || !analysis.HasScore {
		return 0, false
	}
	return analysis.Score, true
}

func asNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// asList renders an array item by item; a lone string or object is a list of one.
func asList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] != '[' {
		if text := asText(raw); text != "" {
			return []string{text}
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '[' {
			continue
		}
		if text := asText(item); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// asText renders strings as-is, arrays joined and objects by their most descriptive field.
func asText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if raw[0] == '[' {
		return strings.Join(asList(raw), "; ")
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"description", "observation", "factor", "summary", "message", "title", "text"} {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func clampScore(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	v := int(math.Round(f))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func truncate(s string) string {
	if len(s) > maxBodyBytes {
		return s[:maxBodyBytes]
	}
	return s
}
