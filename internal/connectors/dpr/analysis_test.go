package dpr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnalysis_ObjectAndString(t *testing.T) {
	object := json.RawMessage(`{"overallScore":{"score":82,"riskLevel":"low","extractionConfidence":"HIGH"},"summary":"Solid report"}`)
	encoded, _ := json.Marshal(string(object))

	for name, raw := range map[string]json.RawMessage{"object": object, "string": encoded} {
		t.Run(name, func(t *testing.T) {
			a, err := DecodeAnalysis(raw)
			require.NoError(t, err)
			assert.True(t, a.HasScore)
			assert.Equal(t, 82, a.Score)
			assert.Equal(t, "LOW", a.RiskLevel)
			assert.Equal(t, "HIGH", a.ExtractionConfidence)
			assert.Equal(t, "Solid report", a.Summary)
		})
	}
}

func TestDecodeAnalysis_BareNumberAndClamp(t *testing.T) {
	a, err := DecodeAnalysis(json.RawMessage(`{"overallScore":140}`))
	require.NoError(t, err)
	assert.Equal(t, 100, a.Score)

	a, err = DecodeAnalysis(json.RawMessage(`{"overallScore":{"score":"55.4","confidence":"MEDIUM"}}`))
	require.NoError(t, err)
	assert.Equal(t, 55, a.Score)
	assert.Equal(t, "MEDIUM", a.ExtractionConfidence)
}

func TestDecodeAnalysis_Sections(t *testing.T) {
	raw := json.RawMessage(`{"documentAnalysis":{"sections":[
		{"section":"FINANCIALS","presence":"PRESENT","score":71,"gaps":["No cash flow"]},
		{"section":"RISKS","status":"NOT EXPLICITLY DOCUMENTED","reason":"Missing"},
		{"section":"TIMELINE","qualityAssessment":{"weaknesses":["Vague milestones"]}}
	]},"riskFactors":["cost overrun",{"description":"land acquisition"}],"complianceObservations":[{"observation":"GFR compliant"}]}`)

	a, err := DecodeAnalysis(raw)
	require.NoError(t, err)
	assert.False(t, a.HasScore)

	fin, ok := a.Section(SectionFinancials)
	require.True(t, ok)
	assert.True(t, fin.Present())
	assert.Equal(t, 71, fin.Score)
	assert.Equal(t, "No cash flow", fin.Flag())

	risks, _ := a.Section(SectionRisks)
	assert.False(t, risks.Present())
	assert.Equal(t, "Missing", risks.Flag())

	timeline, _ := a.Section(SectionTimeline)
	assert.False(t, timeline.Present())
	assert.Equal(t, "Vague milestones", timeline.Flag())

	_, ok = a.Section(SectionExecutiveSummary)
	assert.False(t, ok)

	assert.Equal(t, []string{"cost overrun", "land acquisition"}, a.RiskFactors)
	assert.Equal(t, []string{"GFR compliant"}, a.ComplianceObservations)
}

func TestDecodeAnalysis_Malformed(t *testing.T) {
	for _, raw := range []string{`"{not json"`, `[1,2]`, `null`, `"plain words"`} {
		_, err := DecodeAnalysis(json.RawMessage(raw))
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), "payload %s", raw)
	}
}

func TestDecodeAnalysis_LooseMemberTypes(t *testing.T) {
	cases := map[string]string{
		"summary array":          `{"overallScore":{"score":73},"summary":["Strong costing","Weak timeline"]}`,
		"section summary array":  `{"overallScore":{"score":73},"documentAnalysis":{"sections":[{"section":"RISKS","presence":"PRESENT","summary":["a","b"]}]}}`,
		"gaps of objects":        `{"overallScore":{"score":73},"documentAnalysis":{"sections":[{"section":"RISKS","gaps":[{"text":"x"}]}]}}`,
		"risk factors as string": `{"overallScore":{"score":73},"riskFactors":"none"}`,
		"document analysis list": `{"overallScore":{"score":73},"documentAnalysis":[]}`,
		"risk level number":      `{"overallScore":{"score":73,"riskLevel":2},"complianceObservations":{"k":1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := DecodeAnalysis(json.RawMessage(body))
			require.NoError(t, err)
			assert.True(t, a.HasScore)
			assert.Equal(t, 73, a.Score)

			var job Job
			require.NoError(t, json.Unmarshal([]byte(`{"jobId":"j","status":"COMPLETED","analysisResult":`+body+`}`), &job))
			score, ok := ScoreOf(job)
			assert.True(t, ok)
			assert.Equal(t, 73, score)
		})
	}
}

func TestDecodeAnalysis_LooseMemberText(t *testing.T) {
	a, err := DecodeAnalysis(json.RawMessage(`{"summary":["Strong costing","Weak timeline"],
		"documentAnalysis":{"sections":[{"section":"RISKS","presence":"PRESENT","summary":["a","b"]},
		{"section":"TIMELINE","gaps":[{"text":"x"}]}]},"riskFactors":"none"}`))
	require.NoError(t, err)
	assert.Equal(t, "Strong costing; Weak timeline", a.Summary)
	assert.Equal(t, []string{"none"}, a.RiskFactors)

	risks, ok := a.Section(SectionRisks)
	require.True(t, ok)
	assert.Equal(t, "a; b", risks.Flag())

	timeline, ok := a.Section(SectionTimeline)
	require.True(t, ok)
	assert.Equal(t, "x", timeline.Flag())
}

func TestScoreOf(t *testing.T) {
	decode := func(body string) Job {
		var j Job
		require.NoError(t, json.Unmarshal([]byte(body), &j))
		return j
	}

	cases := []struct {
		name  string
		job   Job
		score int
		ok    bool
	}{
		{"completed object", decode(`{"status":"COMPLETED","analysisResult":{"overallScore":{"score":73}}}`), 73, true},
		{"completed string", decode(`{"status":"COMPLETED","analysisResult":"{\"overallScore\":{\"score\":73}}"}`), 73, true},
		{"zero score", decode(`{"status":"COMPLETED","analysisResult":{"overallScore":{"score":0}}}`), 0, true},
		{"other status", decode(`{"status":"ANALYZING","analysisResult":{"overallScore":{"score":73}}}`), 0, false},
		{"no result", decode(`{"status":"COMPLETED"}`), 0, false},
		{"unparsable", decode(`{"status":"COMPLETED","analysisResult":"{oops"}`), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, ok := ScoreOf(tc.job)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.score, score)
		})
	}
}

func TestJobRawPreserved(t *testing.T) {
	body := `{"jobId":"x","filename":"f.pdf","status":"UPLOADED","extra":{"k":1}}`
	var j Job
	require.NoError(t, json.Unmarshal([]byte(body), &j))
	assert.JSONEq(t, body, string(j.Raw()))

	built := Job{JobID: "y", Status: LifecycleQueued}
	assert.JSONEq(t, `{"jobId":"y","filename":"","status":"QUEUED"}`, string(built.Raw()))
}

func TestLifecyclePredicates(t *testing.T) {
	assert.True(t, LifecycleCompleted.Terminal())
	assert.True(t, LifecycleFailed.Terminal())
	assert.False(t, LifecycleAnalyzing.Terminal())
	assert.True(t, LifecycleExtractingText.Processing())
	assert.False(t, LifecycleUploaded.Processing())
}
