package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"MeetScope/config"
	"MeetScope/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisCompleteResponse(t *testing.T) {
	got, err := parseAnalysis(`{
		"summary": "Brief call",
		"keyOutcomes": ["Next meeting scheduled"],
		"painPoints": ["Manual reporting"],
		"objections": ["Price too high"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Brief call", got.Summary)
	assert.Equal(t, []string{"Next meeting scheduled"}, got.KeyOutcomes)
	assert.Equal(t, []string{"Manual reporting"}, got.PainPoints)
	assert.Equal(t, []string{"Price too high"}, got.Objections)
}

func TestParseAnalysisDefaulting(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *model.MeetingAnalysis
	}{
		{
			name:    "missing summary",
			content: `{"keyOutcomes": ["a"]}`,
			want: &model.MeetingAnalysis{
				Summary:     "No summary available",
				KeyOutcomes: []string{"a"},
				PainPoints:  []string{},
				Objections:  []string{},
			},
		},
		{
			name:    "empty summary",
			content: `{"summary": "", "keyOutcomes": [], "painPoints": [], "objections": []}`,
			want: &model.MeetingAnalysis{
				Summary:     "No summary available",
				KeyOutcomes: []string{},
				PainPoints:  []string{},
				Objections:  []string{},
			},
		},
		{
			name:    "null list fields",
			content: `{"summary": "s", "keyOutcomes": null, "painPoints": null, "objections": null}`,
			want: &model.MeetingAnalysis{
				Summary:     "s",
				KeyOutcomes: []string{},
				PainPoints:  []string{},
				Objections:  []string{},
			},
		},
		{
			name:    "non-array list becomes empty",
			content: `{"summary": "s", "keyOutcomes": "not a list", "painPoints": 3, "objections": {"a": 1}}`,
			want: &model.MeetingAnalysis{
				Summary:     "s",
				KeyOutcomes: []string{},
				PainPoints:  []string{},
				Objections:  []string{},
			},
		},
		{
			name:    "empty object",
			content: `{}`,
			want: &model.MeetingAnalysis{
				Summary:     "No summary available",
				KeyOutcomes: []string{},
				PainPoints:  []string{},
				Objections:  []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnalysisStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unparsable content", `not json at all`, "unparsable analysis response"},
		{"numeric summary", `{"summary": 42}`, "summary field is not a string"},
		{"non-string array elements", `{"summary": "s", "keyOutcomes": [1, 2]}`, "keyOutcomes field contains non-string elements"},
		{"mixed array elements", `{"summary": "s", "objections": ["ok", {"x": 1}]}`, "objections field contains non-string elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.content)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	quoted, err := json.Marshal(content)
	require.NoError(t, err)
	return []byte(`{"choices":[{"message":{"role":"assistant","content":` + string(quoted) + `}}]}`)
}

func newTestAnalyzer(baseURL string) *OpenAIAnalyzer {
	return NewOpenAIAnalyzer(&config.Config{
		OpenAIAPIBaseURL: baseURL,
		OpenAIAPIKey:     "test-key",
		ChatModel:        "gpt-4o",
	})
}

func TestAnalyzeSendsJSONModeRequest(t *testing.T) {
	var gotReq model.OpenAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write(chatResponse(t, `{"summary": "Brief call", "keyOutcomes": [], "painPoints": [], "objections": []}`))
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(srv.URL)
	got, err := analyzer.Analyze(context.Background(), "Hello world")
	require.NoError(t, err)

	assert.Equal(t, "Brief call", got.Summary)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "Hello world", gotReq.Messages[1].Content)
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(srv.URL)
	got, err := analyzer.Analyze(context.Background(), "Hello world")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "analysis failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write(chatResponse(t, `{"summary": "Brief call"}`))
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(srv.URL)
	got, err := analyzer.Analyze(context.Background(), "Hello world")
	require.NoError(t, err)

	assert.Equal(t, "Brief call", got.Summary)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestAnalyzeFailsOnUnparsableContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, "I could not produce JSON, sorry."))
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(srv.URL)
	got, err := analyzer.Analyze(context.Background(), "Hello world")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "analysis failed")
}
