package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"MeetScope/config"
	"MeetScope/model"

	"github.com/cenkalti/backoff/v4"
)

// defaultSummary substitutes a falsy summary in the provider response.
const defaultSummary = "No summary available"

// analysisSystemPrompt instructs the model to return exactly the four fields
// the pipeline persists. response_format json_object constrains the shape.
const analysisSystemPrompt = `You are an assistant that analyzes sales meeting transcripts.
Given a transcript, respond with a JSON object containing exactly these fields:
- "summary": a concise summary of the meeting (2-4 sentences)
- "keyOutcomes": an array of strings, each a key outcome or decision
- "painPoints": an array of strings, each a customer pain point mentioned
- "objections": an array of strings, each an objection raised by the customer
Respond with the JSON object only.`

// Analyzer converts a transcript into a structured sales-meeting analysis.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (*model.MeetingAnalysis, error)
}

// OpenAIAnalyzer calls an OpenAI-compatible /chat/completions endpoint in
// JSON mode.
type OpenAIAnalyzer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIAnalyzer creates an analyzer from the provider configuration.
func NewOpenAIAnalyzer(cfg *config.Config) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		baseURL: cfg.OpenAIAPIBaseURL,
		apiKey:  cfg.OpenAIAPIKey,
		model:   cfg.ChatModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Analyze sends the transcript to the model and parses the constrained JSON
// answer. On provider failure or an unparsable response the whole operation
// fails; no partial result is returned.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, transcript string) (*model.MeetingAnalysis, error) {
	reqBody := model.OpenAIChatRequest{
		Model: a.model,
		Messages: []model.OpenAIChatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0,
		ResponseFormat: &model.OpenAIResponseFormat{Type: "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	var content string
	operation := func() error {
		c, err := a.request(ctx, jsonBody)
		if err != nil {
			return err
		}
		content = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 20 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	analysis, err := parseAnalysis(content)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return analysis, nil
}

func (a *OpenAIAnalyzer) request(ctx context.Context, jsonBody []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("provider server error %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp model.OpenAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode chat response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("no response choices returned"))
	}
	return chatResp.Choices[0].Message.Content, nil
}

// rawAnalysis defers field decoding so the defaulting rules can inspect the
// JSON shape of each field.
type rawAnalysis struct {
	Summary     json.RawMessage `json:"summary"`
	KeyOutcomes json.RawMessage `json:"keyOutcomes"`
	PainPoints  json.RawMessage `json:"painPoints"`
	Objections  json.RawMessage `json:"objections"`
}

// parseAnalysis applies the defaulting rules:
//   - absent/null/empty summary becomes defaultSummary; a non-string summary
//     is a structural anomaly and fails the analysis.
//   - an absent/null/non-array list field becomes an empty list; an array
//     with non-string elements fails the analysis.
func parseAnalysis(content string) (*model.MeetingAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("unparsable analysis response: %w", err)
	}

	summary := defaultSummary
	if !rawAbsent(raw.Summary) {
		var s string
		if err := json.Unmarshal(raw.Summary, &s); err != nil {
			return nil, fmt.Errorf("summary field is not a string")
		}
		if s != "" {
			summary = s
		}
	}

	keyOutcomes, err := stringList("keyOutcomes", raw.KeyOutcomes)
	if err != nil {
		return nil, err
	}
	painPoints, err := stringList("painPoints", raw.PainPoints)
	if err != nil {
		return nil, err
	}
	objections, err := stringList("objections", raw.Objections)
	if err != nil {
		return nil, err
	}

	return &model.MeetingAnalysis{
		Summary:     summary,
		KeyOutcomes: keyOutcomes,
		PainPoints:  painPoints,
		Objections:  objections,
	}, nil
}

func rawAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func stringList(field string, raw json.RawMessage) ([]string, error) {
	if rawAbsent(raw) {
		return []string{}, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		// Not an array at all: substitute an empty list, never propagate.
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%s field contains non-string elements", field)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}
