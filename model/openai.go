package model

// OpenAIChatMessage represents a message in the OpenAI chat format.
type OpenAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponseFormat requests a constrained response shape, e.g. json_object.
type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

// OpenAIChatRequest represents a request to the OpenAI chat API.
type OpenAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []OpenAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

// OpenAIChatResponse represents a response from the OpenAI chat API.
type OpenAIChatResponse struct {
	Choices []struct {
		Message OpenAIChatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAITranscriptionResponse represents a response from the OpenAI audio
// transcription API. The provider returns no duration metadata.
type OpenAITranscriptionResponse struct {
	Text string `json:"text"`
}
