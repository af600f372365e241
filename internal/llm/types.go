package llm

// Chat-completion payloads for OpenAI-compatible providers.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

// MoveReply is the structured move the model is instructed to emit. Fields
// are untrusted until normalized by the suggestion protocol; unexpected
// extra fields in the raw reply are ignored.
type MoveReply struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Promotion   string  `json:"promotion,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}
