package types

// Passage is a single piece of retrieved evidence: a knowledge base chunk
// or a web search snippet.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// AskResponse represents the bilingual answer returned by /ask
type AskResponse struct {
	English  string   `json:"english"`
	Telugu   string   `json:"telugu"`
	Intent   string   `json:"intent,omitempty"`
	Degraded bool     `json:"degraded"`
	Sources  []string `json:"sources,omitempty"`
}

// UploadResponse reports the outcome of an upload and the ingestion run it triggered
type UploadResponse struct {
	Status    string            `json:"status"`
	Saved     []string          `json:"saved"`
	Processed []string          `json:"processed"`
	Chunks    int               `json:"chunks"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
