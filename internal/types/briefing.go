package types

import (
	"encoding/json"
	"time"
)

// Analysis is the structured reply extracted from the language model.
type Analysis struct {
	// Raw is the full model reply.
	Raw string `json:"raw"`

	// JSON is the JSON object found in the reply.
	JSON json.RawMessage `json:"json"`

	// Model identifies the model that produced the reply.
	Model string `json:"model"`

	Duration time.Duration `json:"duration"`
}

// Briefing is the record kept for one auto run.
type Briefing struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	ArticleURL string          `json:"article_url,omitempty"`
	NewsLines  []string        `json:"news_lines,omitempty"`
	PostURL    string          `json:"post_url,omitempty"`
	PDFPath    string          `json:"pdf_path,omitempty"`
	PDFHash    string          `json:"pdf_hash,omitempty"`
	Analysis   json.RawMessage `json:"analysis,omitempty"`
	Forwarded  bool            `json:"forwarded"`
	CreatedAt  time.Time       `json:"created_at"`
}
