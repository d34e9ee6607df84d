// Package ai sends the briefing material to a language model and extracts
// its structured reply.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// Analyzer turns PDF and news text into a structured analysis.
type Analyzer struct {
	gen       Generator
	model     string
	promptDir string
	prompt    string
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer that reads promptDir/promptFile on every
// call, so the prompt can be edited without a restart.
func NewAnalyzer(gen Generator, model, promptDir, promptFile string, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		gen:       gen,
		model:     model,
		promptDir: promptDir,
		prompt:    promptFile,
		logger:    logger.With("component", "analyzer"),
	}
}

// Model returns the model name recorded on each analysis.
func (a *Analyzer) Model() string { return a.model }

// Analyze builds the prompt, queries the model, and returns the first JSON
// object in its reply. A reply without one is types.ErrNoJSON.
func (a *Analyzer) Analyze(ctx context.Context, pdfText, newsText string) (*types.Analysis, error) {
	instructions, err := LoadPrompt(a.promptDir, a.prompt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := a.gen.Generate(ctx, BuildPrompt(instructions, pdfText, newsText))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	raw, ok := extractJSON(reply)
	if !ok || !json.Valid([]byte(raw)) {
		a.logger.Warn("model reply has no JSON object", "reply_chars", len(reply))
		return nil, fmt.Errorf("%w (%d chars)", types.ErrNoJSON, len(reply))
	}

	analysis := &types.Analysis{
		Raw:      reply,
		JSON:     json.RawMessage(raw),
		Model:    a.model,
		Duration: time.Since(start),
	}
	a.logger.Info("analysis complete",
		"model", a.model,
		"json_bytes", len(raw),
		"duration", analysis.Duration,
	)
	return analysis, nil
}
