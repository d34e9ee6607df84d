package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/types"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOllama    LLMProvider = "ollama"
	ProviderOpenAI    LLMProvider = "openai"
)

// Generator produces a model reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig configures the LLM integration.
type LLMConfig struct {
	Provider    LLMProvider
	Endpoint    string // e.g. "http://localhost:11434" for Ollama
	Model       string // e.g. "claude-3-5-sonnet-20241022", "llama3"
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewLLMConfig maps the loaded configuration to an LLMConfig.
func NewLLMConfig(cfg config.AIConfig) LLMConfig {
	return LLMConfig{
		Provider:    LLMProvider(cfg.Provider),
		Endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
}

// LLMClient communicates with an LLM.
type LLMClient struct {
	cfg       LLMConfig
	client    *http.Client
	anthropic anthropic.Client
	logger    *slog.Logger
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg LLMConfig, logger *slog.Logger) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	c := &LLMClient{
		cfg:    cfg,
		client: httpClient,
		logger: logger.With("component", "llm_client", "provider", string(cfg.Provider)),
	}

	if cfg.Provider == ProviderAnthropic {
		opts := []option.RequestOption{
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(2),
		}
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		c.anthropic = anthropic.NewClient(opts...)
	}
	return c
}

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.cfg.Model }

// Generate sends a prompt to the LLM and returns the response.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var (
		reply string
		err   error
	)
	switch c.cfg.Provider {
	case ProviderAnthropic:
		reply, err = c.generateAnthropic(ctx, prompt)
	case ProviderOllama:
		reply, err = c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		reply, err = c.generateOpenAI(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%s reply: %w", c.cfg.Provider, types.ErrEmptyResponse)
	}

	c.logger.Debug("llm reply received",
		"model", c.cfg.Model,
		"prompt_chars", len(prompt),
		"reply_chars", len(reply),
		"duration", time.Since(start),
	)
	return reply, nil
}

func (c *LLMClient) generateAnthropic(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("anthropic api key: %w", types.ErrNotConfigured)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Temperature)
	}

	msg, err := c.anthropic.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, endpoint+"/api/generate", payload, nil, &result); err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, endpoint+"/chat/completions", payload, headers, &result); err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) postJSON(ctx context.Context, url string, payload any, headers http.Header, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
			Retryable:  resp.StatusCode >= 500,
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractJSON tries to find a JSON object in the LLM response. Braces inside
// string literals are ignored.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
