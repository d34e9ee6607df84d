package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IshaanNene/rallybrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"wrapped", "Here is the result:\n```json\n{\"a\":{\"b\":2}}\n```\nDone.", `{"a":{"b":2}}`, true},
		{"brace in string", `x {"note":"use } carefully","n":1} y`, `{"note":"use } carefully","n":1}`, true},
		{"escaped quote", `{"q":"say \"}\"","n":2}`, `{"q":"say \"}\"","n":2}`, true},
		{"none", "no json here", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("extractJSON() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("Summarize.", "pdf body", "▲ news")
	want := "Summarize.\n\nPDF Content:\npdf body\nText file Content:\n▲ news"
	if got != want {
		t.Errorf("BuildPrompt() = %q, want %q", got, want)
	}

	if got := BuildPrompt("S", "p", "  "); !strings.HasSuffix(got, NoNewsText) {
		t.Errorf("expected default news text, got %q", got)
	}
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadPrompt(dir, "missing.txt"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = os.WriteFile(filepath.Join(dir, "p.txt"), []byte("  analyze this  \n"), 0o644)
	got, err := LoadPrompt(dir, "p.txt")
	if err != nil || got != "analyze this" {
		t.Errorf("unexpected prompt %q err=%v", got, err)
	}
}

func TestAnthropicProvider(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("X-Api-Key")
		gotVersion = r.Header.Get("Anthropic-Version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Result: {\"rallies\": 2}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{
		Provider:  ProviderAnthropic,
		Endpoint:  srv.URL,
		Model:     "claude-3-5-sonnet-20241022",
		APIKey:    "test-key",
		MaxTokens: 4096,
	}, testLogger)

	reply, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != `Result: {"rallies": 2}` {
		t.Errorf("unexpected reply %q", reply)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("expected anthropic-version header")
	}
	if gotBody.Model != "claude-3-5-sonnet-20241022" || gotBody.MaxTokens != 4096 {
		t.Errorf("unexpected request body %+v", gotBody)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" ||
		len(gotBody.Messages[0].Content) != 1 || gotBody.Messages[0].Content[0].Text != "hello" {
		t.Errorf("unexpected messages %+v", gotBody.Messages)
	}
}

func TestAnthropicRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	c := NewLLMClient(LLMConfig{Provider: ProviderAnthropic, Model: "m", MaxTokens: 10}, testLogger)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, types.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{Provider: ProviderOpenAI, Endpoint: srv.URL, Model: "gpt", APIKey: "k", MaxTokens: 10}, testLogger)
	reply, err := c.Generate(context.Background(), "x")
	if err != nil || reply != `{"ok":true}` {
		t.Errorf("unexpected reply %q err=%v", reply, err)
	}
}

func TestOllamaProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{Provider: ProviderOllama, Endpoint: srv.URL, Model: "llama3", MaxTokens: 10}, testLogger)
	_, err := c.Generate(context.Background(), "x")

	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 FetchError, got %v", err)
	}
}

func TestOllamaEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{Provider: ProviderOllama, Endpoint: srv.URL, Model: "llama3"}, testLogger)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

type stubGenerator struct {
	reply  string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func writePrompt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pdf_analysis_prompt.txt"), []byte("Return JSON."), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAnalyzer(t *testing.T) {
	gen := &stubGenerator{reply: "Sure:\n{\"events\":[{\"place\":\"City Hall\"}]}"}
	a := NewAnalyzer(gen, "m", writePrompt(t), "pdf_analysis_prompt.txt", testLogger)

	got, err := a.Analyze(context.Background(), "pdf text", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.JSON) != `{"events":[{"place":"City Hall"}]}` {
		t.Errorf("unexpected json %s", got.JSON)
	}
	if !strings.Contains(gen.prompt, "PDF Content:\npdf text") || !strings.HasSuffix(gen.prompt, NoNewsText) {
		t.Errorf("unexpected prompt %q", gen.prompt)
	}
}

func TestAnalyzerNoJSON(t *testing.T) {
	a := NewAnalyzer(&stubGenerator{reply: "I cannot help with that."}, "m", writePrompt(t), "pdf_analysis_prompt.txt", testLogger)
	if _, err := a.Analyze(context.Background(), "p", "n"); !errors.Is(err, types.ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestAnalyzerGenerateError(t *testing.T) {
	boom := errors.New("quota")
	a := NewAnalyzer(&stubGenerator{err: boom}, "m", writePrompt(t), "pdf_analysis_prompt.txt", testLogger)
	if _, err := a.Analyze(context.Background(), "p", "n"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped generator error, got %v", err)
	}
}
