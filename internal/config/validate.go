package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Browser.WindowWidth < 1 || cfg.Browser.WindowHeight < 1 {
		return fmt.Errorf("browser window size must be positive, got %dx%d",
			cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
	}
	if len(cfg.Browser.UserAgents) == 0 {
		return fmt.Errorf("browser.user_agents must not be empty")
	}
	if cfg.Browser.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be > 0")
	}

	if err := ValidateURL(cfg.Search.EngineURL); err != nil {
		return fmt.Errorf("search.engine_url: %w", err)
	}
	if !strings.Contains(cfg.Search.QueryTemplate, "{date}") {
		return fmt.Errorf("search.query_template must contain {date}")
	}
	if cfg.Search.PublisherDomain == "" {
		return fmt.Errorf("search.publisher_domain must not be empty")
	}
	if len(cfg.Search.Selectors) == 0 {
		return fmt.Errorf("search.selectors must not be empty")
	}
	if cfg.Search.MaxAttempts < 1 {
		return fmt.Errorf("search.max_attempts must be >= 1, got %d", cfg.Search.MaxAttempts)
	}
	if err := validateRange("search.retry_delay", cfg.Search.RetryDelayMin, cfg.Search.RetryDelayMax); err != nil {
		return err
	}
	if err := validateRange("search.pause", cfg.Search.PauseMin, cfg.Search.PauseMax); err != nil {
		return err
	}
	if cfg.Search.ReadyTimeout <= 0 {
		return fmt.Errorf("search.ready_timeout must be > 0")
	}

	if cfg.Article.ContainerSelector == "" {
		return fmt.Errorf("article.container_selector must not be empty")
	}
	if cfg.Article.Marker == "" {
		return fmt.Errorf("article.marker must not be empty")
	}
	if cfg.Article.WaitTimeout <= 0 {
		return fmt.Errorf("article.wait_timeout must be > 0")
	}

	if cfg.Storage.NewsPath == "" {
		return fmt.Errorf("storage.news_path must not be empty")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	validProviders := map[string]bool{
		"anthropic": true, "openai": true, "ollama": true,
	}
	if !validProviders[cfg.AI.Provider] {
		return fmt.Errorf("ai.provider %q is not supported (valid: anthropic, openai, ollama)", cfg.AI.Provider)
	}
	if cfg.AI.MaxTokens < 1 {
		return fmt.Errorf("ai.max_tokens must be >= 1, got %d", cfg.AI.MaxTokens)
	}

	if cfg.Forward.TargetURL != "" {
		if err := ValidateURL(cfg.Forward.TargetURL); err != nil {
			return fmt.Errorf("forward.target_url: %w", err)
		}
	}
	if cfg.Forward.MaxRetries < 0 {
		return fmt.Errorf("forward.max_retries must be >= 0, got %d", cfg.Forward.MaxRetries)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone %q: %w", cfg.Server.Timezone, err)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

func validateRange(name string, lo, hi time.Duration) error {
	if lo < 0 || hi < 0 {
		return fmt.Errorf("%s bounds must be >= 0", name)
	}
	if lo > hi {
		return fmt.Errorf("%s_min (%s) must not exceed %s_max (%s)", name, lo, name, hi)
	}
	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
