package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller after Load.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("RALLYBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rallybrief")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".rallybrief"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The API key is commonly provided without the app prefix.
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return cfg, nil
}

// setDefaults registers default values in viper so that AutomaticEnv can
// override keys that never appear in the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.user_agents", cfg.Browser.UserAgents)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.launch_timeout", cfg.Browser.LaunchTimeout)
	v.SetDefault("browser.page_timeout", cfg.Browser.PageTimeout)
	v.SetDefault("browser.language", cfg.Browser.Language)

	v.SetDefault("search.engine_url", cfg.Search.EngineURL)
	v.SetDefault("search.query_template", cfg.Search.QueryTemplate)
	v.SetDefault("search.date_layout", cfg.Search.DateLayout)
	v.SetDefault("search.publisher_domain", cfg.Search.PublisherDomain)
	v.SetDefault("search.selectors", cfg.Search.Selectors)
	v.SetDefault("search.ready_selector", cfg.Search.ReadySelector)
	v.SetDefault("search.ready_timeout", cfg.Search.ReadyTimeout)
	v.SetDefault("search.max_attempts", cfg.Search.MaxAttempts)
	v.SetDefault("search.retry_delay_min", cfg.Search.RetryDelayMin)
	v.SetDefault("search.retry_delay_max", cfg.Search.RetryDelayMax)
	v.SetDefault("search.pause_min", cfg.Search.PauseMin)
	v.SetDefault("search.pause_max", cfg.Search.PauseMax)

	v.SetDefault("article.container_selector", cfg.Article.ContainerSelector)
	v.SetDefault("article.marker", cfg.Article.Marker)
	v.SetDefault("article.wait_timeout", cfg.Article.WaitTimeout)

	v.SetDefault("bulletin.board_url", cfg.Bulletin.BoardURL)
	v.SetDefault("bulletin.table_selector", cfg.Bulletin.TableSelector)
	v.SetDefault("bulletin.subject_selector", cfg.Bulletin.SubjectSelector)
	v.SetDefault("bulletin.title_date_layout", cfg.Bulletin.TitleDateLayout)
	v.SetDefault("bulletin.wait_timeout", cfg.Bulletin.WaitTimeout)
	v.SetDefault("bulletin.attach_selector", cfg.Bulletin.AttachSelector)
	v.SetDefault("bulletin.download_url", cfg.Bulletin.DownloadURL)
	v.SetDefault("bulletin.pdf_dir", cfg.Bulletin.PDFDir)
	v.SetDefault("bulletin.pdf_name", cfg.Bulletin.PDFName)
	v.SetDefault("bulletin.max_size_mb", cfg.Bulletin.MaxSizeMB)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)

	v.SetDefault("storage.news_path", cfg.Storage.NewsPath)
	v.SetDefault("storage.snapshot_dir", cfg.Storage.SnapshotDir)
	v.SetDefault("storage.records_path", cfg.Storage.RecordsPath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.prompt_dir", cfg.AI.PromptDir)
	v.SetDefault("ai.prompt_file", cfg.AI.PromptFile)

	v.SetDefault("forward.target_url", cfg.Forward.TargetURL)
	v.SetDefault("forward.timeout", cfg.Forward.Timeout)
	v.SetDefault("forward.max_retries", cfg.Forward.MaxRetries)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.schedule", cfg.Server.Schedule)
	v.SetDefault("server.timezone", cfg.Server.Timezone)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
