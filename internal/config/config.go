package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for rallybrief.
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Search   SearchConfig   `mapstructure:"search"   yaml:"search"`
	Article  ArticleConfig  `mapstructure:"article"  yaml:"article"`
	Bulletin BulletinConfig `mapstructure:"bulletin" yaml:"bulletin"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	AI       AIConfig       `mapstructure:"ai"       yaml:"ai"`
	Forward  ForwardConfig  `mapstructure:"forward"  yaml:"forward"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// BrowserConfig controls how headless Chromium is launched.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"       yaml:"headless"`
	Bin           string        `mapstructure:"bin"            yaml:"bin"`
	WindowWidth   int           `mapstructure:"window_width"   yaml:"window_width"`
	WindowHeight  int           `mapstructure:"window_height"  yaml:"window_height"`
	UserAgents    []string      `mapstructure:"user_agents"    yaml:"user_agents"`
	NoSandbox     bool          `mapstructure:"no_sandbox"     yaml:"no_sandbox"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	PageTimeout   time.Duration `mapstructure:"page_timeout"   yaml:"page_timeout"`
	Language      string        `mapstructure:"language"       yaml:"language"`
}

// SearchConfig controls the search-result resolution step.
type SearchConfig struct {
	EngineURL       string        `mapstructure:"engine_url"        yaml:"engine_url"`
	QueryTemplate   string        `mapstructure:"query_template"    yaml:"query_template"`
	DateLayout      string        `mapstructure:"date_layout"       yaml:"date_layout"`
	PublisherDomain string        `mapstructure:"publisher_domain"  yaml:"publisher_domain"`
	Selectors       []string      `mapstructure:"selectors"         yaml:"selectors"`
	ReadySelector   string        `mapstructure:"ready_selector"    yaml:"ready_selector"`
	ReadyTimeout    time.Duration `mapstructure:"ready_timeout"     yaml:"ready_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"      yaml:"max_attempts"`
	RetryDelayMin   time.Duration `mapstructure:"retry_delay_min"   yaml:"retry_delay_min"`
	RetryDelayMax   time.Duration `mapstructure:"retry_delay_max"   yaml:"retry_delay_max"`
	PauseMin        time.Duration `mapstructure:"pause_min"         yaml:"pause_min"`
	PauseMax        time.Duration `mapstructure:"pause_max"         yaml:"pause_max"`
}

// ArticleConfig controls marker-line extraction from the article page.
type ArticleConfig struct {
	ContainerSelector string        `mapstructure:"container_selector" yaml:"container_selector"`
	Marker            string        `mapstructure:"marker"             yaml:"marker"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"       yaml:"wait_timeout"`
}

// BulletinConfig controls the police bulletin board and its PDF attachment.
type BulletinConfig struct {
	BoardURL        string        `mapstructure:"board_url"         yaml:"board_url"`
	TableSelector   string        `mapstructure:"table_selector"    yaml:"table_selector"`
	SubjectSelector string        `mapstructure:"subject_selector"  yaml:"subject_selector"`
	TitleDateLayout string        `mapstructure:"title_date_layout" yaml:"title_date_layout"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"      yaml:"wait_timeout"`
	AttachSelector  string        `mapstructure:"attach_selector"   yaml:"attach_selector"`
	DownloadURL     string        `mapstructure:"download_url"      yaml:"download_url"`
	PDFDir          string        `mapstructure:"pdf_dir"           yaml:"pdf_dir"`
	PDFName         string        `mapstructure:"pdf_name"          yaml:"pdf_name"`
	MaxSizeMB       int64         `mapstructure:"max_size_mb"       yaml:"max_size_mb"`
}

// FetcherConfig controls the plain HTTP fetcher.
type FetcherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language" yaml:"accept_language"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
	TLSInsecure    bool          `mapstructure:"tls_insecure"    yaml:"tls_insecure"`
	MaxRedirects   int           `mapstructure:"max_redirects"   yaml:"max_redirects"`
}

// StorageConfig controls output files and the record store.
type StorageConfig struct {
	NewsPath        string `mapstructure:"news_path"        yaml:"news_path"`
	RecordsPath     string `mapstructure:"records_path"     yaml:"records_path"`
	SnapshotDir     string `mapstructure:"snapshot_dir"     yaml:"snapshot_dir"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// AIConfig controls LLM integration.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"    yaml:"provider"`
	Model       string        `mapstructure:"model"       yaml:"model"`
	Endpoint    string        `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey      string        `mapstructure:"api_key"     yaml:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	PromptDir   string        `mapstructure:"prompt_dir"  yaml:"prompt_dir"`
	PromptFile  string        `mapstructure:"prompt_file" yaml:"prompt_file"`
}

// ForwardConfig controls delivery of the analysis to the downstream server.
type ForwardConfig struct {
	TargetURL  string        `mapstructure:"target_url"  yaml:"target_url"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// ServerConfig controls the HTTP API and the daily schedule. Timezone also
// decides what "today" means for searches and bulletin titles.
type ServerConfig struct {
	Port     int    `mapstructure:"port"     yaml:"port"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:      true,
			WindowWidth:   1920,
			WindowHeight:  1080,
			UserAgents:    []string{defaultUserAgent},
			NoSandbox:     true,
			LaunchTimeout: 30 * time.Second,
			PageTimeout:   30 * time.Second,
			Language:      "ko-KR",
		},
		Search: SearchConfig{
			EngineURL:       "https://www.google.com/search",
			QueryTemplate:   "[오늘의 주요일정]사회 + {date} +site: newsis",
			DateLayout:      "2006 01월02일",
			PublisherDomain: "newsis.com",
			Selectors: []string{
				`a[jsname="UWckNb"]`,
				"div.g div.yuRUbf > a",
				"div.tF2Cxc > div.yuRUbf > a",
				"div.g a",
			},
			ReadySelector: "#search",
			ReadyTimeout:  5 * time.Second,
			MaxAttempts:   3,
			RetryDelayMin: 1 * time.Second,
			RetryDelayMax: 3 * time.Second,
			PauseMin:      1 * time.Second,
			PauseMax:      3 * time.Second,
		},
		Article: ArticleConfig{
			ContainerSelector: "article",
			Marker:            "▲",
			WaitTimeout:       10 * time.Second,
		},
		Bulletin: BulletinConfig{
			BoardURL:        "https://www.smpa.go.kr/user/nd54882.do",
			TableSelector:   "table.data-list",
			SubjectSelector: "table.data-list tbody tr .subject a",
			TitleDateLayout: "060102",
			WaitTimeout:     15 * time.Second,
			AttachSelector:  "a.doc_link",
			DownloadURL:     "https://www.smpa.go.kr/common/attachfile/attachfileDownload.do",
			PDFDir:          "static/pdf",
			PDFName:         "protest-info-pdf.pdf",
			MaxSizeMB:       50,
		},
		Fetcher: FetcherConfig{
			UserAgent:      defaultUserAgent,
			AcceptLanguage: "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			MaxRedirects:   10,
		},
		Storage: StorageConfig{
			NewsPath:        "static/text/news_info.txt",
			RecordsPath:     "static/briefings.jsonl",
			SnapshotDir:     "static/snapshots",
			MongoDatabase:   "rallybrief",
			MongoCollection: "briefings",
		},
		AI: AIConfig{
			Provider:   "anthropic",
			Model:      "claude-3-5-sonnet-20241022",
			MaxTokens:  4096,
			Timeout:    120 * time.Second,
			PromptDir:  "prompts",
			PromptFile: "pdf_analysis_prompt.txt",
		},
		Forward: ForwardConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Port:     5001,
			Schedule: "",
			Timezone: "Asia/Seoul",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
