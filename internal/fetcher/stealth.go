package fetcher

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/IshaanNene/rallybrief/internal/config"
)

// BrowserConfig is the immutable launch and fingerprint configuration for a
// browser session.
type BrowserConfig struct {
	Headless      bool
	Bin           string
	WindowWidth   int
	WindowHeight  int
	UserAgents    []string
	NoSandbox     bool
	LaunchTimeout time.Duration
	PageTimeout   time.Duration

	// Language override (e.g., "ko-KR")
	Language string

	// Platform override (e.g., "Win32", "MacIntel", "Linux x86_64")
	Platform string

	// Hardware concurrency (number of CPU cores to report)
	HardwareConcurrency int

	// DeviceMemory (GB of RAM to report)
	DeviceMemory int
}

// NewBrowserConfig builds a BrowserConfig from the loaded configuration.
func NewBrowserConfig(cfg config.BrowserConfig) *BrowserConfig {
	uas := make([]string, len(cfg.UserAgents))
	copy(uas, cfg.UserAgents)

	return &BrowserConfig{
		Headless:            cfg.Headless,
		Bin:                 cfg.Bin,
		WindowWidth:         cfg.WindowWidth,
		WindowHeight:        cfg.WindowHeight,
		UserAgents:          uas,
		NoSandbox:           cfg.NoSandbox,
		LaunchTimeout:       cfg.LaunchTimeout,
		PageTimeout:         cfg.PageTimeout,
		Language:            cfg.Language,
		Platform:            "Win32",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
	}
}

// LaunchFlag is a single Chromium command-line switch.
type LaunchFlag struct {
	Name  string
	Value string
}

// LaunchFlags returns the Chromium switches that suppress automation markers
// and pin the window size.
func (bc *BrowserConfig) LaunchFlags() []LaunchFlag {
	flags := []LaunchFlag{
		{Name: "disable-blink-features", Value: "AutomationControlled"},
		{Name: "disable-dev-shm-usage"},
		{Name: "disable-gpu"},
		{Name: "window-size", Value: fmt.Sprintf("%d,%d", bc.WindowWidth, bc.WindowHeight)},
	}
	if bc.NoSandbox {
		flags = append(flags, LaunchFlag{Name: "no-sandbox"}, LaunchFlag{Name: "disable-setuid-sandbox"})
	}
	if bc.Language != "" {
		flags = append(flags, LaunchFlag{Name: "lang", Value: bc.Language})
	}
	return flags
}

// PickUserAgent chooses a user agent from the configured list.
func (bc *BrowserConfig) PickUserAgent(rng *rand.Rand) string {
	if len(bc.UserAgents) == 0 {
		return ""
	}
	return bc.UserAgents[rng.Intn(len(bc.UserAgents))]
}

// StealthJS returns JavaScript to inject for fingerprint spoofing.
// It runs in every document before any page script.
func (bc *BrowserConfig) StealthJS() string {
	lang := bc.Language
	if lang == "" {
		lang = "en-US"
	}
	return fmt.Sprintf(`
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

window.chrome = window.chrome || {
	runtime: { onMessage: { addListener: () => {} }, sendMessage: () => {} },
	loadTimes: () => ({}),
	csi: () => ({}),
};

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);
`, bc.Platform, lang, lang, bc.HardwareConcurrency, bc.DeviceMemory)
}

// headerTransport adds browser-like request headers that government and news
// sites expect before serving attachments.
type headerTransport struct {
	inner          http.RoundTripper
	acceptLanguage string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" && t.acceptLanguage != "" {
		req.Header.Set("Accept-Language", t.acceptLanguage)
	}
	if req.Header.Get("Upgrade-Insecure-Requests") == "" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
	return t.inner.RoundTrip(req)
}
