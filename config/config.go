package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Session   SessionConfig
	Challenge ChallengeConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// MaxBodyBytes caps the raw POST body replayed into the browser.
	MaxBodyBytes int64 // default: 10 MiB
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// SkipDownload uses the locally installed binary at BrowserBin instead
	// of the Chromium revision the launcher downloads.
	SkipDownload bool // default: false

	// BrowserBin is the binary used when SkipDownload is set.
	BrowserBin string // default: "/usr/bin/chromium-browser"

	// Stealth injects go-rod/stealth evasions into every new tab.
	Stealth bool // default: true

	// MaxTabs caps the number of concurrently open tabs.
	MaxTabs int // default: 10

	// AcquireTimeout bounds how long a request waits for a free tab slot.
	AcquireTimeout time.Duration // default: 30s
}

// SessionConfig controls a single render session.
type SessionConfig struct {
	// NavigationTimeout bounds navigation until DOMContentLoaded.
	NavigationTimeout time.Duration // default: 30s

	// BlockAds fails requests to known ad and tracking domains.
	BlockAds bool // default: true
}

// ChallengeConfig controls anti-automation challenge detection.
type ChallengeConfig struct {
	// Marker is the substring that identifies a challenge page.
	Marker string // default: "cf-browser-verification"

	// Selectors are CSS selectors that also identify a challenge page.
	Selectors []string

	// Timeout bounds the single re-wait after a challenge is seen.
	Timeout time.Duration // default: 30s
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. 0 disables.
	RequestsPerSecond float64 // default: 0

	// Burst is the maximum burst size per client IP.
	Burst int // default: 20
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultChallengeSelectors are the interstitial containers used by common
// anti-bot vendors.
var DefaultChallengeSelectors = []string{
	"#cf-challenge-running",
	"#challenge-running",
	"#challenge-stage",
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         envOr("RENDERGATE_HOST", "0.0.0.0"),
			Port:         envIntOr("RENDERGATE_PORT", 3000),
			Mode:         envOr("RENDERGATE_MODE", "release"),
			MaxBodyBytes: int64(envIntOr("RENDERGATE_MAX_BODY_BYTES", 10<<20)),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("RENDERGATE_HEADLESS", true),
			NoSandbox:      envBoolOr("RENDERGATE_NO_SANDBOX", true),
			SkipDownload:   envBoolOr("RENDERGATE_SKIP_BROWSER_DOWNLOAD", false),
			BrowserBin:     envOr("RENDERGATE_BROWSER_BIN", "/usr/bin/chromium-browser"),
			Stealth:        envBoolOr("RENDERGATE_STEALTH", true),
			MaxTabs:        envIntOr("RENDERGATE_MAX_TABS", 10),
			AcquireTimeout: envDurationOr("RENDERGATE_ACQUIRE_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			NavigationTimeout: envDurationOr("RENDERGATE_NAV_TIMEOUT", 30*time.Second),
			BlockAds:          envBoolOr("RENDERGATE_BLOCK_ADS", true),
		},
		Challenge: ChallengeConfig{
			Marker:    envOr("RENDERGATE_CHALLENGE_MARKER", "cf-browser-verification"),
			Selectors: envSliceOr("RENDERGATE_CHALLENGE_SELECTORS", DefaultChallengeSelectors),
			Timeout:   envDurationOr("RENDERGATE_CHALLENGE_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RENDERGATE_RATE_RPS", 0),
			Burst:             envIntOr("RENDERGATE_RATE_BURST", 20),
		},
		Log: LogConfig{
			Level:  envOr("RENDERGATE_LOG_LEVEL", "info"),
			Format: envOr("RENDERGATE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
