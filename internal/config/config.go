package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tweetdl/internal/logger"
)

// DefaultPlaybackEndpoint is the private endpoint the page calls to fetch
// per-post video configuration. %s is the post ID.
const DefaultPlaybackEndpoint = "https://api.twitter.com/1.1/videos/tweet/config/%s.json"

const (
	DefaultResolveTimeout = 30 * time.Second
	DefaultStageTimeout   = 2 * time.Minute
	DefaultFFmpegPath     = "ffmpeg"
	DefaultLogLevel       = "off"
)

// Directory names under the user's home.
const (
	DesktopDirName   = "Desktop"
	DownloadsDirName = "Downloads"
)

type Config struct {
	Browser  BrowserConfig
	Resolve  ResolveConfig
	Download DownloadConfig
	// StageTimeout bounds browser launch, page creation and navigation.
	// Zero disables the bound.
	StageTimeout time.Duration
	LogLevel     string
}

type BrowserConfig struct {
	ExecPath  string // empty means auto-discovery
	Headless  bool
	UserAgent string
	NoSandbox bool
}

type ResolveConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type DownloadConfig struct {
	FFmpegPath string
	OutputDir  string
	// Timeout bounds the transcoder run. Zero disables the bound.
	Timeout time.Duration
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are not an error; variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	cfg := &Config{
		Browser: BrowserConfig{
			ExecPath:  getEnv("TWEETDL_CHROME_PATH", ""),
			UserAgent: getEnv("TWEETDL_USER_AGENT", ""),
		},
		Resolve: ResolveConfig{
			Endpoint: getEnv("TWEETDL_PLAYBACK_ENDPOINT", DefaultPlaybackEndpoint),
		},
		Download: DownloadConfig{
			FFmpegPath: getEnv("TWEETDL_FFMPEG_PATH", DefaultFFmpegPath),
			OutputDir:  getEnv("TWEETDL_OUTPUT_DIR", filepath.Join(home, DesktopDirName)),
		},
		LogLevel: getEnv("TWEETDL_LOG_LEVEL", DefaultLogLevel),
	}

	if cfg.Browser.Headless, err = getEnvAsBool("TWEETDL_HEADLESS", true); err != nil {
		return nil, err
	}
	if cfg.Browser.NoSandbox, err = getEnvAsBool("TWEETDL_NO_SANDBOX", false); err != nil {
		return nil, err
	}
	if cfg.Resolve.Timeout, err = getEnvAsDuration("TWEETDL_RESOLVE_TIMEOUT", DefaultResolveTimeout); err != nil {
		return nil, err
	}
	if cfg.StageTimeout, err = getEnvAsDuration("TWEETDL_STAGE_TIMEOUT", DefaultStageTimeout); err != nil {
		return nil, err
	}
	if cfg.Download.Timeout, err = getEnvAsDuration("TWEETDL_DOWNLOAD_TIMEOUT", 0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.Resolve.Timeout <= 0 {
		return fmt.Errorf("resolve timeout must be positive, got %s", c.Resolve.Timeout)
	}
	if c.StageTimeout < 0 || c.Download.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Resolve.Endpoint == "" {
		return fmt.Errorf("playback endpoint must not be empty")
	}
	if c.Download.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path must not be empty")
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// HomeDir returns dir under the user's home, e.g. HomeDir(DownloadsDirName).
func HomeDir(dir string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, dir), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
