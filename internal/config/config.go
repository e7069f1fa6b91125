// Package config loads runtime settings from the environment and the crawl
// profile from a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database settings
	DatabaseDriver string // "sqlite" or "postgres"
	DatabasePath   string // sqlite file path
	DatabaseURL    string // postgres connection string

	// Crawl settings
	ProfilePath    string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Similarity settings
	ShingleLength         int
	ImprovementThreshold  float64
	SimilarityConcurrency int
	MinTextLength         int // documents shorter than this get the notext label

	// Digest settings
	DigestWindow   time.Duration
	MailgunDomain  string
	MailgunAPIKey  string
	EmailFrom      string

	// App settings
	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		DatabaseDriver:        "sqlite",
		DatabasePath:          "newsherd.db",
		ProfilePath:           "configs/profile.yaml",
		RequestTimeout:        15 * time.Second,
		RetryAttempts:         3,
		RetryDelay:            5 * time.Second,
		ShingleLength:         8,
		ImprovementThreshold:  0.0001,
		SimilarityConcurrency: 8,
		MinTextLength:         70,
		DigestWindow:          16 * time.Hour,
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.DatabaseDriver = driver
	}
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", cfg.DatabasePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ProfilePath = getEnvOrDefault("PROFILE_PATH", cfg.ProfilePath)

	cfg.MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
	cfg.MailgunAPIKey = os.Getenv("MAILGUN_API_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")

	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RequestTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RetryAttempts = val
		}
	}
	if v := os.Getenv("SHINGLE_LENGTH"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ShingleLength = val
		}
	}
	if v := os.Getenv("SIMILARITY_CONCURRENCY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.SimilarityConcurrency = val
		}
	}
	if v := os.Getenv("IMPROVEMENT_THRESHOLD"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.ImprovementThreshold = val
		}
	}
	if v := os.Getenv("DIGEST_WINDOW_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.DigestWindow = time.Duration(val) * time.Hour
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("DATABASE_DRIVER must be 'sqlite' or 'postgres'")
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.ShingleLength <= 0 {
		return fmt.Errorf("shingle length must be positive")
	}
	return nil
}

// Profile is the crawl profile: which link texts count as interesting, which
// titles and URLs are excluded, and who receives the crawl digest.
type Profile struct {
	Words         string   `yaml:"words"`
	ExcludeTitles string   `yaml:"exclude_titles"`
	ExcludeURLs   string   `yaml:"exclude_urls"`
	Recipients    []string `yaml:"recipients"`

	WordsRe         *regexp.Regexp `yaml:"-"`
	ExcludeTitlesRe *regexp.Regexp `yaml:"-"`
	ExcludeURLsRe   *regexp.Regexp `yaml:"-"`
}

// LoadProfile reads the crawl profile from a YAML file and compiles its
// patterns. Words is required; the exclusion patterns are optional.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Profile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	if p.Words == "" {
		return nil, fmt.Errorf("profile is missing the words pattern")
	}
	if p.WordsRe, err = regexp.Compile(p.Words); err != nil {
		return nil, fmt.Errorf("invalid words pattern: %w", err)
	}
	if p.ExcludeTitles != "" {
		if p.ExcludeTitlesRe, err = regexp.Compile("(?i)" + p.ExcludeTitles); err != nil {
			return nil, fmt.Errorf("invalid exclude_titles pattern: %w", err)
		}
	}
	if p.ExcludeURLs != "" {
		if p.ExcludeURLsRe, err = regexp.Compile("(?i)" + p.ExcludeURLs); err != nil {
			return nil, fmt.Errorf("invalid exclude_urls pattern: %w", err)
		}
	}

	return &p, nil
}
