package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel  string
	LogFormat string

	DocParseBackend     string
	DocParseURL         string
	DocParseToken       string
	DocParseTimeout     time.Duration
	DocParseRateLimit   float64
	DocParseMaxAttempts int

	HeaderScanRows     int
	MappingPreviewRows int
	KeywordsFile       string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailQuery        string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "intake.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DocParseBackend:     strings.ToLower(getEnv("DOCPARSE_BACKEND", "local")),
		DocParseURL:         getEnv("DOCPARSE_URL", ""),
		DocParseToken:       getEnv("DOCPARSE_TOKEN", ""),
		DocParseTimeout:     getEnvDuration("DOCPARSE_TIMEOUT", 60*time.Second),
		DocParseRateLimit:   getEnvFloat("DOCPARSE_RATE_LIMIT_RPS", 2),
		DocParseMaxAttempts: getEnvInt("DOCPARSE_MAX_ATTEMPTS", 3),

		HeaderScanRows:     getEnvInt("HEADER_SCAN_ROWS", 10),
		MappingPreviewRows: getEnvInt("MAPPING_PREVIEW_ROWS", 3),
		KeywordsFile:       getEnv("KEYWORDS_FILE", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailQuery:        getEnv("GMAIL_QUERY", "has:attachment"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	return cfg, nil
}

// Validate checks the values the pipeline cannot run without. Mail
// credentials are checked by the connectors when they are built.
func (c Config) Validate() error {
	var errs []error
	switch c.DocParseBackend {
	case "local", "none":
	case "remote":
		if err := c.Require("DOCPARSE_URL", c.DocParseURL); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("DOCPARSE_BACKEND must be local, remote or none, got %q", c.DocParseBackend))
	}
	if c.HeaderScanRows <= 0 {
		errs = append(errs, fmt.Errorf("HEADER_SCAN_ROWS must be positive, got %d", c.HeaderScanRows))
	}
	if c.MappingPreviewRows < 0 {
		errs = append(errs, fmt.Errorf("MAPPING_PREVIEW_ROWS must not be negative, got %d", c.MappingPreviewRows))
	}
	if c.DocParseTimeout < 0 {
		errs = append(errs, fmt.Errorf("DOCPARSE_TIMEOUT must not be negative, got %s", c.DocParseTimeout))
	}
	return errors.Join(errs...)
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
