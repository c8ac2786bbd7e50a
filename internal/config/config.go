package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "LINKINBIO"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "linkinbio.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultCookieName      = "linkinbio_session"
	defaultAdminUsername   = "admin"
	defaultSessionTTL      = 720
	defaultNonceTTL        = 1440
	defaultPageSlug        = "my-links"
	defaultPageTitle       = "My Links"
	defaultPageContent     = "[link_in_bio_page]"
	defaultPageLanguage    = "en"
	defaultCacheMaxBytes   = 32 * 1024 * 1024
	defaultLoginRatePerMin = 10
	minSigningSecretLength = 32
)

// AppConfig captures runtime configuration for the server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	LogFormat          string
	SigningSecret      string
	AdminUsername      string
	AdminPasswordHash  string
	CookieName         string
	SecureCookies      bool
	SessionTTL         time.Duration
	NonceTTL           time.Duration
	PageSlug           string
	PageTitle          string
	PageContent        string
	PageLanguage       string
	CacheMaxBytes      int
	AllowedOrigins     []string
	LoginRatePerMinute int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.admin_username", defaultAdminUsername)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.secure_cookies", false)
	configViper.SetDefault("auth.session_ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("auth.nonce_ttl_minutes", defaultNonceTTL)
	configViper.SetDefault("page.slug", defaultPageSlug)
	configViper.SetDefault("page.title", defaultPageTitle)
	configViper.SetDefault("page.content", defaultPageContent)
	configViper.SetDefault("page.language", defaultPageLanguage)
	configViper.SetDefault("cache.max_bytes", defaultCacheMaxBytes)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("ratelimit.login_per_minute", defaultLoginRatePerMin)
}

// Load parses and validates server configuration from viper. A plaintext
// auth.admin_password is hashed here so it never travels further.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := Read(configViper)

	if strings.TrimSpace(cfg.AdminPasswordHash) == "" {
		if password := configViper.GetString("auth.admin_password"); password != "" {
			hashed, err := auth.HashPassword(password)
			if err != nil {
				return AppConfig{}, fmt.Errorf("auth.admin_password: %w", err)
			}
			cfg.AdminPasswordHash = hashed
		}
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Read parses configuration without validating the auth settings, for tools
// that only render pages.
func Read(configViper *viper.Viper) AppConfig {
	return AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		AdminUsername:      configViper.GetString("auth.admin_username"),
		AdminPasswordHash:  configViper.GetString("auth.admin_password_hash"),
		CookieName:         configViper.GetString("auth.cookie_name"),
		SecureCookies:      configViper.GetBool("auth.secure_cookies"),
		SessionTTL:         time.Duration(configViper.GetInt("auth.session_ttl_minutes")) * time.Minute,
		NonceTTL:           time.Duration(configViper.GetInt("auth.nonce_ttl_minutes")) * time.Minute,
		PageSlug:           strings.Trim(configViper.GetString("page.slug"), "/ "),
		PageTitle:          configViper.GetString("page.title"),
		PageContent:        configViper.GetString("page.content"),
		PageLanguage:       configViper.GetString("page.language"),
		CacheMaxBytes:      configViper.GetInt("cache.max_bytes"),
		AllowedOrigins:     splitList(configViper.GetStringSlice("cors.allowed_origins")),
		LoginRatePerMinute: configViper.GetInt("ratelimit.login_per_minute"),
	}
}

func (c AppConfig) validate() error {
	if len(strings.TrimSpace(c.SigningSecret)) < minSigningSecretLength {
		return fmt.Errorf("auth.signing_secret must be at least %d characters", minSigningSecretLength)
	}
	if strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("auth.admin_password_hash or auth.admin_password is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.SessionTTL <= 0 || c.NonceTTL <= 0 {
		return fmt.Errorf("auth.session_ttl_minutes and auth.nonce_ttl_minutes must be positive")
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated value,
// which is how list settings arrive from the environment.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
