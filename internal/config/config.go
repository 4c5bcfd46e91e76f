package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/log"

	"github.com/joho/godotenv"
)

// Classifier backends.
const (
	BackendLocal  = "local"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

type Config struct {
	// HTTP Server
	Port         string
	TemplateDir  string
	StaticDir    string
	SecureCookie bool

	// Database
	DBPath string

	// Sessions
	SessionIdleTimeout time.Duration

	// Categorization
	AutoCategorize    bool
	ClassifierBackend string
	VectorizerPath    string
	ModelPath         string
	AIAPIKey          string
	AIBaseURL         string
	AIModel           string

	// Logging
	LogLevel  string
	LogFormat string

	// Bootstrap account created on an empty database
	AdminUser     string
	AdminEmail    string
	AdminPassword string

	// Values that were set but could not be parsed; Validate reports them.
	parseErrors []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// win over it.
func Load() *Config {
	_ = godotenv.Load()

	var env envParser
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		TemplateDir:  getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:    getEnv("STATIC_DIR", "web/static"),
		SecureCookie: env.getBool("SECURE_COOKIE", false),

		DBPath: getEnv("DB_PATH", "expenses.db"),

		SessionIdleTimeout: env.getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		AutoCategorize:    env.getBool("AUTO_CATEGORIZE", true),
		ClassifierBackend: getEnv("CLASSIFIER_BACKEND", BackendLocal),
		VectorizerPath:    getEnv("VECTORIZER_PATH", "expense_category_vectorizer.json"),
		ModelPath:         getEnv("MODEL_PATH", "expense_category_model.json"),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIBaseURL:         getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:           getEnv("AI_MODEL", "gpt-4o-mini"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
	cfg.parseErrors = env.errs
	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	if c.SessionIdleTimeout < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session idle timeout %v: must be at least 1 minute", c.SessionIdleTimeout))
	}

	switch c.ClassifierBackend {
	case BackendLocal:
		if c.VectorizerPath == "" || c.ModelPath == "" {
			errors = append(errors, "vectorizer and model paths are required for the local classifier")
		}
	case BackendOpenAI:
		if c.AIAPIKey == "" {
			errors = append(errors, "AI_API_KEY is required for the openai classifier")
		}
		if u, err := url.Parse(c.AIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid AI base URL '%s'", c.AIBaseURL))
		}
		if c.AIModel == "" {
			errors = append(errors, "AI_MODEL cannot be empty for the openai classifier")
		}
	case BackendNone:
	default:
		errors = append(errors, fmt.Sprintf("invalid classifier backend '%s': must be one of %v",
			c.ClassifierBackend, []string{BackendLocal, BackendOpenAI, BackendNone}))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	admin := []string{c.AdminUser, c.AdminEmail, c.AdminPassword}
	set := 0
	for _, v := range admin {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(admin) {
		errors = append(errors, "ADMIN_USER, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// HasAdmin reports whether a bootstrap account is configured.
func (c *Config) HasAdmin() bool {
	return c.AdminUser != "" && c.AdminEmail != "" && c.AdminPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables, remembering the ones that were set but
// did not parse.
type envParser struct {
	errs []string
}

func (p *envParser) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s '%s': must be a boolean", key, value))
		return defaultValue
	}
	return b
}

func (p *envParser) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s '%s': must be a duration such as 30m", key, value))
		return defaultValue
	}
	return d
}
