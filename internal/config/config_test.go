package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:               "8080",
		DBPath:             "expenses.db",
		SessionIdleTimeout: 30 * time.Minute,
		ClassifierBackend:  BackendLocal,
		VectorizerPath:     "v.json",
		ModelPath:          "m.json",
		AIBaseURL:          "https://api.openai.com/v1",
		AIModel:            "gpt-4o-mini",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid local backend config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "empty database path",
			mutate:      func(c *Config) { c.DBPath = "" },
			wantErr:     true,
			errorString: "database path cannot be empty",
		},
		{
			name:        "session timeout too short",
			mutate:      func(c *Config) { c.SessionIdleTimeout = time.Second },
			wantErr:     true,
			errorString: "invalid session idle timeout 1s: must be at least 1 minute",
		},
		{
			name:        "unknown classifier backend",
			mutate:      func(c *Config) { c.ClassifierBackend = "magic" },
			wantErr:     true,
			errorString: "invalid classifier backend 'magic': must be one of [local openai none]",
		},
		{
			name:        "openai backend without key",
			mutate:      func(c *Config) { c.ClassifierBackend = BackendOpenAI },
			wantErr:     true,
			errorString: "AI_API_KEY is required for the openai classifier",
		},
		{
			name: "openai backend complete",
			mutate: func(c *Config) {
				c.ClassifierBackend = BackendOpenAI
				c.AIAPIKey = "sk-test"
			},
			wantErr: false,
		},
		{
			name:    "none backend ignores artifact paths",
			mutate:  func(c *Config) { c.ClassifierBackend = BackendNone; c.ModelPath = "" },
			wantErr: false,
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errorString: `unknown log level "loud"`,
		},
		{
			name:        "partial admin bootstrap",
			mutate:      func(c *Config) { c.AdminUser = "admin" },
			wantErr:     true,
			errorString: "ADMIN_USER, ADMIN_EMAIL and ADMIN_PASSWORD must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 'abc'")
	assert.Contains(t, err.Error(), "invalid log format 'xml'")
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "SESSION_IDLE_TIMEOUT", "AUTO_CATEGORIZE", "CLASSIFIER_BACKEND"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "expenses.db", cfg.DBPath)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.True(t, cfg.AutoCategorize)
	assert.Equal(t, BackendLocal, cfg.ClassifierBackend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45m")
	t.Setenv("AUTO_CATEGORIZE", "false")
	t.Setenv("SECURE_COOKIE", "true")
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ADMIN_PASSWORD", "secret")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTimeout)
	assert.False(t, cfg.AutoCategorize)
	assert.True(t, cfg.SecureCookie)
	assert.True(t, cfg.HasAdmin())
}

func TestLoad_InvalidValuesAreReported(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "5")
	t.Setenv("AUTO_CATEGORIZE", "nope")
	t.Setenv("SECURE_COOKIE", "maybe")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.True(t, cfg.AutoCategorize)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SESSION_IDLE_TIMEOUT '5'")
	assert.Contains(t, err.Error(), "invalid AUTO_CATEGORIZE 'nope'")
	assert.Contains(t, err.Error(), "invalid SECURE_COOKIE 'maybe'")
}
