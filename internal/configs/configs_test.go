package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"ENVIRONMENT", "PORT", "STATIC_DIR", "ALLOWED_ORIGINS",
	"MAX_MESSAGES", "JOIN_HISTORY", "MAX_USERNAME_LENGTH", "MAX_CONTENT_BYTES",
}

// isolate runs the test from an empty directory with every config key cleared.
func isolate(t *testing.T) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "client/dist", cfg.StaticDir)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, DefaultMaxMessages, cfg.MaxMessages)
	assert.Equal(t, DefaultJoinHistory, cfg.JoinHistory)
	assert.Equal(t, DefaultMaxUsernameLength, cfg.MaxUsernameLength)
	assert.Equal(t, DefaultMaxContentBytes, cfg.MaxContentBytes)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "8081")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MAX_MESSAGES", "10")
	t.Setenv("JOIN_HISTORY", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 10, cfg.MaxMessages)
	assert.Equal(t, 5, cfg.JoinHistory)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	isolate(t)
	os.Unsetenv("MAX_MESSAGES")
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("MAX_MESSAGES=7\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MAX_MESSAGES") })

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxMessages)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":              "80",
		"MAX_MESSAGES":      "0",
		"JOIN_HISTORY":      "-1",
		"MAX_CONTENT_BYTES": "lots",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
