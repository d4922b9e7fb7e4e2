package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
)

// isolate keeps the developer's own config and .env files out of a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultIMAPAddr, config.IMAPAddr)
	assert.Equal(t, constants.DefaultMailbox, config.IMAPMailbox)
	assert.Equal(t, 1, config.ScanDepth)
	assert.Equal(t, "tmp", config.AttachmentDir)
	assert.Equal(t, 22, config.RunHour)
	assert.Equal(t, 0, config.RunMinute)
	assert.False(t, config.RunImmediately)
	assert.Equal(t, 2*time.Hour, config.PollInterval)
	assert.Equal(t, 10*time.Minute, config.RetryBackoff)
	assert.Equal(t, "keep", config.NullPolicy)
	assert.Equal(t, "auto", config.LogFormat)
	assert.Equal(t, "stdout,logs/pipeline_execution.log", config.LogOutput)
	assert.Empty(t, config.LogLevel)
	assert.Empty(t, config.StatusAddr)
}

func TestLoadConfigEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("GMAIL_USER", "ops@example.com")
	t.Setenv("GMAIL_APP_PASSWORD", "secret")
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("WORKSHEET_NAME", "Reference")
	t.Setenv("APPENDWORKSHEET_NAME", "Mapping")
	t.Setenv("RUN_IMMEDIATELY", "true")
	t.Setenv("RUN_HOUR", "6")
	t.Setenv("POLL_INTERVAL", "30m")
	t.Setenv("NULL_POLICY", "nan")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "ops@example.com", config.GmailUser)
	assert.Equal(t, "secret", config.GmailAppPassword)
	assert.Equal(t, "reports@example.com", config.SenderEmail)
	assert.Equal(t, "Reference", config.ReferenceSheet)
	assert.Equal(t, "Mapping", config.TargetSheet)
	assert.True(t, config.RunImmediately)
	assert.Equal(t, 6, config.RunHour)
	assert.Equal(t, 30*time.Minute, config.PollInterval)
	assert.Equal(t, "nan", config.NullPolicy)
}

func TestLoadConfigDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("SENDER_EMAIL=env@example.com\nWORKSHEET_NAME=FromEnv\n"), 0o600))
	require.NoError(t, os.WriteFile(".env.local", []byte("WORKSHEET_NAME=FromLocal\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SENDER_EMAIL")
		os.Unsetenv("WORKSHEET_NAME")
	})

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", config.SenderEmail)
	assert.Equal(t, "FromLocal", config.ReferenceSheet, ".env.local wins over .env")
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pubmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
google_sheet_url: https://docs.google.com/spreadsheets/d/abc123/edit
worksheet_name: Reference
appendworksheet_name: Mapping
run_minute: 30
retry_backoff: 5m
status_addr: ":9090"
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, config.ConfigFile)
	assert.Equal(t, "Reference", config.ReferenceSheet)
	assert.Equal(t, 30, config.RunMinute)
	assert.Equal(t, 5*time.Minute, config.RetryBackoff)
	assert.Equal(t, ":9090", config.StatusAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	isolate(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func validConfig() *Config {
	return &Config{
		GmailUser:        "ops@example.com",
		GmailAppPassword: "secret",
		SenderEmail:      "reports@example.com",
		ScanDepth:        1,
		SheetURL:         "https://docs.google.com/spreadsheets/d/abc123/edit",
		ReferenceSheet:   "Reference",
		TargetSheet:      "Mapping",
		RunHour:          22,
		PollInterval:     2 * time.Hour,
		RetryBackoff:     10 * time.Minute,
		NullPolicy:       "keep",
	}
}

func TestConfigValidate(t *testing.T) {
	all := Needs{Mail: true, Document: true}
	tests := []struct {
		name   string
		mutate func(*Config)
		needs  Needs
		ok     bool
	}{
		{"valid", func(*Config) {}, all, true},
		{"no user", func(c *Config) { c.GmailUser = "" }, all, false},
		{"no password", func(c *Config) { c.GmailAppPassword = "" }, all, false},
		{"no sender", func(c *Config) { c.SenderEmail = "" }, all, false},
		{"mail not needed", func(c *Config) { c.GmailUser = "" }, Needs{Document: true}, true},
		{"zero scan depth", func(c *Config) { c.ScanDepth = 0 }, all, false},
		{"no reference tab", func(c *Config) { c.ReferenceSheet = "" }, all, false},
		{"no target tab", func(c *Config) { c.TargetSheet = "" }, all, false},
		{"no spreadsheet", func(c *Config) { c.SheetURL = "" }, all, false},
		{"bad spreadsheet url", func(c *Config) { c.SheetURL = "https://example.com/nope" }, all, false},
		{"workbook instead of sheets", func(c *Config) { c.SheetURL, c.WorkbookFile = "", "book.xlsx" }, all, true},
		{"document not needed", func(c *Config) { c.SheetURL = "" }, Needs{Mail: true}, true},
		{"bad null policy", func(c *Config) { c.NullPolicy = "zero" }, all, false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, all, false},
		{"named timezone", func(c *Config) { c.Timezone = "Europe/Paris" }, all, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate(tt.needs)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestConfigLocation(t *testing.T) {
	c := &Config{}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	c.Timezone = "UTC"
	loc, err = c.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestUpdateFromFlags(t *testing.T) {
	c := &Config{Output: "yaml", LogLevel: "warn"}
	c.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, c.Verbose)
	assert.True(t, c.NoColor)
	assert.Equal(t, "yaml", c.Output, "empty flag keeps the configured value")
	assert.Equal(t, "warn", c.LogLevel)

	c.UpdateFromFlags(false, false, false, "json", "debug")
	assert.Equal(t, "json", c.Output)
	assert.Equal(t, "debug", c.LogLevel)
}
