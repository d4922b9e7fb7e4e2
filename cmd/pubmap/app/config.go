package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/pubmap/internal/sheets"
	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/reconciler"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Output  string

	// Config file
	ConfigFile string

	// Mailbox
	GmailUser        string
	GmailAppPassword string
	SenderEmail      string
	IMAPAddr         string
	IMAPMailbox      string
	ScanDepth        int
	AttachmentDir    string

	// Spreadsheet
	SheetURL           string
	ServiceAccountFile string
	ReferenceSheet     string
	TargetSheet        string
	WorkbookFile       string

	// Schedule
	RunImmediately bool
	RunHour        int
	RunMinute      int
	Timezone       string
	PollInterval   time.Duration
	RetryBackoff   time.Duration

	NullPolicy string
	StatusAddr string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (--config, or ~/.pubmap.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv("PUBMAP_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(constants.DefaultConfigFile, filepath.Ext(constants.DefaultConfigFile)))
		// Missing default config files are fine
		_ = v.ReadInConfig()
	}

	return &Config{
		Output:     v.GetString("output"),
		ConfigFile: v.ConfigFileUsed(),

		GmailUser:        v.GetString("gmail_user"),
		GmailAppPassword: v.GetString("gmail_app_password"),
		SenderEmail:      v.GetString("sender_email"),
		IMAPAddr:         v.GetString("imap_addr"),
		IMAPMailbox:      v.GetString("imap_mailbox"),
		ScanDepth:        v.GetInt("mail_scan_depth"),
		AttachmentDir:    v.GetString("attachment_dir"),

		SheetURL:           v.GetString("google_sheet_url"),
		ServiceAccountFile: v.GetString("service_account_file"),
		ReferenceSheet:     v.GetString("worksheet_name"),
		TargetSheet:        v.GetString("appendworksheet_name"),
		WorkbookFile:       v.GetString("workbook_file"),

		RunImmediately: v.GetBool("run_immediately"),
		RunHour:        v.GetInt("run_hour"),
		RunMinute:      v.GetInt("run_minute"),
		Timezone:       v.GetString("schedule_timezone"),
		PollInterval:   v.GetDuration("poll_interval"),
		RetryBackoff:   v.GetDuration("retry_backoff"),

		NullPolicy: v.GetString("null_policy"),
		StatusAddr: v.GetString("status_addr"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("imap_addr", constants.DefaultIMAPAddr)
	v.SetDefault("imap_mailbox", constants.DefaultMailbox)
	v.SetDefault("mail_scan_depth", constants.DefaultScanDepth)
	v.SetDefault("attachment_dir", constants.DefaultAttachmentDir)
	v.SetDefault("run_immediately", false)
	v.SetDefault("run_hour", constants.DefaultRunHour)
	v.SetDefault("run_minute", constants.DefaultRunMinute)
	v.SetDefault("poll_interval", constants.DefaultPollInterval)
	v.SetDefault("retry_backoff", constants.DefaultRetryBackoff)
	v.SetDefault("null_policy", string(reconciler.NullKeep))
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stdout,"+constants.DefaultLogFile)
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, output, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if output != "" {
		c.Output = output
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Needs selects the groups of settings a command requires.
type Needs struct {
	Mail     bool
	Document bool
}

// Validate checks that the settings a command needs are present and sane.
func (c *Config) Validate(needs Needs) error {
	if needs.Mail {
		switch {
		case c.GmailUser == "":
			return errors.NewConfigError("mailbox", "GMAIL_USER is required", nil)
		case c.GmailAppPassword == "":
			return errors.NewConfigError("mailbox", "GMAIL_APP_PASSWORD is required", nil)
		case c.SenderEmail == "":
			return errors.NewConfigError("mailbox", "SENDER_EMAIL is required", nil)
		case c.ScanDepth < 1:
			return errors.NewConfigError("mailbox", "MAIL_SCAN_DEPTH must be at least 1", nil)
		}
	}

	if needs.Document {
		switch {
		case c.ReferenceSheet == "":
			return errors.NewConfigError("spreadsheet", "WORKSHEET_NAME is required", nil)
		case c.TargetSheet == "":
			return errors.NewConfigError("spreadsheet", "APPENDWORKSHEET_NAME is required", nil)
		case c.WorkbookFile == "" && c.SheetURL == "":
			return errors.NewConfigError("spreadsheet", "GOOGLE_SHEET_URL or WORKBOOK_FILE is required", nil)
		case c.WorkbookFile == "":
			if _, err := sheets.SpreadsheetID(c.SheetURL); err != nil {
				return err
			}
		}
	}

	if _, err := reconciler.ParseNullPolicy(c.NullPolicy); err != nil {
		return errors.NewConfigError("reconciler", "invalid NULL_POLICY", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone of the daily run.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.NewConfigError("schedule", "invalid SCHEDULE_TIMEZONE "+c.Timezone, err)
	}
	return loc, nil
}

// loadEnvFiles loads environment variables from .env files.
// godotenv never overrides variables that are already set, so .env.local is
// loaded first to take precedence over .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
