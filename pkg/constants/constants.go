// Package constants provides shared constants used throughout the pubmap codebase.
// This includes schedule defaults, timeouts, limits, file permissions, and the
// column names the reconciliation pipeline is keyed on.
package constants

import "time"

// Schedule constants define when and how often the pipeline runs
const (
	// DefaultRunHour is the hour of day (local time) of the daily run
	DefaultRunHour = 22

	// DefaultRunMinute is the minute of the daily run
	DefaultRunMinute = 0

	// DefaultPollInterval is the wait after a run that found no new data or completed
	DefaultPollInterval = 2 * time.Hour

	// DefaultRetryBackoff is the wait after a failed run
	DefaultRetryBackoff = 10 * time.Minute
)

// Timeout constants define various timeout durations used in the application
const (
	// RunTimeout bounds a single pipeline run, from fetch to append
	RunTimeout = 15 * time.Minute

	// DialTimeout is the timeout for establishing the IMAP connection
	DialTimeout = 30 * time.Second

	// ShutdownTimeout is the grace period for the status server on exit
	ShutdownTimeout = 5 * time.Second

	// ReadHeaderTimeout protects the status server from slow clients
	ReadHeaderTimeout = 10 * time.Second
)

// Mail constants
const (
	// DefaultIMAPAddr is the IMAP server used when none is configured
	DefaultIMAPAddr = "imap.gmail.com:993"

	// DefaultMailbox is the mailbox searched for attachments
	DefaultMailbox = "INBOX"

	// DefaultScanDepth is how many matching messages are inspected, newest first
	DefaultScanDepth = 1

	// MaxAttachmentSize is the largest attachment accepted (25 MiB, the Gmail limit)
	MaxAttachmentSize = 25 * 1024 * 1024
)

// Column names the pipeline is keyed on after normalization
const (
	// ColumnPublicationID is the join key
	ColumnPublicationID = "publication_id"

	// ColumnBundleID is a reconciled value column
	ColumnBundleID = "bundle_id"

	// ColumnDomain is a reconciled value column
	ColumnDomain = "domain"

	// NaN is the placeholder the legacy null policy writes for missing values
	NaN = "nan"
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Path constants
const (
	// DefaultAttachmentDir is where fetched attachments are copied
	DefaultAttachmentDir = "tmp"

	// DefaultLogFile is the execution log written next to stdout
	DefaultLogFile = "logs/pipeline_execution.log"

	// DefaultConfigFile is the config file looked up in the home directory
	DefaultConfigFile = ".pubmap.yaml"
)

// Format constants
const (
	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"

	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"
)
