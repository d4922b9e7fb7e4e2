// Package mailbox implements the mail ingestor: it finds the newest report
// attachment sent by a given sender to an IMAP mailbox.
//
// Only messages from the configured sender are considered, newest first, up
// to a scan depth. The first .csv or .xlsx attachment wins. A copy of the file
// is kept in an attachment directory when one is configured.
package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"slices"

	"github.com/agentstation/pubmap/internal/attachment"
	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/sources"
)

// Config holds the mailbox connection settings.
type Config struct {
	Addr          string // host:port of the IMAPS server
	Username      string
	Password      string
	Mailbox       string
	Sender        string // only messages from this address are read
	ScanDepth     int    // messages inspected, newest first
	AttachmentDir string // where fetched files are copied; empty disables
	TLSConfig     *tls.Config
}

// Validate checks required settings.
func (c *Config) Validate() error {
	switch {
	case c.Username == "":
		return errors.NewConfigError("mailbox", "GMAIL_USER is required", nil)
	case c.Password == "":
		return errors.NewConfigError("mailbox", "GMAIL_APP_PASSWORD is required", nil)
	case c.Sender == "":
		return errors.NewConfigError("mailbox", "SENDER_EMAIL is required", nil)
	case c.ScanDepth < 0:
		return errors.NewConfigError("mailbox", "scan depth cannot be negative", nil)
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Addr == "" {
		out.Addr = constants.DefaultIMAPAddr
	}
	if out.Mailbox == "" {
		out.Mailbox = constants.DefaultMailbox
	}
	if out.ScanDepth == 0 {
		out.ScanDepth = constants.DefaultScanDepth
	}
	return out
}

// Source reads datasets from a mailbox.
type Source struct {
	cfg  Config
	dial dialFunc
}

var _ sources.Source = (*Source)(nil)

// New creates a mailbox source.
func New(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg.withDefaults(), dial: dialIMAP}, nil
}

// ID returns the kind of this source.
func (s *Source) ID() sources.ID {
	return sources.MailboxID
}

// Fetch connects, finds the newest report attachment and parses it.
// It returns sources.ErrNoDataset when no message from the sender carries one.
func (s *Source) Fetch(ctx context.Context) (*sources.Dataset, error) {
	logger := logging.FromContext(ctx).With().Str("mailbox", s.cfg.Mailbox).Logger()

	sess, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug().Err(err).Msg("IMAP logout failed")
		}
	}()

	seqs, err := sess.Search(ctx, s.cfg.Sender)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		logger.Info().Str("sender", s.cfg.Sender).Msg("No messages from sender")
		return nil, sources.ErrNoDataset
	}

	slices.Sort(seqs)
	slices.Reverse(seqs)
	if len(seqs) > s.cfg.ScanDepth {
		seqs = seqs[:s.cfg.ScanDepth]
	}

	for _, seq := range seqs {
		body, err := sess.Fetch(ctx, seq)
		if err != nil {
			return nil, err
		}
		f, err := firstAttachment(body)
		if err != nil {
			return nil, err
		}
		if f == nil {
			logger.Debug().Uint32("seq", seq).Msg("Message has no report attachment")
			continue
		}

		logger.Info().
			Str("filename", f.Filename).
			Str("message_id", f.MessageID).
			Int("bytes", len(f.Data)).
			Msg("Found report attachment")
		return s.dataset(f)
	}

	logger.Info().Str("sender", s.cfg.Sender).Int("scanned", len(seqs)).Msg("No report attachment found")
	return nil, sources.ErrNoDataset
}

func (s *Source) dataset(f *found) (*sources.Dataset, error) {
	tbl, err := attachment.Parse(f.Filename, bytes.NewReader(f.Data))
	if err != nil {
		return nil, err
	}

	ds := &sources.Dataset{
		ID:         f.datasetID(),
		Name:       safeName(f.Filename),
		ReceivedAt: f.Date,
		Table:      tbl,
	}

	if s.cfg.AttachmentDir != "" {
		path := filepath.Join(s.cfg.AttachmentDir, safeName(f.Filename))
		if err := os.MkdirAll(s.cfg.AttachmentDir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", s.cfg.AttachmentDir, err)
		}
		if err := os.WriteFile(path, f.Data, constants.FilePermissions); err != nil {
			return nil, errors.WrapIO("write", path, err)
		}
		ds.Path = path
	}
	return ds, nil
}

// Cleanup releases any resources. Sessions are closed after every Fetch.
func (s *Source) Cleanup() error {
	return nil
}
