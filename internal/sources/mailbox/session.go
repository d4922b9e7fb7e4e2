package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
)

const service = "imap"

// session is the slice of an IMAP conversation the source needs.
type session interface {
	// Search returns the sequence numbers of messages from sender, ascending.
	Search(ctx context.Context, sender string) ([]uint32, error)

	// Fetch returns the full RFC 822 body of a message.
	Fetch(ctx context.Context, seq uint32) (io.Reader, error)

	// Close logs out and closes the connection.
	Close() error
}

// dialFunc opens an authenticated session with the mailbox selected.
type dialFunc func(ctx context.Context, cfg Config) (session, error)

// imapSession is a session over a go-imap client.
type imapSession struct {
	c    *client.Client
	stop func() bool
}

// dialIMAP connects over TLS, logs in and selects the mailbox read-only.
// Canceling ctx terminates the connection.
func dialIMAP(ctx context.Context, cfg Config) (session, error) {
	dialer := &net.Dialer{Timeout: constants.DialTimeout}
	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	c, err := client.DialWithDialerTLS(dialer, cfg.Addr, tlsConfig)
	if err != nil {
		return nil, errors.WrapTransport(service, "dial", err)
	}
	s := &imapSession{c: c}
	s.stop = context.AfterFunc(ctx, func() { _ = c.Terminate() })

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = s.Close()
		return nil, errors.NewAuthenticationError(service, "login", "server rejected credentials for "+cfg.Username, err)
	}
	if _, err := c.Select(cfg.Mailbox, true); err != nil {
		_ = s.Close()
		return nil, errors.WrapTransport(service, "select "+cfg.Mailbox, err)
	}
	return s, nil
}

func (s *imapSession) Search(ctx context.Context, sender string) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", sender)
	seqs, err := s.c.Search(criteria)
	if err != nil {
		return nil, errors.WrapTransport(service, "search", err)
	}
	return seqs, nil
}

func (s *imapSession) Fetch(ctx context.Context, seq uint32) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	// Drain the channel fully so the fetch goroutine always finishes.
	var (
		body    []byte
		readErr error
	)
	for msg := range messages {
		lit := msg.GetBody(section)
		if lit == nil || readErr != nil {
			continue
		}
		body, readErr = io.ReadAll(io.LimitReader(lit, constants.MaxAttachmentSize*2))
	}
	if err := <-done; err != nil {
		return nil, errors.WrapTransport(service, "fetch", err)
	}
	if readErr != nil {
		return nil, errors.WrapTransport(service, "fetch", readErr)
	}
	if body == nil {
		return nil, errors.NewTransportError(service, "fetch", 0, errors.New("server returned no body for message"))
	}
	return bytes.NewReader(body), nil
}

func (s *imapSession) Close() error {
	if s.stop != nil {
		s.stop()
	}
	if err := s.c.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return errors.WrapTransport(service, "logout", err)
	}
	return nil
}
