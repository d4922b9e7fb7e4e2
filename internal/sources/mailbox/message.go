package mailbox

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // decode non-UTF-8 headers and file names
	"github.com/emersion/go-message/mail"

	"github.com/agentstation/pubmap/internal/attachment"
	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
)

// found is the first report attachment of a message.
type found struct {
	MessageID string
	Date      time.Time
	Filename  string
	Data      []byte
}

// datasetID identifies the attachment across polls. The message ID keeps a
// daily report that reuses its file name distinct from yesterday's.
func (f *found) datasetID() string {
	if f.MessageID == "" {
		return f.Filename
	}
	return f.MessageID + "/" + f.Filename
}

// firstAttachment walks a MIME message and returns its first part whose file
// name ends in a supported extension, or nil if there is none.
func firstAttachment(r io.Reader) (*found, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && mr == nil {
		return nil, errors.NewParseError("mime", "", "cannot read message", err)
	}
	defer mr.Close()

	f := &found{}
	f.MessageID, _ = mr.Header.MessageID()
	f.Date, _ = mr.Header.Date()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			return nil, errors.NewParseError("mime", "", "cannot read message part", err)
		}

		name := partFilename(p.Header)
		if !attachment.Supported(name) {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(p.Body, constants.MaxAttachmentSize+1))
		if err != nil {
			return nil, errors.NewParseError("mime", name, "cannot read attachment", err)
		}
		if len(data) > constants.MaxAttachmentSize {
			return nil, errors.NewParseError("mime", name,
				fmt.Sprintf("attachment exceeds %d bytes", constants.MaxAttachmentSize), nil)
		}
		f.Filename = name
		f.Data = data
		return f, nil
	}
}

// partFilename returns the declared file name of a part. Some mailers send
// reports with an inline disposition, so inline parts are checked too.
func partFilename(h mail.PartHeader) string {
	switch h := h.(type) {
	case *mail.AttachmentHeader:
		name, _ := h.Filename()
		return name
	case *mail.InlineHeader:
		if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
			return params["filename"]
		}
		if _, params, err := h.ContentType(); err == nil {
			return params["name"]
		}
	}
	return ""
}

// safeName reduces an attachment name to a plain file name.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return "attachment" + strings.ToLower(filepath.Ext(name))
	}
	return base
}
