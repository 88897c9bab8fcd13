package preparer

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// RawPreparer renders the message as a single-part HTML MIME document.
type RawPreparer struct {
	source string
	now    func() time.Time
}

func NewRawPreparer(source string) *RawPreparer {
	return &RawPreparer{source: source, now: time.Now}
}

func (p *RawPreparer) Prepare(_ context.Context, msg *Message) error {
	from, err := mail.ParseAddress(strings.TrimSpace(p.source))
	if err != nil {
		return fmt.Errorf("source email: %w", err)
	}
	to, err := mail.ParseAddress(strings.TrimSpace(msg.Recipient))
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}

	headers := [][2]string{
		{"From", from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", p.now().UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"Content-Transfer-Encoding", "8bit"},
	}

	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Content)

	msg.Raw = []byte(b.String())
	return nil
}
