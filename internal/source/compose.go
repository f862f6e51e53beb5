package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// ErrInvalidOutgoing is returned when a message to send is missing a
// recipient, subject, or body, or has an unparsable recipient.
var ErrInvalidOutgoing = errors.New("invalid outgoing message")

// Validate checks the required fields of an outgoing message.
func (o Outgoing) Validate() error {
	if strings.TrimSpace(o.To) == "" || strings.TrimSpace(o.Subject) == "" || o.Body == "" {
		return fmt.Errorf("%w: to, subject and body are required", ErrInvalidOutgoing)
	}
	return nil
}

// Compose renders msg as an RFC 5322 message with an HTML body and returns
// it with its generated Message-Id. from may be empty when the provider
// fills it in. When inReplyTo is set the message is threaded to it with
// In-Reply-To and References.
func Compose(from string, msg Outgoing, inReplyTo string) ([]byte, string, error) {
	if err := msg.Validate(); err != nil {
		return nil, "", err
	}

	to, err := mail.ParseAddressList(msg.To)
	if err != nil {
		return nil, "", fmt.Errorf("%w: recipient %q: %v", ErrInvalidOutgoing, msg.To, err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("To", to)
	if from != "" {
		fromAddrs, err := mail.ParseAddressList(from)
		if err != nil {
			return nil, "", fmt.Errorf("%w: sender %q: %v", ErrInvalidOutgoing, from, err)
		}
		h.SetAddressList("From", fromAddrs)
	}
	if inReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{inReplyTo})
		h.SetMsgIDList("References", []string{inReplyTo})
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generating message id: %w", err)
	}
	msgID, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("reading message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, "", fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), msgID, nil
}
