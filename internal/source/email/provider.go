package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// Provider implements source.Provider for IMAP mailboxes, sending through
// SMTP. IMAP flags are surfaced as Gmail-style label ids so the rest of
// the pipeline treats both providers alike.
type Provider struct {
	imapClient *IMAPClient
	smtpConfig SMTPConfig
	mailbox    string
}

// SMTPConfig addresses the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// NewProvider creates an IMAP/SMTP provider.
func NewProvider(cfg model.IMAPConfig, password string) *Provider {
	smtpHost := cfg.SMTPHost
	if smtpHost == "" {
		smtpHost = cfg.Host
	}
	return &Provider{
		imapClient: NewIMAPClient(cfg.Host, cfg.Port, cfg.Username, password, cfg.TLS, cfg.Mailbox),
		smtpConfig: SMTPConfig{
			Host:     smtpHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS && cfg.SMTPPort == "465",
		},
		mailbox: cfg.Mailbox,
	}
}

// Type returns model.ProviderIMAP.
func (p *Provider) Type() model.ProviderType {
	return model.ProviderIMAP
}

// ListMessageIDs returns the UIDs of the max newest messages as strings.
func (p *Provider) ListMessageIDs(ctx context.Context, max int) ([]string, error) {
	uids, err := p.imapClient.RecentUIDs(ctx, max)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

// GetMessage fetches and parses the message with the given UID.
func (p *Provider) GetMessage(ctx context.Context, id string) (*source.RawMessage, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	env, raw, err := p.imapClient.FetchMessage(ctx, uid)
	if err != nil {
		return nil, err
	}

	headers, payload, err := parseRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("message UID %s: %w", id, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("message UID %s: %w: no headers", id, source.ErrMalformed)
	}

	threadID := env.MessageID
	if threadID == "" {
		threadID = id
	}

	return &source.RawMessage{
		ID:       id,
		ThreadID: threadID,
		LabelIDs: labelIDs(p.mailbox, env.Flags),
		Headers:  headers,
		Snippet:  snippetFrom(payload),
		Payload:  payload,
	}, nil
}

// Send composes msg and delivers it over SMTP. A ThreadID holding a
// Message-Id threads the message as a reply. The returned id is the
// generated Message-Id.
func (p *Provider) Send(_ context.Context, msg source.Outgoing) (string, error) {
	inReplyTo := ""
	if strings.Contains(msg.ThreadID, "@") {
		inReplyTo = strings.Trim(msg.ThreadID, "<>")
	}

	raw, msgID, err := source.Compose(p.smtpConfig.Username, msg, inReplyTo)
	if err != nil {
		return "", err
	}

	if err := sendSMTP(p.smtpConfig, msg.To, raw); err != nil {
		return "", err
	}
	return msgID, nil
}

// labelIDs translates IMAP flags into provider label ids.
func labelIDs(mailbox string, flags []string) []string {
	var ids []string
	if mailbox == "" || strings.EqualFold(mailbox, "INBOX") {
		ids = append(ids, "INBOX")
	}

	seen, flagged, draft := false, false, false
	for _, f := range flags {
		switch imap.Flag(f) {
		case imap.FlagSeen:
			seen = true
		case imap.FlagFlagged:
			flagged = true
		case imap.FlagDraft:
			draft = true
		}
	}
	if !seen {
		ids = append(ids, "UNREAD")
	}
	if flagged {
		ids = append(ids, "STARRED")
	}
	if draft {
		ids = append(ids, "DRAFT")
	}
	return ids
}

// parseUID converts a message id back into an IMAP UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, source.ErrNotFound)
	}
	return imap.UID(uid), nil
}

// sendSMTP delivers raw to the recipients in to.
func sendSMTP(cfg SMTPConfig, to string, raw []byte) error {
	addr := cfg.Host + ":" + cfg.Port

	var client *smtp.Client
	if cfg.TLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
		if err != nil {
			return fmt.Errorf("TLS dial to %s: %w: %v", addr, source.ErrTransient, err)
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("creating SMTP client: %w", err)
		}
	} else {
		conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
		if err != nil {
			return fmt.Errorf("dial to %s: %w: %v", addr, source.ErrTransient, err)
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("creating SMTP client: %w", err)
		}
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			client.Close()
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &source.AuthError{Provider: model.ProviderIMAP, Message: fmt.Sprintf("SMTP auth: %v", err)}
	}

	if err := client.Mail(cfg.Username); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients(to) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return client.Quit()
}

// recipients extracts bare addresses from a To value.
func recipients(to string) []string {
	var out []string
	for _, part := range strings.Split(to, ",") {
		part = strings.TrimSpace(part)
		if i := strings.LastIndex(part, "<"); i >= 0 {
			part = strings.TrimSuffix(part[i+1:], ">")
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
