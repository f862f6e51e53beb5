package email

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// Envelope is the envelope data fetched alongside a message body.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Flags     []string
	UID       uint32
}

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
// Each operation opens its own connection so concurrent fetches do not
// share protocol state.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(host, port, username, password string, tls bool, mailbox string) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// Connect dials the server, authenticates, and selects the mailbox. The
// caller must Logout the returned client.
func (c *IMAPClient) Connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w: %v", addr, source.ErrTransient, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			Provider: model.ProviderIMAP,
			Message:  fmt.Sprintf("authentication failed for %s: %v", c.username, err),
		}
	}

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	return client, nil
}

// RecentUIDs returns up to limit UIDs of the mailbox, newest first.
func (c *IMAPClient) RecentUIDs(ctx context.Context, limit int) ([]imap.UID, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w: %v", source.ErrTransient, err)
	}

	uids := searchData.AllUIDs()
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	slices.Reverse(uids)
	return uids, nil
}

// FetchMessage fetches the envelope, flags and full raw body for uid.
func (c *IMAPClient) FetchMessage(ctx context.Context, uid imap.UID) (Envelope, []byte, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return Envelope{}, nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return Envelope{}, nil, fmt.Errorf("message UID %d: %w", uid, source.ErrNotFound)
	}

	buf, err := msg.Collect()
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return Envelope{}, nil, fmt.Errorf("message UID %d: %w: empty body section", uid, source.ErrMalformed)
	}

	if err := fetchCmd.Close(); err != nil {
		return Envelope{}, nil, fmt.Errorf("closing fetch: %w", err)
	}
	return envelopeFromBuffer(buf), raw, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{UID: uint32(buf.UID)}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name
			} else {
				env.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}
	return env
}
