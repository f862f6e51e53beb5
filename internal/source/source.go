package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/model"
)

// AuthError indicates that the provider rejected the client's credentials.
// It is returned when a 401/403 response or a failed login is observed.
type AuthError struct {
	Provider model.ProviderType
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

var (
	// ErrNotFound is returned when a message id no longer exists remotely.
	ErrNotFound = errors.New("message not found")

	// ErrMalformed is returned when a message lacks its payload or headers.
	ErrMalformed = errors.New("malformed message")

	// ErrTransient marks rate limiting, server errors, and network
	// failures. Callers treat it as "try again next cycle".
	ErrTransient = errors.New("transient provider error")
)

// Header is a single message header as returned by the provider.
type Header struct {
	Name  string
	Value string
}

// RawMessage is a message as retrieved from the provider, before it is
// assembled into a model.Message.
type RawMessage struct {
	ID       string
	ThreadID string

	// LabelIDs are provider-native label ids (e.g. INBOX, UNREAD).
	LabelIDs []string

	Headers []Header
	Snippet string

	// Payload is the message body tree.
	Payload body.Part
}

// Header returns the value of the first header named name
// (case-insensitive), or "" when absent.
func (m *RawMessage) Header(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Outgoing is a message to send.
type Outgoing struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// Provider is the contract every remote mailbox backend implements. The
// provider is constructed with an already-authorized client.
type Provider interface {
	// Type returns the provider identifier.
	Type() model.ProviderType

	// ListMessageIDs returns up to max message ids, most recent first.
	ListMessageIDs(ctx context.Context, max int) ([]string, error)

	// GetMessage retrieves the full message for id.
	GetMessage(ctx context.Context, id string) (*RawMessage, error)

	// Send delivers msg and returns the provider id of the sent message.
	Send(ctx context.Context, msg Outgoing) (string, error)
}
