package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// Provider implements source.Provider for Gmail. Every API call passes
// through a circuit breaker so a failing API is not hammered by the
// per-message fan-out.
type Provider struct {
	api    MessagesAPI
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// New creates a Gmail provider over an authorized messages API.
func New(api MessagesAPI, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{api: api, logger: logger}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// A missing or malformed message says nothing about API health.
			return err == nil || errors.Is(err, source.ErrNotFound) || errors.Is(err, source.ErrMalformed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// Type returns model.ProviderGmail.
func (p *Provider) Type() model.ProviderType {
	return model.ProviderGmail
}

// ListMessageIDs returns the ids of the max most recent messages.
func (p *Provider) ListMessageIDs(ctx context.Context, max int) ([]string, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		msgs, err := p.api.List(ctx, int64(max))
		if err != nil {
			return nil, wrapError(err, "listing messages")
		}
		return msgs, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}

	msgs := res.([]*gmailv1.Message)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// GetMessage retrieves one message in full format.
func (p *Provider) GetMessage(ctx context.Context, id string) (*source.RawMessage, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		msg, err := p.api.Get(ctx, id)
		if err != nil {
			return nil, wrapError(err, "getting message "+id)
		}
		return msg, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return convertMessage(res.(*gmailv1.Message))
}

// Send composes msg and sends it, threading it when ThreadID is set.
func (p *Provider) Send(ctx context.Context, msg source.Outgoing) (string, error) {
	raw, _, err := source.Compose("", msg, "")
	if err != nil {
		return "", err
	}

	req := &gmailv1.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: msg.ThreadID,
	}
	res, err := p.cb.Execute(func() (interface{}, error) {
		sent, err := p.api.Send(ctx, req)
		if err != nil {
			return nil, wrapError(err, "sending message")
		}
		return sent, nil
	})
	if err != nil {
		return "", breakerError(err)
	}

	sent := res.(*gmailv1.Message)
	if sent == nil || sent.Id == "" {
		return "", fmt.Errorf("sending message: %w: empty response", source.ErrMalformed)
	}
	return sent.Id, nil
}

// convertMessage maps an API message onto source.RawMessage. A message
// without a payload or headers is malformed.
func convertMessage(m *gmailv1.Message) (*source.RawMessage, error) {
	if m == nil || m.Payload == nil || len(m.Payload.Headers) == 0 {
		id := ""
		if m != nil {
			id = m.Id
		}
		return nil, fmt.Errorf("message %s: %w: missing payload headers", id, source.ErrMalformed)
	}

	raw := &source.RawMessage{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		LabelIDs: m.LabelIds,
		Snippet:  m.Snippet,
		Payload:  convertPart(m.Payload),
	}
	for _, h := range m.Payload.Headers {
		if h != nil {
			raw.Headers = append(raw.Headers, source.Header{Name: h.Name, Value: h.Value})
		}
	}
	return raw, nil
}

// convertPart builds the body tree. A part with children is a container
// regardless of its declared type.
func convertPart(p *gmailv1.MessagePart) body.Part {
	if p == nil {
		return body.Opaque()
	}
	if len(p.Parts) > 0 {
		children := make([]body.Part, 0, len(p.Parts))
		for _, child := range p.Parts {
			children = append(children, convertPart(child))
		}
		return body.Container(children...)
	}

	data := ""
	if p.Body != nil {
		data = p.Body.Data
	}
	switch body.KindForMIMEType(p.MimeType) {
	case body.KindText:
		return body.Text(data, body.EncodingBase64URL)
	case body.KindMarkup:
		return body.Markup(data, body.EncodingBase64URL)
	default:
		return body.Opaque()
	}
}
