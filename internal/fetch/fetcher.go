// Package fetch retrieves a window of messages from a provider and
// assembles them into records.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/classify"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// Defaults applied when Config fields are zero.
const (
	DefaultWindow      = 50
	DefaultConcurrency = 10
	DefaultTimeout     = 30 * time.Second
)

// Config bounds a fetch.
type Config struct {
	// Window is the number of most recent message ids listed per cycle.
	Window int

	// Concurrency caps simultaneous message retrievals.
	Concurrency int

	// Timeout bounds each single message retrieval.
	Timeout time.Duration
}

// Batch is the outcome of a fetch. Messages holds only successfully
// assembled records in id order.
type Batch struct {
	Messages []model.Message

	// Listed is the number of ids requested.
	Listed int

	// Failed counts dropped messages.
	Failed int

	// Err is set when listing failed; Messages is then empty.
	Err error
}

// Fetcher fans out message retrievals against a provider.
type Fetcher struct {
	provider source.Provider
	limiter  Limiter
	cfg      Config
	logger   *slog.Logger
}

// New creates a Fetcher. limiter may be nil.
func New(provider source.Provider, cfg Config, limiter Limiter, logger *slog.Logger) *Fetcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{provider: provider, limiter: limiter, cfg: cfg, logger: logger}
}

// FetchWindow lists the most recent Window ids and fetches them. A listing
// failure is logged and yields an empty batch with Err set.
func (f *Fetcher) FetchWindow(ctx context.Context, rules model.RuleSet) Batch {
	ids, err := f.provider.ListMessageIDs(ctx, f.cfg.Window)
	if err != nil {
		switch {
		case source.IsAuthError(err):
			f.logger.Error("listing messages: provider rejected credentials", "provider", f.provider.Type(), "error", err)
		case errors.Is(err, source.ErrTransient), errors.Is(err, context.DeadlineExceeded):
			f.logger.Warn("listing messages: provider unreachable", "provider", f.provider.Type(), "error", err)
		default:
			f.logger.Error("listing messages failed", "provider", f.provider.Type(), "error", err)
		}
		return Batch{Err: err}
	}
	if len(ids) > f.cfg.Window {
		ids = ids[:f.cfg.Window]
	}
	return f.Fetch(ctx, ids, rules)
}

// Fetch retrieves ids concurrently. A failing id is logged and dropped;
// it never aborts its siblings.
func (f *Fetcher) Fetch(ctx context.Context, ids []string, rules model.RuleSet) Batch {
	type result struct {
		msg model.Message
		ok  bool
	}

	results := make([]result, len(ids))
	sem := make(chan struct{}, f.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				f.logger.Warn("message fetch skipped", "id", id, "error", ctx.Err())
				return
			}
			defer func() { <-sem }()

			raw, err := f.get(ctx, id)
			if err != nil {
				f.logger.Warn("message fetch failed", "id", id, "error", err)
				return
			}
			results[i] = result{msg: Assemble(raw, rules), ok: true}
		}(i, id)
	}
	wg.Wait()

	batch := Batch{Listed: len(ids), Messages: make([]model.Message, 0, len(ids))}
	for _, r := range results {
		if r.ok {
			batch.Messages = append(batch.Messages, r.msg)
		} else {
			batch.Failed++
		}
	}
	return batch
}

func (f *Fetcher) get(ctx context.Context, id string) (*source.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	raw, err := f.provider.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, source.ErrMalformed
	}
	return raw, nil
}

// Assemble builds a record from a provider message: headers fall back to
// "", the body comes from the payload tree, and labels are the mapped
// provider labels plus rule categories.
func Assemble(raw *source.RawMessage, rules model.RuleSet) model.Message {
	subject := raw.Header("Subject")
	text := body.Extract(raw.Payload)

	labels := model.UnionLabels(classify.MapLabels(raw.LabelIDs),
		classify.Categorize(subject, text, raw.Snippet, rules)...)
	if labels == nil {
		labels = []string{}
	}

	return model.Message{
		ID:         raw.ID,
		ThreadID:   raw.ThreadID,
		Sender:     raw.Header("From"),
		Subject:    subject,
		Preview:    model.Preview(raw.Snippet),
		ReceivedAt: displayDate(raw.Header("Date")),
		Unread:     classify.HasLabelID(raw.LabelIDs, classify.LabelUnread),
		Starred:    classify.HasLabelID(raw.LabelIDs, classify.LabelStarred),
		Labels:     labels,
		Body:       text,
		Snippet:    raw.Snippet,
		Replies:    []model.Reply{},
	}
}

func displayDate(header string) string {
	if header == "" {
		return ""
	}
	t, err := mail.ParseDate(header)
	if err != nil {
		return ""
	}
	return model.FormatDisplayDate(t.Local())
}
