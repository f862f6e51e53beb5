// Package sync reconciles the remote mailbox with the local record store
// and runs the background cycle.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailsync/internal/classify"
	"github.com/nhle/mailsync/internal/enrich"
	"github.com/nhle/mailsync/internal/fetch"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
	"github.com/nhle/mailsync/internal/store"
)

var (
	// ErrInvalidReply is returned by SaveReply for empty reply text.
	ErrInvalidReply = errors.New("invalid reply")

	// ErrInvalidMessage is returned by Send for a message missing its
	// recipient, subject or body.
	ErrInvalidMessage = source.ErrInvalidOutgoing
)

// Labels and authors of locally created records.
const (
	SentLabel   = "sent"
	SentSender  = "Me"
	ReplyAuthor = "You"
)

// WindowFetcher fetches the current window of messages.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, rules model.RuleSet) fetch.Batch
}

// Result is the outcome of one sync cycle. Records is always the best
// known store contents: the merged store on success, the last persisted
// one otherwise.
type Result struct {
	Records  []model.Message
	NewIDs   []string
	Fetched  int
	Failed   int
	LastSync *time.Time

	// Err explains why the cycle fell back to the prior records. It is
	// informational; Sync never fails.
	Err error
}

// Options configures a Service.
type Options struct {
	Store    *store.Store
	Fetcher  WindowFetcher
	Provider source.Provider
	Trigger  enrich.Trigger

	RulesPath    string
	SettingsPath string

	Logger *slog.Logger
	Now    func() time.Time
}

// Service owns the sync pipeline and every edit of the record store.
type Service struct {
	store    *store.Store
	fetcher  WindowFetcher
	provider source.Provider
	trigger  enrich.Trigger

	rulesPath    string
	settingsPath string

	logger *slog.Logger
	now    func() time.Time

	// cycleMu makes sync cycles single-flight.
	cycleMu gosync.Mutex

	// rulesMu guards the rules document and rules.
	rulesMu gosync.Mutex
	rules   *model.RuleSet

	mu       gosync.Mutex
	lastGood store.Snapshot
}

// New creates a Service. Store and Fetcher are required.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:        opts.Store,
		fetcher:      opts.Fetcher,
		provider:     opts.Provider,
		trigger:      opts.Trigger,
		rulesPath:    opts.RulesPath,
		settingsPath: opts.SettingsPath,
		logger:       opts.Logger,
		now:          opts.Now,
		lastGood:     store.Snapshot{Emails: []model.Message{}},
	}
}

// Sync runs one cycle: fetch the window, merge it into the store, persist,
// and start enrichment when new records arrived and summarization is on.
// Failures are logged and the last persisted records are returned.
func (s *Service) Sync(ctx context.Context) Result {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now()

	rules, err := s.Rules()
	if err != nil {
		s.logger.Error("loading rules", "error", err)
		return s.fallback(ctx, err)
	}

	settings, err := model.LoadSettings(s.settingsPath)
	if err != nil {
		s.logger.Warn("loading settings, using defaults", "error", err)
	}

	batch := s.fetcher.FetchWindow(ctx, rules)
	if batch.Err != nil {
		return s.fallback(ctx, fmt.Errorf("fetching window: %w", batch.Err))
	}
	if len(batch.Messages) == 0 {
		s.logger.Info("sync fetched nothing", "listed", batch.Listed, "failed", batch.Failed)
		res := s.fallback(ctx, nil)
		res.Failed = batch.Failed
		return res
	}

	var newIDs []string
	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		merged, ids := store.Merge(*snap, batch.Messages, s.now())
		*snap = merged
		newIDs = ids
		return nil
	})
	if err != nil {
		s.logger.Error("persisting merged store", "error", err)
		res := s.fallback(ctx, fmt.Errorf("persisting store: %w", err))
		res.Fetched = len(batch.Messages)
		res.Failed = batch.Failed
		return res
	}
	s.remember(snap)

	s.logger.Info("sync complete",
		"fetched", len(batch.Messages),
		"failed", batch.Failed,
		"new", len(newIDs),
		"records", len(snap.Emails),
		"elapsed", s.now().Sub(start).Round(time.Millisecond))

	if len(newIDs) > 0 && settings.EmailSummarization {
		s.Enrich(ctx)
	}

	return Result{
		Records:  snap.Emails,
		NewIDs:   newIDs,
		Fetched:  len(batch.Messages),
		Failed:   batch.Failed,
		LastSync: snap.LastSync,
	}
}

// fallback returns the last persisted records, or the in-memory copy of
// the last good snapshot when the store cannot be read.
func (s *Service) fallback(ctx context.Context, cause error) Result {
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("reading store, serving last known records", "error", err)
		snap = s.lastKnown()
		if cause == nil {
			cause = err
		}
	} else {
		s.remember(snap)
	}
	return Result{Records: snap.Emails, LastSync: snap.LastSync, Err: cause}
}

func (s *Service) remember(snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGood = snap.Clone()
}

func (s *Service) lastKnown() store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood.Clone()
}

// Enrich fires the enrichment trigger. It never waits for the run and
// never fails; a busy or failed start is logged.
func (s *Service) Enrich(ctx context.Context) {
	if s.trigger == nil {
		return
	}
	runID, err := s.trigger.Trigger(ctx)
	switch {
	case errors.Is(err, enrich.ErrBusy):
		s.logger.Info("enrichment already running, skipping trigger")
	case err != nil:
		s.logger.Warn("starting enrichment", "error", err)
	default:
		s.logger.Debug("enrichment triggered", "run_id", runID)
	}
}

// StartupEnrichment triggers enrichment when the store already holds
// records and summarization is enabled. It reports whether it fired.
func (s *Service) StartupEnrichment(ctx context.Context) bool {
	settings, err := model.LoadSettings(s.settingsPath)
	if err != nil {
		s.logger.Warn("loading settings, using defaults", "error", err)
	}
	if !settings.EmailSummarization {
		return false
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("reading store for startup enrichment", "error", err)
		return false
	}
	if len(snap.Emails) == 0 {
		return false
	}
	s.Enrich(ctx)
	return true
}

// Records returns the persisted records, falling back to the last known
// snapshot when the store cannot be read.
func (s *Service) Records(ctx context.Context) (store.Snapshot, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return s.lastKnown(), fmt.Errorf("reading store: %w", err)
	}
	s.remember(snap)
	return snap, nil
}

// Rules returns the current rule set, loading it on first use.
func (s *Service) Rules() (model.RuleSet, error) {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	return s.loadRulesLocked()
}

func (s *Service) loadRulesLocked() (model.RuleSet, error) {
	if s.rules != nil {
		return s.rules.Clone(), nil
	}
	rs, err := LoadRules(s.rulesPath)
	if err != nil {
		return model.RuleSet{}, err
	}
	s.rules = &rs
	return rs.Clone(), nil
}

// AddRule merges rule into the rule set, saves it, and re-categorizes
// every stored record. An invalid rule is rejected with
// model.ErrInvalidRule and nothing changes.
func (s *Service) AddRule(ctx context.Context, rule model.CategoryRule) (model.RuleSet, error) {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()

	current, err := s.loadRulesLocked()
	if err != nil {
		return model.RuleSet{}, err
	}
	next, err := current.Merge(rule)
	if err != nil {
		return current, err
	}
	if err := SaveRules(s.rulesPath, next); err != nil {
		return current, err
	}
	s.rules = &next

	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		classify.Recategorize(snap.Emails, next)
		return nil
	})
	if err != nil {
		return next, fmt.Errorf("re-categorizing records: %w", err)
	}
	s.remember(snap)

	s.logger.Info("rule saved", "category", rule.Category, "records", len(snap.Emails))
	return next.Clone(), nil
}

// DeleteRule removes category from the rule set and strips its label from
// every stored record. Deleting an unknown category still strips the label.
func (s *Service) DeleteRule(ctx context.Context, category string) (model.RuleSet, error) {
	label := strings.ToLower(strings.TrimSpace(category))
	if label == "" {
		return model.RuleSet{}, fmt.Errorf("%w: category is required", model.ErrInvalidRule)
	}

	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()

	current, err := s.loadRulesLocked()
	if err != nil {
		return model.RuleSet{}, err
	}
	next := current.Delete(category)
	if err := SaveRules(s.rulesPath, next); err != nil {
		return current, err
	}
	s.rules = &next

	var changed int
	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		changed = classify.RemoveLabel(snap.Emails, label)
		return nil
	})
	if err != nil {
		return next, fmt.Errorf("removing label %q: %w", label, err)
	}
	s.remember(snap)

	s.logger.Info("rule deleted", "category", label, "records_changed", changed)
	return next.Clone(), nil
}

// ReloadRules re-reads the rules document after an outside edit. Labels
// of categories that disappeared are stripped, then every record is
// re-categorized against the new rules.
func (s *Service) ReloadRules(ctx context.Context) (model.RuleSet, error) {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()

	next, err := LoadRules(s.rulesPath)
	if err != nil {
		return model.RuleSet{}, err
	}

	var removed []string
	if s.rules != nil {
		keep := next.Labels()
		for l := range s.rules.Labels() {
			if !keep[l] {
				removed = append(removed, l)
			}
		}
	}
	s.rules = &next

	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		for _, l := range removed {
			classify.RemoveLabel(snap.Emails, l)
		}
		classify.Recategorize(snap.Emails, next)
		return nil
	})
	if err != nil {
		return next, fmt.Errorf("re-categorizing records: %w", err)
	}
	s.remember(snap)

	s.logger.Info("rules reloaded", "rules", len(next.Rules), "removed", removed)
	return next.Clone(), nil
}

// SaveReply appends a reply to the record with id.
func (s *Service) SaveReply(ctx context.Context, id, text, tone string) (model.Reply, error) {
	if strings.TrimSpace(text) == "" {
		return model.Reply{}, fmt.Errorf("%w: text is required", ErrInvalidReply)
	}
	if strings.TrimSpace(tone) == "" {
		tone = model.DefaultTone
	}
	reply := model.Reply{
		From:      ReplyAuthor,
		Timestamp: s.now().Format(model.ReplyTimeLayout),
		Text:      text,
		Tone:      tone,
	}

	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := snap.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		snap.Emails[i].Replies = append(snap.Emails[i].Replies, reply)
		return nil
	})
	if err != nil {
		return model.Reply{}, err
	}
	s.remember(snap)
	return reply, nil
}

// Acknowledge clears the new flag of the record with id.
func (s *Service) Acknowledge(ctx context.Context, id string) error {
	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := snap.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		snap.Emails[i].IsNew = false
		return nil
	})
	if err != nil {
		return err
	}
	s.remember(snap)
	return nil
}

// Send delivers msg through the provider and records it at the head of
// the store, labelled sent.
func (s *Service) Send(ctx context.Context, msg source.Outgoing) (model.Message, error) {
	if err := msg.Validate(); err != nil {
		return model.Message{}, err
	}
	if s.provider == nil {
		return model.Message{}, errors.New("no provider configured for sending")
	}

	id, err := s.provider.Send(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("sending message: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	// A new conversation is its own thread.
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = id
	}

	now := s.now()
	rec := model.Message{
		ID:         id,
		ThreadID:   threadID,
		Sender:     SentSender,
		Subject:    msg.Subject,
		Preview:    model.Preview(msg.Body),
		ReceivedAt: model.FormatDisplayDate(now),
		Labels:     []string{SentLabel},
		Body:       msg.Body,
		Snippet:    model.Truncate(msg.Body, model.PreviewLength),
		Replies:    []model.Reply{},
	}

	snap, err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		if i := snap.Find(id); i >= 0 {
			snap.Emails = append(snap.Emails[:i], snap.Emails[i+1:]...)
		}
		snap.Emails = append([]model.Message{rec}, snap.Emails...)
		return nil
	})
	if err != nil {
		// The message is already out; only the local copy is missing.
		s.logger.Error("recording sent message", "id", id, "error", err)
		return rec, fmt.Errorf("recording sent message: %w", err)
	}
	s.remember(snap)

	s.logger.Info("message sent", "id", id, "to", msg.To)
	return rec, nil
}
