package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/enrich"
	"github.com/nhle/mailsync/internal/fetch"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
	"github.com/nhle/mailsync/internal/store"
)

// mailbox is an in-memory source.Provider. msgs are newest first.
type mailbox struct {
	mu      gosync.Mutex
	msgs    []*source.RawMessage
	errs    map[string]error
	listErr error

	sent    []source.Outgoing
	sendID  string
	sendErr error
}

func (m *mailbox) Type() model.ProviderType { return model.ProviderGmail }

func (m *mailbox) ListMessageIDs(_ context.Context, max int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for _, msg := range m.msgs {
		if len(ids) == max {
			break
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

func (m *mailbox) GetMessage(_ context.Context, id string) (*source.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[id]; err != nil {
		return nil, err
	}
	for _, msg := range m.msgs {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, source.ErrNotFound
}

func (m *mailbox) Send(_ context.Context, msg source.Outgoing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, msg)
	return m.sendID, nil
}

func (m *mailbox) push(msgs ...*source.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(msgs, m.msgs...)
}

func (m *mailbox) setListErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func raw(id, subject, text string, labelIDs ...string) *source.RawMessage {
	return &source.RawMessage{
		ID:       id,
		ThreadID: "t-" + id,
		LabelIDs: labelIDs,
		Headers: []source.Header{
			{Name: "From", Value: "alice@example.com"},
			{Name: "Subject", Value: subject},
			{Name: "Date", Value: "Tue, 05 Mar 2024 12:00:00 +0000"},
		},
		Snippet: text,
		Payload: body.Container(body.Text(text, body.EncodingNone)),
	}
}

type fakeTrigger struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTrigger) Trigger(context.Context) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "run", nil
}

type syncBuffer struct {
	mu  gosync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// flakyBackend wraps a backend and fails on demand.
type flakyBackend struct {
	store.Backend
	failLoad atomic.Bool
	failSave atomic.Bool
}

func (b *flakyBackend) Load(ctx context.Context) (store.Snapshot, error) {
	if b.failLoad.Load() {
		return store.Snapshot{}, errors.New("disk on fire")
	}
	return b.Backend.Load(ctx)
}

func (b *flakyBackend) Save(ctx context.Context, snap store.Snapshot) error {
	if b.failSave.Load() {
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, snap)
}

var testNow = time.Date(2024, 3, 5, 15, 4, 5, 0, time.UTC)

type harness struct {
	svc     *Service
	store   *store.Store
	backend *flakyBackend
	mailbox *mailbox
	trigger *fakeTrigger
	logs    *syncBuffer
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	backend := &flakyBackend{Backend: store.NewJSONFile(filepath.Join(dir, "database.json"))}
	st := store.New(backend)
	mb := &mailbox{errs: map[string]error{}}
	trig := &fakeTrigger{}

	svc := New(Options{
		Store:        st,
		Fetcher:      fetch.New(mb, fetch.Config{Window: 50, Concurrency: 4, Timeout: time.Second}, nil, logger),
		Provider:     mb,
		Trigger:      trig,
		RulesPath:    filepath.Join(dir, "template.json"),
		SettingsPath: filepath.Join(dir, "AI_settings.json"),
		Logger:       logger,
		Now:          func() time.Time { return testNow },
	})

	return &harness{svc: svc, store: st, backend: backend, mailbox: mb, trigger: trig, logs: logs, dir: dir}
}

func recordIDs(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func byID(msgs []model.Message, id string) model.Message {
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return model.Message{}
}

func TestSyncMergesAndTriggersEnrichment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "first"), raw("B", "hi", "second"))

	res := h.svc.Sync(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"A", "B"}, recordIDs(res.Records))
	assert.ElementsMatch(t, []string{"A", "B"}, res.NewIDs)
	require.NotNil(t, res.LastSync)
	assert.True(t, res.LastSync.Equal(testNow))
	assert.EqualValues(t, 1, h.trigger.calls.Load())

	res = h.svc.Sync(ctx)
	assert.Empty(t, res.NewIDs)
	assert.EqualValues(t, 1, h.trigger.calls.Load(), "no new records, no enrichment")

	h.mailbox.push(raw("C", "news", "third"))
	res = h.svc.Sync(ctx)
	assert.Equal(t, []string{"C", "A", "B"}, recordIDs(res.Records))
	assert.Equal(t, []string{"C"}, res.NewIDs)
	assert.True(t, res.Records[0].IsNew)
	assert.False(t, res.Records[1].IsNew)
	assert.EqualValues(t, 2, h.trigger.calls.Load())
}

func TestSyncPreservesRecordsOutsideWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "old", "x"))
	h.svc.Sync(ctx)

	// A drops out of the mailbox listing.
	h.mailbox.mu.Lock()
	h.mailbox.msgs = []*source.RawMessage{raw("B", "new", "y")}
	h.mailbox.mu.Unlock()

	res := h.svc.Sync(ctx)
	assert.Equal(t, []string{"B", "A"}, recordIDs(res.Records))
}

func TestSyncEnrichmentDisabled(t *testing.T) {
	h := newHarness(t)
	settings := model.DefaultSettings()
	settings.EmailSummarization = false
	require.NoError(t, model.SaveSettings(filepath.Join(h.dir, "AI_settings.json"), settings))

	h.mailbox.push(raw("A", "hello", "x"))
	res := h.svc.Sync(context.Background())

	assert.Len(t, res.NewIDs, 1)
	assert.Zero(t, h.trigger.calls.Load())
}

func TestSyncEnrichmentFailureIsNotPropagated(t *testing.T) {
	h := newHarness(t)
	h.trigger.err = enrich.ErrBusy
	h.mailbox.push(raw("A", "hello", "x"))

	res := h.svc.Sync(context.Background())
	assert.NoError(t, res.Err)
	assert.Len(t, res.Records, 1)
}

func TestSyncPartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	h.mailbox.push(raw("1", "a", "a"), raw("2", "b", "b"), raw("3", "c", "c"), raw("4", "d", "d"))
	h.mailbox.errs["3"] = fmt.Errorf("%w: payload missing", source.ErrMalformed)

	res := h.svc.Sync(context.Background())

	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"1", "2", "4"}, recordIDs(res.Records))
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, strings.Count(h.logs.String(), "message fetch failed"))
}

func TestSyncListingFailureReturnsPriorStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "x"))
	first := h.svc.Sync(ctx)
	require.NoError(t, first.Err)

	h.mailbox.setListErr(fmt.Errorf("%w: connection reset", source.ErrTransient))
	res := h.svc.Sync(ctx)

	assert.ErrorIs(t, res.Err, source.ErrTransient)
	assert.Equal(t, first.Records, res.Records)
	assert.Equal(t, first.LastSync, res.LastSync)
	assert.EqualValues(t, 1, h.trigger.calls.Load())
}

func TestSyncEmptyFetchLeavesLastSync(t *testing.T) {
	h := newHarness(t)

	res := h.svc.Sync(context.Background())

	assert.NoError(t, res.Err)
	assert.Empty(t, res.Records)
	assert.Nil(t, res.LastSync)
	_, err := os.Stat(filepath.Join(h.dir, "database.json"))
	assert.True(t, os.IsNotExist(err), "nothing fetched, nothing written")
}

func TestSyncPersistenceFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "x"))
	first := h.svc.Sync(ctx)

	h.mailbox.push(raw("B", "next", "y"))
	h.backend.failSave.Store(true)
	res := h.svc.Sync(ctx)

	assert.Error(t, res.Err)
	assert.Equal(t, first.Records, res.Records)
	assert.EqualValues(t, 1, h.trigger.calls.Load())

	h.backend.failLoad.Store(true)
	res = h.svc.Sync(ctx)
	assert.Error(t, res.Err)
	assert.Equal(t, first.Records, res.Records, "unreadable store serves the last good records")
}

func TestLoadRulesWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.json")

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRuleSet(), rs)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rules"`)
	assert.Contains(t, string(data), `"category": "Work"`)
}

func TestLoadRulesRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestAddRuleRecategorizesStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(
		raw("A", "Your flight itinerary", "boarding at 9", "INBOX", "STARRED"),
		raw("B", "Lunch?", "tomorrow", "INBOX"),
	)
	h.svc.Sync(ctx)

	rs, err := h.svc.AddRule(ctx, model.CategoryRule{Category: "Travel", Keywords: []string{"Flight", " "}})
	require.NoError(t, err)
	assert.Equal(t, "Travel", rs.Rules[len(rs.Rules)-1].Category)

	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	a := byID(snap.Emails, "A")
	assert.Contains(t, a.Labels, "travel")
	assert.Contains(t, a.Labels, "inbox")
	assert.Contains(t, a.Labels, "starred")
	assert.NotContains(t, byID(snap.Emails, "B").Labels, "travel")

	onDisk, err := LoadRules(filepath.Join(h.dir, "template.json"))
	require.NoError(t, err)
	assert.Equal(t, rs, onDisk)
}

func TestAddRuleMergesIntoExistingCategory(t *testing.T) {
	h := newHarness(t)

	rs, err := h.svc.AddRule(context.Background(), model.CategoryRule{Category: "work", Keywords: []string{"standup", "meeting"}})
	require.NoError(t, err)

	assert.Len(t, rs.Rules, len(model.DefaultRuleSet().Rules))
	assert.Equal(t, "Work", rs.Rules[0].Category)
	assert.Contains(t, rs.Rules[0].Keywords, "standup")
}

func TestAddRuleRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddRule(ctx, model.CategoryRule{Category: "  ", Keywords: []string{"x"}})
	assert.ErrorIs(t, err, model.ErrInvalidRule)

	_, err = h.svc.AddRule(ctx, model.CategoryRule{Category: "Empty", Keywords: []string{" "}})
	assert.ErrorIs(t, err, model.ErrInvalidRule)

	rs, err := h.svc.Rules()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRuleSet(), rs)
}

func TestDeleteRuleStripsOnlyThatLabel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(
		raw("A", "Invoice for your order", "payment due", "INBOX", "UNREAD"),
		raw("B", "Project deadline", "meeting", "INBOX"),
	)
	h.svc.Sync(ctx)

	before, err := h.store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, byID(before.Emails, "A").Labels, "bills")

	rs, err := h.svc.DeleteRule(ctx, "BILLS")
	require.NoError(t, err)
	for _, r := range rs.Rules {
		assert.NotEqual(t, "bills", r.Label())
	}

	after, err := h.store.Load(ctx)
	require.NoError(t, err)
	for _, m := range after.Emails {
		assert.NotContains(t, m.Labels, "bills")
		var want []string
		for _, l := range byID(before.Emails, m.ID).Labels {
			if l != "bills" {
				want = append(want, l)
			}
		}
		assert.ElementsMatch(t, want, m.Labels, m.ID)
	}
}

func TestDeleteUnknownRuleSucceeds(t *testing.T) {
	h := newHarness(t)

	rs, err := h.svc.DeleteRule(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRuleSet(), rs)

	_, err = h.svc.DeleteRule(context.Background(), " ")
	assert.ErrorIs(t, err, model.ErrInvalidRule)
}

func TestReloadRulesStripsRemovedCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "Project deadline", "meeting at 3", "INBOX"))
	h.svc.Sync(ctx)

	rs := model.DefaultRuleSet().Delete("work")
	rs, err := rs.Merge(model.CategoryRule{Category: "Deadlines", Keywords: []string{"deadline"}})
	require.NoError(t, err)
	require.NoError(t, SaveRules(filepath.Join(h.dir, "template.json"), rs))

	_, err = h.svc.ReloadRules(ctx)
	require.NoError(t, err)

	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inbox", "deadlines"}, snap.Emails[0].Labels)
}

func TestSaveReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "x"))
	h.svc.Sync(ctx)

	reply, err := h.svc.SaveReply(ctx, "A", "Sounds good", "")
	require.NoError(t, err)
	assert.Equal(t, model.Reply{From: "You", Timestamp: "3/5/2024, 3:04:05 PM", Text: "Sounds good", Tone: "Neutral"}, reply)

	// Replies survive the next sync of the same message.
	h.svc.Sync(ctx)
	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Reply{reply}, snap.Emails[0].Replies)

	_, err = h.svc.SaveReply(ctx, "missing", "hi", "Friendly")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.svc.SaveReply(ctx, "A", "   ", "")
	assert.ErrorIs(t, err, ErrInvalidReply)
}

func TestAcknowledge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "x"))
	h.svc.Sync(ctx)

	require.NoError(t, h.svc.Acknowledge(ctx, "A"))
	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Emails[0].IsNew)

	assert.ErrorIs(t, h.svc.Acknowledge(ctx, "nope"), store.ErrNotFound)
}

func TestSendRecordsSentMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.sendID = "sent-1"
	h.mailbox.push(raw("A", "hello", "x"))
	h.svc.Sync(ctx)

	rec, err := h.svc.Send(ctx, source.Outgoing{To: "bob@example.com", Subject: "Re: hello", Body: "<p>hi</p>", ThreadID: "t-A"})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", rec.ID)
	assert.Equal(t, "t-A", rec.ThreadID)
	assert.Equal(t, "Me", rec.Sender)
	assert.Equal(t, []string{"sent"}, rec.Labels)
	assert.Equal(t, "Mar 5", rec.ReceivedAt)
	assert.False(t, rec.IsNew)

	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sent-1", "A"}, recordIDs(snap.Emails))
	require.Len(t, h.mailbox.sent, 1)
	assert.Equal(t, "t-A", h.mailbox.sent[0].ThreadID)
}

func TestSendFallsBackToGeneratedID(t *testing.T) {
	h := newHarness(t)

	rec, err := h.svc.Send(context.Background(), source.Outgoing{To: "bob@example.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.ID, rec.ThreadID)
}

func TestSendRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Send(context.Background(), source.Outgoing{To: "bob@example.com", Body: "b"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, h.mailbox.sent)
}

func TestSendProviderFailure(t *testing.T) {
	h := newHarness(t)
	h.mailbox.sendErr = &source.AuthError{Provider: model.ProviderGmail, Message: "token revoked"}

	_, err := h.svc.Send(context.Background(), source.Outgoing{To: "bob@example.com", Subject: "s", Body: "b"})
	assert.True(t, source.IsAuthError(err))

	snap, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Emails)
}

func TestStartupEnrichment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.False(t, h.svc.StartupEnrichment(ctx), "empty store")

	h.mailbox.push(raw("A", "hello", "x"))
	h.svc.Sync(ctx)
	calls := h.trigger.calls.Load()

	assert.True(t, h.svc.StartupEnrichment(ctx))
	assert.Equal(t, calls+1, h.trigger.calls.Load())
}

func TestConcurrentSyncAndEditsLoseNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailbox.push(raw("A", "hello", "x"))
	h.svc.Sync(ctx)

	var wg gosync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.svc.Sync(ctx)
		}()
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.SaveReply(ctx, "A", fmt.Sprintf("reply %d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Emails[0].Replies, 10)
}
