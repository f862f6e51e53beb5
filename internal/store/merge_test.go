package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/model"
)

func rec(id string, labels ...string) model.Message {
	return model.Message{ID: id, Subject: "subject " + id, Labels: labels, Replies: []model.Reply{}}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func stripNew(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m = m.Clone()
		m.IsNew = false
		out[i] = m
	}
	return out
}

func TestMergeScenarioOrder(t *testing.T) {
	prev := Snapshot{Emails: []model.Message{rec("A"), rec("B")}}
	fetched := []model.Message{rec("B", "inbox"), rec("C", "inbox")}
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	got, newIDs := Merge(prev, fetched, now)

	assert.Equal(t, []string{"C", "B", "A"}, ids(got.Emails))
	assert.Equal(t, []string{"C"}, newIDs)
	assert.True(t, got.Emails[0].IsNew)
	assert.False(t, got.Emails[1].IsNew)
	assert.False(t, got.Emails[2].IsNew)
	assert.Equal(t, []string{"inbox"}, got.Emails[1].Labels, "retained record comes from the fetch")
	require.NotNil(t, got.LastSync)
	assert.True(t, got.LastSync.Equal(now))
}

func TestMergeIdempotent(t *testing.T) {
	prev := Snapshot{Emails: []model.Message{rec("A"), rec("B")}}
	fetched := []model.Message{rec("B"), rec("C"), rec("D")}
	now := time.Now()

	once, _ := Merge(prev, fetched, now)
	twice, newIDs := Merge(once, fetched, now)

	assert.Empty(t, newIDs)
	assert.Equal(t, stripNew(once.Emails), twice.Emails)
	for _, m := range twice.Emails {
		assert.False(t, m.IsNew, m.ID)
	}
}

func TestMergeWindowPreservation(t *testing.T) {
	old := model.Message{ID: "old", Subject: "kept", Unread: true, Labels: []string{"work"},
		Replies: []model.Reply{{From: "You", Text: "ok"}}}
	prev := Snapshot{Emails: []model.Message{old, rec("B")}}

	got, _ := Merge(prev, []model.Message{rec("B"), rec("N")}, time.Now())

	require.Len(t, got.Emails, 3)
	assert.Equal(t, old, got.Emails[2])
}

func TestMergeNewFlagCorrectness(t *testing.T) {
	prev := Snapshot{Emails: []model.Message{rec("1"), rec("2"), rec("3")}}
	fetched := []model.Message{rec("4"), rec("2"), rec("5"), rec("3")}

	got, newIDs := Merge(prev, fetched, time.Now())

	assert.ElementsMatch(t, []string{"4", "5"}, newIDs)
	byID := map[string]model.Message{}
	for _, m := range got.Emails {
		byID[m.ID] = m
	}
	assert.True(t, byID["4"].IsNew)
	assert.True(t, byID["5"].IsNew)
	assert.False(t, byID["2"].IsNew)
	assert.False(t, byID["3"].IsNew)
	assert.False(t, byID["1"].IsNew)
	assert.Equal(t, []string{"4", "5", "2", "3", "1"}, ids(got.Emails))
}

func TestMergeCarriesLocalStateOntoFetchedCopy(t *testing.T) {
	prior := rec("A")
	prior.Replies = []model.Reply{{From: "You", Text: "thanks", Tone: "Neutral"}}
	prior.AISummary = &model.AISummary{Summary: "s", Tone: "Calm", Confidence: 0.8}
	prior.SmartReply = "Sounds good, see you then."
	prior.Unread = true

	fresh := rec("A", "inbox")
	fresh.Unread = false

	got, _ := Merge(Snapshot{Emails: []model.Message{prior}}, []model.Message{fresh}, time.Now())

	require.Len(t, got.Emails, 1)
	assert.False(t, got.Emails[0].Unread)
	assert.Equal(t, prior.Replies, got.Emails[0].Replies)
	assert.Equal(t, prior.AISummary, got.Emails[0].AISummary)
	assert.Equal(t, "Sounds good, see you then.", got.Emails[0].SmartReply)
}

func TestMergeLastSyncMonotonic(t *testing.T) {
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := Snapshot{LastSync: &later}

	got, _ := Merge(prev, []model.Message{rec("x")}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, got.LastSync.Equal(later))
}

func TestMergeCollapsesDuplicateFetchedIDs(t *testing.T) {
	got, newIDs := Merge(Snapshot{}, []model.Message{rec("x", "a"), rec("x", "b")}, time.Now())

	assert.Equal(t, []string{"x"}, newIDs)
	require.Len(t, got.Emails, 1)
	assert.Equal(t, []string{"a"}, got.Emails[0].Labels)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	prev := Snapshot{Emails: []model.Message{rec("A", "x")}}
	fetched := []model.Message{rec("B", "y")}

	got, _ := Merge(prev, fetched, time.Now())
	got.Emails[0].Labels[0] = "changed"
	got.Emails[1].Labels[0] = "changed"

	assert.Equal(t, "x", prev.Emails[0].Labels[0])
	assert.Equal(t, "y", fetched[0].Labels[0])
}
