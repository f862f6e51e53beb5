package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/model"
)

func TestJSONFileMissingIsEmpty(t *testing.T) {
	b := NewJSONFile(filepath.Join(t.TempDir(), "database.json"))

	snap, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Emails)
	assert.Nil(t, snap.LastSync)
}

func TestJSONFileDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	b := NewJSONFile(path)
	ts := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	m := rec("1", "inbox")
	m.IsNew = true
	m.ReceivedAt = "Mar 5"
	m.AISummary = &model.AISummary{Summary: "s", Tone: "Calm", Confidence: 0.5}
	require.NoError(t, b.Save(context.Background(), Snapshot{Emails: []model.Message{m}, LastSync: &ts}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2024-03-05T12:00:00Z", doc["lastSync"])
	emails := doc["emails"].([]any)
	first := emails[0].(map[string]any)
	assert.Equal(t, true, first["new_email"])
	assert.Equal(t, "Mar 5", first["time"])
	assert.Contains(t, first, "aiSummary")
	assert.Contains(t, first, "threadId")

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Message{m}, got.Emails)
}

func TestJSONFileReadsNullLastSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"emails": [], "lastSync": null}`), 0o644))

	snap, err := NewJSONFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.LastSync)
}

func TestJSONFileCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewJSONFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestStoreUpdateAbortsOnError(t *testing.T) {
	s := New(NewJSONFile(filepath.Join(t.TempDir(), "database.json")))
	ctx := context.Background()

	_, err := s.Update(ctx, func(snap *Snapshot) error {
		snap.Emails = append(snap.Emails, rec("1"))
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, func(snap *Snapshot) error {
		snap.Emails = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Emails, 1)
}

func TestStoreUpdateSerializesWriters(t *testing.T) {
	s := New(NewJSONFile(filepath.Join(t.TempDir(), "database.json")))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, func(snap *Snapshot) error {
				snap.Emails = append(snap.Emails, rec(string(rune('a'+i))))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Emails, 20, "no update may be lost")
}

func TestStoreUpdateKeepsEnrichmentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	doc := `{"emails": [{"id": "a", "subject": "hello", "labels": [], "replies": [], "new_email": false,
		"aiSummary": {"summary": "s", "tone": "Calm", "confidence": 0.5},
		"smartReply": "Thanks, I will take a look."}], "lastSync": null}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := New(NewJSONFile(path))
	_, err := s.Update(context.Background(), func(snap *Snapshot) error {
		snap.Emails = append(snap.Emails, rec("b"))
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"smartReply": "Thanks, I will take a look."`)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	i := snap.Find("a")
	require.GreaterOrEqual(t, i, 0)
	a := snap.Emails[i]
	assert.Equal(t, "Thanks, I will take a look.", a.SmartReply)
	require.NotNil(t, a.AISummary)
	assert.Equal(t, "s", a.AISummary.Summary)
}

func TestSnapshotFind(t *testing.T) {
	snap := Snapshot{Emails: []model.Message{rec("a"), rec("b")}}
	assert.Equal(t, 1, snap.Find("b"))
	assert.Equal(t, -1, snap.Find("z"))
}
