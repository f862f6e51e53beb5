package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryCounts(t *testing.T) {
	records := []Message{
		{ID: "1", Unread: true, IsNew: true, Labels: []string{"inbox", "work"}},
		{ID: "2", Starred: true, Labels: []string{"inbox"}},
		{ID: "3", Unread: true, Labels: []string{"bills", "work"}},
	}

	c := CategoryCounts(records)

	assert.Equal(t, 3, c.All)
	assert.Equal(t, 2, c.Unread)
	assert.Equal(t, 1, c.Starred)
	assert.Equal(t, 1, c.New)
	assert.Equal(t, []CategoryCount{
		{Label: "inbox", Count: 2},
		{Label: "work", Count: 2},
		{Label: "bills", Count: 1},
	}, c.Labels)
}

func TestDigestFallbacks(t *testing.T) {
	records := []Message{
		{ID: "1", Sender: "a", ReceivedAt: "Mar 5", Snippet: "raw snippet"},
		{ID: "2", Sender: "b", Snippet: "ignored", AISummary: &AISummary{Summary: "short", Tone: "Urgent"}},
		{ID: "3"},
	}

	got := Digest(records, 2)

	assert.Equal(t, []DigestEntry{
		{ID: "1", Sender: "a", Time: "Mar 5", Tone: DefaultTone, Summary: "raw snippet"},
		{ID: "2", Sender: "b", Tone: "Urgent", Summary: "short"},
	}, got)
	assert.Len(t, Digest(records, 10), 3)
	assert.Empty(t, Digest(records, -1))
}
