package model

import (
	"time"
	"unicode/utf8"
)

// ProviderType identifies the remote mailbox backend.
type ProviderType string

const (
	ProviderGmail ProviderType = "gmail"
	ProviderIMAP  ProviderType = "imap"
)

// Display formats shared with the dashboard and the enrichment process.
const (
	// DisplayDateLayout renders a received date as "Jan 2".
	DisplayDateLayout = "Jan 2"

	// ReplyTimeLayout renders a reply timestamp as "1/2/2006, 3:04:05 PM".
	ReplyTimeLayout = "1/2/2006, 3:04:05 PM"
)

// PreviewLength is the number of snippet characters kept in a preview.
const PreviewLength = 100

// Message is the canonical mail record persisted in the store.
// JSON names follow the shared store document read by the enrichment process.
type Message struct {
	// ID is the provider-assigned identifier; unique key within the store.
	ID string `json:"id"`

	// ThreadID groups related messages.
	ThreadID string `json:"threadId"`

	// Sender is the raw From header value.
	Sender string `json:"sender"`

	// Subject is the raw Subject header value.
	Subject string `json:"subject"`

	// Preview is derived from Snippet, see Preview.
	Preview string `json:"preview"`

	// ReceivedAt is the display-formatted received date ("Jan 2").
	ReceivedAt string `json:"time"`

	Unread  bool `json:"unread"`
	Starred bool `json:"starred"`

	// Labels holds normalized labels. It behaves as a set.
	Labels []string `json:"labels"`

	// Body is the decoded text of all text and markup parts.
	Body string `json:"body"`

	// Snippet is the provider's short excerpt.
	Snippet string `json:"snippet"`

	// Replies are locally saved replies in insertion order.
	Replies []Reply `json:"replies"`

	// IsNew is true only for the sync cycle in which the record was first
	// observed, until acknowledged.
	IsNew bool `json:"new_email"`

	// AISummary is written by the external enrichment process only.
	AISummary *AISummary `json:"aiSummary,omitempty"`

	// SmartReply is a suggested reply, also written by the enrichment process.
	SmartReply string `json:"smartReply,omitempty"`
}

// Reply is a locally authored reply attached to a message.
type Reply struct {
	From      string `json:"from"`
	Timestamp string `json:"time"`
	Text      string `json:"text"`
	Tone      string `json:"tone"`
}

// AISummary is the enrichment payload produced out of process.
type AISummary struct {
	Summary    string  `json:"summary"`
	Tone       string  `json:"tone"`
	Confidence float64 `json:"confidence"`
}

// DefaultTone is used when no tone was supplied or computed.
const DefaultTone = "Neutral"

// Preview returns the first PreviewLength characters of snippet, with a
// trailing ellipsis when the snippet is longer.
func Preview(snippet string) string {
	if utf8.RuneCountInString(snippet) <= PreviewLength {
		return snippet
	}
	return string([]rune(snippet)[:PreviewLength]) + "..."
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// FormatDisplayDate renders t for the ReceivedAt field. A zero time yields "".
func FormatDisplayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayDateLayout)
}

// HasLabel reports whether the message carries label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message so callers can mutate slices
// without aliasing a stored snapshot.
func (m Message) Clone() Message {
	c := m
	if m.Labels != nil {
		c.Labels = make([]string, len(m.Labels))
		copy(c.Labels, m.Labels)
	}
	if m.Replies != nil {
		c.Replies = make([]Reply, len(m.Replies))
		copy(c.Replies, m.Replies)
	}
	if m.AISummary != nil {
		s := *m.AISummary
		c.AISummary = &s
	}
	return c
}

// UnionLabels appends each label not already present in dst and returns
// the result. Empty labels are skipped.
func UnionLabels(dst []string, labels ...string) []string {
	for _, l := range labels {
		if l == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == l {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, l)
		}
	}
	return dst
}
