package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/source"
)

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"Subject: =?utf-8?q?Caf=C3=A9_meeting?=\r\n" +
	"Date: Tue, 05 Mar 2024 10:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"See you at the caf=C3=A9.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>See you</p><script>track()</script>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0=\r\n" +
	"--outer--\r\n"

func TestParseRawBuildsTree(t *testing.T) {
	headers, payload, err := parseRaw([]byte(multipartMessage))
	require.NoError(t, err)

	raw := source.RawMessage{Headers: headers, Payload: payload}
	assert.Equal(t, "Alice <alice@example.com>", raw.Header("From"))
	assert.Equal(t, "Café meeting", raw.Header("Subject"))

	require.Equal(t, body.KindContainer, payload.Kind)
	require.Len(t, payload.Children, 2)
	assert.Equal(t, body.KindContainer, payload.Children[0].Kind)
	assert.Equal(t, body.KindOpaque, payload.Children[1].Kind)

	text := body.Extract(payload)
	assert.Contains(t, text, "See you at the café.")
	assert.Contains(t, text, "<p>See you</p>")
	assert.NotContains(t, text, "track()")
}

func TestParseRawSinglePart(t *testing.T) {
	msg := "Subject: plain\r\nContent-Type: text/plain\r\n\r\nhello there\r\n"

	_, payload, err := parseRaw([]byte(msg))
	require.NoError(t, err)

	assert.Equal(t, body.KindText, payload.Kind)
	assert.Equal(t, "hello there\r\n", payload.Data)
}

func TestSnippetFrom(t *testing.T) {
	root := body.Container(
		body.Markup("<p>ignored when text exists</p>", body.EncodingNone),
		body.Text("  line one\n\n line   two ", body.EncodingNone),
	)
	assert.Equal(t, "line one line two", snippetFrom(root))

	htmlOnly := body.Markup("<div>Hi <b>there</b><style>x{}</style></div>", body.EncodingNone)
	assert.Equal(t, "Hi there", snippetFrom(htmlOnly))

	long := body.Text(strings.Repeat("word ", 100), body.EncodingNone)
	assert.Len(t, []rune(snippetFrom(long)), snippetLength)
}

func TestLabelIDsFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		mailbox string
		flags   []string
		want    []string
	}{
		{"unseen inbox", "INBOX", nil, []string{"INBOX", "UNREAD"}},
		{"seen flagged", "INBOX", []string{`\Seen`, `\Flagged`}, []string{"INBOX", "STARRED"}},
		{"draft elsewhere", "Drafts", []string{`\Seen`, `\Draft`}, []string{"DRAFT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, labelIDs(tt.mailbox, tt.flags))
		})
	}
}

func TestParseUID(t *testing.T) {
	uid, err := parseUID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, uid)

	for _, bad := range []string{"", "0", "abc", "99999999999"} {
		_, err := parseUID(bad)
		assert.ErrorIs(t, err, source.ErrNotFound, bad)
	}
}

func TestRecipients(t *testing.T) {
	got := recipients("Bob <bob@example.com>, carol@example.com ,")
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, got)
}
