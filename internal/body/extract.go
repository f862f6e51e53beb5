package body

import (
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Extract concatenates the decoded content of every text and markup leaf
// in depth-first order, each followed by a newline. Markup leaves lose
// comments, script and style elements before they are appended. Leaves
// that are empty or fail to decode are skipped.
func Extract(root Part) string {
	switch root.Kind {
	case KindContainer:
		var sb strings.Builder
		for _, child := range root.Children {
			sb.WriteString(Extract(child))
		}
		return sb.String()
	case KindText:
		if text, ok := decode(root.Data, root.Encoding); ok {
			return text + "\n"
		}
	case KindMarkup:
		if raw, ok := decode(root.Data, root.Encoding); ok {
			if cleaned, ok := StripMarkupNoise(raw); ok {
				return cleaned + "\n"
			}
		}
	}
	return ""
}

func decode(data string, enc Encoding) (string, bool) {
	if data == "" {
		return "", false
	}

	switch enc {
	case EncodingNone:
		return data, true
	case EncodingBase64URL:
		return decodeBase64(data, base64.URLEncoding, base64.RawURLEncoding)
	case EncodingBase64:
		return decodeBase64(stripSpace(data), base64.StdEncoding, base64.RawStdEncoding)
	case EncodingQuotedPrintable:
		b, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(data)))
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}

func decodeBase64(data string, encodings ...*base64.Encoding) (string, bool) {
	for _, e := range encodings {
		if b, err := e.DecodeString(data); err == nil {
			return string(b), true
		}
	}
	return "", false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

// StripMarkupNoise parses an HTML fragment, removes comment nodes and
// script and style elements, and renders what remains of the body.
func StripMarkupNoise(markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}

	doc.Find("script, style").Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", false
	}
	return out, true
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
