package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/nhle/mailsync/internal/body"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// snippetLength mirrors the length of Gmail's server-side snippets.
const snippetLength = 200

// parseRaw reads an RFC 5322 message into its headers and body tree.
// go-message undoes the transfer and charset encodings, so leaves carry
// decoded text.
func parseRaw(raw []byte) ([]source.Header, body.Part, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, body.Part{}, fmt.Errorf("%w: %v", source.ErrMalformed, err)
	}

	var headers []source.Header
	fields := entity.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		headers = append(headers, source.Header{Name: fields.Key(), Value: value})
	}

	return headers, entityToPart(entity), nil
}

func entityToPart(e *message.Entity) body.Part {
	if mr := e.MultipartReader(); mr != nil {
		var children []body.Part
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				break
			}
			children = append(children, entityToPart(p))
		}
		return body.Container(children...)
	}

	contentType, _, _ := e.Header.ContentType()
	kind := body.KindForMIMEType(contentType)
	if kind == body.KindOpaque {
		return body.Opaque()
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		return body.Opaque()
	}
	return body.Part{Kind: kind, Data: string(data), Encoding: body.EncodingNone}
}

// snippetFrom builds a short excerpt from the first text leaf, or from the
// visible text of the first markup leaf when there is no plain text.
func snippetFrom(root body.Part) string {
	if text, ok := firstLeaf(root, body.KindText); ok {
		return collapse(text)
	}
	if markup, ok := firstLeaf(root, body.KindMarkup); ok {
		cleaned, ok := body.StripMarkupNoise(markup)
		if !ok {
			return ""
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
		if err != nil {
			return ""
		}
		return collapse(doc.Text())
	}
	return ""
}

func firstLeaf(p body.Part, kind body.Kind) (string, bool) {
	if p.Kind == kind && p.Data != "" {
		return p.Data, true
	}
	for _, c := range p.Children {
		if s, ok := firstLeaf(c, kind); ok {
			return s, true
		}
	}
	return "", false
}

func collapse(s string) string {
	return model.Truncate(strings.Join(strings.Fields(s), " "), snippetLength)
}
