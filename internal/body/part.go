// Package body turns a message payload tree into the text stored on a record.
package body

// Kind tags a payload node.
type Kind int

const (
	// KindOpaque is a leaf whose content is never extracted (attachments,
	// images, unknown types).
	KindOpaque Kind = iota
	// KindContainer holds child parts and no content of its own.
	KindContainer
	// KindText is a text/plain leaf.
	KindText
	// KindMarkup is a text/html leaf.
	KindMarkup
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindText:
		return "text"
	case KindMarkup:
		return "markup"
	default:
		return "opaque"
	}
}

// Encoding is the transport encoding of a leaf's Data.
type Encoding int

const (
	// EncodingNone means Data is already decoded.
	EncodingNone Encoding = iota
	// EncodingBase64URL is the URL-safe base64 used by the Gmail API.
	EncodingBase64URL
	EncodingBase64
	EncodingQuotedPrintable
)

// Part is one node of a payload tree. Containers carry Children; leaves
// carry Data in the given Encoding.
type Part struct {
	Kind     Kind
	Data     string
	Encoding Encoding
	Children []Part
}

// Container builds a container node.
func Container(children ...Part) Part {
	return Part{Kind: KindContainer, Children: children}
}

// Text builds a text/plain leaf.
func Text(data string, enc Encoding) Part {
	return Part{Kind: KindText, Data: data, Encoding: enc}
}

// Markup builds a text/html leaf.
func Markup(data string, enc Encoding) Part {
	return Part{Kind: KindMarkup, Data: data, Encoding: enc}
}

// Opaque builds a leaf that extraction ignores.
func Opaque() Part {
	return Part{Kind: KindOpaque}
}

// KindForMIMEType maps a leaf content type to its Kind.
func KindForMIMEType(mimeType string) Kind {
	switch mimeType {
	case "text/plain":
		return KindText
	case "text/html":
		return KindMarkup
	default:
		return KindOpaque
	}
}
