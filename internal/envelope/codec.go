// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// BodyEncoding selects how the body is embedded in the envelope.
type BodyEncoding string

const (
	// BodyAuto uses text when the body is representable and base64 otherwise.
	BodyAuto BodyEncoding = "auto"
	// BodyText always escapes the body as character data. Bodies that are not
	// valid XML text, or contain the marker followed by LF, do not round-trip.
	BodyText BodyEncoding = "text"
	// BodyBase64 always base64-encodes the body.
	BodyBase64 BodyEncoding = "base64"
)

// ParseBodyEncoding parses a configured body encoding. Empty means auto.
func ParseBodyEncoding(s string) (BodyEncoding, error) {
	switch e := BodyEncoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return BodyAuto, nil
	case BodyAuto, BodyText, BodyBase64:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBodyEncoding, s)
	}
}

// Codec encodes and decodes envelopes. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	encoding BodyEncoding
	marker   string
}

// Option configures a Codec.
type Option func(*Codec)

// WithBodyEncoding sets the body encoding used by Encode.
func WithBodyEncoding(e BodyEncoding) Option {
	return func(c *Codec) { c.encoding = e }
}

// WithMarker sets the CRLF marker token used by Encode. A non-default marker
// is recorded in the envelope, so Decode never depends on this setting.
func WithMarker(marker string) Option {
	return func(c *Codec) { c.marker = marker }
}

// NewCodec returns a codec. Defaults: auto body encoding, DefaultMarker.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{encoding: BodyAuto, marker: DefaultMarker}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := ParseBodyEncoding(string(c.encoding)); err != nil {
		return nil, err
	}
	if err := ValidateMarker(c.marker); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode renders m as an envelope. It never fails: header text is escaped
// and the body is escaped or base64-encoded.
func (c *Codec) Encode(m Message) []byte {
	kind := m.Kind
	if kind == "" {
		kind = KindRequest
	}

	var b bytes.Buffer
	b.WriteString("<")
	b.WriteString(string(kind))
	b.WriteString("><headers>")
	for _, f := range m.Header {
		b.WriteString("<header><name>")
		escapeText(&b, f.Name)
		b.WriteString("</name>")
		for _, v := range f.Values {
			b.WriteString("<value>")
			escapeText(&b, v)
			b.WriteString("</value>")
		}
		b.WriteString("</header>")
	}
	b.WriteString("</headers>")

	if kind == KindResponse && m.Status != 0 {
		b.WriteString("<status>")
		b.WriteString(strconv.Itoa(m.Status))
		b.WriteString("</status>")
	}

	switch c.bodyEncodingFor(m.Body) {
	case BodyBase64:
		b.WriteString(`<body encoding="base64">`)
		b.WriteString(base64.StdEncoding.EncodeToString(m.Body))
	default:
		if c.marker == DefaultMarker {
			b.WriteString("<body>")
		} else {
			b.WriteString(`<body marker="`)
			b.WriteString(c.marker)
			b.WriteString(`">`)
		}
		b.Write(escapeBody(m.Body, c.marker))
	}
	b.WriteString("</body></")
	b.WriteString(string(kind))
	b.WriteString(">")
	return b.Bytes()
}

func (c *Codec) bodyEncodingFor(body []byte) BodyEncoding {
	switch c.encoding {
	case BodyText, BodyBase64:
		return c.encoding
	default:
		if textSafe(body, c.marker) {
			return BodyText
		}
		return BodyBase64
	}
}

func escapeText(b *bytes.Buffer, s string) {
	// xml.EscapeText only fails if the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(b, []byte(s))
}

type document struct {
	XMLName xml.Name
	Headers *headerList `xml:"headers"`
	Status  *int        `xml:"status"`
	Body    *body       `xml:"body"`
}

type headerList struct {
	Headers []header `xml:"header"`
}

type header struct {
	Name   *string  `xml:"name"`
	Values []string `xml:"value"`
}

type body struct {
	Encoding string `xml:"encoding,attr"`
	Marker   string `xml:"marker,attr"`
	Text     []byte `xml:",chardata"`
}

// Decode parses an envelope back into a Message. Parsing is non-strict so
// bare '&' characters written by older relays pass through unchanged.
func (c *Codec) Decode(data []byte) (Message, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	kind := Kind(doc.XMLName.Local)
	if kind != KindRequest && kind != KindResponse {
		return Message{}, fmt.Errorf("%w: unexpected root element %q", ErrMalformedEnvelope, doc.XMLName.Local)
	}
	if doc.Headers == nil {
		return Message{}, fmt.Errorf("%w: missing headers section", ErrMalformedEnvelope)
	}
	if doc.Body == nil {
		return Message{}, fmt.Errorf("%w: missing body section", ErrMalformedEnvelope)
	}

	m := Message{Kind: kind}
	if doc.Status != nil {
		m.Status = *doc.Status
	}

	m.Header = make(Header, 0, len(doc.Headers.Headers))
	for i, h := range doc.Headers.Headers {
		if h.Name == nil || *h.Name == "" {
			return Message{}, fmt.Errorf("%w: header %d has no name", ErrMalformedEnvelope, i)
		}
		m.Header = append(m.Header, Field{Name: *h.Name, Values: h.Values})
	}

	switch strings.ToLower(doc.Body.Encoding) {
	case "", string(BodyText):
		marker := DefaultMarker
		if doc.Body.Marker != "" {
			if err := ValidateMarker(doc.Body.Marker); err != nil {
				return Message{}, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
			}
			marker = doc.Body.Marker
		}
		m.Body = unescapeBody(doc.Body.Text, marker)
	case string(BodyBase64):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(doc.Body.Text)))
		if err != nil {
			return Message{}, fmt.Errorf("%w: body: %v", ErrMalformedEnvelope, err)
		}
		m.Body = raw
	default:
		return Message{}, fmt.Errorf("%w: body encoding %q", ErrMalformedEnvelope, doc.Body.Encoding)
	}
	return m, nil
}
