package ipfs

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// PayloadKind tags the variant held by a Payload.
type PayloadKind int

const (
	// PayloadBytes holds raw bytes, transmitted as-is.
	PayloadBytes PayloadKind = iota
	// PayloadText holds UTF-8 text, transmitted as its byte encoding.
	PayloadText
	// PayloadJSON holds a JSON-serializable value, transmitted as its
	// compact JSON encoding.
	PayloadJSON
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadJSON:
		return "json"
	default:
		return "bytes"
	}
}

// Payload is the tagged union of values the client stores and retrieves.
// The zero value is an empty bytes payload.
type Payload struct {
	kind  PayloadKind
	raw   []byte
	text  string
	value any
}

// BytesPayload wraps raw bytes.
func BytesPayload(b []byte) Payload {
	return Payload{kind: PayloadBytes, raw: b}
}

// TextPayload wraps UTF-8 text.
func TextPayload(s string) Payload {
	return Payload{kind: PayloadText, text: s}
}

// JSONPayload wraps a JSON-serializable value.
func JSONPayload(v any) Payload {
	return Payload{kind: PayloadJSON, value: v}
}

// Kind reports the variant held by the payload.
func (p Payload) Kind() PayloadKind { return p.kind }

// Encode serializes the payload for transmission according to its tag.
func (p Payload) Encode() ([]byte, error) {
	switch p.kind {
	case PayloadText:
		return []byte(p.text), nil
	case PayloadJSON:
		data, err := marshalJSON(p.value)
		if err != nil {
			return nil, errors.Wrap(err, "ipfs: encode json payload")
		}
		return data, nil
	default:
		return p.raw, nil
	}
}

// Value returns the language-native form of the payload: []byte for bytes,
// string for text, and the decoded JSON value for json.
func (p Payload) Value() any {
	switch p.kind {
	case PayloadText:
		return p.text
	case PayloadJSON:
		return p.value
	default:
		return p.raw
	}
}

// Text returns the text form when the payload holds text.
func (p Payload) Text() (string, bool) {
	if p.kind != PayloadText {
		return "", false
	}
	return p.text, true
}

// JSON returns the decoded value when the payload holds JSON.
func (p Payload) JSON() (any, bool) {
	if p.kind != PayloadJSON {
		return nil, false
	}
	return p.value, true
}

// Raw returns the raw bytes when the payload holds bytes.
func (p Payload) Raw() ([]byte, bool) {
	if p.kind != PayloadBytes {
		return nil, false
	}
	return p.raw, true
}

// DecodePayload interprets fetched bytes opportunistically: valid JSON
// decodes to a json payload, other valid UTF-8 decodes to text, and anything
// else stays raw bytes. It never fails.
func DecodePayload(data []byte) Payload {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 {
		var value any
		if err := json.Unmarshal(trimmed, &value); err == nil {
			return JSONPayload(value)
		}
	}
	if utf8.Valid(data) {
		return TextPayload(string(data))
	}
	return BytesPayload(data)
}

func marshalJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
