// Package message defines the payloads carried inside wire frames.
//
// Messages are JSON. Format payloads are base64-encoded so binary content
// (images, custom formats) is safe to embed in JSON strings. The zero-length
// probe frame is handled one layer down in package wire and never reaches
// this codec.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.klb.dev/clipstash/internal/item"
)

// Type identifies the kind of message.
type Type string

const (
	// TypeClipboard carries one clipboard capture.
	TypeClipboard Type = "CLIPBOARD"
	// TypeSettings pushes runtime settings to the monitor process.
	TypeSettings Type = "SETTINGS"
	// TypePing requests a liveness reply.
	TypePing Type = "PING"
	// TypePong answers a ping.
	TypePong Type = "PONG"
)

// Format is a single named payload of a clipboard capture.
// Data is always base64-encoded.
type Format struct {
	Key  string `json:"key"`
	Data string `json:"data"` // base64-encoded
}

// Message is the top-level envelope.
type Message struct {
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// CLIPBOARD: one entry per format key
	Formats []Format `json:"formats,omitempty"`

	// SETTINGS
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`
}

// NewText builds a CLIPBOARD message carrying a single text/plain payload.
func NewText(source, text string) *Message {
	return &Message{
		Type:   TypeClipboard,
		Source: source,
		Formats: []Format{{
			Key:  item.FormatText,
			Data: base64.StdEncoding.EncodeToString([]byte(text)),
		}},
	}
}

// FromItem builds a CLIPBOARD message from an item's formats.
func FromItem(source string, it *item.Item) *Message {
	m := &Message{Type: TypeClipboard, Source: source}
	for _, key := range it.Formats() {
		m.Formats = append(m.Formats, Format{
			Key:  key,
			Data: base64.StdEncoding.EncodeToString(it.Format(key)),
		})
	}
	return m
}

// Item decodes the message's formats into a clipboard item.
func (m *Message) Item() (*item.Item, error) {
	it := item.New()
	for _, f := range m.Formats {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			return nil, fmt.Errorf("decode format %q: %w", f.Key, err)
		}
		it.SetFormat(f.Key, data)
	}
	return it, nil
}

// Encode serialises the message to JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}
