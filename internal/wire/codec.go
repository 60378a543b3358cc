// Package wire converts logical message envelopes to and from datagram
// payloads. The default (and only wired) encoding is a JSON array of
// five elements: [sender, recipient, body, callback_id_or_null, is_response].
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Body is the message payload: a mapping of string to arbitrary
// JSON-compatible value. It always carries a "message_type" string key.
type Body map[string]interface{}

// MessageType returns the body's message_type field, or "" if absent or
// not a string.
func (b Body) MessageType() string {
	v, ok := b[FieldMessageType]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Envelope is the logical message passed between the codec and the
// message server.
type Envelope struct {
	Sender      string
	Recipient   string
	Body        Body
	CallbackID  string
	HasCallback bool
	IsResponse  bool
}

// ErrDecode is returned (wrapped with context) when a datagram cannot be
// decoded into a well-formed Envelope. The server logs and drops such
// datagrams; a decode failure is never fatal to the dispatch loop.
var ErrDecode = errors.New("wire: malformed datagram")

// Codec converts envelopes to and from wire bytes. Encoding is
// deterministic; decode(encode(m)) == m for every well-formed m.
type Codec interface {
	Encode(Envelope) ([]byte, error)
	Decode([]byte) (Envelope, error)
}

// wireArray mirrors the five-element JSON array on the wire. callback_id
// is nullable, so it is a pointer.
type wireArray struct {
	Sender     string
	Recipient  string
	Body       Body
	CallbackID *string
	IsResponse bool
}

func (w wireArray) MarshalJSON() ([]byte, error) {
	arr := [5]interface{}{w.Sender, w.Recipient, w.Body, w.CallbackID, w.IsResponse}
	return json.Marshal(arr)
}

func (w *wireArray) UnmarshalJSON(data []byte) error {
	var raw [5]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &w.Sender); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if err := json.Unmarshal(raw[1], &w.Recipient); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if err := json.Unmarshal(raw[2], &w.Body); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	if err := json.Unmarshal(raw[3], &w.CallbackID); err != nil {
		return fmt.Errorf("callback_id: %w", err)
	}
	if err := json.Unmarshal(raw[4], &w.IsResponse); err != nil {
		return fmt.Errorf("is_response: %w", err)
	}
	return nil
}

// JSONCodec is the default Codec: a JSON array of five elements.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	if env.Body == nil {
		env.Body = Body{}
	}
	w := wireArray{
		Sender:     env.Sender,
		Recipient:  env.Recipient,
		Body:       env.Body,
		IsResponse: env.IsResponse,
	}
	if env.HasCallback {
		id := env.CallbackID
		w.CallbackID = &id
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var w wireArray
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if w.Body == nil {
		return Envelope{}, fmt.Errorf("%w: missing body", ErrDecode)
	}
	if _, ok := w.Body[FieldMessageType]; !ok {
		return Envelope{}, fmt.Errorf("%w: body missing %q", ErrDecode, FieldMessageType)
	}
	env := Envelope{
		Sender:     w.Sender,
		Recipient:  w.Recipient,
		Body:       w.Body,
		IsResponse: w.IsResponse,
	}
	if w.CallbackID != nil {
		env.HasCallback = true
		env.CallbackID = *w.CallbackID
	}
	return env, nil
}
