package callbacks

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxPayloadSize is the Telegram ceiling for inline button callback data.
const MaxPayloadSize = 64

// ErrEncodingTooLarge reports a payload that would not fit into callback data.
var ErrEncodingTooLarge = errors.New("callbacks: encoded payload exceeds 64 bytes")

// Payload is the decoded form of a transition button.
// Target is the screen identifier, zero means "no target".
type Payload struct {
	Target int               `json:"n"`
	Props  map[string]string `json:"x,omitempty"`
}

// UnmarshalJSON also accepts the older button form, where "n" is a numeric
// string and prop values may be numbers or booleans.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var wire struct {
		N json.RawMessage            `json:"n"`
		X map[string]json.RawMessage `json:"x"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	target, err := decodeTarget(wire.N)
	if err != nil {
		return err
	}
	var props map[string]string
	for k, raw := range wire.X {
		v, ok := scalar(raw)
		if !ok {
			return fmt.Errorf("callbacks: prop %q is not a scalar", k)
		}
		if props == nil {
			props = make(map[string]string, len(wire.X))
		}
		props[k] = v
	}
	*p = Payload{Target: target, Props: props}
	return nil
}

func decodeTarget(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	var n int
	err := json.Unmarshal(raw, &n)
	return n, err
}

func scalar(raw json.RawMessage) (string, bool) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	}
	return "", false
}

// Empty reports whether the payload does not name a target screen.
func (p Payload) Empty() bool {
	return p.Target <= 0
}

// Encode serializes p into printable callback data.
// It never truncates: oversized payloads fail with ErrEncodingTooLarge.
func Encode(p Payload) (string, error) {
	if p.Target <= 0 {
		return "", fmt.Errorf("callbacks: invalid target %d", p.Target)
	}
	if len(p.Props) == 0 {
		p.Props = nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("callbacks: marshal payload: %w", err)
	}
	out := base64.StdEncoding.EncodeToString(raw)
	if len(out) > MaxPayloadSize {
		return "", fmt.Errorf("%w: target %d needs %d bytes", ErrEncodingTooLarge, p.Target, len(out))
	}
	return out, nil
}

// MustEncode is Encode for static payloads known to fit.
func MustEncode(p Payload) string {
	s, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses callback data produced by Encode.
// Stale, foreign or truncated data yields an empty Payload instead of an error.
func Decode(data string) Payload {
	data = strings.TrimSpace(data)
	if data == "" || len(data) > MaxPayloadSize {
		return Payload{}
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Payload{}
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}
	}
	if p.Target <= 0 {
		return Payload{}
	}
	if len(p.Props) == 0 {
		p.Props = nil
	}
	return p
}
