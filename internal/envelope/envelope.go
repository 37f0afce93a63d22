// Package envelope decodes the two response wrappers used by the remote API:
// the wrapped shape {"state": true, "data": {...}} and the flattened shape
// {"state": true, "field": ...}.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Shape identifies which wrapper a response used.
type Shape int

const (
	// ShapeFlat carries the payload fields next to the state flag.
	ShapeFlat Shape = iota
	// ShapeWrapped nests the payload under a "data" field.
	ShapeWrapped
)

func (s Shape) String() string {
	if s == ShapeWrapped {
		return "wrapped"
	}
	return "flat"
}

var (
	// ErrMalformed is returned when the body is not a JSON object.
	ErrMalformed = errors.New("envelope: body is not a JSON object")
	// ErrMissingState is returned when the object carries no state flag.
	ErrMissingState = errors.New("envelope: missing state flag")
)

var (
	codeFields    = []string{"errno", "errNo", "errcode", "code"}
	messageFields = []string{"error", "error_msg", "msg", "message"}
)

// Envelope is a decoded response with the wrapper separated from the payload.
type Envelope struct {
	State   bool
	Shape   Shape
	Code    int
	Message string
	// Payload is the value under "data" for the wrapped shape, or the whole
	// object for the flat shape.
	Payload json.RawMessage
	// Raw is the complete response object.
	Raw json.RawMessage
}

// Parse decodes body as a state-flagged envelope.
func Parse(body []byte) (*Envelope, error) {
	fields, err := Fields(body)
	if err != nil {
		return nil, err
	}
	rawState, ok := fields["state"]
	if !ok {
		return nil, ErrMissingState
	}
	state, err := parseBool(rawState)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode state: %w", err)
	}

	env := &Envelope{
		State:   state,
		Shape:   ShapeFlat,
		Code:    FirstInt(fields, codeFields...),
		Message: FirstString(fields, messageFields...),
		Payload: json.RawMessage(bytes.TrimSpace(body)),
		Raw:     json.RawMessage(bytes.TrimSpace(body)),
	}
	if data, ok := fields["data"]; ok {
		env.Shape = ShapeWrapped
		env.Payload = data
	}
	return env, nil
}

// Diagnostics extracts the remote's state flag, error code and message from
// body without requiring a successful envelope. ok is false when body is not
// a JSON object carrying any of them.
func Diagnostics(body []byte) (state bool, code int, message string, ok bool) {
	fields, err := Fields(body)
	if err != nil {
		return false, 0, "", false
	}
	if raw, found := fields["state"]; found {
		state, _ = parseBool(raw)
		ok = true
	}
	code = FirstInt(fields, codeFields...)
	message = FirstString(fields, messageFields...)
	return state, code, message, ok || code != 0 || message != ""
}

// Fields splits a JSON object body into its top-level members.
func Fields(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformed
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fields, nil
}

// Decode unmarshals the normalized payload into out. A null or empty payload
// leaves out untouched.
func (e *Envelope) Decode(out any) error {
	if e == nil || isNull(e.Payload) {
		return nil
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("envelope: decode payload: %w", err)
	}
	return nil
}

// DecodeRaw unmarshals the complete response object into out, for payloads
// that need fields living beside "data".
func (e *Envelope) DecodeRaw(out any) error {
	if e == nil || isNull(e.Raw) {
		return nil
	}
	if err := json.Unmarshal(e.Raw, out); err != nil {
		return fmt.Errorf("envelope: decode body: %w", err)
	}
	return nil
}

// IsNull reports whether the payload is absent or JSON null.
func (e *Envelope) IsNull() bool {
	return e == nil || isNull(e.Payload)
}

// FirstString returns the first named field holding a non-empty string or
// number.
func FirstString(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// FirstInt returns the first named field holding an integer, accepting
// quoted numbers.
func FirstInt(fields map[string]json.RawMessage, names ...string) int {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		var n Int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return int(n)
		}
	}
	return 0
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		f, err := n.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("unexpected state %q", s)
	}
	return false, fmt.Errorf("unexpected state %s", string(raw))
}
