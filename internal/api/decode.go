package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayouts are tried in order: fractional seconds first, then whole
// seconds, then the offset-without-colon forms some servers emit.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
}

// Time is a timestamp decoded from the API's ISO-8601 strings.
type Time struct {
	time.Time
}

// ParseTime parses an ISO-8601 timestamp using the accepted layouts.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Ptr returns a pointer to the wrapped time, or nil when unset.
func (t *Time) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// decode turns a response body into T. Raw bytes pass through untouched;
// everything else is JSON. Any failure is a DecodingError.
func decode[T any](body []byte) (T, error) {
	var out T
	if raw, ok := any(&out).(*[]byte); ok {
		*raw = body
		return out, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, &DecodingError{Err: fmt.Errorf("empty response body")}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &DecodingError{Err: err}
	}
	return out, nil
}
