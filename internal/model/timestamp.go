package model

import (
	"fmt"
	"strconv"
	"time"
)

// WireTimeLayout is the on-the-wire timestamp format: RFC3339 with
// nanosecond precision, always UTC. Every AppData document read from or
// written to a transport backend uses this layout exclusively.
const WireTimeLayout = time.RFC3339Nano

// Timestamp is a point in time stored as Unix nanoseconds for cheap
// comparison and SQLite storage, but marshaled to/from RFC3339Nano strings
// at every JSON boundary. The zero value marshals to an empty string and
// unmarshals from one, so an omitted or blank wire field round-trips to
// the zero Timestamp rather than the Unix epoch.
type Timestamp int64

// TimestampFromTime converts a time.Time to a Timestamp, normalizing to UTC.
func TimestampFromTime(t time.Time) Timestamp {
	if t.IsZero() {
		return 0
	}
	return Timestamp(t.UTC().UnixNano())
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return TimestampFromTime(time.Now())
}

// Time converts the Timestamp back to a UTC time.Time. The zero Timestamp
// converts to the zero time.Time, not the Unix epoch.
func (t Timestamp) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(t)).UTC()
}

// String renders t in wire format, or "" for the zero value.
func (t Timestamp) String() string {
	if t == 0 {
		return ""
	}
	return t.Time().Format(WireTimeLayout)
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool { return t < o }

// After reports whether t is strictly later than o.
func (t Timestamp) After(o Timestamp) bool { return t > o }

// MarshalJSON implements json.Marshaler, emitting the wire string form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler, parsing the wire string form.
// An empty string unmarshals to the zero Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp field is not a JSON string: %w", err)
	}
	if s == "" {
		*t = 0
		return nil
	}
	parsed, err := time.Parse(WireTimeLayout, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	*t = TimestampFromTime(parsed)
	return nil
}

// ParseTimestamp parses a wire-format string directly into a Timestamp,
// for callers outside the JSON codec path (e.g. SQLite column scanning).
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return 0, nil
	}
	parsed, err := time.Parse(WireTimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return TimestampFromTime(parsed), nil
}

// FormatTimestamp renders a Timestamp in wire format, for callers that
// prefer a free function over the method (store column formatting).
func FormatTimestamp(t Timestamp) string {
	return t.String()
}
