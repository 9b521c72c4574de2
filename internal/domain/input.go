package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Browser forms post blank strings, nulls and numbers-as-strings for fields
// the user did not touch. The types below decode those leniently: any falsy
// JSON value ("", null, false, 0) decodes to the zero value.

func isFalsyJSON(data []byte) bool {
	switch string(bytes.TrimSpace(data)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

var matchDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// MatchDate accepts RFC 3339 timestamps, datetime-local form values and
// plain dates. Values without a zone are read as UTC.
type MatchDate struct {
	time.Time
}

// ParseMatchDate parses s with the first layout that fits.
func ParseMatchDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range matchDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func (d *MatchDate) UnmarshalJSON(data []byte) error {
	if isFalsyJSON(data) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := ParseMatchDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Number is a float that may also arrive as a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	if isFalsyJSON(data) {
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = Number(f)
	return nil
}

// Text is a string field where false and null mean "not provided".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	if isFalsyJSON(data) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("not a string: %s", data)
	}
	*t = Text(s)
	return nil
}
