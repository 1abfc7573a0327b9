package transform

import (
	"encoding/json"
	"strings"
	"time"
)

// zeroDate is TDX's "unset" date sentinel (spec.md §4.5.1).
const zeroDate = "0001-01-01T00:00:00"

// parseISO8601OrNil parses an ISO-8601 timestamp string, mapping the empty
// string and the zero-date sentinel to nil.
func parseISO8601OrNil(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	if strings.HasPrefix(s, "0001-01-01") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}

// parseADGeneralizedTime parses AD's YYYYMMDDHHMMSSZ generalized-time
// format (spec.md §4.5.1), tolerating an optional fractional-seconds
// suffix (e.g. "20250101120000.0Z").
func parseADGeneralizedTime(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	if dot := strings.Index(s, "."); dot != -1 {
		if z := strings.Index(s, "Z"); z > dot {
			s = s[:dot] + "Z"
		}
	}
	t, err := time.Parse("20060102150405Z0700", s)
	if err != nil {
		return nil
	}
	return t
}

// stringField reads a string field, returning "" for absent/non-string.
func stringField(doc map[string]any, field string) string {
	s, _ := doc[field].(string)
	return s
}

func toJSONB(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

