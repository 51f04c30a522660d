package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filter restricts a change subscription to rows where Column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses the "column=eq.value" form. An empty string yields the
// zero Filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected column=eq.value", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || value == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: only eq is supported", s)
	}
	for _, r := range column {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Filter{}, fmt.Errorf("invalid filter column %q", column)
		}
	}
	return Filter{Column: column, Value: value}, nil
}

// String renders the filter back into its wire form.
func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether the JSON row satisfies the filter.
func (f Filter) Matches(record json.RawMessage) bool {
	if f.Column == "" {
		return true
	}
	var row map[string]interface{}
	if err := json.Unmarshal(record, &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val == f.Value
	case bool:
		return strconv.FormatBool(val) == f.Value
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64) == f.Value
	}
	return false
}
