// Package diff computes minimal change-sets between an edited record and the
// baseline it was seeded from.
package diff

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is a flat mapping of option names to values as decoded from JSON.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// DataString normalizes a value to the canonical string used for comparison.
// Lists are trimmed element-wise and comma-joined, so "10.8.0.0" and
// []string{"10.8.0.0 "} compare equal.
func DataString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = strings.TrimSpace(item)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = strings.TrimSpace(DataString(item))
		}
		return strings.Join(parts, ",")
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// BuildOpts returns the keys of edited whose normalized form differs from
// baseline, skipping any key listed in exclude. Keys present only in baseline
// are never reported.
func BuildOpts(edited, baseline Record, exclude ...string) Record {
	opts := make(Record)
	for key, value := range edited {
		if contains(exclude, key) {
			continue
		}
		if ref, ok := baseline[key]; ok && DataString(value) == DataString(ref) {
			continue
		}
		opts[key] = value
	}
	return opts
}

// CommaList splits comma separated text into trimmed entries. When force is
// false and text has no comma the original string is returned unsplit.
// Blank input under force yields an empty list.
func CommaList(text string, force bool) any {
	if !force && !strings.Contains(text, ",") {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	parts := strings.Split(text, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
