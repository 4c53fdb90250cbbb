package panel

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"openvpn-webui/internal/diff"
)

var (
	// ErrUnknownParam is returned for edits to params the form does not render.
	ErrUnknownParam = errors.New("unknown form parameter")
	// ErrInvalidValue is returned when a value does not fit its field type.
	ErrInvalidValue = errors.New("invalid field value")
)

// FindField returns the field named param.
func FindField(fields []Field, param string) (Field, bool) {
	for _, field := range fields {
		if field.Param == param {
			return field, true
		}
	}
	return Field{}, false
}

// Coerce converts a raw client value into the representation its field
// type carries in records.
func Coerce(field Field, raw any) (any, error) {
	switch field.Type {
	case FieldNumber:
		return coerceNumber(field, raw)
	case FieldBoolean:
		return coerceBool(field, raw)
	case FieldIP:
		text := strings.TrimSpace(diff.DataString(raw))
		if text == "" {
			return "", nil
		}
		if _, err := netip.ParseAddr(text); err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not an IP address", ErrInvalidValue, field.Param, text)
		}
		return text, nil
	case FieldMulti, FieldMultiIP:
		if text, ok := raw.(string); ok {
			return diff.CommaList(text, true), nil
		}
		return toStringList(field, raw)
	case FieldChoices:
		if text, ok := raw.(string); ok {
			split := diff.CommaList(text, false)
			var items []string
			switch v := split.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					items = []string{strings.TrimSpace(v)}
				}
			case []string:
				items = v
			}
			if err := checkChoices(field, items); err != nil {
				return nil, err
			}
			return split, nil
		}
		list, err := toStringList(field, raw)
		if err != nil {
			return nil, err
		}
		if err := checkChoices(field, list); err != nil {
			return nil, err
		}
		return list, nil
	case FieldSelect:
		text := diff.DataString(raw)
		if len(field.Options) > 0 && !containsString(field.Options, text) {
			return nil, fmt.Errorf("%w: %s: %q is not a valid choice", ErrInvalidValue, field.Param, text)
		}
		return text, nil
	default:
		return diff.DataString(raw), nil
	}
}

func coerceNumber(field Field, raw any) (any, error) {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidValue, field.Param, v)
		}
		value = parsed
	default:
		return nil, fmt.Errorf("%w: %s: unsupported number %T", ErrInvalidValue, field.Param, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %s: must be a finite number", ErrInvalidValue, field.Param)
	}
	if field.Min != nil && value < *field.Min {
		return nil, fmt.Errorf("%w: %s: must be at least %s", ErrInvalidValue, field.Param, diff.DataString(*field.Min))
	}
	if field.Max != nil && value > *field.Max {
		return nil, fmt.Errorf("%w: %s: must be at most %s", ErrInvalidValue, field.Param, diff.DataString(*field.Max))
	}
	if field.Step > 0 {
		base := 0.0
		if field.Min != nil {
			base = *field.Min
		}
		if steps := (value - base) / field.Step; steps != math.Trunc(steps) {
			return nil, fmt.Errorf("%w: %s: must be a multiple of %s", ErrInvalidValue, field.Param, diff.DataString(field.Step))
		}
	}
	return value, nil
}

// checkChoices rejects items missing from the field's options.
func checkChoices(field Field, items []string) error {
	if len(field.Options) == 0 {
		return nil
	}
	for _, item := range items {
		if !containsString(field.Options, item) {
			return fmt.Errorf("%w: %s: %q is not a valid choice", ErrInvalidValue, field.Param, item)
		}
	}
	return nil
}

func coerceBool(field Field, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalidValue, field.Param, v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported boolean %T", ErrInvalidValue, field.Param, raw)
	}
}

func toStringList(field Field, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = strings.TrimSpace(item)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s: list entries must be strings", ErrInvalidValue, field.Param)
			}
			out = append(out, strings.TrimSpace(text))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported list %T", ErrInvalidValue, field.Param, raw)
	}
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// Float returns a pointer to v for Field.Min and Field.Max.
func Float(v float64) *float64 {
	return &v
}
