package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"crm_search_backend/internal/search/domain"
)

// stringValue reads a scalar filter value. Empty strings count as absent.
func stringValue(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		s := strings.TrimSpace(typed)
		return s, s != ""
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case bool:
		return strconv.FormatBool(typed), true
	}
	return "", false
}

// stringSlice reads a list filter value. A lone string is a one-element list.
func stringSlice(v any) []string {
	var raw []string
	switch typed := v.(type) {
	case []string:
		raw = typed
	case []any:
		for _, item := range typed {
			if s, ok := stringValue(item); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = []string{typed}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// lookup reads key from the map shapes a range filter may arrive in.
func lookup(v any, key string) (any, bool) {
	switch typed := v.(type) {
	case map[string]any:
		val, ok := typed[key]
		return val, ok
	case domain.FilterValue:
		val, ok := typed[key]
		return val, ok
	case map[string]string:
		val, ok := typed[key]
		return val, ok
	case map[string]float64:
		val, ok := typed[key]
		return val, ok
	case map[string]*time.Time:
		val, ok := typed[key]
		if !ok || val == nil {
			return nil, false
		}
		return *val, true
	}
	return nil, false
}

// numberBounds reads a {min, max} value. A bound that is missing, empty or
// not a finite number is left open.
func numberBounds(v any) (*float64, *float64) {
	return numberBound(v, "min"), numberBound(v, "max")
}

func numberBound(v any, key string) *float64 {
	raw, ok := lookup(v, key)
	if !ok {
		return nil
	}
	n, ok := parseNumber(raw)
	if !ok {
		return nil
	}
	return &n
}

func parseNumber(v any) (float64, bool) {
	var n float64
	switch typed := v.(type) {
	case float64:
		n = typed
	case float32:
		n = float64(typed)
	case int:
		n = float64(typed)
	case int64:
		n = float64(typed)
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// timeBounds reads a {from, to} value. Unparseable bounds are left open.
func timeBounds(v any) (*time.Time, *time.Time) {
	return timeBound(v, "from"), timeBound(v, "to")
}

func timeBound(v any, key string) *time.Time {
	raw, ok := lookup(v, key)
	if !ok {
		return nil
	}
	switch typed := raw.(type) {
	case time.Time:
		if typed.IsZero() {
			return nil
		}
		t := typed.UTC()
		return &t
	case string:
		t, ok := domain.ParseTimestamp(typed)
		if !ok {
			return nil
		}
		return &t
	}
	return nil
}
