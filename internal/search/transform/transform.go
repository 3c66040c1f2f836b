// Package transform projects raw store records of any entity type into the
// uniform SearchResult shape.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"crm_search_backend/internal/search/domain"
)

// Fallback titles for records whose natural title field is missing.
const (
	FallbackContact  = "Unnamed Contact"
	FallbackDeal     = "Untitled Deal"
	FallbackTask     = "Untitled Task"
	FallbackProposal = "Untitled Proposal"
	FallbackWorkflow = "Untitled Workflow"
)

// Transform maps one record. Missing optional fields are omitted, never an
// error.
func Transform(record domain.Record, entityType domain.EntityType) domain.SearchResult {
	if record == nil {
		record = domain.Record{}
	}

	result := domain.SearchResult{
		ID:         text(record, "id"),
		Type:       entityType,
		Date:       timestamp(record, "created_at"),
		Status:     text(record, "status"),
		Priority:   text(record, "priority"),
		AssignedTo: text(record, "assigned_to"),
		Tags:       tags(record, "tags"),
		Metadata:   record,
	}

	switch entityType {
	case domain.EntityLead, domain.EntityCustomer:
		result.Title = orDefault(text(record, "name"), FallbackContact)
		result.Subtitle = text(record, "company")
		result.Description = orDefault(text(record, "email"), text(record, "phone"))
		result.Value = number(record, "value")
	case domain.EntityDeal:
		result.Title = orDefault(text(record, "title"), FallbackDeal)
		result.Subtitle = text(record, "customer_name")
		result.Description = text(record, "description")
		result.Value = number(record, "value")
	case domain.EntityTask:
		result.Title = orDefault(text(record, "title"), FallbackTask)
		result.Subtitle = text(record, "type")
		result.Description = text(record, "description")
		if due := timestamp(record, "due_date"); due != "" {
			result.Date = due
		}
	case domain.EntityProposal:
		result.Title = orDefault(text(record, "title"), FallbackProposal)
		result.Subtitle = text(record, "customer_name")
		result.Description = text(record, "description")
		result.Value = number(record, "total_amount")
	case domain.EntityWorkflow:
		result.Title = orDefault(text(record, "name"), FallbackWorkflow)
		result.Subtitle = text(record, "trigger_type")
		result.Description = text(record, "description")
	}

	return result
}

// All transforms a batch of records of one type.
func All(records []domain.Record, entityType domain.EntityType) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(records))
	for _, r := range records {
		out = append(out, Transform(r, entityType))
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func text(record domain.Record, key string) string {
	switch v := record[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func timestamp(record domain.Record, key string) string {
	if t, ok := record[key].(time.Time); ok {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return text(record, key)
}

func number(record domain.Record, key string) *float64 {
	var n float64
	switch v := record[key].(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

func tags(record domain.Record, key string) []string {
	switch v := record[key].(type) {
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
