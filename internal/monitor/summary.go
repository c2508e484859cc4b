package monitor

import "time"

// InstanceSummary is a compact, display-ready view of one upstream process
// instance. Dates are UTC, derived from epoch-millisecond timestamps, and
// nil when the source field is absent.
type InstanceSummary struct {
	ID              string     `json:"id"`
	BaseID          string     `json:"base_id,omitempty"`
	DefinitionID    string     `json:"definition_id,omitempty"`
	Title           string     `json:"title,omitempty"`
	DefinitionTitle string     `json:"definition_title,omitempty"`
	Status          string     `json:"status,omitempty"`
	Author          string     `json:"author,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// Summarize normalizes a raw upstream instance payload. Field names vary
// slightly across upstream versions, so identifiers fall back through the
// known aliases, first present wins.
func Summarize(raw map[string]any) InstanceSummary {
	return InstanceSummary{
		ID:              pickString(raw, "uuid", "id"),
		BaseID:          pickString(raw, "baseUuid", "baseId"),
		DefinitionID:    pickString(raw, "definitionUuid", "definitionId"),
		Title:           pickString(raw, "title", "name"),
		DefinitionTitle: pickString(raw, "definitionTitle", "definitionName"),
		Status:          pickString(raw, "status", "state"),
		Author:          pickString(raw, "author", "createdBy"),
		StartDate:       pickEpochMillis(raw, "startDate"),
		EndDate:         pickEpochMillis(raw, "endDate"),
	}
}

// statusFromPayload reads a task payload's status using the fixed field
// priority order; falls back to the "unknown" sentinel.
func statusFromPayload(payload map[string]any) string {
	if s := pickString(payload, "status", "state"); s != "" {
		return s
	}
	return StatusUnknown
}

// nameFromPayload extracts a display label from a task payload, best effort.
func nameFromPayload(payload map[string]any) string {
	return pickString(payload, "name", "title", "businessTitle")
}

func pickString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// pickEpochMillis reads an epoch-millisecond timestamp. JSON numbers decode
// as float64; integer-typed values are accepted as well for callers that
// build payloads in Go.
func pickEpochMillis(raw map[string]any, key string) *time.Time {
	var ms int64
	switch v := raw[key].(type) {
	case float64:
		ms = int64(v)
	case int64:
		ms = v
	case int:
		ms = int64(v)
	default:
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
