package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryHistoryEntry is an audit record persisted after a completed Reporting
// phase. It is additive observability, not part of the four-phase core.
type QueryHistoryEntry struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`

	NaturalLanguage string `json:"natural_language"`
	SQL             string `json:"sql"`

	ExecutedAt          time.Time `json:"executed_at"`
	ExecutionDurationMs *int      `json:"execution_duration_ms,omitempty"`
	RowCount            *int      `json:"row_count,omitempty"`
	Repaired            bool      `json:"repaired"`
	RepairReason        *string   `json:"repair_reason,omitempty"`

	QueryType        *string  `json:"query_type,omitempty"`
	TablesUsed       []string `json:"tables_used,omitempty"`
	AggregationsUsed []string `json:"aggregations_used,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QueryHistoryFilters filters a query history listing.
type QueryHistoryFilters struct {
	ConversationID *uuid.UUID
	TablesUsed     []string
	Since          *time.Time
	Limit          int
}
