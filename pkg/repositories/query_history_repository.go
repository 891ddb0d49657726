package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semlayer/agent-engine/pkg/database"
	"github.com/semlayer/agent-engine/pkg/models"
)

// QueryHistoryRepository provides data access for the supplemental
// query-history audit trail.
type QueryHistoryRepository interface {
	Create(ctx context.Context, entry *models.QueryHistoryEntry) error
	List(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryHistoryEntry, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type queryHistoryRepository struct {
	db *database.DB
}

func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

var _ QueryHistoryRepository = (*queryHistoryRepository)(nil)

func (r *queryHistoryRepository) Create(ctx context.Context, entry *models.QueryHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_query_history (
			id, conversation_id,
			natural_language, sql,
			executed_at, execution_duration_ms, row_count,
			repaired, repair_reason,
			query_type, tables_used, aggregations_used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID,
		entry.ConversationID,
		entry.NaturalLanguage,
		entry.SQL,
		entry.ExecutedAt,
		entry.ExecutionDurationMs,
		entry.RowCount,
		entry.Repaired,
		entry.RepairReason,
		entry.QueryType,
		entry.TablesUsed,
		entry.AggregationsUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to create query history entry: %w", err)
	}

	return nil
}

func (r *queryHistoryRepository) List(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryHistoryEntry, int, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var conditions []string
	var args []any
	argIdx := 1

	if filters.ConversationID != nil {
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", argIdx))
		args = append(args, *filters.ConversationID)
		argIdx++
	}

	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.Since)
		argIdx++
	}

	if len(filters.TablesUsed) > 0 {
		conditions = append(conditions, fmt.Sprintf("tables_used && $%d", argIdx))
		args = append(args, filters.TablesUsed)
		argIdx++
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM engine_query_history WHERE %s`, where)
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query history entries: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, conversation_id,
		       natural_language, sql,
		       executed_at, execution_duration_ms, row_count,
		       repaired, repair_reason,
		       query_type, tables_used, aggregations_used,
		       created_at
		FROM engine_query_history
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, where, argIdx)

	args = append(args, limit)

	rows, err := r.db.Pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query history entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueryHistoryEntry
	for rows.Next() {
		var entry models.QueryHistoryEntry

		err := rows.Scan(
			&entry.ID,
			&entry.ConversationID,
			&entry.NaturalLanguage,
			&entry.SQL,
			&entry.ExecutedAt,
			&entry.ExecutionDurationMs,
			&entry.RowCount,
			&entry.Repaired,
			&entry.RepairReason,
			&entry.QueryType,
			&entry.TablesUsed,
			&entry.AggregationsUsed,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan query history entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating query history entries: %w", err)
	}

	return entries, total, nil
}

func (r *queryHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM engine_query_history WHERE created_at < $1`
	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old query history entries: %w", err)
	}

	return tag.RowsAffected(), nil
}
