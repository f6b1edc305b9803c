// Package activitylogs persists the audit trail of user actions.
package activitylogs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, username, action, description, ip_address, user_agent, entity_type, entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.Username, e.Action, e.Description, e.IPAddress, e.UserAgent, e.EntityType, e.EntityID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return dbx.Classify(err)
	}
	return nil
}

// List returns matching entries, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, error) {
	where, args := buildWhere(filter)
	query := `
		SELECT id, user_id, username, action, description, ip_address, user_agent, entity_type, entity_id, created_at
		FROM activity_logs` + where + ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	var result []models.ActivityLog
	for rows.Next() {
		var (
			e          models.ActivityLog
			userID     sql.NullInt64
			username   sql.NullString
			entityType sql.NullString
			entityID   sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &userID, &username, &e.Action, &e.Description,
			&e.IPAddress, &e.UserAgent, &entityType, &entityID, &e.CreatedAt); err != nil {
			return nil, dbx.Classify(err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		if username.Valid {
			e.Username = &username.String
		}
		if entityType.Valid {
			e.EntityType = &entityType.String
		}
		if entityID.Valid {
			e.EntityID = &entityID.Int64
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, filter models.LogFilter) (int64, error) {
	where, args := buildWhere(filter)

	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`+where, args...).Scan(&n); err != nil {
		return 0, dbx.Classify(err)
	}
	return n, nil
}

// DeleteBefore purges entries created strictly before the given instant and
// returns how many were removed.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, before)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM activity_logs WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) deleteWhere(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, dbx.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected error: %w", common.ErrorPersistence, err)
	}
	return n, nil
}

func buildWhere(f models.LogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "user_id = "+next(*f.UserID))
	}
	if f.Action != "" {
		conds = append(conds, "action = "+next(f.Action))
	}
	if f.EntityType != "" {
		conds = append(conds, "entity_type = "+next(f.EntityType))
	}
	if f.From != nil {
		conds = append(conds, "created_at >= "+next(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "created_at <= "+next(*f.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
