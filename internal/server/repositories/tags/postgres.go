// Package tags persists free-form document labels and their links.
// Names are expected lower-cased by the caller.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

// GetOrCreate returns the id of the tag called name, inserting it when absent.
// A concurrent insert of the same name is absorbed by ON CONFLICT, after which
// the row the other transaction committed is read back.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, name string) (int64, error) {
	tag, err := r.GetByName(ctx, name)
	if err == nil {
		return tag.ID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO tags (name) VALUES ($1) ON CONFLICT ((lower(name))) DO NOTHING RETURNING id`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		tag, err := r.GetByName(ctx, name)
		if err != nil {
			return 0, err
		}
		return tag.ID, nil
	}
	if err != nil {
		return 0, dbx.Classify(err)
	}
	return id, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	var t models.Tag
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return &t, nil
}

// Link attaches a tag to a document. Linking twice is harmless.
func (r *PostgresRepository) Link(ctx context.Context, documentID, tagID int64) error {
	query := `INSERT INTO document_tags (document_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, documentID, tagID); err != nil {
		return dbx.Classify(err)
	}
	return nil
}

func (r *PostgresRepository) Unlink(ctx context.Context, documentID, tagID int64) error {
	query := `DELETE FROM document_tags WHERE document_id = $1 AND tag_id = $2`
	if _, err := r.db.ExecContext(ctx, query, documentID, tagID); err != nil {
		return dbx.Classify(err)
	}
	return nil
}

func (r *PostgresRepository) UnlinkAll(ctx context.Context, documentID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = $1`, documentID); err != nil {
		return dbx.Classify(err)
	}
	return nil
}

func (r *PostgresRepository) ListForDocument(ctx context.Context, documentID int64) ([]string, error) {
	m, err := r.ListForDocuments(ctx, []int64{documentID})
	if err != nil {
		return nil, err
	}
	return m[documentID], nil
}

// ListForDocuments returns tag names per document id, each list sorted by name.
func (r *PostgresRepository) ListForDocuments(ctx context.Context, documentIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(documentIDs))
	if len(documentIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(documentIDs))
	args := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `
		SELECT dt.document_id, t.name
		FROM document_tags dt
		JOIN tags t ON t.id = dt.tag_id
		WHERE dt.document_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY dt.document_id, t.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docID int64
			name  string
		)
		if err := rows.Scan(&docID, &name); err != nil {
			return nil, dbx.Classify(err)
		}
		result[docID] = append(result[docID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

// List returns every tag with the number of documents carrying it.
func (r *PostgresRepository) List(ctx context.Context) ([]models.Tag, error) {
	query := `
		SELECT t.id, t.name, t.created_at, COUNT(dt.document_id)
		FROM tags t
		LEFT JOIN document_tags dt ON dt.tag_id = t.id
		GROUP BY t.id, t.name, t.created_at
		ORDER BY t.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UsageCount); err != nil {
			return nil, dbx.Classify(err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

// Delete removes a tag that no document uses any more.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	var links int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_tags WHERE tag_id = $1`, id).Scan(&links)
	if err != nil {
		return dbx.Classify(err)
	}
	if links > 0 {
		return fmt.Errorf("%w: tag is attached to %d documents", common.ErrorInUse, links)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return dbx.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected error: %w", common.ErrorPersistence, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
