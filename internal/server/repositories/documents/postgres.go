// Package documents persists catalog rows for encrypted documents.
package documents

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

const selectDocument = `
	SELECT d.id, d.title, d.description, d.category_id, d.subcategory_id,
		d.file_path, d.file_size, d.file_type, d.original_name, d.encrypted,
		d.uploaded_by, d.created_at, d.updated_at, d.expires_at, d.renewable,
		c.name, s.name, u.username
	FROM documents d
	JOIN categories c ON c.id = d.category_id
	LEFT JOIN subcategories s ON s.id = d.subcategory_id
	JOIN users u ON u.id = d.uploaded_by`

// PostgresRepository implements document storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a document row and returns its id.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (int64, error) {
	query := `
		INSERT INTO documents (title, description, category_id, subcategory_id, file_path,
			file_size, file_type, original_name, encrypted, uploaded_by, expires_at, renewable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		doc.Title, doc.Description, doc.CategoryID, doc.SubcategoryID, doc.FilePath,
		doc.FileSize, doc.FileType, doc.OriginalName, doc.Encrypted, doc.UploadedBy,
		doc.ExpiresAt, doc.Renewable,
	).Scan(&id)
	if err != nil {
		return 0, dbx.Classify(err)
	}
	return id, nil
}

// GetByID returns the document with its category, subcategory and uploader
// names. Tags are not loaded.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.getOne(ctx, selectDocument+` WHERE d.id = $1`, id)
}

// LockByID is GetByID with a row lock. It must run inside a transaction.
func (r *PostgresRepository) LockByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.getOne(ctx, selectDocument+` WHERE d.id = $1 FOR UPDATE OF d`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id int64) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, query, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return doc, nil
}

// Update applies the non-nil fields. An empty field set is a no-op.
func (r *PostgresRepository) Update(ctx context.Context, id int64, fields models.DocumentFields) error {
	if fields.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Description != nil {
		add("description", *fields.Description)
	}
	if fields.CategoryID != nil {
		add("category_id", *fields.CategoryID)
	}
	switch {
	case fields.ClearSubcategory:
		sets = append(sets, "subcategory_id = NULL")
	case fields.SubcategoryID != nil:
		add("subcategory_id", *fields.SubcategoryID)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	return r.execOne(ctx, query, args...)
}

// UpdateFile points the document at a new blob.
func (r *PostgresRepository) UpdateFile(ctx context.Context, id int64, path string, size int64, mimeType, originalName string) error {
	query := `
		UPDATE documents
		SET file_path = $1, file_size = $2, file_type = $3, original_name = $4, updated_at = now()
		WHERE id = $5`
	return r.execOne(ctx, query, path, size, mimeType, originalName, id)
}

func (r *PostgresRepository) SetExpiry(ctx context.Context, id int64, expiresAt *time.Time, renewable bool) error {
	query := `UPDATE documents SET expires_at = $1, renewable = $2, updated_at = now() WHERE id = $3`
	return r.execOne(ctx, query, expiresAt, renewable, id)
}

// Delete removes the row. Tag links cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

// List returns matching documents, newest first. Ties on created_at are
// broken by id so paging is stable.
func (r *PostgresRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	where, args := buildWhere(filter)
	query := selectDocument + where + ` ORDER BY d.created_at DESC, d.id DESC`

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

	var result []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, dbx.Classify(err)
		}
		result = append(result, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

// Count returns the number of documents List would return without paging.
func (r *PostgresRepository) Count(ctx context.Context, filter models.DocumentFilter) (int64, error) {
	where, args := buildWhere(filter)
	query := `SELECT COUNT(*) FROM documents d` + where

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbx.Classify(err)
	}
	return n, nil
}

// ListFilePaths returns the blob key of every document.
func (r *PostgresRepository) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_path FROM documents`)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, dbx.Classify(err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return paths, nil
}

func buildWhere(f models.DocumentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CategoryID != nil {
		conds = append(conds, "d.category_id = "+next(*f.CategoryID))
	}
	if f.SubcategoryID != nil {
		conds = append(conds, "d.subcategory_id = "+next(*f.SubcategoryID))
	}
	if f.TagName != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM document_tags dt JOIN tags t ON t.id = dt.tag_id
			WHERE dt.document_id = d.id AND t.name = `+next(strings.ToLower(strings.TrimSpace(*f.TagName)))+`)`)
	}
	if term := strings.TrimSpace(f.Term); term != "" {
		p := next("%" + escapeLike(term) + "%")
		conds = append(conds, fmt.Sprintf("(d.title ILIKE %s OR d.description ILIKE %s)", p, p))
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "d.created_at >= "+next(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		conds = append(conds, "d.created_at <= "+next(*f.CreatedTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var (
		d           models.Document
		subcategory sql.NullInt64
		expiresAt   sql.NullTime
		subName     sql.NullString
	)
	err := s.Scan(
		&d.ID, &d.Title, &d.Description, &d.CategoryID, &subcategory,
		&d.FilePath, &d.FileSize, &d.FileType, &d.OriginalName, &d.Encrypted,
		&d.UploadedBy, &d.CreatedAt, &d.UpdatedAt, &expiresAt, &d.Renewable,
		&d.CategoryName, &subName, &d.UploaderName,
	)
	if err != nil {
		return nil, err
	}
	if subcategory.Valid {
		d.SubcategoryID = &subcategory.Int64
	}
	if expiresAt.Valid {
		d.ExpiresAt = &expiresAt.Time
	}
	if subName.Valid {
		d.SubcategoryName = &subName.String
	}
	return &d, nil
}
