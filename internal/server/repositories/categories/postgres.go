// Package categories persists categories and their subcategories.
package categories

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) (int64, error) {
	query := `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, c.Name, c.Description).Scan(&id); err != nil {
		return 0, dbx.Classify(err)
	}
	return id, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1`

	var c models.Category
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return &c, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Category, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	var result []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, dbx.Classify(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Category) error {
	query := `UPDATE categories SET name = $1, description = $2, updated_at = now() WHERE id = $3`
	return r.execOne(ctx, query, c.Name, c.Description, c.ID)
}

// Delete removes the category and, by cascade, its subcategories. Documents
// still referencing it make the database refuse with common.ErrorInUse.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM categories WHERE id = $1`, id)
}

// ExistsByName reports whether another category already uses name.
// excludeID lets an update keep its own name; pass 0 on create.
func (r *PostgresRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1 AND id <> $2)`
	return r.exists(ctx, query, name, excludeID)
}

// CountDocuments counts documents filed under the category directly or
// through one of its subcategories.
func (r *PostgresRepository) CountDocuments(ctx context.Context, id int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM documents
		WHERE category_id = $1
		   OR subcategory_id IN (SELECT id FROM subcategories WHERE category_id = $1)`
	return r.count(ctx, query, id)
}

func (r *PostgresRepository) CreateSubcategory(ctx context.Context, s *models.Subcategory) (int64, error) {
	query := `INSERT INTO subcategories (category_id, name, description) VALUES ($1, $2, $3) RETURNING id`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, s.CategoryID, s.Name, s.Description).Scan(&id); err != nil {
		return 0, dbx.Classify(err)
	}
	return id, nil
}

func (r *PostgresRepository) GetSubcategory(ctx context.Context, id int64) (*models.Subcategory, error) {
	query := `SELECT id, category_id, name, description, created_at, updated_at FROM subcategories WHERE id = $1`

	var s models.Subcategory
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.CategoryID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error) {
	query := `
		SELECT id, category_id, name, description, created_at, updated_at
		FROM subcategories WHERE category_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	defer rows.Close()

	var result []models.Subcategory
	for rows.Next() {
		var s models.Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, dbx.Classify(err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.Classify(err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateSubcategory(ctx context.Context, s *models.Subcategory) error {
	query := `UPDATE subcategories SET name = $1, description = $2, updated_at = now() WHERE id = $3`
	return r.execOne(ctx, query, s.Name, s.Description, s.ID)
}

func (r *PostgresRepository) DeleteSubcategory(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM subcategories WHERE id = $1`, id)
}

// SubcategoryExistsByName checks name uniqueness within one parent category.
func (r *PostgresRepository) SubcategoryExistsByName(ctx context.Context, categoryID int64, name string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM subcategories WHERE category_id = $1 AND name = $2 AND id <> $3)`
	return r.exists(ctx, query, categoryID, name, excludeID)
}

func (r *PostgresRepository) CountSubcategoryDocuments(ctx context.Context, id int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM documents WHERE subcategory_id = $1`, id)
}

func (r *PostgresRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, dbx.Classify(err)
	}
	return ok, nil
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbx.Classify(err)
	}
	return n, nil
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
