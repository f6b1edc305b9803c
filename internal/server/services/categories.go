package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
)

const maxCategoryNameLength = 255

// CategoryService manages the category/subcategory tree. Mutations are
// limited to admins; each runs in one transaction so the duplicate check
// and the in-use guard see the same snapshot as the write.
type CategoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	log         logging.Logger
}

func NewCategoryService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, log logging.Logger) *CategoryService {
	return &CategoryService{db: db, repomanager: m, audit: audit, log: log.With("module", "categories")}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	if len(name) > maxCategoryNameLength {
		return "", fmt.Errorf("%w: name is longer than %d characters", common.ErrorValidation, maxCategoryNameLength)
	}
	return name, nil
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.repomanager.Categories(s.db).List(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	return s.repomanager.Categories(s.db).GetByID(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, rc *auth.RequestContext, name, description string) (int64, error) {
	if !rc.IsAdmin() {
		return 0, common.ErrorForbidden
	}
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}

	id, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		repo := s.repomanager.Categories(tx)
		exists, err := repo.ExistsByName(ctx, name, 0)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("%w: category %q", common.ErrorConflict, name)
		}
		return repo.Create(ctx, &models.Category{Name: name, Description: strings.TrimSpace(description)})
	})
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, rc, ActionCreateCategory, "created category "+name, EntityCategory, id)
	return id, nil
}

func (s *CategoryService) Update(ctx context.Context, rc *auth.RequestContext, id int64, name, description string) error {
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Categories(tx)
		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		exists, err := repo.ExistsByName(ctx, name, id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: category %q", common.ErrorConflict, name)
		}
		c.Name = name
		c.Description = strings.TrimSpace(description)
		return repo.Update(ctx, c)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, rc, ActionUpdateCategory, "updated category "+name, EntityCategory, id)
	return nil
}

// Delete removes a category and, by cascade, its subcategories. It is
// refused with common.ErrorInUse while any document references the
// category or one of its subcategories.
func (s *CategoryService) Delete(ctx context.Context, rc *auth.RequestContext, id int64) error {
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}

	var name string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Categories(tx)
		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		name = c.Name
		n, err := repo.CountDocuments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: category %q has %d documents", common.ErrorInUse, c.Name, n)
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, rc, ActionDeleteCategory, "deleted category "+name, EntityCategory, id)
	return nil
}

func (s *CategoryService) ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error) {
	repo := s.repomanager.Categories(s.db)
	if _, err := repo.GetByID(ctx, categoryID); err != nil {
		return nil, err
	}
	return repo.ListSubcategories(ctx, categoryID)
}

func (s *CategoryService) CreateSubcategory(ctx context.Context, rc *auth.RequestContext, categoryID int64, name, description string) (int64, error) {
	if !rc.IsAdmin() {
		return 0, common.ErrorForbidden
	}
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}

	id, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		repo := s.repomanager.Categories(tx)
		if _, err := repo.GetByID(ctx, categoryID); err != nil {
			return 0, err
		}
		exists, err := repo.SubcategoryExistsByName(ctx, categoryID, name, 0)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("%w: subcategory %q", common.ErrorConflict, name)
		}
		return repo.CreateSubcategory(ctx, &models.Subcategory{
			CategoryID:  categoryID,
			Name:        name,
			Description: strings.TrimSpace(description),
		})
	})
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, rc, ActionCreateSubcategory, "created subcategory "+name, EntitySubcategory, id)
	return id, nil
}

func (s *CategoryService) UpdateSubcategory(ctx context.Context, rc *auth.RequestContext, id int64, name, description string) error {
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Categories(tx)
		sub, err := repo.GetSubcategory(ctx, id)
		if err != nil {
			return err
		}
		exists, err := repo.SubcategoryExistsByName(ctx, sub.CategoryID, name, id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: subcategory %q", common.ErrorConflict, name)
		}
		sub.Name = name
		sub.Description = strings.TrimSpace(description)
		return repo.UpdateSubcategory(ctx, sub)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, rc, ActionUpdateSubcategory, "updated subcategory "+name, EntitySubcategory, id)
	return nil
}

func (s *CategoryService) DeleteSubcategory(ctx context.Context, rc *auth.RequestContext, id int64) error {
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}

	var name string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Categories(tx)
		sub, err := repo.GetSubcategory(ctx, id)
		if err != nil {
			return err
		}
		name = sub.Name
		n, err := repo.CountSubcategoryDocuments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: subcategory %q has %d documents", common.ErrorInUse, sub.Name, n)
		}
		return repo.DeleteSubcategory(ctx, id)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, rc, ActionDeleteSubcategory, "deleted subcategory "+name, EntitySubcategory, id)
	return nil
}
