package categories

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Category) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id int64) error
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	CountDocuments(ctx context.Context, id int64) (int64, error)

	CreateSubcategory(ctx context.Context, s *models.Subcategory) (int64, error)
	GetSubcategory(ctx context.Context, id int64) (*models.Subcategory, error)
	ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error)
	UpdateSubcategory(ctx context.Context, s *models.Subcategory) error
	DeleteSubcategory(ctx context.Context, id int64) error
	SubcategoryExistsByName(ctx context.Context, categoryID int64, name string, excludeID int64) (bool, error)
	CountSubcategoryDocuments(ctx context.Context, id int64) (int64, error)
}
