package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	LockByID(ctx context.Context, id int64) (*models.Document, error)
	Update(ctx context.Context, id int64, fields models.DocumentFields) error
	UpdateFile(ctx context.Context, id int64, path string, size int64, mimeType, originalName string) error
	SetExpiry(ctx context.Context, id int64, expiresAt *time.Time, renewable bool) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Count(ctx context.Context, filter models.DocumentFilter) (int64, error)
	ListFilePaths(ctx context.Context) ([]string, error)
}
