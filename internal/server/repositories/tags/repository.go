package tags

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	Link(ctx context.Context, documentID, tagID int64) error
	Unlink(ctx context.Context, documentID, tagID int64) error
	UnlinkAll(ctx context.Context, documentID int64) error
	ListForDocument(ctx context.Context, documentID int64) ([]string, error)
	ListForDocuments(ctx context.Context, documentIDs []int64) (map[int64][]string, error)
	List(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, id int64) error
}
