package handlers

import (
	"context"
	"os"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/services"
)

type DocumentService interface {
	Upload(ctx context.Context, rc *auth.RequestContext, in services.UploadInput) (int64, error)
	UpdateMetadata(ctx context.Context, rc *auth.RequestContext, id int64, fields models.DocumentFields, tags *[]string) error
	ReplaceFile(ctx context.Context, rc *auth.RequestContext, id int64, fileName string, content []byte) error
	Delete(ctx context.Context, rc *auth.RequestContext, id int64) error
	PrepareForRead(ctx context.Context, rc *auth.RequestContext, id int64, purpose services.Purpose) (*models.Artifact, error)
	ReleaseArtifact(ctx context.Context, path string)
	Get(ctx context.Context, id int64) (*models.Document, error)
	Search(ctx context.Context, in services.SearchInput) ([]models.Document, error)
	Count(ctx context.Context, filter models.DocumentFilter) (int64, error)
	SetExpiry(ctx context.Context, rc *auth.RequestContext, id int64, expiresAt *time.Time, renewable bool) error
}

// ArtifactStore serves prepared artifacts by the name handed to clients.
type ArtifactStore interface {
	Open(name string) (*os.File, error)
	ReleaseName(name string) error
}

type UserService interface {
	Login(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
	Logout(ctx context.Context, rc *auth.RequestContext) error
}

type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id int64) (*models.Category, error)
	Create(ctx context.Context, rc *auth.RequestContext, name, description string) (int64, error)
	Update(ctx context.Context, rc *auth.RequestContext, id int64, name, description string) error
	Delete(ctx context.Context, rc *auth.RequestContext, id int64) error
	ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error)
	CreateSubcategory(ctx context.Context, rc *auth.RequestContext, categoryID int64, name, description string) (int64, error)
	UpdateSubcategory(ctx context.Context, rc *auth.RequestContext, id int64, name, description string) error
	DeleteSubcategory(ctx context.Context, rc *auth.RequestContext, id int64) error
}

type TagService interface {
	List(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, rc *auth.RequestContext, id int64) error
}

type AuditService interface {
	List(ctx context.Context, rc *auth.RequestContext, filter models.LogFilter) ([]models.ActivityLog, int64, error)
}
