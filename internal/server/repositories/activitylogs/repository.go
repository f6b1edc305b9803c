package activitylogs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, error)
	Count(ctx context.Context, filter models.LogFilter) (int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}
