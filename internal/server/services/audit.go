package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
)

// Audit actions.
const (
	ActionLogin               = "login"
	ActionLogout              = "logout"
	ActionCreateDocument      = "create_document"
	ActionUpdateDocument      = "update_document"
	ActionReplaceDocumentFile = "replace_document_file"
	ActionDeleteDocument      = "delete_document"
	ActionViewDocument        = "view_document"
	ActionDownloadDocument    = "download_document"
	ActionSetDocumentExpiry   = "set_document_expiry"
	ActionCreateCategory      = "create_category"
	ActionUpdateCategory      = "update_category"
	ActionDeleteCategory      = "delete_category"
	ActionCreateSubcategory   = "create_subcategory"
	ActionUpdateSubcategory   = "update_subcategory"
	ActionDeleteSubcategory   = "delete_subcategory"
	ActionDeleteTag           = "delete_tag"
)

// Entity types referenced by audit entries.
const (
	EntityDocument    = "document"
	EntityCategory    = "category"
	EntitySubcategory = "subcategory"
	EntityTag         = "tag"
	EntityUser        = "user"
)

// AuditService writes and reads the activity log.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *AuditService {
	return &AuditService{db: db, repomanager: m, log: log.With("module", "audit")}
}

// Record appends an entry. It never fails the caller: a write error is
// logged and dropped.
func (s *AuditService) Record(ctx context.Context, rc *auth.RequestContext, action, description, entityType string, entityID int64) {
	entry := &models.ActivityLog{
		Action:      action,
		Description: description,
	}
	if rc != nil {
		if rc.UserID != 0 {
			uid := rc.UserID
			entry.UserID = &uid
		}
		if rc.Username != "" {
			name := rc.Username
			entry.Username = &name
		}
		entry.IPAddress = rc.IPAddress
		entry.UserAgent = rc.UserAgent
	}
	if entityType != "" {
		et := entityType
		entry.EntityType = &et
	}
	if entityID != 0 {
		id := entityID
		entry.EntityID = &id
	}

	if err := s.repomanager.ActivityLogs(s.db).Create(ctx, entry); err != nil {
		s.log.Warn(ctx, "failed to record activity", "action", action, "entity_id", entityID, "error", err)
	}
}

// List returns a page of entries and the total matching the filter.
// Only admins may read the log.
func (s *AuditService) List(ctx context.Context, rc *auth.RequestContext, filter models.LogFilter) ([]models.ActivityLog, int64, error) {
	if !rc.IsAdmin() {
		return nil, 0, common.ErrorForbidden
	}

	repo := s.repomanager.ActivityLogs(s.db)
	items, err := repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PurgeBefore removes entries older than retention.
func (s *AuditService) PurgeBefore(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", common.ErrorValidation)
	}
	n, err := s.repomanager.ActivityLogs(s.db).DeleteBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(ctx, "purged activity log", "removed", n)
	}
	return n, nil
}
