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

const maxTagLength = 100

// ParseTags splits a comma separated list into trimmed, lower-cased,
// de-duplicated tag names, keeping first-seen order.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags applies the ParseTags rules to an already split list.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateTags(tags []string) error {
	for _, t := range tags {
		if len(t) > maxTagLength {
			return fmt.Errorf("%w: tag %q is longer than %d characters", common.ErrorValidation, t, maxTagLength)
		}
	}
	return nil
}

// linkTags resolves each name to a tag id and links it to the document.
// It runs on whatever DBTX the caller passes, normally an open transaction.
func linkTags(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, documentID int64, tags []string) error {
	repo := m.Tags(tx)
	for _, name := range tags {
		tagID, err := repo.GetOrCreate(ctx, name)
		if err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		if err := repo.Link(ctx, documentID, tagID); err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}
	return nil
}

type TagService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	log         logging.Logger
}

func NewTagService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, log logging.Logger) *TagService {
	return &TagService{db: db, repomanager: m, audit: audit, log: log.With("module", "tags")}
}

// List returns all tags with their usage counts.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	return s.repomanager.Tags(s.db).List(ctx)
}

// Delete removes an unused tag. Tags still linked to documents are refused
// with common.ErrorInUse.
func (s *TagService) Delete(ctx context.Context, rc *auth.RequestContext, id int64) error {
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Tags(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, rc, ActionDeleteTag, fmt.Sprintf("deleted tag %d", id), EntityTag, id)
	return nil
}
