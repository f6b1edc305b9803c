package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/filex"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/config"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/scratch"
	"github.com/dmitrijs2005/docvault/internal/server/storage"
	"github.com/google/uuid"
)

const (
	maxTitleLength    = 255
	maxBlobNameLength = 100
	defaultPageSize   = 50
	maxPageSize       = 500
)

// Purpose tells PrepareForRead how the artifact will be served.
type Purpose string

const (
	PurposeView     Purpose = "view"
	PurposeDownload Purpose = "download"
)

type UploadInput struct {
	Title         string
	Description   string
	CategoryID    int64
	SubcategoryID *int64
	FileName      string
	Content       []byte
	Tags          []string
	ExpiresAt     *time.Time
	Renewable     bool
}

type SearchInput struct {
	Term          string
	CategoryID    *int64
	SubcategoryID *int64
	TagName       string
	Limit         int
	Offset        int
}

// ReconcileReport summarises one comparison of stored blobs with catalog rows.
type ReconcileReport struct {
	Blobs          int
	Rows           int
	OrphansRemoved []string
	OrphansPending int
	DanglingRows   []string
}

// DocumentService is the encrypted document pipeline: content is encrypted
// into the blob store, registered in the catalog, and decrypted into the
// scratch directory on read.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStore
	scratch     *scratch.Dir
	key         []byte
	audit       *AuditService
	log         logging.Logger
	locks       *KeyedMutex

	maxUploadSize int64
	orphanGrace   time.Duration
	now           func() time.Time
}

func NewDocumentService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	blobs storage.BlobStore,
	scratchDir *scratch.Dir,
	key []byte,
	audit *AuditService,
	log logging.Logger,
	cfg *config.Config,
) *DocumentService {
	maxSize := cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = common.DefaultMaxUploadSize
	}
	return &DocumentService{
		db:            db,
		repomanager:   m,
		blobs:         blobs,
		scratch:       scratchDir,
		key:           key,
		audit:         audit,
		log:           log.With("module", "documents"),
		locks:         NewKeyedMutex(),
		maxUploadSize: maxSize,
		orphanGrace:   cfg.OrphanGracePeriod,
		now:           time.Now,
	}
}

func requireAdmin(rc *auth.RequestContext) error {
	if rc == nil {
		return common.ErrorUnauthorized
	}
	if !rc.IsAdmin() {
		return common.ErrorForbidden
	}
	return nil
}

// blobKey builds a storage key that is unique even for identical names
// uploaded in the same instant.
func (s *DocumentService) blobKey(fileName string) string {
	name := filex.SanitizeName(fileName)
	if len(name) > maxBlobNameLength {
		name = name[len(name)-maxBlobNameLength:]
	}
	return fmt.Sprintf("%d_%s_%s.enc", s.now().UnixNano(), uuid.NewString()[:8], name)
}

// checkContent enforces the size cap and returns the accepted MIME type
// detected from the bytes themselves.
func (s *DocumentService) checkContent(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: file is empty", common.ErrorValidation)
	}
	if int64(len(content)) > s.maxUploadSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", common.ErrorValidation, s.maxUploadSize)
	}
	mimeType, ok := detectMIME(content)
	if !ok {
		return "", fmt.Errorf("%w: file type is not allowed", common.ErrorValidation)
	}
	return mimeType, nil
}

// checkPlacement verifies that the category exists and that the
// subcategory, when given, belongs to it.
func (s *DocumentService) checkPlacement(ctx context.Context, tx dbx.DBTX, categoryID int64, subcategoryID *int64) error {
	repo := s.repomanager.Categories(tx)
	if _, err := repo.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: category %d does not exist", common.ErrorValidation, categoryID)
		}
		return err
	}
	if subcategoryID == nil {
		return nil
	}
	sub, err := repo.GetSubcategory(ctx, *subcategoryID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: subcategory %d does not exist", common.ErrorValidation, *subcategoryID)
		}
		return err
	}
	if sub.CategoryID != categoryID {
		return fmt.Errorf("%w: subcategory %d is not in category %d", common.ErrorValidation, *subcategoryID, categoryID)
	}
	return nil
}

func (s *DocumentService) encrypt(content []byte) ([]byte, error) {
	envelope, err := cryptox.EncryptBytes(content, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt: %v", common.ErrorStorage, err)
	}
	return envelope, nil
}

// dropBlob removes a blob written by a step that later failed.
func (s *DocumentService) dropBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "failed to remove blob after catalog failure", "blob", key, "error", err)
	}
}

// Upload encrypts the content into a new blob and registers the document
// with its tags. If the catalog write fails the blob is removed again.
func (s *DocumentService) Upload(ctx context.Context, rc *auth.RequestContext, in UploadInput) (int64, error) {
	if err := requireAdmin(rc); err != nil {
		return 0, err
	}

	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return 0, fmt.Errorf("%w: title is required", common.ErrorValidation)
	case len(title) > maxTitleLength:
		return 0, fmt.Errorf("%w: title is longer than %d characters", common.ErrorValidation, maxTitleLength)
	case in.CategoryID <= 0:
		return 0, fmt.Errorf("%w: category is required", common.ErrorValidation)
	case in.Renewable && in.ExpiresAt == nil:
		return 0, fmt.Errorf("%w: a renewable document needs an expiry date", common.ErrorValidation)
	}

	mimeType, err := s.checkContent(in.Content)
	if err != nil {
		return 0, err
	}
	tags := NormalizeTags(in.Tags)
	if err := validateTags(tags); err != nil {
		return 0, err
	}

	envelope, err := s.encrypt(in.Content)
	if err != nil {
		return 0, err
	}
	key := s.blobKey(in.FileName)
	if err := s.blobs.Put(ctx, key, envelope); err != nil {
		s.log.Error(ctx, "blob write failed", "blob", key, "error", err)
		return 0, err
	}

	doc := &models.Document{
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		CategoryID:    in.CategoryID,
		SubcategoryID: in.SubcategoryID,
		FilePath:      key,
		FileSize:      int64(len(in.Content)),
		FileType:      mimeType,
		OriginalName:  filex.SanitizeName(in.FileName),
		Encrypted:     true,
		UploadedBy:    rc.UserID,
		ExpiresAt:     in.ExpiresAt,
		Renewable:     in.Renewable,
	}

	id, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		if err := s.checkPlacement(ctx, tx, doc.CategoryID, doc.SubcategoryID); err != nil {
			return 0, err
		}
		id, err := s.repomanager.Documents(tx).Create(ctx, doc)
		if err != nil {
			return 0, err
		}
		if err := linkTags(ctx, s.repomanager, tx, id, tags); err != nil {
			return 0, err
		}
		return id, nil
	})
	if err != nil {
		s.dropBlob(ctx, key)
		return 0, err
	}

	s.audit.Record(ctx, rc, ActionCreateDocument, "uploaded "+title, EntityDocument, id)
	return id, nil
}

// UpdateMetadata changes the catalog fields of a document. A non-nil tags
// pointer replaces the whole tag set, an empty slice clears it.
func (s *DocumentService) UpdateMetadata(ctx context.Context, rc *auth.RequestContext, id int64, fields models.DocumentFields, tags *[]string) error {
	if err := requireAdmin(rc); err != nil {
		return err
	}
	if fields.Empty() && tags == nil {
		return fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	if fields.Title != nil {
		t := strings.TrimSpace(*fields.Title)
		if t == "" {
			return fmt.Errorf("%w: title is required", common.ErrorValidation)
		}
		if len(t) > maxTitleLength {
			return fmt.Errorf("%w: title is longer than %d characters", common.ErrorValidation, maxTitleLength)
		}
		fields.Title = &t
	}
	if fields.Description != nil {
		d := strings.TrimSpace(*fields.Description)
		fields.Description = &d
	}

	var newTags []string
	if tags != nil {
		newTags = NormalizeTags(*tags)
		if err := validateTags(newTags); err != nil {
			return err
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)
		cur, err := docs.LockByID(ctx, id)
		if err != nil {
			return err
		}

		if fields.CategoryID != nil || fields.SubcategoryID != nil {
			categoryID := cur.CategoryID
			if fields.CategoryID != nil {
				categoryID = *fields.CategoryID
			}
			subcategoryID := cur.SubcategoryID
			switch {
			case fields.SubcategoryID != nil:
				subcategoryID = fields.SubcategoryID
			case fields.ClearSubcategory:
				subcategoryID = nil
			case categoryID != cur.CategoryID:
				// moving to another category drops a subcategory that
				// belongs to the old one
				subcategoryID = nil
				fields.ClearSubcategory = true
			}
			if err := s.checkPlacement(ctx, tx, categoryID, subcategoryID); err != nil {
				return err
			}
		}

		if err := docs.Update(ctx, id, fields); err != nil {
			return err
		}

		if tags != nil {
			if err := s.repomanager.Tags(tx).UnlinkAll(ctx, id); err != nil {
				return err
			}
			if err := linkTags(ctx, s.repomanager, tx, id, newTags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, rc, ActionUpdateDocument, fmt.Sprintf("updated document %d", id), EntityDocument, id)
	return nil
}

// ReplaceFile swaps the stored content of a document. The new blob is
// written before the row changes; the old blob is removed last and a
// missing old blob is not an error.
func (s *DocumentService) ReplaceFile(ctx context.Context, rc *auth.RequestContext, id int64, fileName string, content []byte) error {
	if err := requireAdmin(rc); err != nil {
		return err
	}
	mimeType, err := s.checkContent(content)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.repomanager.Documents(s.db).GetByID(ctx, id); err != nil {
		return err
	}

	envelope, err := s.encrypt(content)
	if err != nil {
		return err
	}
	key := s.blobKey(fileName)
	if err := s.blobs.Put(ctx, key, envelope); err != nil {
		s.log.Error(ctx, "blob write failed", "blob", key, "document_id", id, "error", err)
		return err
	}

	oldKey, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		docs := s.repomanager.Documents(tx)
		cur, err := docs.LockByID(ctx, id)
		if err != nil {
			return "", err
		}
		if err := docs.UpdateFile(ctx, id, key, int64(len(content)), mimeType, filex.SanitizeName(fileName)); err != nil {
			return "", err
		}
		return cur.FilePath, nil
	})
	if err != nil {
		s.dropBlob(ctx, key)
		return err
	}

	if err := s.blobs.Delete(ctx, oldKey); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "old blob left behind, reconciliation will remove it",
			"blob", oldKey, "document_id", id, "error", err)
	}

	s.audit.Record(ctx, rc, ActionReplaceDocumentFile, fmt.Sprintf("replaced file of document %d", id), EntityDocument, id)
	return nil
}

// Delete removes the blob first and the catalog row second, so an
// interruption leaves a row without a blob rather than an untracked blob.
func (s *DocumentService) Delete(ctx context.Context, rc *auth.RequestContext, id int64) error {
	if err := requireAdmin(rc); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.FilePath); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "blob delete failed", "blob", doc.FilePath, "document_id", id, "error", err)
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Tags(tx).UnlinkAll(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Documents(tx).Delete(ctx, id)
	})
	if err != nil {
		s.log.Error(ctx, "catalog delete failed after blob removal", "document_id", id, "error", err)
		return err
	}

	s.audit.Record(ctx, rc, ActionDeleteDocument, "deleted "+doc.Title, EntityDocument, id)
	return nil
}

// PrepareForRead decrypts a document into a new scratch artifact. The
// caller owns the artifact and must release it once it has been served.
func (s *DocumentService) PrepareForRead(ctx context.Context, rc *auth.RequestContext, id int64, purpose Purpose) (*models.Artifact, error) {
	if rc == nil {
		return nil, common.ErrorUnauthorized
	}
	var action string
	switch purpose {
	case PurposeView:
		action = ActionViewDocument
	case PurposeDownload:
		action = ActionDownloadDocument
	default:
		return nil, fmt.Errorf("%w: unknown read purpose %q", common.ErrorValidation, purpose)
	}

	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	envelope, err := s.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "blob missing for document", "blob", doc.FilePath, "document_id", id)
			return nil, fmt.Errorf("%w: stored content is missing", common.ErrorDecryption)
		}
		s.log.Error(ctx, "blob read failed", "blob", doc.FilePath, "document_id", id, "error", err)
		return nil, err
	}

	plaintext, err := cryptox.DecryptBytes(envelope, s.key)
	if err != nil {
		s.log.Error(ctx, "blob decryption failed", "blob", doc.FilePath, "document_id", id, "error", err)
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	ext := ExtensionFor(doc.FileType)
	base := strings.TrimSuffix(doc.OriginalName, filepath.Ext(doc.OriginalName))
	if base == "" {
		base = "document"
	}

	path, err := s.scratch.Create(base, ext, plaintext)
	if err != nil {
		s.log.Error(ctx, "artifact write failed", "document_id", id, "error", err)
		return nil, err
	}

	s.audit.Record(ctx, rc, action, fmt.Sprintf("%s document %d", purpose, id), EntityDocument, id)

	return &models.Artifact{
		Path:     path,
		Name:     filepath.Base(path),
		FileName: base + ext,
		MIMEType: doc.FileType,
		Size:     doc.FileSize,
	}, nil
}

// ReleaseArtifact deletes an artifact after it was served. An artifact that
// is already gone counts as released.
func (s *DocumentService) ReleaseArtifact(ctx context.Context, path string) {
	if err := s.scratch.Release(path); err != nil {
		s.log.Warn(ctx, "failed to release artifact", "artifact", filepath.Base(path), "error", err)
	}
}

// Get returns a document with its tags.
func (s *DocumentService) Get(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.repomanager.Tags(s.db).ListForDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Tags = tags
	return doc, nil
}

// Filter converts the search input into a catalog filter.
func (in SearchInput) Filter() models.DocumentFilter {
	filter := models.DocumentFilter{
		CategoryID:    in.CategoryID,
		SubcategoryID: in.SubcategoryID,
		Term:          strings.TrimSpace(in.Term),
		Limit:         in.Limit,
		Offset:        in.Offset,
	}
	if tag := strings.ToLower(strings.TrimSpace(in.TagName)); tag != "" {
		filter.TagName = &tag
	}
	return filter
}

// Search matches term case-insensitively against title and description,
// narrowed by the optional exact filters. Newest documents come first.
func (s *DocumentService) Search(ctx context.Context, in SearchInput) ([]models.Document, error) {
	return s.List(ctx, in.Filter())
}

func normalizePage(f *models.DocumentFilter) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	normalizePage(&filter)

	docs, err := s.repomanager.Documents(s.db).List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}

	ids := make([]int64, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	tags, err := s.repomanager.Tags(s.db).ListForDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Tags = tags[docs[i].ID]
	}
	return docs, nil
}

func (s *DocumentService) Count(ctx context.Context, filter models.DocumentFilter) (int64, error) {
	return s.repomanager.Documents(s.db).Count(ctx, filter)
}

// SetExpiry sets or clears the expiry date. Renewable documents must expire.
func (s *DocumentService) SetExpiry(ctx context.Context, rc *auth.RequestContext, id int64, expiresAt *time.Time, renewable bool) error {
	if err := requireAdmin(rc); err != nil {
		return err
	}
	if renewable && expiresAt == nil {
		return fmt.Errorf("%w: a renewable document needs an expiry date", common.ErrorValidation)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)
		if _, err := docs.LockByID(ctx, id); err != nil {
			return err
		}
		return docs.SetExpiry(ctx, id, expiresAt, renewable)
	})
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("cleared expiry of document %d", id)
	if expiresAt != nil {
		desc = fmt.Sprintf("document %d expires %s", id, expiresAt.Format(time.DateOnly))
	}
	s.audit.Record(ctx, rc, ActionSetDocumentExpiry, desc, EntityDocument, id)
	return nil
}

// Reconcile compares the blob store with the catalog. Blobs without a row
// are deleted once they are older than the grace period, which covers
// uploads whose row is not committed yet. Rows without a blob are only
// reported.
func (s *DocumentService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	paths, err := s.repomanager.Documents(s.db).ListFilePaths(ctx)
	if err != nil {
		return report, err
	}
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return report, err
	}
	report.Rows = len(paths)
	report.Blobs = len(blobs)

	live := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		live[p] = struct{}{}
	}
	stored := make(map[string]struct{}, len(blobs))

	cutoff := s.now().Add(-s.orphanGrace)
	var errs []error
	for _, b := range blobs {
		stored[b.Key] = struct{}{}
		if _, ok := live[b.Key]; ok {
			continue
		}
		if b.ModTime.After(cutoff) {
			report.OrphansPending++
			continue
		}
		if err := s.blobs.Delete(ctx, b.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		report.OrphansRemoved = append(report.OrphansRemoved, b.Key)
	}

	for _, p := range paths {
		if _, ok := stored[p]; !ok {
			report.DanglingRows = append(report.DanglingRows, p)
		}
	}

	if len(report.OrphansRemoved) > 0 || len(report.DanglingRows) > 0 {
		s.log.Warn(ctx, "blob reconciliation",
			"orphans_removed", len(report.OrphansRemoved),
			"orphans_pending", report.OrphansPending,
			"dangling_rows", report.DanglingRows)
	}

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}
