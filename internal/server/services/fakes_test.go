package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/activitylogs"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/categories"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/tags"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

// -------- in-memory catalog --------

type memCatalog struct {
	mu sync.Mutex

	nextID     int64
	categories map[int64]*models.Category
	subs       map[int64]*models.Subcategory
	docs       map[int64]*models.Document
	tags       map[int64]string
	links      map[int64]map[int64]struct{}
	logs       []models.ActivityLog
	users      map[string]*models.User

	docCreateErr error
	updateErr    error
	logErr       error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		categories: make(map[int64]*models.Category),
		subs:       make(map[int64]*models.Subcategory),
		docs:       make(map[int64]*models.Document),
		tags:       make(map[int64]string),
		links:      make(map[int64]map[int64]struct{}),
		users:      make(map[string]*models.User),
	}
}

func (c *memCatalog) id() int64 {
	c.nextID++
	return c.nextID
}

func (c *memCatalog) addCategory(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id()
	c.categories[id] = &models.Category{ID: id, Name: name}
	return id
}

func (c *memCatalog) addSubcategory(categoryID int64, name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id()
	c.subs[id] = &models.Subcategory{ID: id, CategoryID: categoryID, Name: name}
	return id
}

func (c *memCatalog) doc(id int64) *models.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (c *memCatalog) docCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *memCatalog) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.logs))
	for _, l := range c.logs {
		out = append(out, l.Action)
	}
	return out
}

func (c *memCatalog) tagsOf(docID int64) []string {
	var out []string
	for tagID := range c.links[docID] {
		out = append(out, c.tags[tagID])
	}
	sort.Strings(out)
	return out
}

// -------- repository manager --------

type fakeRepoManager struct {
	cat *memCatalog
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository { return &fakeUsers{m.cat} }

func (m *fakeRepoManager) Documents(dbx.DBTX) documents.Repository { return &fakeDocuments{m.cat} }

func (m *fakeRepoManager) Categories(dbx.DBTX) categories.Repository { return &fakeCategories{m.cat} }

func (m *fakeRepoManager) Tags(dbx.DBTX) tags.Repository { return &fakeTags{m.cat} }

func (m *fakeRepoManager) ActivityLogs(dbx.DBTX) activitylogs.Repository { return &fakeLogs{m.cat} }

// -------- documents --------

type fakeDocuments struct{ c *memCatalog }

func (r *fakeDocuments) Create(_ context.Context, doc *models.Document) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.docCreateErr != nil {
		return 0, r.c.docCreateErr
	}
	cp := *doc
	cp.ID = r.c.id()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.c.docs[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeDocuments) GetByID(_ context.Context, id int64) (*models.Document, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocuments) LockByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeDocuments) Update(_ context.Context, id int64, f models.DocumentFields) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.updateErr != nil {
		return r.c.updateErr
	}
	d, ok := r.c.docs[id]
	if !ok {
		return common.ErrorNotFound
	}
	if f.Title != nil {
		d.Title = *f.Title
	}
	if f.Description != nil {
		d.Description = *f.Description
	}
	if f.CategoryID != nil {
		d.CategoryID = *f.CategoryID
	}
	if f.SubcategoryID != nil {
		v := *f.SubcategoryID
		d.SubcategoryID = &v
	} else if f.ClearSubcategory {
		d.SubcategoryID = nil
	}
	return nil
}

func (r *fakeDocuments) UpdateFile(_ context.Context, id int64, path string, size int64, mimeType, originalName string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.updateErr != nil {
		return r.c.updateErr
	}
	d, ok := r.c.docs[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.FilePath, d.FileSize, d.FileType, d.OriginalName = path, size, mimeType, originalName
	return nil
}

func (r *fakeDocuments) SetExpiry(_ context.Context, id int64, expiresAt *time.Time, renewable bool) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.docs[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.ExpiresAt, d.Renewable = expiresAt, renewable
	return nil
}

func (r *fakeDocuments) Delete(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.docs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.c.docs, id)
	return nil
}

func (r *fakeDocuments) matches(d *models.Document, f models.DocumentFilter) bool {
	if f.CategoryID != nil && d.CategoryID != *f.CategoryID {
		return false
	}
	if f.SubcategoryID != nil && (d.SubcategoryID == nil || *d.SubcategoryID != *f.SubcategoryID) {
		return false
	}
	if f.TagName != nil {
		found := false
		for _, t := range r.c.tagsOf(d.ID) {
			if t == *f.TagName {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.Term != "" {
		term := strings.ToLower(f.Term)
		if !strings.Contains(strings.ToLower(d.Title), term) && !strings.Contains(strings.ToLower(d.Description), term) {
			return false
		}
	}
	return true
}

func (r *fakeDocuments) List(_ context.Context, f models.DocumentFilter) ([]models.Document, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []models.Document
	for _, d := range r.c.docs {
		if r.matches(d, f) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset >= len(out) {
		return []models.Document{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeDocuments) Count(_ context.Context, f models.DocumentFilter) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var n int64
	for _, d := range r.c.docs {
		if r.matches(d, f) {
			n++
		}
	}
	return n, nil
}

func (r *fakeDocuments) ListFilePaths(context.Context) ([]string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []string
	for _, d := range r.c.docs {
		out = append(out, d.FilePath)
	}
	return out, nil
}

// -------- categories --------

type fakeCategories struct{ c *memCatalog }

func (r *fakeCategories) Create(_ context.Context, cat *models.Category) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cp := *cat
	cp.ID = r.c.id()
	r.c.categories[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeCategories) GetByID(_ context.Context, id int64) (*models.Category, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cat, ok := r.c.categories[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *cat
	return &cp, nil
}

func (r *fakeCategories) List(context.Context) ([]models.Category, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []models.Category
	for _, cat := range r.c.categories {
		out = append(out, *cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeCategories) Update(_ context.Context, cat *models.Category) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.categories[cat.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *cat
	r.c.categories[cat.ID] = &cp
	return nil
}

func (r *fakeCategories) Delete(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.categories[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.c.categories, id)
	for sid, s := range r.c.subs {
		if s.CategoryID == id {
			delete(r.c.subs, sid)
		}
	}
	return nil
}

func (r *fakeCategories) ExistsByName(_ context.Context, name string, excludeID int64) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, cat := range r.c.categories {
		if cat.ID != excludeID && strings.EqualFold(cat.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCategories) CountDocuments(_ context.Context, id int64) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var n int64
	for _, d := range r.c.docs {
		if d.CategoryID == id {
			n++
		}
	}
	return n, nil
}

func (r *fakeCategories) CreateSubcategory(_ context.Context, s *models.Subcategory) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cp := *s
	cp.ID = r.c.id()
	r.c.subs[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeCategories) GetSubcategory(_ context.Context, id int64) (*models.Subcategory, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.subs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeCategories) ListSubcategories(_ context.Context, categoryID int64) ([]models.Subcategory, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []models.Subcategory
	for _, s := range r.c.subs {
		if s.CategoryID == categoryID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeCategories) UpdateSubcategory(_ context.Context, s *models.Subcategory) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.subs[s.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *s
	r.c.subs[s.ID] = &cp
	return nil
}

func (r *fakeCategories) DeleteSubcategory(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.subs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.c.subs, id)
	return nil
}

func (r *fakeCategories) SubcategoryExistsByName(_ context.Context, categoryID int64, name string, excludeID int64) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, s := range r.c.subs {
		if s.CategoryID == categoryID && s.ID != excludeID && strings.EqualFold(s.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCategories) CountSubcategoryDocuments(_ context.Context, id int64) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var n int64
	for _, d := range r.c.docs {
		if d.SubcategoryID != nil && *d.SubcategoryID == id {
			n++
		}
	}
	return n, nil
}

// -------- tags --------

type fakeTags struct{ c *memCatalog }

func (r *fakeTags) GetOrCreate(_ context.Context, name string) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for id, n := range r.c.tags {
		if n == name {
			return id, nil
		}
	}
	id := r.c.id()
	r.c.tags[id] = name
	return id, nil
}

func (r *fakeTags) GetByName(_ context.Context, name string) (*models.Tag, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for id, n := range r.c.tags {
		if n == name {
			return &models.Tag{ID: id, Name: n}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeTags) Link(_ context.Context, documentID, tagID int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.links[documentID] == nil {
		r.c.links[documentID] = make(map[int64]struct{})
	}
	r.c.links[documentID][tagID] = struct{}{}
	return nil
}

func (r *fakeTags) Unlink(_ context.Context, documentID, tagID int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	delete(r.c.links[documentID], tagID)
	return nil
}

func (r *fakeTags) UnlinkAll(_ context.Context, documentID int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	delete(r.c.links, documentID)
	return nil
}

func (r *fakeTags) ListForDocument(_ context.Context, documentID int64) ([]string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.tagsOf(documentID), nil
}

func (r *fakeTags) ListForDocuments(_ context.Context, ids []int64) (map[int64][]string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	out := make(map[int64][]string, len(ids))
	for _, id := range ids {
		if t := r.c.tagsOf(id); len(t) > 0 {
			out[id] = t
		}
	}
	return out, nil
}

func (r *fakeTags) List(context.Context) ([]models.Tag, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []models.Tag
	for id, n := range r.c.tags {
		t := models.Tag{ID: id, Name: n}
		for _, l := range r.c.links {
			if _, ok := l[id]; ok {
				t.UsageCount++
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeTags) Delete(_ context.Context, id int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.tags[id]; !ok {
		return common.ErrorNotFound
	}
	for _, l := range r.c.links {
		if _, ok := l[id]; ok {
			return common.ErrorInUse
		}
	}
	delete(r.c.tags, id)
	return nil
}

// -------- activity logs --------

type fakeLogs struct{ c *memCatalog }

func (r *fakeLogs) Create(_ context.Context, e *models.ActivityLog) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.logErr != nil {
		return r.c.logErr
	}
	e.ID = r.c.id()
	e.CreatedAt = time.Now()
	r.c.logs = append(r.c.logs, *e)
	return nil
}

func (r *fakeLogs) List(_ context.Context, f models.LogFilter) ([]models.ActivityLog, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []models.ActivityLog
	for _, l := range r.c.logs {
		if f.Action == "" || l.Action == f.Action {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLogs) Count(ctx context.Context, f models.LogFilter) (int64, error) {
	items, err := r.List(ctx, f)
	return int64(len(items)), err
}

func (r *fakeLogs) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	kept := r.c.logs[:0]
	var n int64
	for _, l := range r.c.logs {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.c.logs = kept
	return n, nil
}

func (r *fakeLogs) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	kept := r.c.logs[:0]
	var n int64
	for _, l := range r.c.logs {
		if l.UserID != nil && *l.UserID == userID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.c.logs = kept
	return n, nil
}

// -------- users --------

type fakeUsers struct{ c *memCatalog }

func (r *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.users[u.Username]; ok {
		return nil, fmt.Errorf("%w: user %s", common.ErrorConflict, u.Username)
	}
	cp := *u
	cp.ID = r.c.id()
	cp.CreatedAt = time.Now()
	r.c.users[u.Username] = &cp
	out := cp
	return &out, nil
}

func (r *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	u, ok := r.c.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, u := range r.c.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

// -------- helpers --------

// newTxDB opens an empty in-memory database. The fakes ignore it; it only
// gives dbx.WithTx something real to begin and commit.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
