package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

type fakeDocuments struct {
	uploadIn  services.UploadInput
	uploadRC  *auth.RequestContext
	uploadErr error

	updateID     int64
	updateFields models.DocumentFields
	updateTags   *[]string

	replaceName    string
	replaceContent []byte

	deleted []int64

	artifact *models.Artifact
	readErr  error
	purposes []services.Purpose
	released []string

	docs     map[int64]*models.Document
	searchIn services.SearchInput
	total    int64

	expiresAt *time.Time
	renewable bool

	err error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[int64]*models.Document{}}
}

func (f *fakeDocuments) Upload(_ context.Context, rc *auth.RequestContext, in services.UploadInput) (int64, error) {
	f.uploadIn, f.uploadRC = in, rc
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	return 42, nil
}

func (f *fakeDocuments) UpdateMetadata(_ context.Context, _ *auth.RequestContext, id int64, fields models.DocumentFields, tags *[]string) error {
	f.updateID, f.updateFields, f.updateTags = id, fields, tags
	return f.err
}

func (f *fakeDocuments) ReplaceFile(_ context.Context, _ *auth.RequestContext, _ int64, fileName string, content []byte) error {
	f.replaceName, f.replaceContent = fileName, content
	return f.err
}

func (f *fakeDocuments) Delete(_ context.Context, _ *auth.RequestContext, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocuments) PrepareForRead(_ context.Context, _ *auth.RequestContext, _ int64, purpose services.Purpose) (*models.Artifact, error) {
	f.purposes = append(f.purposes, purpose)
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.artifact, nil
}

func (f *fakeDocuments) ReleaseArtifact(_ context.Context, path string) {
	f.released = append(f.released, path)
}

func (f *fakeDocuments) Get(_ context.Context, id int64) (*models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (f *fakeDocuments) Search(_ context.Context, in services.SearchInput) ([]models.Document, error) {
	f.searchIn = in
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocuments) Count(context.Context, models.DocumentFilter) (int64, error) {
	return f.total, nil
}

func (f *fakeDocuments) SetExpiry(_ context.Context, _ *auth.RequestContext, _ int64, expiresAt *time.Time, renewable bool) error {
	f.expiresAt, f.renewable = expiresAt, renewable
	return f.err
}

type fakeCategories struct {
	created   []string
	createErr error
	deleteErr error
	subs      map[int64][]models.Subcategory
}

func (f *fakeCategories) List(context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "Certificates"}, {ID: 2, Name: "Contracts"}}, nil
}

func (f *fakeCategories) Get(_ context.Context, id int64) (*models.Category, error) {
	if id != 1 {
		return nil, common.ErrorNotFound
	}
	return &models.Category{ID: 1, Name: "Certificates"}, nil
}

func (f *fakeCategories) Create(_ context.Context, _ *auth.RequestContext, name, _ string) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, name)
	return int64(len(f.created)), nil
}

func (f *fakeCategories) Update(context.Context, *auth.RequestContext, int64, string, string) error {
	return nil
}

func (f *fakeCategories) Delete(context.Context, *auth.RequestContext, int64) error {
	return f.deleteErr
}

func (f *fakeCategories) ListSubcategories(_ context.Context, categoryID int64) ([]models.Subcategory, error) {
	subs, ok := f.subs[categoryID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return subs, nil
}

func (f *fakeCategories) CreateSubcategory(context.Context, *auth.RequestContext, int64, string, string) (int64, error) {
	return 7, nil
}

func (f *fakeCategories) UpdateSubcategory(context.Context, *auth.RequestContext, int64, string, string) error {
	return nil
}

func (f *fakeCategories) DeleteSubcategory(context.Context, *auth.RequestContext, int64) error {
	return nil
}

type fakeTags struct {
	deleted []int64
}

func (f *fakeTags) List(context.Context) ([]models.Tag, error) {
	return []models.Tag{{ID: 1, Name: "vehicle", UsageCount: 2}}, nil
}

func (f *fakeTags) Delete(_ context.Context, _ *auth.RequestContext, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAudit struct {
	filter models.LogFilter
}

func (f *fakeAudit) List(_ context.Context, rc *auth.RequestContext, filter models.LogFilter) ([]models.ActivityLog, int64, error) {
	if !rc.IsAdmin() {
		return nil, 0, common.ErrorForbidden
	}
	f.filter = filter
	return []models.ActivityLog{{ID: 1, Action: "login", Description: "user logged in"}}, 1, nil
}

type fakeUsers struct {
	loggedOut bool
}

func (f *fakeUsers) Login(_ context.Context, username, password, _, _ string) (*services.LoginResult, error) {
	if username != "admin" || password != "secret" {
		return nil, common.ErrorUnauthorized
	}
	return &services.LoginResult{
		AccessToken: "token-1",
		SessionID:   "s1",
		CSRFToken:   "csrf-1",
		User:        &models.User{ID: 1, Username: "admin", Role: common.RoleSuperAdmin},
	}, nil
}

func (f *fakeUsers) Logout(_ context.Context, rc *auth.RequestContext) error {
	if rc == nil {
		return common.ErrorUnauthorized
	}
	f.loggedOut = true
	return nil
}

// withCaller installs rc the way the auth middleware does.
func withCaller(rc *auth.RequestContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc != nil {
			c.Request = c.Request.WithContext(auth.WithRequestContext(c.Request.Context(), rc))
		}
		c.Next()
	}
}

func adminCaller() *auth.RequestContext {
	return &auth.RequestContext{Identity: auth.Identity{UserID: 1, Username: "admin", Role: common.RoleAdmin, SessionID: "s1"}}
}

func userCaller() *auth.RequestContext {
	return &auth.RequestContext{Identity: auth.Identity{UserID: 2, Username: "reader", Role: common.RoleUser, SessionID: "s2"}}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
