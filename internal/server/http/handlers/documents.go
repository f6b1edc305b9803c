package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the file itself.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documents     DocumentService
	artifacts     ArtifactStore
	log           logging.Logger
	maxUploadSize int64
}

func NewDocumentHandler(documents DocumentService, artifacts ArtifactStore, log logging.Logger, maxUploadSize int64) *DocumentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = common.DefaultMaxUploadSize
	}
	return &DocumentHandler{
		documents:     documents,
		artifacts:     artifacts,
		log:           log.With("handler", "documents"),
		maxUploadSize: maxUploadSize,
	}
}

type listDocumentsResponse struct {
	Documents []documentDTO `json:"documents"`
	Total     int64         `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// List serves GET /api/documents. Query parameters: q, category,
// subcategory, tag, limit, offset.
func (h *DocumentHandler) List(c *gin.Context) {
	in, err := searchInput(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	docs, err := h.documents.Search(ctx, in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	total, err := h.documents.Count(ctx, in.Filter())
	if err != nil {
		response.Fail(c, err)
		return
	}

	out := make([]documentDTO, 0, len(docs))
	for i := range docs {
		out = append(out, toDocumentDTO(&docs[i]))
	}
	response.RespondOK(c, listDocumentsResponse{
		Documents: out,
		Total:     total,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
}

func searchInput(c *gin.Context) (services.SearchInput, error) {
	var (
		in  services.SearchInput
		err error
	)
	in.Term = c.Query("q")
	in.TagName = c.Query("tag")
	if in.CategoryID, err = optionalID(c.Query("category"), "category"); err != nil {
		return in, err
	}
	if in.SubcategoryID, err = optionalID(c.Query("subcategory"), "subcategory"); err != nil {
		return in, err
	}
	if in.Limit, err = optionalInt(c.Query("limit"), "limit"); err != nil {
		return in, err
	}
	if in.Offset, err = optionalInt(c.Query("offset"), "offset"); err != nil {
		return in, err
	}
	return in, nil
}

// readFormFile reads the "file" part of a multipart request. One byte past
// the limit is kept so the size check downstream can reject it.
func (h *DocumentHandler) readFormFile(c *gin.Context) (*multipart.FileHeader, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: a file is required (max %d bytes)", common.ErrorValidation, h.maxUploadSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot read uploaded file", common.ErrorValidation)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cannot read uploaded file", common.ErrorValidation)
	}
	return fh, raw, nil
}

func (h *DocumentHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
}

// Upload serves POST /api/documents (multipart/form-data).
func (h *DocumentHandler) Upload(c *gin.Context) {
	h.limitBody(c)
	fh, content, err := h.readFormFile(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	in := services.UploadInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		FileName:    fh.Filename,
		Content:     content,
		Tags:        services.ParseTags(c.PostForm("tags")),
		Renewable:   parseBool(c.PostForm("renewable")),
	}
	categoryID, err := optionalID(c.PostForm("category_id"), "category_id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if categoryID != nil {
		in.CategoryID = *categoryID
	}
	if in.SubcategoryID, err = optionalID(c.PostForm("subcategory_id"), "subcategory_id"); err != nil {
		response.Fail(c, err)
		return
	}
	if in.ExpiresAt, err = optionalDate(c.PostForm("expires_at"), "expires_at"); err != nil {
		response.Fail(c, err)
		return
	}

	rc, _ := auth.FromContext(c.Request.Context())
	id, err := h.documents.Upload(c.Request.Context(), rc, in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, idResponse{ID: id})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, toDocumentDTO(doc))
}

type updateDocumentRequest struct {
	Title            *string   `json:"title"`
	Description      *string   `json:"description"`
	CategoryID       *int64    `json:"category_id"`
	SubcategoryID    *int64    `json:"subcategory_id"`
	ClearSubcategory bool      `json:"clear_subcategory"`
	Tags             *[]string `json:"tags"`
}

// Update serves PATCH /api/documents/:id. Absent fields are kept; a tags
// array replaces the tag set.
func (h *DocumentHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, fmt.Errorf("%w: malformed request body", common.ErrorValidation))
		return
	}

	fields := models.DocumentFields{
		Title:            req.Title,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		SubcategoryID:    req.SubcategoryID,
		ClearSubcategory: req.ClearSubcategory,
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.documents.UpdateMetadata(c.Request.Context(), rc, id, fields, req.Tags); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReplaceFile serves PUT /api/documents/:id/file (multipart/form-data).
func (h *DocumentHandler) ReplaceFile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.limitBody(c)
	fh, content, err := h.readFormFile(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.documents.ReplaceFile(c.Request.Context(), rc, id, fh.Filename, content); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.documents.Delete(c.Request.Context(), rc, id); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type expiryRequest struct {
	ExpiresAt *string `json:"expires_at"`
	Renewable bool    `json:"renewable"`
}

// SetExpiry serves PUT /api/documents/:id/expiry. A null expires_at clears
// the expiry date.
func (h *DocumentHandler) SetExpiry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req expiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, fmt.Errorf("%w: malformed request body", common.ErrorValidation))
		return
	}
	var raw string
	if req.ExpiresAt != nil {
		raw = *req.ExpiresAt
	}
	expiresAt, err := optionalDate(raw, "expires_at")
	if err != nil {
		response.Fail(c, err)
		return
	}

	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.documents.SetExpiry(c.Request.Context(), rc, id, expiresAt, req.Renewable); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Download streams a freshly decrypted copy as an attachment and releases
// it afterwards.
func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	ctx := c.Request.Context()
	rc, _ := auth.FromContext(ctx)

	artifact, err := h.documents.PrepareForRead(ctx, rc, id, services.PurposeDownload)
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer h.documents.ReleaseArtifact(ctx, artifact.Path)

	f, err := os.Open(artifact.Path)
	if err != nil {
		h.log.Error(ctx, "artifact open failed", "artifact", artifact.Name, "error", err)
		response.Fail(c, fmt.Errorf("%w: %v", common.ErrorStorage, err))
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.MIMEType, f, map[string]string{
		"Content-Disposition":    disposition("attachment", artifact.FileName),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "no-store",
	})
}

type viewResponse struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// View prepares an artifact for inline display. The client fetches it from
// the returned URL and deletes it when done; the sweeper covers the rest.
func (h *DocumentHandler) View(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())

	artifact, err := h.documents.PrepareForRead(c.Request.Context(), rc, id, services.PurposeView)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, viewResponse{
		Name:     artifact.Name,
		FileName: artifact.FileName,
		MIMEType: artifact.MIMEType,
		Size:     artifact.Size,
		URL:      "/api/artifacts/" + artifact.Name,
	})
}

// Artifact streams a prepared artifact inline.
func (h *DocumentHandler) Artifact(c *gin.Context) {
	name := c.Param("name")
	f, err := h.artifacts.Open(name)
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Fail(c, fmt.Errorf("%w: %v", common.ErrorStorage, err))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), services.MIMEForExtension(filepath.Ext(name)), f, map[string]string{
		"Content-Disposition":    disposition("inline", artifactFileName(name)),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "no-store",
	})
}

// ReleaseArtifact deletes a prepared artifact. An artifact that is already
// gone counts as released.
func (h *DocumentHandler) ReleaseArtifact(c *gin.Context) {
	err := h.artifacts.ReleaseName(c.Param("name"))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func disposition(kind, fileName string) string {
	v := mime.FormatMediaType(kind, map[string]string{"filename": fileName})
	if v == "" {
		return kind
	}
	return v
}

// artifactFileName strips the random prefix from an artifact name.
func artifactFileName(name string) string {
	name = filepath.Base(name)
	if len(name) > 37 && name[36] == '_' {
		return name[37:]
	}
	return name
}
