// Package handlers implements the HTTP endpoints of the API on top of the
// service layer.
package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

type documentDTO struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CategoryID      int64      `json:"category_id"`
	CategoryName    string     `json:"category_name"`
	SubcategoryID   *int64     `json:"subcategory_id,omitempty"`
	SubcategoryName *string    `json:"subcategory_name,omitempty"`
	FileName        string     `json:"file_name"`
	FileSize        int64      `json:"file_size"`
	FileType        string     `json:"file_type"`
	UploadedBy      int64      `json:"uploaded_by"`
	UploaderName    string     `json:"uploader_name"`
	Tags            []string   `json:"tags"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Renewable       bool       `json:"renewable"`
}

// toDocumentDTO never exposes the blob key.
func toDocumentDTO(d *models.Document) documentDTO {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentDTO{
		ID:              d.ID,
		Title:           d.Title,
		Description:     d.Description,
		CategoryID:      d.CategoryID,
		CategoryName:    d.CategoryName,
		SubcategoryID:   d.SubcategoryID,
		SubcategoryName: d.SubcategoryName,
		FileName:        d.OriginalName,
		FileSize:        d.FileSize,
		FileType:        d.FileType,
		UploadedBy:      d.UploadedBy,
		UploaderName:    d.UploaderName,
		Tags:            tags,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ExpiresAt:       d.ExpiresAt,
		Renewable:       d.Renewable,
	}
}

type categoryDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type subcategoryDTO struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type tagDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	UsageCount int64  `json:"usage_count"`
}

type activityLogDTO struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Username    *string   `json:"username,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	EntityType  *string   `json:"entity_type,omitempty"`
	EntityID    *int64    `json:"entity_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type nameRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", common.ErrorValidation, name)
	}
	return id, nil
}

// optionalID parses a positive id. Empty input yields nil.
func optionalID(raw, name string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s", common.ErrorValidation, name)
	}
	return &id, nil
}

func optionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", common.ErrorValidation, name)
	}
	return n, nil
}

// optionalDate accepts YYYY-MM-DD or RFC 3339.
func optionalDate(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid %s", common.ErrorValidation, name)
}

func parseBool(raw string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}
