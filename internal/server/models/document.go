// Package models defines server-side data models persisted in the catalog.
package models

import "time"

// Document is a catalog row describing one encrypted blob.
//
// FileSize and FileType describe the plaintext content, not the envelope.
type Document struct {
	ID            int64
	Title         string
	Description   string
	CategoryID    int64
	SubcategoryID *int64

	// FilePath is the opaque blob key in the blob store.
	FilePath string
	FileSize int64
	FileType string
	// OriginalName is the sanitised client file name without its extension.
	OriginalName string
	Encrypted    bool

	UploadedBy int64
	CreatedAt  time.Time
	UpdatedAt  time.Time

	ExpiresAt *time.Time
	Renewable bool

	// Read-side joins.
	CategoryName    string
	SubcategoryName *string
	UploaderName    string
	Tags            []string
}

// DocumentFields holds the metadata an edit may change. Nil means "keep";
// ClearSubcategory detaches the document from its subcategory.
type DocumentFields struct {
	Title            *string
	Description      *string
	CategoryID       *int64
	SubcategoryID    *int64
	ClearSubcategory bool
}

// Empty reports whether no field is set.
func (f DocumentFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.CategoryID == nil &&
		f.SubcategoryID == nil && !f.ClearSubcategory
}

// DocumentFilter narrows list, count and search queries.
type DocumentFilter struct {
	CategoryID    *int64
	SubcategoryID *int64
	TagName       *string
	Term          string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// Artifact is a decrypted, transient copy of a document prepared for one
// view or download. It is not tracked in the catalog.
type Artifact struct {
	Path     string
	Name     string
	FileName string
	MIMEType string
	Size     int64
}
