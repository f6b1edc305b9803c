package models

import "time"

type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subcategory belongs to exactly one Category and is removed with it.
type Subcategory struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag names are stored lower-cased.
type Tag struct {
	ID         int64
	Name       string
	UsageCount int64
	CreatedAt  time.Time
}
