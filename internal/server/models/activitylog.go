package models

import "time"

// ActivityLog is an append-only audit record.
type ActivityLog struct {
	ID          int64
	UserID      *int64
	Username    *string
	Action      string
	Description string
	IPAddress   string
	UserAgent   string
	EntityType  *string
	EntityID    *int64
	CreatedAt   time.Time
}

// LogFilter narrows audit log listings.
type LogFilter struct {
	UserID     *int64
	Action     string
	EntityType string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
