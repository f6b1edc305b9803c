package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/activitylogs"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/categories"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/tags"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose several writes atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Documents(db dbx.DBTX) documents.Repository
	Categories(db dbx.DBTX) categories.Repository
	Tags(db dbx.DBTX) tags.Repository
	ActivityLogs(db dbx.DBTX) activitylogs.Repository
}
