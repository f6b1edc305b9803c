package dbx

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify translates a database/sql or pgx error into one of the common
// sentinel errors while keeping the original in the chain. nil stays nil.
//
//	sql.ErrNoRows      -> common.ErrorNotFound
//	unique violation   -> common.ErrorConflict
//	foreign key        -> common.ErrorInUse
//	anything else      -> common.ErrorPersistence
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorConflict) ||
		errors.Is(err, common.ErrorInUse) || errors.Is(err, common.ErrorPersistence) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrorInUse, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: db error: %w", common.ErrorPersistence, err)
}
