// Package migrations embeds the versioned goose SQL migrations for the
// catalog schema. They run once at startup, never from request handlers.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
