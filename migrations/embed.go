// Package migrations holds the PostgreSQL schema of the review service.
package migrations

import "embed"

// FS contains every *.up.sql migration, applied in lexical order by
// database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
