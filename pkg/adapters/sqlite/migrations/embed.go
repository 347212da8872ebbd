package migrations

import "embed"

// FS contains embedded SQLite migrations for the venueflow repository.
//
//go:embed *.sql
var FS embed.FS
