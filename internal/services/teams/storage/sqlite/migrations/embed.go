package migrations

import "embed"

// FS contains embedded SQLite migrations for teams storage.
//
//go:embed *.sql
var FS embed.FS
