package migrations

import "embed"

// Embedded schema migrations, one directory per SQL dialect.
// Files apply in filename order; applied files must never be edited.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
