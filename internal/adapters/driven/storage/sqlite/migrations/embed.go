// Package migrations holds the versioned schema of the chunk and
// conversation history tables.
package migrations

import "embed"

// FS holds the NNN_name.up.sql and NNN_name.down.sql files.
//
//go:embed *.sql
var FS embed.FS
