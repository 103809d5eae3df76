// Package migrations holds the record store schema, applied by store.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
