package migrations

import "embed"

// FS holds the plan store schema, applied in file-name order.
//
//go:embed *.sql
var FS embed.FS
