// Package migrations embeds the goose SQL migrations applied to every
// tenant schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
