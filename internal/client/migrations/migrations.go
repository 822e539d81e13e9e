// Package migrations embeds the goose migrations of the local upload history.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
