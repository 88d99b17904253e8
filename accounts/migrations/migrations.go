// Package migrations embeds the schema of the account store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
