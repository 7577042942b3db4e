// Package migrations embeds the schema for the request-audit database, which
// lives apart from the primary store and migrates independently.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
