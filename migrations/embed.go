// Package migrations embeds the chat service schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
