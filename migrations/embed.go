// Package migrations embeds the SQL schema for the issued credential and
// revocation handle stores.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
