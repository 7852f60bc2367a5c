// Package migrations embeds el esquema SQL del backend postgres.
package migrations

import "embed"

// FS contiene las migraciones, ordenadas por prefijo numérico.
//
//go:embed *.sql
var FS embed.FS
