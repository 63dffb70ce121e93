// Package migrations встраивает SQL-миграции удаленного хранилища в бинарник.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
