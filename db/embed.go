// Package db carries the SQL schema migrations applied by goose.
package db

import "embed"

// Migrations holds the goose migration files bundled into the binaries.
//
//go:embed migrations/*.sql
var Migrations embed.FS
