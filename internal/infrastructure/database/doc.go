// Package database opens the plant's SQLite store (github.com/mattn/go-sqlite3)
// and applies schema migrations.
//
// Migrations are read from any fs.FS; the migrations package embeds the
// plant's. Files are named YYYYMMDD_HHMMSS_description.up.sql, each with an
// optional .down.sql, and are applied in version order inside a transaction
// with their schema_migrations row.
package database
