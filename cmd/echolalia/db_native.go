//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// openDB opens the corpus database with the pure Go sqlite driver.
func openDB(dataSource string) (*sql.DB, error) {
	return configureDB(sql.Open(sqliteDriver, dataSource))
}
