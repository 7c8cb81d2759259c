//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

// openDB opens the corpus database with the cgo sqlite driver.
func openDB(dataSource string) (*sql.DB, error) {
	return configureDB(sql.Open(sqliteDriver, dataSource))
}
