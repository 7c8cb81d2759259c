package main

import (
	"database/sql"
	"fmt"
)

// configureDB pins the pool to one connection, as sqlite allows a single
// writer and both the bot loop and the API write to the corpus.
func configureDB(db *sql.DB, err error) (*sql.DB, error) {
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not reach database: %w", err)
	}
	return db, nil
}
