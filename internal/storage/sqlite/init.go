package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database and creates the files and deliveries
// tables if they don't exist. Neither table carries uniqueness constraints;
// callers insert at most once per downloaded file or successful delivery.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS files (
		link TEXT,
		last_modified INTEGER,
		content_hash TEXT,
		period_label TEXT
	)`)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS deliveries (
		chat_id TEXT,
		content_hash TEXT
	)`)
	if err != nil {
		return nil, err
	}

	return db, nil
}
