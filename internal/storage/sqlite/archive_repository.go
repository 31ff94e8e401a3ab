package sqlite

import (
	"context"
	"database/sql"

	"github.com/iteehub/itee_hub/internal/storage"
)

// ArchiveRepository stores file and delivery records in SQLite.
type ArchiveRepository struct {
	db *sql.DB
}

var _ storage.Repository = (*ArchiveRepository)(nil)

func NewArchiveRepository(dbConn *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{db: dbConn}
}

// AddFile appends a file record. No uniqueness check is performed.
func (r *ArchiveRepository) AddFile(ctx context.Context, link string, lastModified int64, periodLabel, contentHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (link, last_modified, content_hash, period_label) VALUES (?, ?, ?, ?)`,
		link, lastModified, contentHash, periodLabel,
	)

	return err
}

// GetFile returns all records matching the link where either the content hash
// or the last-modified timestamp agrees. Returns a nil slice when no rows match.
func (r *ArchiveRepository) GetFile(ctx context.Context, link string, lastModified int64, contentHash string) ([]storage.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT link, last_modified, content_hash, period_label
		FROM files
		WHERE link = ? AND (content_hash = ? OR last_modified = ?)`,
		link, contentHash, lastModified,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFileRecords(rows)
}

// AddDelivery appends a delivery record for the chat.
func (r *ArchiveRepository) AddDelivery(ctx context.Context, chatID, contentHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deliveries (chat_id, content_hash) VALUES (?, ?)`,
		chatID, contentHash,
	)

	return err
}

// GetPending returns every file record without a delivery record for the
// chat, ordered by ascending last_modified so the oldest undelivered file is
// sent first even when downloads happened out of order.
func (r *ArchiveRepository) GetPending(ctx context.Context, chatID string) ([]storage.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.link, f.last_modified, f.content_hash, f.period_label
		FROM files AS f
		LEFT JOIN deliveries AS d ON f.content_hash = d.content_hash AND d.chat_id = ?
		WHERE d.content_hash IS NULL
		ORDER BY f.last_modified ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFileRecords(rows)
}

func scanFileRecords(rows *sql.Rows) ([]storage.FileRecord, error) {
	var records []storage.FileRecord

	for rows.Next() {
		var record storage.FileRecord
		if err := rows.Scan(&record.Link, &record.LastModified, &record.ContentHash, &record.PeriodLabel); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
