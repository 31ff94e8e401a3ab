package storage

import "context"

// FileRecord represents a downloaded archive file. Records are append-only:
// a new row is written per completed download and never mutated or deleted.
type FileRecord struct {
	Link         string
	LastModified int64
	ContentHash  string
	PeriodLabel  string
}

// DeliveryRecord marks a file as sent to a chat. Uniqueness of
// (chat_id, content_hash) is enforced by callers, not by the store.
type DeliveryRecord struct {
	ChatID      string
	ContentHash string
}

// FileRepository persists downloaded file metadata.
type FileRepository interface {
	// AddFile appends a FileRecord. The caller is responsible for not
	// double-inserting.
	AddFile(ctx context.Context, link string, lastModified int64, periodLabel, contentHash string) error

	// GetFile returns all records where the link matches exactly and either
	// the content hash or the last-modified timestamp agrees. The OR keeps
	// detection working against servers that change one but not the other.
	// A nil slice means no match.
	GetFile(ctx context.Context, link string, lastModified int64, contentHash string) ([]FileRecord, error)
}

// DeliveryRepository tracks which files have been sent to which chat.
type DeliveryRepository interface {
	// AddDelivery appends a DeliveryRecord after a successful send.
	AddDelivery(ctx context.Context, chatID, contentHash string) error

	// GetPending returns every FileRecord whose content hash has no delivery
	// record for the chat, oldest last-modified first.
	GetPending(ctx context.Context, chatID string) ([]FileRecord, error)
}

// Repository is the full record store surface.
type Repository interface {
	FileRepository
	DeliveryRepository
}
