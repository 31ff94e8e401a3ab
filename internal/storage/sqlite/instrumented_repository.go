package sqlite

import (
	"context"
	"database/sql"

	"github.com/iteehub/itee_hub/internal/storage"
	"github.com/iteehub/itee_hub/internal/telemetry"
)

// InstrumentedArchiveRepository wraps ArchiveRepository with telemetry.
type InstrumentedArchiveRepository struct {
	repo      *ArchiveRepository
	telemetry *telemetry.Telemetry
}

var _ storage.Repository = (*InstrumentedArchiveRepository)(nil)

// NewInstrumentedArchiveRepository creates a new instrumented archive repository.
func NewInstrumentedArchiveRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedArchiveRepository {
	return &InstrumentedArchiveRepository{
		repo:      NewArchiveRepository(dbConn),
		telemetry: tel,
	}
}

// AddFile appends a file record with telemetry.
func (r *InstrumentedArchiveRepository) AddFile(ctx context.Context, link string, lastModified int64, periodLabel, contentHash string) error {
	return r.telemetry.InstrumentDBOperation(ctx, "add_file", func(ctx context.Context) error {
		return r.repo.AddFile(ctx, link, lastModified, periodLabel, contentHash)
	})
}

// GetFile queries file records with telemetry.
func (r *InstrumentedArchiveRepository) GetFile(ctx context.Context, link string, lastModified int64, contentHash string) ([]storage.FileRecord, error) {
	var result []storage.FileRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_file", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetFile(ctx, link, lastModified, contentHash)

		return opErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// AddDelivery appends a delivery record with telemetry.
func (r *InstrumentedArchiveRepository) AddDelivery(ctx context.Context, chatID, contentHash string) error {
	return r.telemetry.InstrumentDBOperation(ctx, "add_delivery", func(ctx context.Context) error {
		return r.repo.AddDelivery(ctx, chatID, contentHash)
	})
}

// GetPending queries undelivered file records with telemetry.
func (r *InstrumentedArchiveRepository) GetPending(ctx context.Context, chatID string) ([]storage.FileRecord, error) {
	var result []storage.FileRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_pending", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.repo.GetPending(ctx, chatID)

		return opErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
