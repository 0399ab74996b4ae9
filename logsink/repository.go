package logsink

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StoredRow is a Row persisted to the local SQLite buffer, with a count
// of reporting upload attempts, mirroring the teacher's
// StoredBessReading/StoredMeterReading pattern.
type StoredRow struct {
	ID                 uuid.UUID `gorm:"primaryKey"`
	Row                `gorm:"embedded"`
	UploadAttemptCount uint
}

// StoredIntervalRow is an IntervalRow persisted the same way.
type StoredIntervalRow struct {
	ID                 uuid.UUID `gorm:"primaryKey"`
	IntervalRow        `gorm:"embedded"`
	UploadAttemptCount uint
}

func newStoredRow(row Row) StoredRow {
	return StoredRow{ID: uuid.New(), Row: row, UploadAttemptCount: 0}
}

func newStoredIntervalRow(row IntervalRow) StoredIntervalRow {
	return StoredIntervalRow{ID: uuid.New(), IntervalRow: row, UploadAttemptCount: 0}
}

// Repository buffers rows to a local SQLite file before they are
// uploaded by the reporting package, so a temporarily-unavailable upload
// target never blocks or loses data.
type Repository struct {
	db *gorm.DB
}

// NewRepository opens (or creates) the SQLite database at path and
// migrates its schema.
func NewRepository(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&StoredRow{}, &StoredIntervalRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// StoreRow buffers one tick's Row.
func (r *Repository) StoreRow(row Row) error {
	return r.db.Create(newStoredRow(row)).Error
}

// StoreIntervalRow buffers one block's IntervalRow.
func (r *Repository) StoreIntervalRow(row IntervalRow) error {
	return r.db.Create(newStoredIntervalRow(row)).Error
}

// PendingRows returns up to limit buffered rows, oldest/least-attempted
// first, for upload.
func (r *Repository) PendingRows(limit int) ([]StoredRow, error) {
	var rows []StoredRow
	result := r.db.Limit(limit).Order("upload_attempt_count asc, timestamp asc").Find(&rows)
	return rows, result.Error
}

// PendingIntervalRows returns up to limit buffered IntervalRows, oldest/
// least-attempted first, for upload.
func (r *Repository) PendingIntervalRows(limit int) ([]StoredIntervalRow, error) {
	var rows []StoredIntervalRow
	result := r.db.Limit(limit).Order("upload_attempt_count asc, block_start asc").Find(&rows)
	return rows, result.Error
}

// IncrementUploadAttemptCount bumps the attempt counter for the given
// buffered rows (StoredRow or StoredIntervalRow).
func (r *Repository) IncrementUploadAttemptCount(rows interface{}) error {
	return r.db.Model(rows).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1)).Error
}

// DeleteRows removes the given buffered rows once they are confirmed
// uploaded.
func (r *Repository) DeleteRows(rows interface{}) error {
	return r.db.Delete(rows).Error
}

// Prune removes buffered rows older than cutoff, regardless of upload
// status, to bound local disk use.
func (r *Repository) Prune(cutoff time.Time) error {
	if err := r.db.Where("timestamp < ?", cutoff).Delete(&StoredRow{}).Error; err != nil {
		return fmt.Errorf("prune rows: %w", err)
	}
	if err := r.db.Where("block_start < ?", cutoff).Delete(&StoredIntervalRow{}).Error; err != nil {
		return fmt.Errorf("prune interval rows: %w", err)
	}
	return nil
}
