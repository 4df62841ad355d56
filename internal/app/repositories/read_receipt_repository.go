package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/dberrors"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// ReadReceiptRepository handles the idempotent per-(viewer, record) read
// receipts for notes and appointments. FindOrCreate relies on the unique
// pair constraint: the first call inserts, every later call returns the
// existing row.
type ReadReceiptRepository struct {
	DB *pgxpool.Pool
}

// NewReadReceiptRepository creates a new instance of ReadReceiptRepository.
func NewReadReceiptRepository(db *pgxpool.Pool) *ReadReceiptRepository {
	return &ReadReceiptRepository{DB: db}
}

type receiptRow struct {
	id        int64
	viewerID  int64
	recordID  int64
	createdAt time.Time
}

// FindOrCreateNoteRead returns the receipt for (viewerID, noteID),
// creating it on first call. The second return value reports whether a new
// row was created.
func (r *ReadReceiptRepository) FindOrCreateNoteRead(ctx context.Context, viewerID, noteID int64) (*models.NoteRead, bool, error) {
	row, created, err := r.findOrCreate(ctx, "note_reads", "note_id", viewerID, noteID)
	if err != nil {
		return nil, false, err
	}
	return &models.NoteRead{
		ID:        row.id,
		ViewerID:  row.viewerID,
		NoteID:    row.recordID,
		CreatedAt: row.createdAt,
	}, created, nil
}

// FindOrCreateAppointmentRead returns the receipt for
// (viewerID, appointmentID), creating it on first call.
func (r *ReadReceiptRepository) FindOrCreateAppointmentRead(ctx context.Context, viewerID, appointmentID int64) (*models.AppointmentRead, bool, error) {
	row, created, err := r.findOrCreate(ctx, "appointment_reads", "appointment_id", viewerID, appointmentID)
	if err != nil {
		return nil, false, err
	}
	return &models.AppointmentRead{
		ID:            row.id,
		ViewerID:      row.viewerID,
		AppointmentID: row.recordID,
		CreatedAt:     row.createdAt,
	}, created, nil
}

// HasNoteRead reports whether the viewer holds a receipt for the note.
func (r *ReadReceiptRepository) HasNoteRead(ctx context.Context, viewerID, noteID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM note_reads WHERE viewer_id = $1 AND note_id = $2)`,
		viewerID, noteID).Scan(&exists)
	return exists, err
}

// HasAppointmentRead reports whether the viewer holds a receipt for the
// appointment.
func (r *ReadReceiptRepository) HasAppointmentRead(ctx context.Context, viewerID, appointmentID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointment_reads WHERE viewer_id = $1 AND appointment_id = $2)`,
		viewerID, appointmentID).Scan(&exists)
	return exists, err
}

func (r *ReadReceiptRepository) findOrCreate(ctx context.Context, table, fkColumn string, viewerID, recordID int64) (*receiptRow, bool, error) {
	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (viewer_id, %s) VALUES ($1, $2)
		 ON CONFLICT (viewer_id, %s) DO NOTHING
		 RETURNING id, viewer_id, %s, created_at`,
		table, fkColumn, fkColumn, fkColumn)

	var row receiptRow
	err := r.DB.QueryRow(ctx, insertSQL, viewerID, recordID).
		Scan(&row.id, &row.viewerID, &row.recordID, &row.createdAt)
	if err == nil {
		return &row, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		// The record can be deleted between the caller's existence check
		// and this insert.
		if dberrors.IsForeignKeyViolation(err) {
			return nil, false, apperrors.ErrResourceNotFound
		}
		logger.Error().Err(err).Str("table", table).Int64("viewerID", viewerID).Msg("Error creating read receipt")
		return nil, false, err
	}

	// ON CONFLICT DO NOTHING returns no row when the receipt already
	// exists; reselect it.
	selectSQL := fmt.Sprintf(
		`SELECT id, viewer_id, %s, created_at FROM %s WHERE viewer_id = $1 AND %s = $2`,
		fkColumn, table, fkColumn)
	err = r.DB.QueryRow(ctx, selectSQL, viewerID, recordID).
		Scan(&row.id, &row.viewerID, &row.recordID, &row.createdAt)
	if err != nil {
		logger.Error().Err(err).Str("table", table).Int64("viewerID", viewerID).Msg("Error reselecting read receipt")
		return nil, false, err
	}
	return &row, false, nil
}
