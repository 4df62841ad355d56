package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// NoteRepository handles database operations for notes, their topics and
// their attachments. Topics and attachments are owned child rows addressed
// by note_id; nothing holds a back-reference.
type NoteRepository struct {
	DB *pgxpool.Pool
}

// NewNoteRepository creates a new instance of NoteRepository.
func NewNoteRepository(db *pgxpool.Pool) *NoteRepository {
	return &NoteRepository{DB: db}
}

var noteColumns = []string{
	"n.id", "n.student_sid", "n.subject", "n.body",
	"n.author_uid", "n.author_name", "n.author_role", "n.author_dept_codes",
	"n.created_at", "n.updated_at",
}

func (r *NoteRepository) selectNotes() squirrel.SelectBuilder {
	return squirrel.Select(noteColumns...).
		From("notes n").
		Where("n.deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var n models.Note
	err := row.Scan(
		&n.ID, &n.StudentSID, &n.Subject, &n.Body,
		&n.AuthorUID, &n.AuthorName, &n.AuthorRole, &n.AuthorDeptCodes,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNoteNotFound
		}
		logger.Error().Err(err).Msg("Error scanning note row")
		return nil, err
	}
	return &n, nil
}

// CreateWithReceipt inserts the note with its topics and attachment rows,
// plus the author's own read receipt, in one transaction, so a note is
// never visible half-written and the author always reads their own note
// as seen. created_at is set by the database; updated_at deliberately
// stays NULL until a real post-creation mutation.
func (r *NoteRepository) CreateWithReceipt(ctx context.Context, n *models.Note, authorID int64) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := r.createInTx(ctx, tx, n)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO note_reads (viewer_id, note_id) VALUES ($1, $2) ON CONFLICT (viewer_id, note_id) DO NOTHING`,
		authorID, id)
	if err != nil {
		logger.Error().Err(err).Int64("noteID", id).Msg("Error creating author read receipt")
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func (r *NoteRepository) createInTx(ctx context.Context, tx pgx.Tx, n *models.Note) (int64, error) {
	sql, args, err := squirrel.Insert("notes").
		Columns("student_sid", "subject", "body", "author_uid", "author_name", "author_role", "author_dept_codes").
		Values(n.StudentSID, n.Subject, n.Body, n.AuthorUID, n.AuthorName, n.AuthorRole, n.AuthorDeptCodes).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		logger.Error().Err(err).Msg("Error executing create note query")
		return 0, err
	}

	if err := insertNoteTopics(ctx, tx, id, n.Topics, n.AuthorUID); err != nil {
		return 0, err
	}
	for _, attachment := range n.Attachments {
		if err := insertAttachment(ctx, tx, id, attachment); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// FindByID retrieves a note with its topics and live attachments.
func (r *NoteRepository) FindByID(ctx context.Context, id int64) (*models.Note, error) {
	sqlStr, args, err := r.selectNotes().Where(squirrel.Eq{"n.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	n, err := scanNote(r.DB.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Update rewrites subject and body and diffs the topic set, stamping
// updated_at.
func (r *NoteRepository) Update(ctx context.Context, id int64, subject, body string, topics []string, authorUID string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql, args, err := squirrel.Update("notes").
		Set("subject", subject).
		Set("body", body).
		Set("updated_at", time.Now()).
		Where("deleted_at IS NULL").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	cmdTag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("noteID", id).Msg("Error executing update note query")
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNoteNotFound
	}

	if err := replaceNoteTopics(ctx, tx, id, topics, authorUID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete soft-deletes the note and cascades to its attachments and read
// receipts in one transaction.
func (r *NoteRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	cmdTag, err := tx.Exec(ctx,
		`UPDATE notes SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, now, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNoteNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE note_attachments SET deleted_at = $1 WHERE note_id = $2 AND deleted_at IS NULL`, now, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM note_reads WHERE note_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AddAttachment appends one attachment row and stamps the note's
// updated_at, atomically.
func (r *NoteRepository) AddAttachment(ctx context.Context, noteID int64, attachment models.NoteAttachment) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertAttachment(ctx, tx, noteID, attachment); err != nil {
		return err
	}
	if err := touchNote(ctx, tx, noteID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveAttachment soft-deletes one attachment and stamps the note's
// updated_at. Removing the last attachment is valid.
func (r *NoteRepository) RemoveAttachment(ctx context.Context, noteID, attachmentID int64) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmdTag, err := tx.Exec(ctx,
		`UPDATE note_attachments SET deleted_at = $1 WHERE id = $2 AND note_id = $3 AND deleted_at IS NULL`,
		time.Now(), attachmentID, noteID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrAttachmentNotFound
	}
	if err := touchNote(ctx, tx, noteID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindAttachment retrieves one live attachment by id.
func (r *NoteRepository) FindAttachment(ctx context.Context, attachmentID int64) (*models.NoteAttachment, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, note_id, blob_ref, filename, uploaded_by, created_at
		 FROM note_attachments WHERE id = $1 AND deleted_at IS NULL`, attachmentID)
	var a models.NoteAttachment
	err := row.Scan(&a.ID, &a.NoteID, &a.BlobRef, &a.Filename, &a.UploadedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAttachments retrieves live attachment rows for a set of ids; missing
// ids are simply absent from the result.
func (r *NoteRepository) FindAttachments(ctx context.Context, ids []int64) ([]models.NoteAttachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, note_id, blob_ref, filename, uploaded_by, created_at
		 FROM note_attachments WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]models.NoteAttachment, 0, len(ids))
	for rows.Next() {
		var a models.NoteAttachment
		if err := rows.Scan(&a.ID, &a.NoteID, &a.BlobRef, &a.Filename, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// CountAttachments counts the note's live attachments.
func (r *NoteRepository) CountAttachments(ctx context.Context, noteID int64) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT count(*) FROM note_attachments WHERE note_id = $1 AND deleted_at IS NULL`, noteID).Scan(&count)
	return count, err
}

func (r *NoteRepository) loadChildren(ctx context.Context, n *models.Note) error {
	rows, err := r.DB.Query(ctx,
		`SELECT topic FROM note_topics WHERE note_id = $1 ORDER BY id`, n.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			rows.Close()
			return err
		}
		n.Topics = append(n.Topics, topic)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.DB.Query(ctx,
		`SELECT id, note_id, blob_ref, filename, uploaded_by, created_at
		 FROM note_attachments WHERE note_id = $1 AND deleted_at IS NULL ORDER BY id`, n.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a models.NoteAttachment
		if err := rows.Scan(&a.ID, &a.NoteID, &a.BlobRef, &a.Filename, &a.UploadedBy, &a.CreatedAt); err != nil {
			return err
		}
		n.Attachments = append(n.Attachments, a)
	}
	return rows.Err()
}

func touchNote(ctx context.Context, tx pgx.Tx, noteID int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE notes SET updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now(), noteID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNoteNotFound
	}
	return nil
}

func insertAttachment(ctx context.Context, tx pgx.Tx, noteID int64, a models.NoteAttachment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO note_attachments (note_id, blob_ref, filename, uploaded_by) VALUES ($1, $2, $3, $4)`,
		noteID, a.BlobRef, a.Filename, a.UploadedBy)
	if err != nil {
		logger.Error().Err(err).Int64("noteID", noteID).Msg("Error inserting note attachment")
	}
	return err
}

func insertNoteTopics(ctx context.Context, tx pgx.Tx, noteID int64, topics []string, authorUID string) error {
	if len(topics) == 0 {
		return nil
	}
	builder := squirrel.Insert("note_topics").
		Columns("note_id", "topic", "author_uid").
		PlaceholderFormat(squirrel.Dollar)
	for _, topic := range topics {
		builder = builder.Values(noteID, topic, authorUID)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, sql, args...)
	return err
}

// replaceNoteTopics diffs the stored topic set against the desired one.
func replaceNoteTopics(ctx context.Context, tx pgx.Tx, noteID int64, topics []string, authorUID string) error {
	rows, err := tx.Query(ctx, `SELECT topic FROM note_topics WHERE note_id = $1`, noteID)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			rows.Close()
			return err
		}
		existing[topic] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	desired := make(map[string]bool, len(topics))
	var added []string
	for _, topic := range topics {
		desired[topic] = true
		if !existing[topic] {
			added = append(added, topic)
		}
	}
	var removed []string
	for topic := range existing {
		if !desired[topic] {
			removed = append(removed, topic)
		}
	}

	if len(removed) > 0 {
		sql, args, err := squirrel.Delete("note_topics").
			Where(squirrel.Eq{"note_id": noteID, "topic": removed}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}
	return insertNoteTopics(ctx, tx, noteID, added, authorUID)
}
