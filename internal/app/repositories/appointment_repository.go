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

// AppointmentRepository handles database operations for appointments and
// their topic tags.
type AppointmentRepository struct {
	DB *pgxpool.Pool
}

// NewAppointmentRepository creates a new instance of AppointmentRepository.
func NewAppointmentRepository(db *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{DB: db}
}

var appointmentColumns = []string{
	"a.id", "a.dept_code", "a.student_sid", "a.appointment_type", "a.details", "a.status",
	"a.advisor_id", "a.advisor_uid", "a.advisor_name", "a.advisor_role", "a.advisor_dept_codes",
	"a.status_by", "a.status_date",
	"a.checked_in_by", "a.checked_in_at",
	"a.cancel_reason", "a.cancel_reason_explained", "a.cancelled_by", "a.cancelled_at",
	"a.created_by", "a.created_at", "a.updated_by", "a.updated_at",
}

func (r *AppointmentRepository) selectAppointments() squirrel.SelectBuilder {
	return squirrel.Select(appointmentColumns...).
		From("appointments a").
		Where("a.deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID, &a.DeptCode, &a.StudentSID, &a.AppointmentType, &a.Details, &a.Status,
		&a.AdvisorID, &a.AdvisorUID, &a.AdvisorName, &a.AdvisorRole, &a.AdvisorDeptCodes,
		&a.StatusBy, &a.StatusDate,
		&a.CheckedInBy, &a.CheckedInAt,
		&a.CancelReason, &a.CancelReasonExplained, &a.CancelledBy, &a.CancelledAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedBy, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAppointmentNotFound
		}
		logger.Error().Err(err).Msg("Error scanning appointment row")
		return nil, err
	}
	return &a, nil
}

// Create inserts a new appointment and its topics in one transaction and
// returns the generated id.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql, args, err := squirrel.Insert("appointments").
		Columns(
			"dept_code", "student_sid", "appointment_type", "details", "status",
			"advisor_id", "advisor_uid", "advisor_name", "advisor_role", "advisor_dept_codes",
			"status_by", "status_date", "created_by", "updated_by",
		).
		Values(
			a.DeptCode, a.StudentSID, a.AppointmentType, a.Details, a.Status,
			a.AdvisorID, a.AdvisorUID, a.AdvisorName, a.AdvisorRole, a.AdvisorDeptCodes,
			a.StatusBy, a.StatusDate, a.CreatedBy, a.UpdatedBy,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		logger.Error().Err(err).Msg("Error executing create appointment query")
		return 0, err
	}

	if err := insertTopics(ctx, tx, "appointment_topics", "appointment_id", id, a.Topics); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// FindByID retrieves an appointment with its topics. Soft-deleted rows are
// invisible here.
func (r *AppointmentRepository) FindByID(ctx context.Context, id int64) (*models.Appointment, error) {
	sqlStr, args, err := r.selectAppointments().Where(squirrel.Eq{"a.id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	a, err := scanAppointment(r.DB.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, err
	}

	topicsByID, err := r.topicsFor(ctx, []int64{a.ID})
	if err != nil {
		return nil, err
	}
	a.Topics = topicsByID[a.ID]
	return a, nil
}

// Waitlist retrieves a department's appointments in the given statuses,
// oldest first.
func (r *AppointmentRepository) Waitlist(ctx context.Context, deptCode string, statuses []models.AppointmentStatus) ([]*models.Appointment, error) {
	sqlStr, args, err := r.selectAppointments().
		Where(squirrel.Eq{"a.dept_code": deptCode, "a.status": statuses}).
		OrderBy("a.created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, sqlStr, args...)
	if err != nil {
		logger.Error().Err(err).Str("deptCode", deptCode).Msg("Error executing waitlist query")
		return nil, err
	}
	defer rows.Close()

	appointments := make([]*models.Appointment, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error: %w", err)
	}

	topicsByID, err := r.topicsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range appointments {
		a.Topics = topicsByID[a.ID]
	}
	return appointments, nil
}

// Reserve assigns the advisor snapshot and moves the appointment to
// reserved. Re-reserving simply overwrites the snapshot: last writer wins.
func (r *AppointmentRepository) Reserve(ctx context.Context, id, reservedBy int64, advisor *models.AdvisorIdentity) error {
	return r.execStatusUpdate(ctx, id, map[string]interface{}{
		"status":             models.StatusReserved,
		"advisor_id":         advisor.ID,
		"advisor_uid":        advisor.UID,
		"advisor_name":       advisor.Name,
		"advisor_role":       advisor.Role,
		"advisor_dept_codes": advisor.DeptCodes,
		"status_by":          reservedBy,
		"status_date":        time.Now(),
		"updated_by":         reservedBy,
	})
}

// SetWaiting reopens or unreserves the appointment: status goes back to
// waiting and any advisor snapshot or cancellation fields are cleared.
func (r *AppointmentRepository) SetWaiting(ctx context.Context, id, updatedBy int64) error {
	return r.execStatusUpdate(ctx, id, map[string]interface{}{
		"status":                  models.StatusWaiting,
		"advisor_id":              nil,
		"advisor_uid":             nil,
		"advisor_name":            nil,
		"advisor_role":            nil,
		"advisor_dept_codes":      nil,
		"cancel_reason":           nil,
		"cancel_reason_explained": nil,
		"cancelled_by":            nil,
		"cancelled_at":            nil,
		"checked_in_by":           nil,
		"checked_in_at":           nil,
		"status_by":               updatedBy,
		"status_date":             time.Now(),
		"updated_by":              updatedBy,
	})
}

// CheckIn closes out the appointment with the advisor who saw the student.
func (r *AppointmentRepository) CheckIn(ctx context.Context, id, checkedInBy int64, advisor *models.AdvisorIdentity) error {
	now := time.Now()
	return r.execStatusUpdate(ctx, id, map[string]interface{}{
		"status":             models.StatusCheckedIn,
		"advisor_id":         advisor.ID,
		"advisor_uid":        advisor.UID,
		"advisor_name":       advisor.Name,
		"advisor_role":       advisor.Role,
		"advisor_dept_codes": advisor.DeptCodes,
		"checked_in_by":      checkedInBy,
		"checked_in_at":      now,
		"status_by":          checkedInBy,
		"status_date":        now,
		"updated_by":         checkedInBy,
	})
}

// Cancel moves the appointment to cancelled, recording the reason.
func (r *AppointmentRepository) Cancel(ctx context.Context, id, cancelledBy int64, reason, reasonExplained *string) error {
	now := time.Now()
	return r.execStatusUpdate(ctx, id, map[string]interface{}{
		"status":                  models.StatusCancelled,
		"cancel_reason":           reason,
		"cancel_reason_explained": reasonExplained,
		"cancelled_by":            cancelledBy,
		"cancelled_at":            now,
		"status_by":               cancelledBy,
		"status_date":             now,
		"updated_by":              cancelledBy,
	})
}

// Update rewrites details and replaces the topic set.
func (r *AppointmentRepository) Update(ctx context.Context, id int64, details string, topics []string, updatedBy int64) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql, args, err := squirrel.Update("appointments").
		Set("details", details).
		Set("updated_by", updatedBy).
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
		logger.Error().Err(err).Int64("appointmentID", id).Msg("Error executing update appointment query")
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrAppointmentNotFound
	}

	if err := replaceTopics(ctx, tx, "appointment_topics", "appointment_id", id, topics); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete soft-deletes the appointment.
func (r *AppointmentRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := squirrel.Update("appointments").
		Set("deleted_at", time.Now()).
		Where("deleted_at IS NULL").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	cmdTag, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrAppointmentNotFound
	}
	return nil
}

// FindAdvisorsByName searches the advisor snapshots on past appointments.
// Every query fragment must match the advisor name, case-insensitively.
func (r *AppointmentRepository) FindAdvisorsByName(ctx context.Context, fragments []string, limit int) ([]models.AdvisorIdentity, error) {
	builder := squirrel.Select("DISTINCT a.advisor_uid", "a.advisor_name").
		From("appointments a").
		Where("a.deleted_at IS NULL").
		Where("a.advisor_uid IS NOT NULL").
		OrderBy("a.advisor_name").
		PlaceholderFormat(squirrel.Dollar)
	for _, fragment := range fragments {
		builder = builder.Where("a.advisor_name ILIKE ?", "%"+fragment+"%")
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, sqlStr, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing advisor name search")
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.AdvisorIdentity, 0)
	for rows.Next() {
		var advisor models.AdvisorIdentity
		if err := rows.Scan(&advisor.UID, &advisor.Name); err != nil {
			return nil, err
		}
		matches = append(matches, advisor)
	}
	return matches, rows.Err()
}

func (r *AppointmentRepository) execStatusUpdate(ctx context.Context, id int64, sets map[string]interface{}) error {
	builder := squirrel.Update("appointments").
		Where("deleted_at IS NULL").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	for column, value := range sets {
		builder = builder.Set(column, value)
	}
	builder = builder.Set("updated_at", time.Now())

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	cmdTag, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("appointmentID", id).Msg("Error executing appointment status update")
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrAppointmentNotFound
	}
	return nil
}

// topicsFor loads topics for a set of appointment ids, keyed by id.
func (r *AppointmentRepository) topicsFor(ctx context.Context, ids []int64) (map[int64][]string, error) {
	topicsByID := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return topicsByID, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT appointment_id, topic FROM appointment_topics WHERE appointment_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var topic string
		if err := rows.Scan(&id, &topic); err != nil {
			return nil, err
		}
		topicsByID[id] = append(topicsByID[id], topic)
	}
	return topicsByID, rows.Err()
}

// insertTopics inserts one row per topic for either entity's topic table.
func insertTopics(ctx context.Context, tx pgx.Tx, table, fkColumn string, id int64, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	builder := squirrel.Insert(table).
		Columns(fkColumn, "topic").
		PlaceholderFormat(squirrel.Dollar)
	for _, topic := range topics {
		builder = builder.Values(id, topic)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Str("table", table).Msg("Error inserting topics")
		return err
	}
	return nil
}

// replaceTopics diffs the stored topic set against the desired one, adding
// and removing only what changed.
func replaceTopics(ctx context.Context, tx pgx.Tx, table, fkColumn string, id int64, topics []string) error {
	rows, err := tx.Query(ctx,
		fmt.Sprintf("SELECT topic FROM %s WHERE %s = $1", table, fkColumn), id)
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
		sql, args, err := squirrel.Delete(table).
			Where(squirrel.Eq{fkColumn: id, "topic": removed}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}
	return insertTopics(ctx, tx, table, fkColumn, id, added)
}
