package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// StudentRepository serves distilled student profiles. The upstream merge
// of institutional sources happens before rows land here; this is a
// read-only projection.
type StudentRepository struct {
	DB *pgxpool.Pool
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{DB: db}
}

// GetProfiles bulk-loads profiles for the given sids. Unknown sids are
// simply absent from the result; the caller gets fewer rows, not an error.
func (r *StudentRepository) GetProfiles(ctx context.Context, sids []string) ([]*models.StudentProfile, error) {
	if len(sids) == 0 {
		return []*models.StudentProfile{}, nil
	}
	sqlStr, args, err := squirrel.Select("s.sid", "s.uid", "s.first_name", "s.last_name", "s.college").
		From("students s").
		Where(squirrel.Eq{"s.sid": sids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, sqlStr, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing student profiles query")
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*models.StudentProfile, 0, len(sids))
	for rows.Next() {
		var p models.StudentProfile
		if err := rows.Scan(&p.SID, &p.UID, &p.FirstName, &p.LastName, &p.College); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}
