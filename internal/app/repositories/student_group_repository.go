package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// StudentGroupRepository backs cohort filters and curated groups: saved,
// named sets of student identifiers.
type StudentGroupRepository struct {
	DB *pgxpool.Pool
}

// NewStudentGroupRepository creates a new instance of StudentGroupRepository.
func NewStudentGroupRepository(db *pgxpool.Pool) *StudentGroupRepository {
	return &StudentGroupRepository{DB: db}
}

// MemberSIDs returns the member sids of one group. A vanished or
// soft-deleted group id yields an empty slice, never an error, so one
// stale filter cannot fail a whole batch.
func (r *StudentGroupRepository) MemberSIDs(ctx context.Context, domain models.StudentGroupDomain, groupID int64) ([]string, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT m.sid
		 FROM student_group_members m
		 JOIN student_groups g ON g.id = m.group_id
		 WHERE g.id = $1 AND g.domain = $2 AND g.deleted_at IS NULL
		 ORDER BY m.sid`, groupID, domain)
	if err != nil {
		logger.Error().Err(err).Int64("groupID", groupID).Msg("Error executing group members query")
		return nil, err
	}
	defer rows.Close()

	sids := make([]string, 0)
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		sids = append(sids, sid)
	}
	return sids, rows.Err()
}
