package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// DirectoryRepository resolves principals, their department role
// memberships and drop-in assignments from the authorized-users directory.
type DirectoryRepository struct {
	DB *pgxpool.Pool
}

// NewDirectoryRepository creates a new instance of DirectoryRepository.
func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{DB: db}
}

// FindPrincipalByID loads a principal and their full role set.
func (r *DirectoryRepository) FindPrincipalByID(ctx context.Context, userID int64) (*models.Principal, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, uid, name, is_admin FROM authorized_users WHERE id = $1 AND deleted_at IS NULL`, userID)

	p := &models.Principal{}
	if err := row.Scan(&p.ID, &p.UID, &p.Name, &p.Roles.IsAdmin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Int64("userID", userID).Msg("Error loading principal")
		return nil, err
	}
	if err := r.loadRoles(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveAdvisor resolves a directory uid into an advisor identity
// snapshot. An unknown uid returns (nil, nil); the caller decides whether
// that is a bad request.
func (r *DirectoryRepository) ResolveAdvisor(ctx context.Context, uid string) (*models.AdvisorIdentity, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, uid, name FROM authorized_users WHERE uid = $1 AND deleted_at IS NULL`, uid)

	advisor := &models.AdvisorIdentity{}
	if err := row.Scan(&advisor.ID, &advisor.UID, &advisor.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		logger.Error().Err(err).Str("uid", uid).Msg("Error resolving advisor uid")
		return nil, err
	}

	memberships, dropIns, err := r.memberships(ctx, advisor.ID)
	if err != nil {
		return nil, err
	}
	advisor.Role = "Advisor"
	seen := make(map[string]bool)
	for _, m := range memberships {
		if m.IsDirector {
			advisor.Role = "Director"
		}
		if !seen[m.Code] {
			seen[m.Code] = true
			advisor.DeptCodes = append(advisor.DeptCodes, m.Code)
		}
	}
	for _, code := range dropIns {
		if !seen[code] {
			seen[code] = true
			advisor.DeptCodes = append(advisor.DeptCodes, code)
		}
	}
	return advisor, nil
}

// DropInAdvisors lists the drop-in roster for a department, ordered by
// name.
func (r *DirectoryRepository) DropInAdvisors(ctx context.Context, deptCode string) ([]dto.DropInAdvisorView, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT u.id, u.uid, u.name, d.is_available
		 FROM drop_in_advisors d
		 JOIN authorized_users u ON u.id = d.user_id AND u.deleted_at IS NULL
		 WHERE d.dept_code = $1
		 ORDER BY u.name, u.id`, deptCode)
	if err != nil {
		logger.Error().Err(err).Str("deptCode", deptCode).Msg("Error executing drop-in roster query")
		return nil, err
	}
	defer rows.Close()

	advisors := make([]dto.DropInAdvisorView, 0)
	for rows.Next() {
		var a dto.DropInAdvisorView
		if err := rows.Scan(&a.ID, &a.UID, &a.Name, &a.Available); err != nil {
			return nil, err
		}
		advisors = append(advisors, a)
	}
	return advisors, rows.Err()
}

func (r *DirectoryRepository) loadRoles(ctx context.Context, p *models.Principal) error {
	memberships, dropIns, err := r.memberships(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Roles.Departments = memberships
	p.Roles.DropInDeptCodes = dropIns
	return nil
}

func (r *DirectoryRepository) memberships(ctx context.Context, userID int64) ([]models.DeptMembership, []string, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT m.dept_code, m.is_advisor, m.is_director, m.is_scheduler
		 FROM university_dept_members m WHERE m.user_id = $1 ORDER BY m.dept_code`, userID)
	if err != nil {
		return nil, nil, err
	}
	var memberships []models.DeptMembership
	for rows.Next() {
		var m models.DeptMembership
		if err := rows.Scan(&m.Code, &m.IsAdvisor, &m.IsDirector, &m.IsScheduler); err != nil {
			rows.Close()
			return nil, nil, err
		}
		m.Name = models.AdvisingDeptNames[m.Code]
		memberships = append(memberships, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = r.DB.Query(ctx,
		`SELECT dept_code FROM drop_in_advisors WHERE user_id = $1 ORDER BY dept_code`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var dropIns []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, nil, err
		}
		dropIns = append(dropIns, code)
	}
	return memberships, dropIns, rows.Err()
}
