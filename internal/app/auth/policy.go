// Package auth holds the pure authorization predicates for advising
// records. Every function takes the acting principal's resolved Roles
// explicitly; nothing in here touches the database or ambient session
// state, so callers decide how a false answer maps onto an error.
package auth

import (
	"strings"

	"github.com/advisehq/advising/internal/app/models"
)

// SchedulerDeptCodes returns every department code the principal may manage
// appointments for: explicit scheduler memberships plus drop-in advisor
// assignments. Admin grants are handled by the callers through IsAdmin,
// matching the "admin OR scheduler privilege" guard wording.
func SchedulerDeptCodes(roles models.Roles) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, d := range roles.Departments {
		if d.IsScheduler && !seen[d.Code] {
			seen[d.Code] = true
			codes = append(codes, d.Code)
		}
	}
	for _, code := range roles.DropInDeptCodes {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// CanScheduleForDept reports whether the principal may manage appointment
// state for the department. The department code must already be validated
// against the known enumeration; this check is privilege only.
func CanScheduleForDept(roles models.Roles, deptCode string) bool {
	if roles.IsAdmin {
		return true
	}
	deptCode = strings.ToUpper(deptCode)
	for _, code := range SchedulerDeptCodes(roles) {
		if strings.ToUpper(code) == deptCode {
			return true
		}
	}
	return false
}

// CanViewResolvedAppointments reports whether the department waitlist
// should include checked-in and cancelled appointments for the principal.
// Admins and the department's own drop-in advisors see the full history;
// other schedulers see only the open queue.
func CanViewResolvedAppointments(roles models.Roles, deptCode string) bool {
	if roles.IsAdmin {
		return true
	}
	deptCode = strings.ToUpper(deptCode)
	for _, code := range roles.DropInDeptCodes {
		if strings.ToUpper(code) == deptCode {
			return true
		}
	}
	return false
}

// IsScheduler reports whether the principal holds scheduler privilege
// anywhere at all: admins, drop-in advisors, and explicit scheduler
// role-holders qualify.
func IsScheduler(roles models.Roles) bool {
	return roles.IsAdmin || len(SchedulerDeptCodes(roles)) > 0
}

// IsAdvisor reports whether the principal is an advisor or director in any
// department, or an admin.
func IsAdvisor(roles models.Roles) bool {
	if roles.IsAdmin {
		return true
	}
	for _, d := range roles.Departments {
		if d.IsAdvisor || d.IsDirector {
			return true
		}
	}
	return false
}

// CanAuthorNotes reports whether the principal may create advising notes:
// any non-admin with at least one department affiliation. Admins are
// deliberately excluded from authorship.
func CanAuthorNotes(roles models.Roles) bool {
	return !roles.IsAdmin && len(roles.Departments) > 0
}

// CanEditNote reports whether the principal may update a note or add
// attachments to it: only its author.
func CanEditNote(principal *models.Principal, note *models.Note) bool {
	return note.AuthorUID == principal.UID
}

// CanRemoveAttachment reports whether the principal may remove an
// attachment from the note: its author, or an admin.
func CanRemoveAttachment(principal *models.Principal, note *models.Note) bool {
	return principal.Roles.IsAdmin || note.AuthorUID == principal.UID
}

// CanDeleteNote reports whether the principal may delete notes. Authorship
// is not sufficient; deletion is an admin-only operation.
func CanDeleteNote(roles models.Roles) bool {
	return roles.IsAdmin
}
