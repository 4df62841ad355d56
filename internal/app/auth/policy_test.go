package auth

import (
	"testing"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/stretchr/testify/assert"
)

func schedulerRoles(deptCode string) models.Roles {
	return models.Roles{
		Departments: []models.DeptMembership{
			{Code: deptCode, IsScheduler: true},
		},
	}
}

func TestCanScheduleForDept(t *testing.T) {
	tests := []struct {
		name     string
		roles    models.Roles
		deptCode string
		want     bool
	}{
		{
			name:     "admin may schedule anywhere",
			roles:    models.Roles{IsAdmin: true},
			deptCode: "COENG",
			want:     true,
		},
		{
			name:     "scheduler membership grants its own department",
			roles:    schedulerRoles("COENG"),
			deptCode: "COENG",
			want:     true,
		},
		{
			name:     "scheduler membership does not leak to other departments",
			roles:    schedulerRoles("COENG"),
			deptCode: "LSADV",
			want:     false,
		},
		{
			name: "drop-in advisor assignment grants scheduler privilege",
			roles: models.Roles{
				Departments:     []models.DeptMembership{{Code: "UWASC", IsAdvisor: true}},
				DropInDeptCodes: []string{"UWASC"},
			},
			deptCode: "UWASC",
			want:     true,
		},
		{
			name: "plain advisor membership is not enough",
			roles: models.Roles{
				Departments: []models.DeptMembership{{Code: "COENG", IsAdvisor: true}},
			},
			deptCode: "COENG",
			want:     false,
		},
		{
			name:     "dept code comparison is case-insensitive",
			roles:    schedulerRoles("coeng"),
			deptCode: "COENG",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanScheduleForDept(tt.roles, tt.deptCode))
		})
	}
}

func TestSchedulerDeptCodesDeduplicates(t *testing.T) {
	roles := models.Roles{
		Departments: []models.DeptMembership{
			{Code: "COENG", IsScheduler: true},
			{Code: "LSADV", IsScheduler: true},
			{Code: "QCADV", IsAdvisor: true}, // not a scheduler, excluded
		},
		DropInDeptCodes: []string{"COENG", "UWASC"},
	}
	assert.ElementsMatch(t, []string{"COENG", "LSADV", "UWASC"}, SchedulerDeptCodes(roles))
}

func TestCanAuthorNotes(t *testing.T) {
	advisor := models.Roles{
		Departments: []models.DeptMembership{{Code: "COENG", IsAdvisor: true}},
	}
	assert.True(t, CanAuthorNotes(advisor))

	// Admins cannot author advising notes, whatever else they hold.
	admin := models.Roles{IsAdmin: true, Departments: advisor.Departments}
	assert.False(t, CanAuthorNotes(admin))

	// No department affiliation, no authorship.
	assert.False(t, CanAuthorNotes(models.Roles{}))
}

func TestNoteOwnershipPredicates(t *testing.T) {
	author := &models.Principal{ID: 7, UID: "1081940"}
	stranger := &models.Principal{ID: 9, UID: "2040"}
	admin := &models.Principal{ID: 1, UID: "53791", Roles: models.Roles{IsAdmin: true}}
	note := &models.Note{ID: 11, AuthorUID: "1081940"}

	assert.True(t, CanEditNote(author, note))
	assert.False(t, CanEditNote(stranger, note))
	assert.False(t, CanEditNote(admin, note), "admin is not an editor unless author")

	assert.True(t, CanRemoveAttachment(author, note))
	assert.True(t, CanRemoveAttachment(admin, note))
	assert.False(t, CanRemoveAttachment(stranger, note))

	assert.True(t, CanDeleteNote(admin.Roles))
	assert.False(t, CanDeleteNote(author.Roles), "authorship alone never permits deletion")
}

func TestCanViewResolvedAppointments(t *testing.T) {
	assert.True(t, CanViewResolvedAppointments(models.Roles{IsAdmin: true}, "COENG"))
	assert.True(t, CanViewResolvedAppointments(models.Roles{DropInDeptCodes: []string{"coeng"}}, "COENG"))
	assert.False(t, CanViewResolvedAppointments(models.Roles{DropInDeptCodes: []string{"UWASC"}}, "COENG"))
	assert.False(t, CanViewResolvedAppointments(schedulerRoles("COENG"), "COENG"))
}

func TestIsScheduler(t *testing.T) {
	assert.True(t, IsScheduler(models.Roles{IsAdmin: true}))
	assert.True(t, IsScheduler(schedulerRoles("COENG")))
	assert.True(t, IsScheduler(models.Roles{DropInDeptCodes: []string{"UWASC"}}))
	assert.False(t, IsScheduler(models.Roles{
		Departments: []models.DeptMembership{{Code: "COENG", IsAdvisor: true}},
	}))
}
