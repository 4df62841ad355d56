package services

import (
	"context"
	"io"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
)

// The services accept their collaborators as interfaces so tests can swap
// in fakes. The pgx-backed repositories satisfy these.

// AppointmentStore persists appointments and their topics.
type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) (int64, error)
	FindByID(ctx context.Context, id int64) (*models.Appointment, error)
	Waitlist(ctx context.Context, deptCode string, statuses []models.AppointmentStatus) ([]*models.Appointment, error)
	Reserve(ctx context.Context, id, reservedBy int64, advisor *models.AdvisorIdentity) error
	SetWaiting(ctx context.Context, id, updatedBy int64) error
	CheckIn(ctx context.Context, id, checkedInBy int64, advisor *models.AdvisorIdentity) error
	Cancel(ctx context.Context, id, cancelledBy int64, reason, reasonExplained *string) error
	Update(ctx context.Context, id int64, details string, topics []string, updatedBy int64) error
	Delete(ctx context.Context, id int64) error
	FindAdvisorsByName(ctx context.Context, fragments []string, limit int) ([]models.AdvisorIdentity, error)
}

// NoteStore persists notes, their topics and attachment records.
type NoteStore interface {
	CreateWithReceipt(ctx context.Context, n *models.Note, authorID int64) (int64, error)
	FindByID(ctx context.Context, id int64) (*models.Note, error)
	Update(ctx context.Context, id int64, subject, body string, topics []string, authorUID string) error
	Delete(ctx context.Context, id int64) error
	AddAttachment(ctx context.Context, noteID int64, attachment models.NoteAttachment) error
	RemoveAttachment(ctx context.Context, noteID, attachmentID int64) error
	FindAttachment(ctx context.Context, attachmentID int64) (*models.NoteAttachment, error)
	FindAttachments(ctx context.Context, ids []int64) ([]models.NoteAttachment, error)
	CountAttachments(ctx context.Context, noteID int64) (int, error)
}

// ReadReceiptStore records and queries per-viewer read receipts.
type ReadReceiptStore interface {
	FindOrCreateNoteRead(ctx context.Context, viewerID, noteID int64) (*models.NoteRead, bool, error)
	FindOrCreateAppointmentRead(ctx context.Context, viewerID, appointmentID int64) (*models.AppointmentRead, bool, error)
	HasNoteRead(ctx context.Context, viewerID, noteID int64) (bool, error)
	HasAppointmentRead(ctx context.Context, viewerID, appointmentID int64) (bool, error)
}

// ProfileStore looks up student profiles by sid. Unknown sids are simply
// absent from the result, never an error.
type ProfileStore interface {
	GetProfiles(ctx context.Context, sids []string) ([]*models.StudentProfile, error)
}

// FilterStore expands a saved cohort or curated group into member sids.
// A vanished group yields an empty slice.
type FilterStore interface {
	MemberSIDs(ctx context.Context, domain models.StudentGroupDomain, groupID int64) ([]string, error)
}

// DirectoryLookup resolves advisor identities and drop-in rosters from the
// authorized-users directory.
type DirectoryLookup interface {
	ResolveAdvisor(ctx context.Context, uid string) (*models.AdvisorIdentity, error)
	DropInAdvisors(ctx context.Context, deptCode string) ([]dto.DropInAdvisorView, error)
}

// BlobStore stores attachment content outside the database.
type BlobStore interface {
	Put(content []byte, filename string) (string, error)
	Stream(ref string) (io.ReadCloser, error)
	Delete(ref string) error
}
