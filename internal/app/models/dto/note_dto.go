package dto

import (
	"time"

	"github.com/advisehq/advising/internal/app/models"
)

// AttachmentUpload is one uploaded attachment: the original filename and
// the bytes read once from the request.
type AttachmentUpload struct {
	Name string
	Data []byte
}

// CreateNoteRequest creates one note for one student.
type CreateNoteRequest struct {
	SID                   string   `json:"sid" binding:"required" example:"11667051"`
	Subject               string   `json:"subject" binding:"required"`
	Body                  string   `json:"body"`
	Topics                []string `json:"topics"`
	TemplateAttachmentIDs []int64  `json:"templateAttachmentIds"`
}

// BatchCreateNotesRequest fans one note out to every student resolved from
// explicit sids, cohort filters and curated groups.
type BatchCreateNotesRequest struct {
	SIDs                  []string `json:"sids"`
	CohortIDs             []int64  `json:"cohortIds"`
	CuratedGroupIDs       []int64  `json:"curatedGroupIds"`
	Subject               string   `json:"subject" binding:"required"`
	Body                  string   `json:"body"`
	Topics                []string `json:"topics"`
	TemplateAttachmentIDs []int64  `json:"templateAttachmentIds"`
}

// DistinctStudentCountRequest is the preflight body for batch creation.
type DistinctStudentCountRequest struct {
	SIDs            []string `json:"sids"`
	CohortIDs       []int64  `json:"cohortIds"`
	CuratedGroupIDs []int64  `json:"curatedGroupIds"`
}

// DistinctStudentCountResponse reports how many students a batch would hit.
type DistinctStudentCountResponse struct {
	Count int `json:"count"`
}

// UpdateNoteRequest edits subject, body and topics of an existing note.
type UpdateNoteRequest struct {
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body"`
	Topics  []string `json:"topics"`
}

// NoteView is the JSON projection of a note.
type NoteView struct {
	ID              int64            `json:"id"`
	StudentSID      string           `json:"studentSid"`
	Subject         string           `json:"subject"`
	Body            string           `json:"body"`
	AuthorUID       string           `json:"authorUid"`
	AuthorName      string           `json:"authorName"`
	AuthorRole      string           `json:"authorRole"`
	AuthorDeptCodes []string         `json:"authorDeptCodes"`
	Topics          []string         `json:"topics"`
	Attachments     []AttachmentView `json:"attachments"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       *time.Time       `json:"updatedAt"`
	Read            bool             `json:"read"`
}

// AttachmentView is the JSON projection of a note attachment.
type AttachmentView struct {
	ID         int64     `json:"id"`
	NoteID     int64     `json:"noteId"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewAttachmentView projects a model attachment.
func NewAttachmentView(a models.NoteAttachment) AttachmentView {
	return AttachmentView{
		ID:         a.ID,
		NoteID:     a.NoteID,
		Filename:   a.Filename,
		UploadedBy: a.UploadedBy,
		CreatedAt:  a.CreatedAt,
	}
}

// NewNoteView projects a model note, marking it read for the viewer when a
// receipt exists.
func NewNoteView(n *models.Note, read bool) *NoteView {
	view := &NoteView{
		ID:              n.ID,
		StudentSID:      n.StudentSID,
		Subject:         n.Subject,
		Body:            n.Body,
		AuthorUID:       n.AuthorUID,
		AuthorName:      n.AuthorName,
		AuthorRole:      n.AuthorRole,
		AuthorDeptCodes: n.AuthorDeptCodes,
		Topics:          n.Topics,
		Attachments:     make([]AttachmentView, 0, len(n.Attachments)),
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		Read:            read,
	}
	if view.Topics == nil {
		view.Topics = []string{}
	}
	for _, a := range n.Attachments {
		view.Attachments = append(view.Attachments, NewAttachmentView(a))
	}
	return view
}
