package models

import "time"

// Note is an advising record attached to one student, based on the 'notes'
// table. The author columns are a snapshot taken at creation time; later
// role or department changes never rewrite history.
type Note struct {
	ID              int64    `db:"id" json:"id"`
	StudentSID      string   `db:"student_sid" json:"studentSid"`
	Subject         string   `db:"subject" json:"subject"`
	Body            string   `db:"body" json:"body"`
	AuthorUID       string   `db:"author_uid" json:"authorUid"`
	AuthorName      string   `db:"author_name" json:"authorName"`
	AuthorRole      string   `db:"author_role" json:"authorRole"`
	AuthorDeptCodes []string `db:"author_dept_codes" json:"authorDeptCodes"`

	Topics      []string         `json:"topics"`
	Attachments []NoteAttachment `json:"attachments"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	// UpdatedAt stays nil until the first post-creation mutation, which is
	// how a freshly created note is told apart from an edited one.
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// NoteAttachment is a binary content reference owned by exactly one note.
// Ordering follows insertion.
type NoteAttachment struct {
	ID         int64      `db:"id" json:"id"`
	NoteID     int64      `db:"note_id" json:"noteId"`
	BlobRef    string     `db:"blob_ref" json:"-"`
	Filename   string     `db:"filename" json:"filename"`
	UploadedBy string     `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

// NoteRead is a per-(viewer, note) read receipt; at most one row per pair.
type NoteRead struct {
	ID        int64     `db:"id" json:"id"`
	ViewerID  int64     `db:"viewer_id" json:"viewerId"`
	NoteID    int64     `db:"note_id" json:"noteId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// StudentProfile is the distilled projection of a student served alongside
// appointments and notes. Profile aggregation itself happens upstream.
type StudentProfile struct {
	SID       string `db:"sid" json:"sid"`
	UID       string `db:"uid" json:"uid"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	College   string `db:"college" json:"college,omitempty"`
}

// StudentGroupDomain distinguishes saved cohort filters from hand-curated
// student groups.
type StudentGroupDomain string

const (
	GroupDomainCohort  StudentGroupDomain = "cohort"
	GroupDomainCurated StudentGroupDomain = "curated"
)
