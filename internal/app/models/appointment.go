package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusWaiting   AppointmentStatus = "waiting"
	StatusReserved  AppointmentStatus = "reserved"
	StatusCheckedIn AppointmentStatus = "checked_in"
	StatusCancelled AppointmentStatus = "cancelled"
)

// AllAppointmentStatuses lists every lifecycle state, terminal ones included.
var AllAppointmentStatuses = []AppointmentStatus{
	StatusWaiting, StatusReserved, StatusCheckedIn, StatusCancelled,
}

// OpenAppointmentStatuses lists the states still awaiting action.
var OpenAppointmentStatuses = []AppointmentStatus{
	StatusWaiting, StatusReserved,
}

// IsTerminal reports whether the status permits no further reserve,
// unreserve, check-in or cancel transition. Reopen ignores this.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCheckedIn || s == StatusCancelled
}

// Appointment represents a scheduled or drop-in advising session, based on
// the 'appointments' table.
type Appointment struct {
	ID              int64             `db:"id" json:"id"`
	DeptCode        string            `db:"dept_code" json:"deptCode"`
	StudentSID      string            `db:"student_sid" json:"studentSid"`
	AppointmentType string            `db:"appointment_type" json:"appointmentType"`
	Details         string            `db:"details" json:"details"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Topics          []string          `json:"topics"`

	// Advisor snapshot, set when the appointment is reserved or checked in.
	AdvisorID        *int64   `db:"advisor_id" json:"advisorId,omitempty"`
	AdvisorUID       *string  `db:"advisor_uid" json:"advisorUid,omitempty"`
	AdvisorName      *string  `db:"advisor_name" json:"advisorName,omitempty"`
	AdvisorRole      *string  `db:"advisor_role" json:"advisorRole,omitempty"`
	AdvisorDeptCodes []string `json:"advisorDeptCodes,omitempty"`

	// StatusBy/StatusDate record the principal and time of the most recent
	// status transition.
	StatusBy   int64     `db:"status_by" json:"statusBy"`
	StatusDate time.Time `db:"status_date" json:"statusDate"`

	CheckedInBy *int64     `db:"checked_in_by" json:"checkedInBy,omitempty"`
	CheckedInAt *time.Time `db:"checked_in_at" json:"checkedInAt,omitempty"`

	CancelReason          *string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelReasonExplained *string    `db:"cancel_reason_explained" json:"cancelReasonExplained,omitempty"`
	CancelledBy           *int64     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledAt           *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	CreatedBy int64      `db:"created_by" json:"createdBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedBy int64      `db:"updated_by" json:"updatedBy"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// AppointmentRead is a per-(viewer, appointment) read receipt.
type AppointmentRead struct {
	ID            int64     `db:"id" json:"id"`
	ViewerID      int64     `db:"viewer_id" json:"viewerId"`
	AppointmentID int64     `db:"appointment_id" json:"appointmentId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
