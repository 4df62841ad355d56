package dto

import (
	"time"

	"github.com/advisehq/advising/internal/app/models"
)

// CreateAppointmentRequest is the payload for creating a drop-in or
// scheduled appointment.
type CreateAppointmentRequest struct {
	DeptCode        string   `json:"deptCode" binding:"required" example:"COENG"`
	SID             string   `json:"sid" binding:"required" example:"11667051"`
	AppointmentType string   `json:"appointmentType" binding:"required" example:"Drop-in"`
	Details         string   `json:"details"`
	Topics          []string `json:"topics" binding:"required,min=1"`
	AdvisorUID      string   `json:"advisorUid,omitempty"`
}

// AdvisorUIDRequest carries the advisor identity for reserve and check-in.
type AdvisorUIDRequest struct {
	AdvisorUID string `json:"advisorUid" binding:"required" example:"53791"`
}

// CancelAppointmentRequest carries the optional cancellation reason.
type CancelAppointmentRequest struct {
	CancelReason          string `json:"cancelReason,omitempty"`
	CancelReasonExplained string `json:"cancelReasonExplained,omitempty"`
}

// UpdateAppointmentRequest updates details and topics of an appointment.
type UpdateAppointmentRequest struct {
	Details string   `json:"details"`
	Topics  []string `json:"topics"`
}

// AppointmentView is the JSON projection of an appointment, with the
// student profile joined on.
type AppointmentView struct {
	ID                    int64                    `json:"id"`
	DeptCode              string                   `json:"deptCode"`
	AppointmentType       string                   `json:"appointmentType"`
	Details               string                   `json:"details"`
	Status                models.AppointmentStatus `json:"status"`
	Topics                []string                 `json:"topics"`
	Student               *StudentView             `json:"student,omitempty"`
	Advisor               *models.AdvisorIdentity  `json:"advisor,omitempty"`
	StatusBy              int64                    `json:"statusBy"`
	StatusDate            time.Time                `json:"statusDate"`
	CancelReason          *string                  `json:"cancelReason,omitempty"`
	CancelReasonExplained *string                  `json:"cancelReasonExplained,omitempty"`
	CreatedAt             time.Time                `json:"createdAt"`
	UpdatedAt             time.Time                `json:"updatedAt"`
	Read                  bool                     `json:"read"`
}

// StudentView is the distilled student profile embedded in feeds.
type StudentView struct {
	SID       string `json:"sid"`
	UID       string `json:"uid,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
	College   string `json:"college,omitempty"`
}

// WaitlistResponse is the department waitlist feed: the drop-in advisor
// roster plus appointments split into unresolved and resolved buckets.
type WaitlistResponse struct {
	Advisors []DropInAdvisorView `json:"advisors"`
	Waitlist WaitlistBuckets     `json:"waitlist"`
}

// WaitlistBuckets groups appointments by whether they still need action.
type WaitlistBuckets struct {
	Unresolved []*AppointmentView `json:"unresolved"`
	Resolved   []*AppointmentView `json:"resolved"`
}

// DropInAdvisorView is one advisor on a department's drop-in roster.
type DropInAdvisorView struct {
	ID        int64  `json:"id"`
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// AdvisorNameMatch is one hit from the advisor name search.
type AdvisorNameMatch struct {
	Label string `json:"label"`
	UID   string `json:"uid"`
}

// ReadReceiptView is the response body for idempotent mark-read calls.
type ReadReceiptView struct {
	ID        int64     `json:"id"`
	ViewerID  int64     `json:"viewerId"`
	CreatedAt time.Time `json:"createdAt"`
}
