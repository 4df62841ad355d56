package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/advisehq/advising/internal/app/auth"
	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/logger"
	"github.com/advisehq/advising/internal/pkg/richtext"
)

const advisorSearchLimit = 20

// AppointmentService drives the appointment lifecycle: the department
// waitlist feed and the waiting/reserved/checked-in/cancelled transitions.
//
// Every operation follows the same check order: record existence, then
// department validity, then scheduler privilege, then the status guard, and
// input validation last. An unknown department is a missing resource, not
// an authorization failure, so a caller can never test privileges against
// departments that do not exist.
type AppointmentService struct {
	appointments AppointmentStore
	directory    DirectoryLookup
	profiles     ProfileStore
	receipts     ReadReceiptStore
	sanitizer    *richtext.Sanitizer
}

// NewAppointmentService creates a new appointment service instance.
func NewAppointmentService(appointments AppointmentStore, directory DirectoryLookup, profiles ProfileStore, receipts ReadReceiptStore) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		directory:    directory,
		profiles:     profiles,
		receipts:     receipts,
		sanitizer:    richtext.NewSanitizer(),
	}
}

// Waitlist returns the department's drop-in roster plus its appointments,
// split into unresolved (still needing action) and resolved buckets.
func (s *AppointmentService) Waitlist(ctx context.Context, principal *models.Principal, deptCode string) (*dto.WaitlistResponse, error) {
	deptCode = strings.ToUpper(deptCode)
	if err := s.authorizeDept(principal, deptCode); err != nil {
		return nil, err
	}

	advisors, err := s.directory.DropInAdvisors(ctx, deptCode)
	if err != nil {
		return nil, err
	}

	// Resolved appointments are history only the department's own drop-in
	// advisors and admins need; plain schedulers get the open queue.
	statuses := models.OpenAppointmentStatuses
	if auth.CanViewResolvedAppointments(principal.Roles, deptCode) {
		statuses = models.AllAppointmentStatuses
	}
	appointments, err := s.appointments.Waitlist(ctx, deptCode, statuses)
	if err != nil {
		return nil, err
	}

	views, err := s.toViews(ctx, principal, appointments)
	if err != nil {
		return nil, err
	}

	response := &dto.WaitlistResponse{
		Advisors: advisors,
		Waitlist: dto.WaitlistBuckets{
			Unresolved: make([]*dto.AppointmentView, 0),
			Resolved:   make([]*dto.AppointmentView, 0),
		},
	}
	for _, view := range views {
		if view.Status.IsTerminal() {
			response.Waitlist.Resolved = append(response.Waitlist.Resolved, view)
		} else {
			response.Waitlist.Unresolved = append(response.Waitlist.Unresolved, view)
		}
	}
	return response, nil
}

// Get returns a single appointment with the student profile joined on.
func (s *AppointmentService) Get(ctx context.Context, principal *models.Principal, id int64) (*dto.AppointmentView, error) {
	a, err := s.loadAuthorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, principal, a)
}

// Create opens a new appointment for a student. When an advisor uid is
// supplied the appointment starts out reserved for that advisor, otherwise
// it joins the waitlist as waiting. The creator gets a read receipt so the
// appointment does not surface as unread to its own author.
func (s *AppointmentService) Create(ctx context.Context, principal *models.Principal, req *dto.CreateAppointmentRequest) (*dto.AppointmentView, error) {
	deptCode := strings.ToUpper(req.DeptCode)
	if err := s.authorizeDept(principal, deptCode); err != nil {
		return nil, err
	}
	if len(req.Topics) == 0 {
		return nil, apperrors.NewBadRequestError("at least one topic is required")
	}

	now := time.Now()
	a := &models.Appointment{
		DeptCode:        deptCode,
		StudentSID:      req.SID,
		AppointmentType: req.AppointmentType,
		Details:         s.sanitizer.Process(req.Details),
		Status:          models.StatusWaiting,
		Topics:          req.Topics,
		StatusBy:        principal.ID,
		StatusDate:      now,
		CreatedBy:       principal.ID,
		UpdatedBy:       principal.ID,
	}

	if req.AdvisorUID != "" {
		advisor, err := s.resolveAdvisor(ctx, req.AdvisorUID)
		if err != nil {
			return nil, err
		}
		a.Status = models.StatusReserved
		a.AdvisorID = &advisor.ID
		a.AdvisorUID = &advisor.UID
		a.AdvisorName = &advisor.Name
		a.AdvisorRole = &advisor.Role
		a.AdvisorDeptCodes = advisor.DeptCodes
	}

	id, err := s.appointments.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	if _, _, err := s.receipts.FindOrCreateAppointmentRead(ctx, principal.ID, id); err != nil {
		logger.Warn().Err(err).Int64("appointmentID", id).Msg("Failed to record creator read receipt")
	}

	logger.Info().Int64("appointmentID", id).Str("deptCode", deptCode).Str("sid", req.SID).Msg("Appointment created")
	return s.Get(ctx, principal, id)
}

// Reserve assigns the appointment to an advisor. Reserving an already
// reserved appointment reassigns it: the later reservation wins.
func (s *AppointmentService) Reserve(ctx context.Context, principal *models.Principal, id int64, advisorUID string) (*dto.AppointmentView, error) {
	a, err := s.loadAuthorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperrors.ErrStatusChangeUnavailable
	}
	advisor, err := s.resolveAdvisor(ctx, advisorUID)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.Reserve(ctx, id, principal.ID, advisor); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Unreserve releases a reserved appointment back onto the waitlist. Only a
// currently reserved appointment can be released; holding the reservation
// is neither necessary nor sufficient, scheduler privilege is what counts.
func (s *AppointmentService) Unreserve(ctx context.Context, principal *models.Principal, id int64) (*dto.AppointmentView, error) {
	a, err := s.loadAuthorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperrors.ErrStatusChangeUnavailable
	}
	if a.Status != models.StatusReserved {
		return nil, apperrors.NewBadRequestError("appointment is not reserved")
	}
	if err := s.appointments.SetWaiting(ctx, id, principal.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// CheckIn records that the student was seen by the given advisor and
// closes out the appointment.
func (s *AppointmentService) CheckIn(ctx context.Context, principal *models.Principal, id int64, advisorUID string) (*dto.AppointmentView, error) {
	a, err := s.loadAuthorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperrors.ErrStatusChangeUnavailable
	}
	advisor, err := s.resolveAdvisor(ctx, advisorUID)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.CheckIn(ctx, id, principal.ID, advisor); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Cancel moves the appointment to cancelled with an optional reason.
func (s *AppointmentService) Cancel(ctx context.Context, principal *models.Principal, id int64, req *dto.CancelAppointmentRequest) (*dto.AppointmentView, error) {
	a, err := s.loadAuthorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperrors.ErrStatusChangeUnavailable
	}

	var reason, explained *string
	if req.CancelReason != "" {
		reason = &req.CancelReason
	}
	if req.CancelReasonExplained != "" {
		explained = &req.CancelReasonExplained
	}
	if err := s.appointments.Cancel(ctx, id, principal.ID, reason, explained); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Reopen puts the appointment back on the waitlist from any status,
// terminal ones included. This is the one transition the terminal guard
// does not apply to.
func (s *AppointmentService) Reopen(ctx context.Context, principal *models.Principal, id int64) (*dto.AppointmentView, error) {
	if _, err := s.loadAuthorized(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := s.appointments.SetWaiting(ctx, id, principal.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Update rewrites the details text and topic set of an appointment. Details
// are rich text and pass through the sanitizer, as on create.
func (s *AppointmentService) Update(ctx context.Context, principal *models.Principal, id int64, req *dto.UpdateAppointmentRequest) (*dto.AppointmentView, error) {
	if _, err := s.loadAuthorized(ctx, principal, id); err != nil {
		return nil, err
	}
	if len(req.Topics) == 0 {
		return nil, apperrors.NewBadRequestError("at least one topic is required")
	}
	if err := s.appointments.Update(ctx, id, s.sanitizer.Process(req.Details), req.Topics, principal.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Delete soft-deletes an appointment. Admin only.
func (s *AppointmentService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	if _, err := s.appointments.FindByID(ctx, id); err != nil {
		return err
	}
	if !principal.Roles.IsAdmin {
		return apperrors.NewForbiddenError("only administrators may delete appointments")
	}
	return s.appointments.Delete(ctx, id)
}

// MarkRead records that the principal has seen the appointment. The call
// is idempotent: the first call creates the receipt, repeats return the
// existing one. The created flag tells the transport layer whether to
// answer 201 or 200.
func (s *AppointmentService) MarkRead(ctx context.Context, principal *models.Principal, id int64) (*dto.ReadReceiptView, bool, error) {
	if _, err := s.appointments.FindByID(ctx, id); err != nil {
		return nil, false, err
	}
	receipt, created, err := s.receipts.FindOrCreateAppointmentRead(ctx, principal.ID, id)
	if err != nil {
		return nil, false, err
	}
	return &dto.ReadReceiptView{
		ID:        receipt.ID,
		ViewerID:  receipt.ViewerID,
		CreatedAt: receipt.CreatedAt,
	}, created, nil
}

// FindAdvisorsByName searches advisor snapshots on past appointments.
// Every whitespace-separated fragment of the query must match the name.
func (s *AppointmentService) FindAdvisorsByName(ctx context.Context, query string) ([]dto.AdvisorNameMatch, error) {
	fragments := strings.Fields(query)
	if len(fragments) == 0 {
		return []dto.AdvisorNameMatch{}, nil
	}
	advisors, err := s.appointments.FindAdvisorsByName(ctx, fragments, advisorSearchLimit)
	if err != nil {
		return nil, err
	}
	matches := make([]dto.AdvisorNameMatch, 0, len(advisors))
	for _, advisor := range advisors {
		matches = append(matches, dto.AdvisorNameMatch{Label: advisor.Name, UID: advisor.UID})
	}
	return matches, nil
}

// loadAuthorized fetches the appointment and runs the existence, department
// and privilege checks in their fixed order.
func (s *AppointmentService) loadAuthorized(ctx context.Context, principal *models.Principal, id int64) (*models.Appointment, error) {
	a, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDept(principal, a.DeptCode); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AppointmentService) authorizeDept(principal *models.Principal, deptCode string) error {
	if !models.IsKnownDeptCode(deptCode) {
		return apperrors.ErrDepartmentNotFound
	}
	if !auth.CanScheduleForDept(principal.Roles, deptCode) {
		return apperrors.NewForbiddenError("scheduler privilege required for department " + strings.ToUpper(deptCode))
	}
	return nil
}

// resolveAdvisor maps an advisor uid to a directory snapshot. An unknown
// uid is the caller's mistake, not a missing resource.
func (s *AppointmentService) resolveAdvisor(ctx context.Context, uid string) (*models.AdvisorIdentity, error) {
	advisor, err := s.directory.ResolveAdvisor(ctx, uid)
	if err != nil {
		return nil, err
	}
	if advisor == nil {
		return nil, apperrors.NewBadRequestError("unknown advisor uid " + uid)
	}
	return advisor, nil
}

func (s *AppointmentService) toView(ctx context.Context, principal *models.Principal, a *models.Appointment) (*dto.AppointmentView, error) {
	views, err := s.toViews(ctx, principal, []*models.Appointment{a})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// toViews projects appointments for the viewer, joining student profiles
// in one bulk lookup and flagging which records the viewer has read.
func (s *AppointmentService) toViews(ctx context.Context, principal *models.Principal, appointments []*models.Appointment) ([]*dto.AppointmentView, error) {
	sids := make([]string, 0, len(appointments))
	seen := make(map[string]bool)
	for _, a := range appointments {
		if !seen[a.StudentSID] {
			seen[a.StudentSID] = true
			sids = append(sids, a.StudentSID)
		}
	}
	profiles, err := s.profiles.GetProfiles(ctx, sids)
	if err != nil {
		return nil, err
	}
	profilesBySID := make(map[string]*models.StudentProfile, len(profiles))
	for _, p := range profiles {
		profilesBySID[p.SID] = p
	}

	views := make([]*dto.AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		read, err := s.receipts.HasAppointmentRead(ctx, principal.ID, a.ID)
		if err != nil {
			return nil, err
		}
		view := &dto.AppointmentView{
			ID:                    a.ID,
			DeptCode:              a.DeptCode,
			AppointmentType:       a.AppointmentType,
			Details:               a.Details,
			Status:                a.Status,
			Topics:                a.Topics,
			StatusBy:              a.StatusBy,
			StatusDate:            a.StatusDate,
			CancelReason:          a.CancelReason,
			CancelReasonExplained: a.CancelReasonExplained,
			CreatedAt:             a.CreatedAt,
			UpdatedAt:             a.UpdatedAt,
			Read:                  read,
		}
		if view.Topics == nil {
			view.Topics = []string{}
		}
		if p, ok := profilesBySID[a.StudentSID]; ok {
			view.Student = &dto.StudentView{
				SID:       p.SID,
				UID:       p.UID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
				Name:      strings.TrimSpace(p.FirstName + " " + p.LastName),
				College:   p.College,
			}
		} else {
			view.Student = &dto.StudentView{SID: a.StudentSID}
		}
		if a.AdvisorUID != nil {
			advisor := &models.AdvisorIdentity{UID: *a.AdvisorUID, DeptCodes: a.AdvisorDeptCodes}
			if a.AdvisorID != nil {
				advisor.ID = *a.AdvisorID
			}
			if a.AdvisorName != nil {
				advisor.Name = *a.AdvisorName
			}
			if a.AdvisorRole != nil {
				advisor.Role = *a.AdvisorRole
			}
			view.Advisor = advisor
		}
		views = append(views, view)
	}
	return views, nil
}
