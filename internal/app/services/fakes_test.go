package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/filestorage"
)

// In-memory fakes for the service collaborator interfaces. They mirror the
// observable behavior of the pgx-backed repositories closely enough for
// the lifecycle and authorization rules to be exercised without a database.

type fakeAppointmentStore struct {
	byID   map[int64]*models.Appointment
	nextID int64
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{byID: make(map[int64]*models.Appointment)}
}

func (f *fakeAppointmentStore) Create(_ context.Context, a *models.Appointment) (int64, error) {
	f.nextID++
	stored := *a
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.byID[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeAppointmentStore) FindByID(_ context.Context, id int64) (*models.Appointment, error) {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return nil, apperrors.ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAppointmentStore) Waitlist(_ context.Context, deptCode string, statuses []models.AppointmentStatus) ([]*models.Appointment, error) {
	wanted := make(map[models.AppointmentStatus]bool)
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []*models.Appointment
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.byID[id]
		if ok && a.DeletedAt == nil && a.DeptCode == deptCode && wanted[a.Status] {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAppointmentStore) Reserve(_ context.Context, id, reservedBy int64, advisor *models.AdvisorIdentity) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	a.Status = models.StatusReserved
	a.AdvisorID = &advisor.ID
	a.AdvisorUID = &advisor.UID
	a.AdvisorName = &advisor.Name
	a.AdvisorRole = &advisor.Role
	a.AdvisorDeptCodes = advisor.DeptCodes
	a.StatusBy = reservedBy
	a.StatusDate = time.Now()
	return nil
}

func (f *fakeAppointmentStore) SetWaiting(_ context.Context, id, updatedBy int64) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	a.Status = models.StatusWaiting
	a.AdvisorID, a.AdvisorUID, a.AdvisorName, a.AdvisorRole = nil, nil, nil, nil
	a.AdvisorDeptCodes = nil
	a.CancelReason, a.CancelReasonExplained = nil, nil
	a.CancelledBy, a.CancelledAt = nil, nil
	a.CheckedInBy, a.CheckedInAt = nil, nil
	a.StatusBy = updatedBy
	a.StatusDate = time.Now()
	return nil
}

func (f *fakeAppointmentStore) CheckIn(_ context.Context, id, checkedInBy int64, advisor *models.AdvisorIdentity) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	now := time.Now()
	a.Status = models.StatusCheckedIn
	a.AdvisorID = &advisor.ID
	a.AdvisorUID = &advisor.UID
	a.AdvisorName = &advisor.Name
	a.AdvisorRole = &advisor.Role
	a.AdvisorDeptCodes = advisor.DeptCodes
	a.CheckedInBy = &checkedInBy
	a.CheckedInAt = &now
	a.StatusBy = checkedInBy
	a.StatusDate = now
	return nil
}

func (f *fakeAppointmentStore) Cancel(_ context.Context, id, cancelledBy int64, reason, reasonExplained *string) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	now := time.Now()
	a.Status = models.StatusCancelled
	a.CancelReason = reason
	a.CancelReasonExplained = reasonExplained
	a.CancelledBy = &cancelledBy
	a.CancelledAt = &now
	a.StatusBy = cancelledBy
	a.StatusDate = now
	return nil
}

func (f *fakeAppointmentStore) Update(_ context.Context, id int64, details string, topics []string, updatedBy int64) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	a.Details = details
	a.Topics = topics
	a.UpdatedBy = updatedBy
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAppointmentStore) Delete(_ context.Context, id int64) error {
	a, ok := f.byID[id]
	if !ok || a.DeletedAt != nil {
		return apperrors.ErrAppointmentNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

func (f *fakeAppointmentStore) FindAdvisorsByName(_ context.Context, fragments []string, limit int) ([]models.AdvisorIdentity, error) {
	seen := make(map[string]bool)
	var matches []models.AdvisorIdentity
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.byID[id]
		if !ok || a.DeletedAt != nil || a.AdvisorUID == nil || a.AdvisorName == nil {
			continue
		}
		name := strings.ToLower(*a.AdvisorName)
		hit := true
		for _, fragment := range fragments {
			if !strings.Contains(name, strings.ToLower(fragment)) {
				hit = false
				break
			}
		}
		if hit && !seen[*a.AdvisorUID] {
			seen[*a.AdvisorUID] = true
			matches = append(matches, models.AdvisorIdentity{UID: *a.AdvisorUID, Name: *a.AdvisorName})
		}
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

type fakeDirectory struct {
	advisors map[string]*models.AdvisorIdentity
	rosters  map[string][]dto.DropInAdvisorView
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		advisors: make(map[string]*models.AdvisorIdentity),
		rosters:  make(map[string][]dto.DropInAdvisorView),
	}
}

func (f *fakeDirectory) ResolveAdvisor(_ context.Context, uid string) (*models.AdvisorIdentity, error) {
	advisor, ok := f.advisors[uid]
	if !ok {
		return nil, nil
	}
	copied := *advisor
	return &copied, nil
}

func (f *fakeDirectory) DropInAdvisors(_ context.Context, deptCode string) ([]dto.DropInAdvisorView, error) {
	return f.rosters[deptCode], nil
}

type fakeProfileStore struct {
	bySID map[string]*models.StudentProfile
}

func newFakeProfileStore(profiles ...*models.StudentProfile) *fakeProfileStore {
	f := &fakeProfileStore{bySID: make(map[string]*models.StudentProfile)}
	for _, p := range profiles {
		f.bySID[p.SID] = p
	}
	return f
}

func (f *fakeProfileStore) GetProfiles(_ context.Context, sids []string) ([]*models.StudentProfile, error) {
	out := make([]*models.StudentProfile, 0, len(sids))
	for _, sid := range sids {
		if p, ok := f.bySID[sid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFilterStore struct {
	members map[string][]string
}

func newFakeFilterStore() *fakeFilterStore {
	return &fakeFilterStore{members: make(map[string][]string)}
}

func (f *fakeFilterStore) set(domain models.StudentGroupDomain, groupID int64, sids []string) {
	f.members[fmt.Sprintf("%s/%d", domain, groupID)] = sids
}

func (f *fakeFilterStore) MemberSIDs(_ context.Context, domain models.StudentGroupDomain, groupID int64) ([]string, error) {
	return f.members[fmt.Sprintf("%s/%d", domain, groupID)], nil
}

type receiptKey struct {
	viewerID int64
	recordID int64
}

type fakeReceiptStore struct {
	noteReads        map[receiptKey]*models.NoteRead
	appointmentReads map[receiptKey]*models.AppointmentRead
	nextID           int64
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{
		noteReads:        make(map[receiptKey]*models.NoteRead),
		appointmentReads: make(map[receiptKey]*models.AppointmentRead),
	}
}

func (f *fakeReceiptStore) FindOrCreateNoteRead(_ context.Context, viewerID, noteID int64) (*models.NoteRead, bool, error) {
	key := receiptKey{viewerID, noteID}
	if existing, ok := f.noteReads[key]; ok {
		return existing, false, nil
	}
	f.nextID++
	receipt := &models.NoteRead{ID: f.nextID, ViewerID: viewerID, NoteID: noteID, CreatedAt: time.Now()}
	f.noteReads[key] = receipt
	return receipt, true, nil
}

func (f *fakeReceiptStore) FindOrCreateAppointmentRead(_ context.Context, viewerID, appointmentID int64) (*models.AppointmentRead, bool, error) {
	key := receiptKey{viewerID, appointmentID}
	if existing, ok := f.appointmentReads[key]; ok {
		return existing, false, nil
	}
	f.nextID++
	receipt := &models.AppointmentRead{ID: f.nextID, ViewerID: viewerID, AppointmentID: appointmentID, CreatedAt: time.Now()}
	f.appointmentReads[key] = receipt
	return receipt, true, nil
}

func (f *fakeReceiptStore) HasNoteRead(_ context.Context, viewerID, noteID int64) (bool, error) {
	_, ok := f.noteReads[receiptKey{viewerID, noteID}]
	return ok, nil
}

func (f *fakeReceiptStore) HasAppointmentRead(_ context.Context, viewerID, appointmentID int64) (bool, error) {
	_, ok := f.appointmentReads[receiptKey{viewerID, appointmentID}]
	return ok, nil
}

type fakeNoteStore struct {
	byID             map[int64]*models.Note
	receipts         *fakeReceiptStore
	nextID           int64
	nextAttachmentID int64
}

func newFakeNoteStore(receipts *fakeReceiptStore) *fakeNoteStore {
	return &fakeNoteStore{byID: make(map[int64]*models.Note), receipts: receipts}
}

func (f *fakeNoteStore) CreateWithReceipt(ctx context.Context, n *models.Note, authorID int64) (int64, error) {
	f.nextID++
	stored := *n
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = nil
	stored.Attachments = make([]models.NoteAttachment, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		f.nextAttachmentID++
		a.ID = f.nextAttachmentID
		a.NoteID = stored.ID
		a.CreatedAt = stored.CreatedAt
		stored.Attachments = append(stored.Attachments, a)
	}
	f.byID[stored.ID] = &stored
	if _, _, err := f.receipts.FindOrCreateNoteRead(ctx, authorID, stored.ID); err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func (f *fakeNoteStore) FindByID(_ context.Context, id int64) (*models.Note, error) {
	n, ok := f.byID[id]
	if !ok || n.DeletedAt != nil {
		return nil, apperrors.ErrNoteNotFound
	}
	copied := *n
	copied.Attachments = make([]models.NoteAttachment, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		if a.DeletedAt == nil {
			copied.Attachments = append(copied.Attachments, a)
		}
	}
	return &copied, nil
}

func (f *fakeNoteStore) Update(_ context.Context, id int64, subject, body string, topics []string, _ string) error {
	n, ok := f.byID[id]
	if !ok || n.DeletedAt != nil {
		return apperrors.ErrNoteNotFound
	}
	now := time.Now()
	n.Subject = subject
	n.Body = body
	n.Topics = topics
	n.UpdatedAt = &now
	return nil
}

func (f *fakeNoteStore) Delete(_ context.Context, id int64) error {
	n, ok := f.byID[id]
	if !ok || n.DeletedAt != nil {
		return apperrors.ErrNoteNotFound
	}
	now := time.Now()
	n.DeletedAt = &now
	for i := range n.Attachments {
		n.Attachments[i].DeletedAt = &now
	}
	return nil
}

func (f *fakeNoteStore) AddAttachment(_ context.Context, noteID int64, attachment models.NoteAttachment) error {
	n, ok := f.byID[noteID]
	if !ok || n.DeletedAt != nil {
		return apperrors.ErrNoteNotFound
	}
	f.nextAttachmentID++
	attachment.ID = f.nextAttachmentID
	attachment.NoteID = noteID
	attachment.CreatedAt = time.Now()
	n.Attachments = append(n.Attachments, attachment)
	now := time.Now()
	n.UpdatedAt = &now
	return nil
}

func (f *fakeNoteStore) RemoveAttachment(_ context.Context, noteID, attachmentID int64) error {
	n, ok := f.byID[noteID]
	if !ok || n.DeletedAt != nil {
		return apperrors.ErrNoteNotFound
	}
	for i := range n.Attachments {
		if n.Attachments[i].ID == attachmentID && n.Attachments[i].DeletedAt == nil {
			now := time.Now()
			n.Attachments[i].DeletedAt = &now
			n.UpdatedAt = &now
			return nil
		}
	}
	return apperrors.ErrAttachmentNotFound
}

func (f *fakeNoteStore) FindAttachment(_ context.Context, attachmentID int64) (*models.NoteAttachment, error) {
	for _, n := range f.byID {
		for _, a := range n.Attachments {
			if a.ID == attachmentID && a.DeletedAt == nil {
				copied := a
				return &copied, nil
			}
		}
	}
	return nil, apperrors.ErrAttachmentNotFound
}

func (f *fakeNoteStore) FindAttachments(_ context.Context, ids []int64) ([]models.NoteAttachment, error) {
	var out []models.NoteAttachment
	for _, id := range ids {
		if a, err := f.FindAttachment(context.Background(), id); err == nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeNoteStore) CountAttachments(_ context.Context, noteID int64) (int, error) {
	n, ok := f.byID[noteID]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, a := range n.Attachments {
		if a.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

type fakeBlobStore struct {
	blobs  map[string][]byte
	nextID int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(content []byte, _ string) (string, error) {
	f.nextID++
	ref := fmt.Sprintf("blob-%d", f.nextID)
	f.blobs[ref] = content
	return ref, nil
}

func (f *fakeBlobStore) Stream(ref string) (io.ReadCloser, error) {
	content, ok := f.blobs[ref]
	if !ok {
		return nil, filestorage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeBlobStore) Delete(ref string) error {
	delete(f.blobs, ref)
	return nil
}

// Principal helpers shared across the service tests.

func adminPrincipal() *models.Principal {
	return &models.Principal{ID: 1, UID: "100", Name: "Ada Admin", Roles: models.Roles{IsAdmin: true}}
}

func schedulerPrincipal(deptCodes ...string) *models.Principal {
	p := &models.Principal{ID: 2, UID: "200", Name: "Sam Scheduler"}
	for _, code := range deptCodes {
		p.Roles.Departments = append(p.Roles.Departments, models.DeptMembership{Code: code, IsScheduler: true})
	}
	return p
}

func dropInPrincipal(deptCodes ...string) *models.Principal {
	return &models.Principal{
		ID:    3,
		UID:   "300",
		Name:  "Dana Dropin",
		Roles: models.Roles{DropInDeptCodes: deptCodes},
	}
}

func advisorPrincipal(deptCodes ...string) *models.Principal {
	p := &models.Principal{ID: 4, UID: "400", Name: "Alex Advisor"}
	for _, code := range deptCodes {
		p.Roles.Departments = append(p.Roles.Departments, models.DeptMembership{Code: code, IsAdvisor: true})
	}
	return p
}
