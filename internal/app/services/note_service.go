package services

import (
	"context"
	"fmt"
	"io"

	"github.com/advisehq/advising/internal/app/auth"
	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/pkg/apperrors"
	"github.com/advisehq/advising/internal/pkg/logger"
	"github.com/advisehq/advising/internal/pkg/richtext"
)

// NoteService creates and maintains advising notes, including the batch
// fan-out that writes one note per targeted student, and the attachment
// lifecycle. Note bodies are rich text and pass through the sanitizer on
// every write.
type NoteService struct {
	notes          NoteStore
	receipts       ReadReceiptStore
	resolver       *StudentSetResolver
	blobs          BlobStore
	sanitizer      *richtext.Sanitizer
	maxAttachments int
}

// NewNoteService creates a new note service instance.
func NewNoteService(notes NoteStore, receipts ReadReceiptStore, resolver *StudentSetResolver, blobs BlobStore, maxAttachments int) *NoteService {
	return &NoteService{
		notes:          notes,
		receipts:       receipts,
		resolver:       resolver,
		blobs:          blobs,
		sanitizer:      richtext.NewSanitizer(),
		maxAttachments: maxAttachments,
	}
}

// Create writes one note for one student, with any uploaded or template
// attachments, and records the author's own read receipt in the same
// transaction so the note never surfaces as unread to its author.
func (s *NoteService) Create(ctx context.Context, principal *models.Principal, req *dto.CreateNoteRequest, uploads []dto.AttachmentUpload) (*dto.NoteView, error) {
	if !auth.CanAuthorNotes(principal.Roles) {
		return nil, apperrors.NewForbiddenError("a department affiliation is required to author notes")
	}
	attachments, err := s.buildAttachments(ctx, principal, uploads, req.TemplateAttachmentIDs)
	if err != nil {
		return nil, err
	}

	n := s.newNote(principal, req.SID, req.Subject, s.sanitizer.Process(req.Body), req.Topics, attachments)
	id, err := s.notes.CreateWithReceipt(ctx, n, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	logger.Info().Int64("noteID", id).Str("sid", req.SID).Str("authorUID", principal.UID).Msg("Note created")
	return s.Get(ctx, principal, id)
}

// CreateBatch resolves the targeted student set and writes one note per
// student. Each note is created atomically with its author receipt, but
// the batch as a whole is not transactional: a failure partway leaves the
// notes already written in place and reports which sid failed.
func (s *NoteService) CreateBatch(ctx context.Context, principal *models.Principal, req *dto.BatchCreateNotesRequest, uploads []dto.AttachmentUpload) (map[string]int64, error) {
	if !auth.CanAuthorNotes(principal.Roles) {
		return nil, apperrors.NewForbiddenError("a department affiliation is required to author notes")
	}
	sids, err := s.resolver.Resolve(ctx, req.SIDs, req.CohortIDs, req.CuratedGroupIDs)
	if err != nil {
		return nil, err
	}
	if len(sids) == 0 {
		return nil, apperrors.NewBadRequestError("batch resolves to no students")
	}
	attachments, err := s.buildAttachments(ctx, principal, uploads, req.TemplateAttachmentIDs)
	if err != nil {
		return nil, err
	}

	// Sanitize once; every fanned-out note shares the same body.
	body := s.sanitizer.Process(req.Body)

	noteIDsBySID := make(map[string]int64, len(sids))
	for _, sid := range sids {
		n := s.newNote(principal, sid, req.Subject, body, req.Topics, attachments)
		id, err := s.notes.CreateWithReceipt(ctx, n, principal.ID)
		if err != nil {
			logger.Error().Err(err).Str("sid", sid).Int("written", len(noteIDsBySID)).Msg("Batch note creation failed partway")
			return nil, fmt.Errorf("failed to create note for sid %s: %w", sid, err)
		}
		noteIDsBySID[sid] = id
	}
	logger.Info().Int("count", len(noteIDsBySID)).Str("authorUID", principal.UID).Msg("Batch notes created")
	return noteIDsBySID, nil
}

// DistinctStudentCount is the batch preflight: how many students the given
// selectors resolve to, after deduplication.
func (s *NoteService) DistinctStudentCount(ctx context.Context, req *dto.DistinctStudentCountRequest) (int, error) {
	sids, err := s.resolver.Resolve(ctx, req.SIDs, req.CohortIDs, req.CuratedGroupIDs)
	if err != nil {
		return 0, err
	}
	return len(sids), nil
}

// Get returns a note with the viewer's read flag.
func (s *NoteService) Get(ctx context.Context, principal *models.Principal, id int64) (*dto.NoteView, error) {
	n, err := s.notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	read, err := s.receipts.HasNoteRead(ctx, principal.ID, n.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewNoteView(n, read), nil
}

// Update edits subject, body and topics. Only the author may edit, and the
// edit stamps updated_at, which until then stays null.
func (s *NoteService) Update(ctx context.Context, principal *models.Principal, id int64, req *dto.UpdateNoteRequest) (*dto.NoteView, error) {
	n, err := s.notes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditNote(principal, n) {
		return nil, apperrors.NewForbiddenError("only the author may edit a note")
	}
	if err := s.notes.Update(ctx, id, req.Subject, s.sanitizer.Process(req.Body), req.Topics, principal.UID); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, id)
}

// Delete soft-deletes a note and its attachments. Authorship is not
// enough; deletion is admin only.
func (s *NoteService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	if _, err := s.notes.FindByID(ctx, id); err != nil {
		return err
	}
	if !auth.CanDeleteNote(principal.Roles) {
		return apperrors.NewForbiddenError("only administrators may delete notes")
	}
	return s.notes.Delete(ctx, id)
}

// MarkRead records that the principal has seen the note. Idempotent; the
// created flag distinguishes the first call from repeats.
func (s *NoteService) MarkRead(ctx context.Context, principal *models.Principal, id int64) (*dto.ReadReceiptView, bool, error) {
	if _, err := s.notes.FindByID(ctx, id); err != nil {
		return nil, false, err
	}
	receipt, created, err := s.receipts.FindOrCreateNoteRead(ctx, principal.ID, id)
	if err != nil {
		return nil, false, err
	}
	return &dto.ReadReceiptView{
		ID:        receipt.ID,
		ViewerID:  receipt.ViewerID,
		CreatedAt: receipt.CreatedAt,
	}, created, nil
}

// AddAttachment stores one uploaded file and attaches it to the note.
// Author only, and capped at the configured attachment count.
func (s *NoteService) AddAttachment(ctx context.Context, principal *models.Principal, noteID int64, upload dto.AttachmentUpload) (*dto.NoteView, error) {
	n, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditNote(principal, n) {
		return nil, apperrors.NewForbiddenError("only the author may add attachments")
	}
	count, err := s.notes.CountAttachments(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxAttachments {
		return nil, apperrors.ErrAttachmentLimit
	}

	ref, err := s.blobs.Put(upload.Data, upload.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment content: %w", err)
	}
	attachment := models.NoteAttachment{
		BlobRef:    ref,
		Filename:   upload.Name,
		UploadedBy: principal.UID,
	}
	if err := s.notes.AddAttachment(ctx, noteID, attachment); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, noteID)
}

// RemoveAttachment detaches an attachment from the note. The author or an
// admin may remove; the stored blob is kept since template reuse may still
// reference it.
func (s *NoteService) RemoveAttachment(ctx context.Context, principal *models.Principal, noteID, attachmentID int64) (*dto.NoteView, error) {
	n, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !attachmentBelongs(n, attachmentID) {
		return nil, apperrors.ErrAttachmentNotFound
	}
	if !auth.CanRemoveAttachment(principal, n) {
		return nil, apperrors.NewForbiddenError("only the author or an administrator may remove attachments")
	}
	if err := s.notes.RemoveAttachment(ctx, noteID, attachmentID); err != nil {
		return nil, err
	}
	return s.Get(ctx, principal, noteID)
}

// StreamAttachment opens the stored content of an attachment for download.
// The caller owns the returned reader.
func (s *NoteService) StreamAttachment(ctx context.Context, attachmentID int64) (*models.NoteAttachment, io.ReadCloser, error) {
	attachment, err := s.notes.FindAttachment(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.blobs.Stream(attachment.BlobRef)
	if err != nil {
		logger.Error().Err(err).Int64("attachmentID", attachmentID).Msg("Attachment content missing from blob store")
		return nil, nil, apperrors.ErrAttachmentNotFound
	}
	return attachment, reader, nil
}

// newNote builds the note model with the author snapshot taken from the
// principal at creation time.
func (s *NoteService) newNote(principal *models.Principal, sid, subject, body string, topics []string, attachments []models.NoteAttachment) *models.Note {
	role := "Advisor"
	for _, d := range principal.Roles.Departments {
		if d.IsDirector {
			role = "Director"
		}
	}
	return &models.Note{
		StudentSID:      sid,
		Subject:         subject,
		Body:            body,
		AuthorUID:       principal.UID,
		AuthorName:      principal.Name,
		AuthorRole:      role,
		AuthorDeptCodes: principal.Roles.DeptCodes(),
		Topics:          topics,
		Attachments:     attachments,
	}
}

// buildAttachments assembles the attachment set for a new note from direct
// uploads plus template attachments cloned by id. Clones share the stored
// blob; only the attachment row is duplicated.
func (s *NoteService) buildAttachments(ctx context.Context, principal *models.Principal, uploads []dto.AttachmentUpload, templateIDs []int64) ([]models.NoteAttachment, error) {
	if len(uploads)+len(templateIDs) > s.maxAttachments {
		return nil, apperrors.ErrAttachmentLimit
	}

	attachments := make([]models.NoteAttachment, 0, len(uploads)+len(templateIDs))
	for _, upload := range uploads {
		ref, err := s.blobs.Put(upload.Data, upload.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment content: %w", err)
		}
		attachments = append(attachments, models.NoteAttachment{
			BlobRef:    ref,
			Filename:   upload.Name,
			UploadedBy: principal.UID,
		})
	}

	if len(templateIDs) > 0 {
		templates, err := s.notes.FindAttachments(ctx, templateIDs)
		if err != nil {
			return nil, err
		}
		if len(templates) != len(templateIDs) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		for _, t := range templates {
			attachments = append(attachments, models.NoteAttachment{
				BlobRef:    t.BlobRef,
				Filename:   t.Filename,
				UploadedBy: principal.UID,
			})
		}
	}
	return attachments, nil
}

func attachmentBelongs(n *models.Note, attachmentID int64) bool {
	for _, a := range n.Attachments {
		if a.ID == attachmentID {
			return true
		}
	}
	return false
}
