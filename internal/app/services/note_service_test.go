package services

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisehq/advising/internal/app/models"
	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/pkg/apperrors"
)

const testAttachmentCap = 3

type noteFixture struct {
	service  *NoteService
	notes    *fakeNoteStore
	receipts *fakeReceiptStore
	filters  *fakeFilterStore
	blobs    *fakeBlobStore
}

func newNoteFixture() *noteFixture {
	receipts := newFakeReceiptStore()
	notes := newFakeNoteStore(receipts)
	filters := newFakeFilterStore()
	blobs := newFakeBlobStore()
	resolver := NewStudentSetResolver(filters)
	return &noteFixture{
		service:  NewNoteService(notes, receipts, resolver, blobs, testAttachmentCap),
		notes:    notes,
		receipts: receipts,
		filters:  filters,
		blobs:    blobs,
	}
}

func TestCreateNoteSnapshotsAuthor(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG", "QCADV")

	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Degree progress",
		Body:    "<p>On track for spring.</p>",
		Topics:  []string{"Degree Check"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, author.UID, view.AuthorUID)
	assert.Equal(t, "Alex Advisor", view.AuthorName)
	assert.Equal(t, "Advisor", view.AuthorRole)
	assert.Equal(t, []string{"COENG", "QCADV"}, view.AuthorDeptCodes)
	assert.Nil(t, view.UpdatedAt, "a fresh note has no update timestamp")
	assert.True(t, view.Read, "author receipt is written with the note")
}

func TestCreateNoteSanitizesBody(t *testing.T) {
	f := newNoteFixture()

	view, err := f.service.Create(context.Background(), advisorPrincipal("COENG"), &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Follow up",
		Body:    `<p>See <script>alert("x")</script>notes at https://advising.example.edu/plan</p>`,
	}, nil)
	require.NoError(t, err)

	assert.NotContains(t, view.Body, "<script>")
	assert.Contains(t, view.Body, `href="https://advising.example.edu/plan"`)
}

func TestCreateNoteForbiddenForAdmin(t *testing.T) {
	f := newNoteFixture()

	_, err := f.service.Create(context.Background(), adminPrincipal(), &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Degree progress",
	}, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestCreateNoteWithUploads(t *testing.T) {
	f := newNoteFixture()

	view, err := f.service.Create(context.Background(), advisorPrincipal("COENG"), &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Transcript review",
	}, []dto.AttachmentUpload{
		{Name: "transcript.pdf", Data: []byte("pdf bytes")},
		{Name: "plan.xlsx", Data: []byte("xlsx bytes")},
	})
	require.NoError(t, err)

	require.Len(t, view.Attachments, 2)
	assert.Equal(t, "transcript.pdf", view.Attachments[0].Filename)
	assert.Equal(t, "400", view.Attachments[0].UploadedBy)
}

func TestCreateNoteAttachmentCap(t *testing.T) {
	f := newNoteFixture()

	uploads := []dto.AttachmentUpload{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
		{Name: "c.pdf", Data: []byte("c")},
		{Name: "d.pdf", Data: []byte("d")},
	}
	_, err := f.service.Create(context.Background(), advisorPrincipal("COENG"), &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Too many files",
	}, uploads)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentLimit)
}

func TestBatchCreateFansOutPerStudent(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	f.filters.set(models.GroupDomainCohort, 7, []string{"22667052", "11667051"})
	f.filters.set(models.GroupDomainCurated, 9, []string{"33667053", "11667051"})

	noteIDsBySID, err := f.service.CreateBatch(context.Background(), author, &dto.BatchCreateNotesRequest{
		SIDs:            []string{"11667051"},
		CohortIDs:       []int64{7},
		CuratedGroupIDs: []int64{9},
		Subject:         "Enrollment deadline",
		Body:            "<p>Reminder</p>",
		Topics:          []string{"Registration"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, noteIDsBySID, 3, "overlapping selectors must deduplicate")
	for sid, noteID := range noteIDsBySID {
		view, err := f.service.Get(context.Background(), author, noteID)
		require.NoError(t, err)
		assert.Equal(t, sid, view.StudentSID)
		assert.Equal(t, "Enrollment deadline", view.Subject)
		assert.True(t, view.Read, "each note carries the author receipt")
	}
}

func TestBatchCreateDuplicatesAttachmentsPerNote(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")

	noteIDsBySID, err := f.service.CreateBatch(context.Background(), author, &dto.BatchCreateNotesRequest{
		SIDs:    []string{"11667051", "22667052"},
		Subject: "Advising packet",
	}, []dto.AttachmentUpload{{Name: "packet.pdf", Data: []byte("packet")}})
	require.NoError(t, err)
	require.Len(t, noteIDsBySID, 2)

	seen := make(map[int64]bool)
	for _, noteID := range noteIDsBySID {
		view, err := f.service.Get(context.Background(), author, noteID)
		require.NoError(t, err)
		require.Len(t, view.Attachments, 1)
		assert.False(t, seen[view.Attachments[0].ID], "each note owns its own attachment row")
		seen[view.Attachments[0].ID] = true
	}
}

func TestBatchCreateEmptyTargetRejected(t *testing.T) {
	f := newNoteFixture()

	_, err := f.service.CreateBatch(context.Background(), advisorPrincipal("COENG"), &dto.BatchCreateNotesRequest{
		CohortIDs: []int64{404},
		Subject:   "Nobody home",
	}, nil)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestDistinctStudentCountUnionsSelectors(t *testing.T) {
	f := newNoteFixture()
	f.filters.set(models.GroupDomainCohort, 7, []string{"22667052", "99999999"})

	count, err := f.service.DistinctStudentCount(context.Background(), &dto.DistinctStudentCountRequest{
		SIDs:      []string{"11667051", "22667052"},
		CohortIDs: []int64{7},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpdateNoteAuthorOnly(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Initial",
	}, nil)
	require.NoError(t, err)

	stranger := advisorPrincipal("QCADV")
	stranger.ID, stranger.UID = 77, "770"
	_, err = f.service.Update(context.Background(), stranger, view.ID, &dto.UpdateNoteRequest{Subject: "Hijacked"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	// Admins cannot edit either; only the author may.
	_, err = f.service.Update(context.Background(), adminPrincipal(), view.ID, &dto.UpdateNoteRequest{Subject: "Hijacked"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	updated, err := f.service.Update(context.Background(), author, view.ID, &dto.UpdateNoteRequest{
		Subject: "Revised",
		Body:    "<p>New text</p>",
		Topics:  []string{"Probation"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Revised", updated.Subject)
	assert.NotNil(t, updated.UpdatedAt, "first edit stamps the update timestamp")
}

func TestDeleteNoteAdminOnly(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "To be removed",
	}, []dto.AttachmentUpload{{Name: "evidence.pdf", Data: []byte("pdf bytes")}})
	require.NoError(t, err)
	require.Len(t, view.Attachments, 1)

	err = f.service.Delete(context.Background(), author, view.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied, "authorship does not grant deletion")

	require.NoError(t, f.service.Delete(context.Background(), adminPrincipal(), view.ID))
	_, err = f.service.Get(context.Background(), author, view.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoteNotFound)

	// Deletion cascades to the note's attachments.
	_, _, err = f.service.StreamAttachment(context.Background(), view.Attachments[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}

func TestMarkNoteReadIsIdempotent(t *testing.T) {
	f := newNoteFixture()
	view, err := f.service.Create(context.Background(), advisorPrincipal("COENG"), &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Readable",
	}, nil)
	require.NoError(t, err)
	viewer := advisorPrincipal("QCADV")
	viewer.ID = 42

	first, created, err := f.service.MarkRead(context.Background(), viewer, view.ID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.service.MarkRead(context.Background(), viewer, view.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddAttachmentAuthorOnlyAndCapped(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Attachments",
	}, nil)
	require.NoError(t, err)

	_, err = f.service.AddAttachment(context.Background(), adminPrincipal(), view.ID, dto.AttachmentUpload{Name: "x.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	for i := 0; i < testAttachmentCap; i++ {
		_, err = f.service.AddAttachment(context.Background(), author, view.ID, dto.AttachmentUpload{Name: "x.pdf", Data: []byte("x")})
		require.NoError(t, err)
	}
	_, err = f.service.AddAttachment(context.Background(), author, view.ID, dto.AttachmentUpload{Name: "overflow.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, apperrors.ErrAttachmentLimit)
}

func TestRemoveAttachmentAuthorOrAdmin(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Attachments",
	}, []dto.AttachmentUpload{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, view.Attachments, 2)

	stranger := advisorPrincipal("QCADV")
	stranger.ID, stranger.UID = 77, "770"
	_, err = f.service.RemoveAttachment(context.Background(), stranger, view.ID, view.Attachments[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	after, err := f.service.RemoveAttachment(context.Background(), author, view.ID, view.Attachments[0].ID)
	require.NoError(t, err)
	assert.Len(t, after.Attachments, 1)

	after, err = f.service.RemoveAttachment(context.Background(), adminPrincipal(), view.ID, view.Attachments[1].ID)
	require.NoError(t, err)
	assert.Empty(t, after.Attachments)
}

func TestRemoveAttachmentWrongNote(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	first, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "First",
	}, []dto.AttachmentUpload{{Name: "a.pdf", Data: []byte("a")}})
	require.NoError(t, err)
	second, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "22667052",
		Subject: "Second",
	}, nil)
	require.NoError(t, err)

	_, err = f.service.RemoveAttachment(context.Background(), author, second.ID, first.Attachments[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}

func TestTemplateAttachmentsShareBlob(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	template, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Template",
	}, []dto.AttachmentUpload{{Name: "checklist.pdf", Data: []byte("checklist")}})
	require.NoError(t, err)

	cloned, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:                   "22667052",
		Subject:               "From template",
		TemplateAttachmentIDs: []int64{template.Attachments[0].ID},
	}, nil)
	require.NoError(t, err)

	require.Len(t, cloned.Attachments, 1)
	assert.NotEqual(t, template.Attachments[0].ID, cloned.Attachments[0].ID)

	_, reader, err := f.service.StreamAttachment(context.Background(), cloned.Attachments[0].ID)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "checklist", string(content))
}

func TestCreateNoteUnknownTemplateAttachment(t *testing.T) {
	f := newNoteFixture()

	_, err := f.service.Create(context.Background(), advisorPrincipal("COENG"), &dto.CreateNoteRequest{
		SID:                   "11667051",
		Subject:               "Broken template",
		TemplateAttachmentIDs: []int64{404},
	}, nil)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}

func TestStreamAttachment(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Download",
	}, []dto.AttachmentUpload{{Name: "notes.txt", Data: []byte("hello")}})
	require.NoError(t, err)

	attachment, reader, err := f.service.StreamAttachment(context.Background(), view.Attachments[0].ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "notes.txt", attachment.Filename)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestStreamAttachmentMissingBlob(t *testing.T) {
	f := newNoteFixture()
	author := advisorPrincipal("COENG")
	view, err := f.service.Create(context.Background(), author, &dto.CreateNoteRequest{
		SID:     "11667051",
		Subject: "Download",
	}, []dto.AttachmentUpload{{Name: "notes.txt", Data: []byte("hello")}})
	require.NoError(t, err)

	// Simulate the stored content going missing out from under the record.
	for ref := range f.blobs.blobs {
		require.NoError(t, f.blobs.Delete(ref))
	}
	_, _, err = f.service.StreamAttachment(context.Background(), view.Attachments[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}
