package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/app/services"
	"github.com/advisehq/advising/internal/middleware"
)

// NoteController handles advising note and attachment endpoints
type NoteController struct {
	noteService *services.NoteService
}

// NewNoteController creates a new NoteController
func NewNoteController(noteService *services.NoteService) *NoteController {
	return &NoteController{
		noteService: noteService,
	}
}

// CreateNote creates one note for one student
// @Summary Create a note
// @Description Creates an advising note. Multipart form: sid, subject, body, repeated topics[] and templateAttachmentIds[] fields, plus attachments[] files.
// @Tags notes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param sid formData string true "Student SID"
// @Param subject formData string true "Note subject"
// @Param body formData string false "Rich text body"
// @Param attachments[] formData file false "Attachment files"
// @Success 201 {object} dto.APIResponse{data=dto.NoteView} "Note created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data or attachment limit reached"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Department affiliation required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes [post]
func (c *NoteController) CreateNote(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}

	templateIDs, ok := formInt64List(ctx, "templateAttachmentIds[]")
	if !ok {
		return
	}
	req := dto.CreateNoteRequest{
		SID:                   ctx.PostForm("sid"),
		Subject:               ctx.PostForm("subject"),
		Body:                  ctx.PostForm("body"),
		Topics:                ctx.PostFormArray("topics[]"),
		TemplateAttachmentIDs: templateIDs,
	}
	if req.SID == "" || req.Subject == "" {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid note data")
		errorDetail = errorDetail.WithDetails("sid and subject are required")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	uploads, ok := readUploads(ctx)
	if !ok {
		return
	}

	note, err := c.noteService.Create(ctx, principal, &req, uploads)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(note, ""))
}

// BatchCreateNotes fans one note out to every resolved student
// @Summary Batch create notes
// @Description Writes one note per student resolved from the union of sids[], cohortIds[] and curatedGroupIds[]. Responds with a sid to note id map.
// @Tags notes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param subject formData string true "Note subject"
// @Param body formData string false "Rich text body"
// @Param attachments[] formData file false "Attachment files, duplicated onto every note"
// @Success 201 {object} dto.APIResponse{data=map[string]int64} "Notes created successfully"
// @Failure 400 {object} dto.ErrorResponse "Batch resolves to no students"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Department affiliation required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/batch [post]
func (c *NoteController) BatchCreateNotes(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}

	cohortIDs, ok := formInt64List(ctx, "cohortIds[]")
	if !ok {
		return
	}
	curatedGroupIDs, ok := formInt64List(ctx, "curatedGroupIds[]")
	if !ok {
		return
	}
	templateIDs, ok := formInt64List(ctx, "templateAttachmentIds[]")
	if !ok {
		return
	}
	req := dto.BatchCreateNotesRequest{
		SIDs:                  ctx.PostFormArray("sids[]"),
		CohortIDs:             cohortIDs,
		CuratedGroupIDs:       curatedGroupIDs,
		Subject:               ctx.PostForm("subject"),
		Body:                  ctx.PostForm("body"),
		Topics:                ctx.PostFormArray("topics[]"),
		TemplateAttachmentIDs: templateIDs,
	}
	if req.Subject == "" {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid note data")
		errorDetail = errorDetail.WithDetails("subject is required")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	uploads, ok := readUploads(ctx)
	if !ok {
		return
	}

	noteIDsBySID, err := c.noteService.CreateBatch(ctx, principal, &req, uploads)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(noteIDsBySID, ""))
}

// DistinctStudentCount is the batch creation preflight
// @Summary Count distinct batch targets
// @Description Reports how many distinct students the given sids, cohorts and curated groups resolve to
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DistinctStudentCountRequest true "Batch selectors"
// @Success 200 {object} dto.APIResponse{data=dto.DistinctStudentCountResponse} "Count computed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/batch/distinct_student_count [post]
func (c *NoteController) DistinctStudentCount(ctx *gin.Context) {
	if _, ok := middleware.Principal(ctx); !ok {
		abortUnauthenticated(ctx)
		return
	}

	var req dto.DistinctStudentCountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	count, err := c.noteService.DistinctStudentCount(ctx, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.DistinctStudentCountResponse{Count: count}, ""))
}

// GetNote retrieves a note by ID
// @Summary Get note by ID
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 200 {object} dto.APIResponse{data=dto.NoteView} "Note retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Note not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id} [get]
func (c *NoteController) GetNote(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}

	note, err := c.noteService.Get(ctx, principal, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(note, ""))
}

// UpdateNote edits subject, body and topics
// @Summary Update a note
// @Description Edits a note. Author only.
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param request body dto.UpdateNoteRequest true "Updated note content"
// @Success 200 {object} dto.APIResponse{data=dto.NoteView} "Note updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Only the author may edit"
// @Failure 404 {object} dto.ErrorResponse "Note not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id} [put]
func (c *NoteController) UpdateNote(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}

	var req dto.UpdateNoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	note, err := c.noteService.Update(ctx, principal, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(note, ""))
}

// DeleteNote soft-deletes a note and its attachments
// @Summary Delete a note
// @Description Removes a note with its attachments and read receipts. Admin only.
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 200 {object} dto.APIResponse "Note deleted"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Administrator privilege required"
// @Failure 404 {object} dto.ErrorResponse "Note not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id} [delete]
func (c *NoteController) DeleteNote(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}

	if err := c.noteService.Delete(ctx, principal, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Note deleted"))
}

// MarkNoteRead records a read receipt for the viewer
// @Summary Mark a note read
// @Description Idempotent: the first call creates the receipt and answers 201, repeats answer 200 with the existing receipt
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReadReceiptView} "Receipt already existed"
// @Success 201 {object} dto.APIResponse{data=dto.ReadReceiptView} "Receipt created"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Note not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id}/mark_read [post]
func (c *NoteController) MarkNoteRead(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}

	receipt, created, err := c.noteService.MarkRead(ctx, principal, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, dto.NewSuccessResponse(receipt, ""))
}

// AddAttachment attaches one uploaded file to a note
// @Summary Add an attachment
// @Description Attaches one file to the note. Author only, capped at the configured attachment count.
// @Tags notes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param attachment formData file true "Attachment file"
// @Success 200 {object} dto.APIResponse{data=dto.NoteView} "Attachment added"
// @Failure 400 {object} dto.ErrorResponse "Missing file or attachment limit reached"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Only the author may add attachments"
// @Failure 404 {object} dto.ErrorResponse "Note not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id}/attachments [post]
func (c *NoteController) AddAttachment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("attachment")
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Attachment file is required")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}
	upload, err := readUpload(file)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	note, err := c.noteService.AddAttachment(ctx, principal, id, upload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(note, ""))
}

// RemoveAttachment detaches an attachment from a note
// @Summary Remove an attachment
// @Description Detaches the attachment. The author or an administrator may remove.
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param attachmentId path int true "Attachment ID"
// @Success 200 {object} dto.APIResponse{data=dto.NoteView} "Attachment removed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Only the author or an administrator may remove"
// @Failure 404 {object} dto.ErrorResponse "Note or attachment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/{id}/attachments/{attachmentId} [delete]
func (c *NoteController) RemoveAttachment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := noteID(ctx)
	if !ok {
		return
	}
	attachmentID, err := strconv.ParseInt(ctx.Param("attachmentId"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid attachment ID")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	note, err := c.noteService.RemoveAttachment(ctx, principal, id, attachmentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(note, ""))
}

// DownloadAttachment streams the stored attachment content
// @Summary Download an attachment
// @Tags notes
// @Produce octet-stream
// @Security BearerAuth
// @Param attachmentId path int true "Attachment ID"
// @Success 200 {file} binary "Attachment content"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Attachment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /notes/attachments/{attachmentId} [get]
func (c *NoteController) DownloadAttachment(ctx *gin.Context) {
	if _, ok := middleware.Principal(ctx); !ok {
		abortUnauthenticated(ctx)
		return
	}
	attachmentID, err := strconv.ParseInt(ctx.Param("attachmentId"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid attachment ID")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	attachment, reader, err := c.noteService.StreamAttachment(ctx, attachmentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	defer reader.Close()

	ctx.Header("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	ctx.Header("Content-Type", "application/octet-stream")
	ctx.Status(http.StatusOK)
	_, _ = io.Copy(ctx.Writer, reader)
}

func noteID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid note ID")
		errorDetail = errorDetail.WithDetails("Note ID must be a valid number")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

// readUploads collects the attachments[] files from the multipart form.
func readUploads(ctx *gin.Context) ([]dto.AttachmentUpload, bool) {
	form, err := ctx.MultipartForm()
	if err != nil {
		// No multipart body at all means no attachments.
		return nil, true
	}
	files := form.File["attachments[]"]
	uploads := make([]dto.AttachmentUpload, 0, len(files))
	for _, file := range files {
		upload, err := readUpload(file)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return nil, false
		}
		uploads = append(uploads, upload)
	}
	return uploads, true
}

func readUpload(file *multipart.FileHeader) (dto.AttachmentUpload, error) {
	opened, err := file.Open()
	if err != nil {
		return dto.AttachmentUpload{}, err
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		return dto.AttachmentUpload{}, err
	}
	return dto.AttachmentUpload{Name: file.Filename, Data: data}, nil
}

// formInt64List parses a repeated numeric form field, answering 400 itself
// on a non-numeric value.
func formInt64List(ctx *gin.Context, field string) ([]int64, bool) {
	values := ctx.PostFormArray(field)
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid form data")
			errorDetail = errorDetail.WithDetails(field + " must contain numeric ids")
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
