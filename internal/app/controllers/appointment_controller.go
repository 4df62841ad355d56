package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/advisehq/advising/internal/app/models/dto"
	"github.com/advisehq/advising/internal/app/services"
	"github.com/advisehq/advising/internal/middleware"
)

// AppointmentController handles appointment lifecycle endpoints
type AppointmentController struct {
	appointmentService *services.AppointmentService
}

// NewAppointmentController creates a new AppointmentController
func NewAppointmentController(appointmentService *services.AppointmentService) *AppointmentController {
	return &AppointmentController{
		appointmentService: appointmentService,
	}
}

// GetWaitlist returns the department waitlist feed
// @Summary Get department waitlist
// @Description Returns the drop-in advisor roster and the department's appointments split into unresolved and resolved
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param deptCode path string true "Advising department code"
// @Success 200 {object} dto.APIResponse{data=dto.WaitlistResponse} "Waitlist retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Unrecognized department code"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/waitlist/{deptCode} [get]
func (c *AppointmentController) GetWaitlist(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}

	waitlist, err := c.appointmentService.Waitlist(ctx, principal, ctx.Param("deptCode"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(waitlist, ""))
}

// GetAppointment retrieves an appointment by ID
// @Summary Get appointment by ID
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id} [get]
func (c *AppointmentController) GetAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	appointment, err := c.appointmentService.Get(ctx, principal, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// CreateAppointment opens a new appointment
// @Summary Create an appointment
// @Description Creates a drop-in or scheduled appointment. With an advisor uid the appointment starts reserved, otherwise it joins the waitlist.
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAppointmentRequest true "Appointment information"
// @Success 201 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Unrecognized department code"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments [post]
func (c *AppointmentController) CreateAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}

	var req dto.CreateAppointmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	appointment, err := c.appointmentService.Create(ctx, principal, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(appointment, ""))
}

// ReserveAppointment assigns the appointment to an advisor
// @Summary Reserve an appointment
// @Description Assigns the appointment to an advisor. Reserving an already reserved appointment reassigns it.
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param request body dto.AdvisorUIDRequest true "Advisor uid"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment reserved"
// @Failure 400 {object} dto.ErrorResponse "Terminal status or unknown advisor uid"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/reserve [post]
func (c *AppointmentController) ReserveAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	var req dto.AdvisorUIDRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	appointment, err := c.appointmentService.Reserve(ctx, principal, id, req.AdvisorUID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// UnreserveAppointment releases a reserved appointment
// @Summary Unreserve an appointment
// @Description Releases a reserved appointment back onto the waitlist and clears the advisor assignment
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment released"
// @Failure 400 {object} dto.ErrorResponse "Appointment is not reserved or is in a terminal status"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/unreserve [post]
func (c *AppointmentController) UnreserveAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	appointment, err := c.appointmentService.Unreserve(ctx, principal, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// CheckInAppointment closes out the appointment with the advisor who saw the student
// @Summary Check in an appointment
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param request body dto.AdvisorUIDRequest true "Advisor uid"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Student checked in"
// @Failure 400 {object} dto.ErrorResponse "Terminal status or unknown advisor uid"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/check_in [post]
func (c *AppointmentController) CheckInAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	var req dto.AdvisorUIDRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	appointment, err := c.appointmentService.CheckIn(ctx, principal, id, req.AdvisorUID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// CancelAppointment cancels an appointment
// @Summary Cancel an appointment
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param request body dto.CancelAppointmentRequest false "Cancellation reason"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment cancelled"
// @Failure 400 {object} dto.ErrorResponse "Appointment already in a terminal status"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/cancel [post]
func (c *AppointmentController) CancelAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	req := dto.CancelAppointmentRequest{}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			abortInvalidBody(ctx, err)
			return
		}
	}

	appointment, err := c.appointmentService.Cancel(ctx, principal, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// ReopenAppointment puts the appointment back on the waitlist
// @Summary Reopen an appointment
// @Description Returns the appointment to waiting from any status, cancelled and checked-in included
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment reopened"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/reopen [post]
func (c *AppointmentController) ReopenAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	appointment, err := c.appointmentService.Reopen(ctx, principal, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// UpdateAppointment rewrites details and topics
// @Summary Update an appointment
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param request body dto.UpdateAppointmentRequest true "Updated details and topics"
// @Success 200 {object} dto.APIResponse{data=dto.AppointmentView} "Appointment updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Scheduler privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id} [put]
func (c *AppointmentController) UpdateAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	var req dto.UpdateAppointmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortInvalidBody(ctx, err)
		return
	}

	appointment, err := c.appointmentService.Update(ctx, principal, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(appointment, ""))
}

// DeleteAppointment soft-deletes an appointment
// @Summary Delete an appointment
// @Description Removes an appointment. Admin only.
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} dto.APIResponse "Appointment deleted"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Administrator privilege required"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id} [delete]
func (c *AppointmentController) DeleteAppointment(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	if err := c.appointmentService.Delete(ctx, principal, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Appointment deleted"))
}

// MarkAppointmentRead records a read receipt for the viewer
// @Summary Mark an appointment read
// @Description Idempotent: the first call creates the receipt and answers 201, repeats answer 200 with the existing receipt
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReadReceiptView} "Receipt already existed"
// @Success 201 {object} dto.APIResponse{data=dto.ReadReceiptView} "Receipt created"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Appointment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/{id}/mark_read [post]
func (c *AppointmentController) MarkAppointmentRead(ctx *gin.Context) {
	principal, ok := middleware.Principal(ctx)
	if !ok {
		abortUnauthenticated(ctx)
		return
	}
	id, ok := appointmentID(ctx)
	if !ok {
		return
	}

	receipt, created, err := c.appointmentService.MarkRead(ctx, principal, id)
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

// FindAdvisorsByName searches advisors seen on past appointments
// @Summary Search advisors by name
// @Description Matches every whitespace-separated query fragment against advisor names on past appointments
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param q query string true "Name fragments"
// @Success 200 {object} dto.APIResponse{data=[]dto.AdvisorNameMatch} "Matches retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /appointments/advisors/find_by_name [get]
func (c *AppointmentController) FindAdvisorsByName(ctx *gin.Context) {
	if _, ok := middleware.Principal(ctx); !ok {
		abortUnauthenticated(ctx)
		return
	}

	matches, err := c.appointmentService.FindAdvisorsByName(ctx, ctx.Query("q"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(matches, ""))
}

// appointmentID parses the id path parameter, answering 400 itself when the
// value is not numeric.
func appointmentID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid appointment ID")
		errorDetail = errorDetail.WithDetails("Appointment ID must be a valid number")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

func abortUnauthenticated(ctx *gin.Context) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

func abortInvalidBody(ctx *gin.Context, err error) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request data")
	errorDetail = errorDetail.WithDetails(err.Error())
	ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
}
