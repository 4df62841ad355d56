package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/advisehq/advising/internal/app/controllers"
	"github.com/advisehq/advising/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	appointmentController *controllers.AppointmentController,
	noteController *controllers.NoteController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// Every advising route requires an authenticated principal; the
	// per-department and per-record rules live in the services.
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		// Appointment lifecycle
		appointments := authenticated.Group("/appointments")
		{
			appointments.POST("", appointmentController.CreateAppointment)
			appointments.GET("/waitlist/:deptCode", appointmentController.GetWaitlist)
			appointments.GET("/advisors/find_by_name", appointmentController.FindAdvisorsByName)
			appointments.GET("/:id", appointmentController.GetAppointment)
			appointments.PUT("/:id", appointmentController.UpdateAppointment)
			appointments.DELETE("/:id", appointmentController.DeleteAppointment)
			appointments.POST("/:id/reserve", appointmentController.ReserveAppointment)
			appointments.POST("/:id/unreserve", appointmentController.UnreserveAppointment)
			appointments.POST("/:id/check_in", appointmentController.CheckInAppointment)
			appointments.POST("/:id/cancel", appointmentController.CancelAppointment)
			appointments.POST("/:id/reopen", appointmentController.ReopenAppointment)
			appointments.POST("/:id/mark_read", appointmentController.MarkAppointmentRead)
		}

		// Advising notes and attachments
		notes := authenticated.Group("/notes")
		{
			notes.POST("", noteController.CreateNote)
			notes.POST("/batch", noteController.BatchCreateNotes)
			notes.POST("/batch/distinct_student_count", noteController.DistinctStudentCount)
			notes.GET("/attachments/:attachmentId", noteController.DownloadAttachment)
			notes.GET("/:id", noteController.GetNote)
			notes.PUT("/:id", noteController.UpdateNote)
			notes.DELETE("/:id", noteController.DeleteNote)
			notes.POST("/:id/mark_read", noteController.MarkNoteRead)
			notes.POST("/:id/attachments", noteController.AddAttachment)
			notes.DELETE("/:id/attachments/:attachmentId", noteController.RemoveAttachment)
		}
	}
}
