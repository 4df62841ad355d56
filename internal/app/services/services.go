package services

// Services defined in this package:
// - AppointmentService: Drives the appointment waitlist and lifecycle
// - NoteService: Creates and maintains advising notes and attachments
// - StudentSetResolver: Expands batch targets into distinct student sids
