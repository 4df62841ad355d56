package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	AppointmentRepository  *AppointmentRepository
	NoteRepository         *NoteRepository
	ReadReceiptRepository  *ReadReceiptRepository
	StudentRepository      *StudentRepository
	StudentGroupRepository *StudentGroupRepository
	DirectoryRepository    *DirectoryRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		AppointmentRepository:  NewAppointmentRepository(db),
		NoteRepository:         NewNoteRepository(db),
		ReadReceiptRepository:  NewReadReceiptRepository(db),
		StudentRepository:      NewStudentRepository(db),
		StudentGroupRepository: NewStudentGroupRepository(db),
		DirectoryRepository:    NewDirectoryRepository(db),
	}
}
