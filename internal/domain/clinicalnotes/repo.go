package clinicalnotes

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	// GetForUpdate locks the note row for the enclosing transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	CountVersions(ctx context.Context, noteID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, v *Version) error
	ListVersions(ctx context.Context, noteID uuid.UUID) ([]*Version, error)
	// ListByAppointment returns the notes viewer may see, newest first.
	ListByAppointment(ctx context.Context, appointmentID, viewer uuid.UUID) ([]*Note, error)
}
