package doctors

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	SetFlags(ctx context.Context, id uuid.UUID, active, approved bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error)
	Counts(ctx context.Context) (Counts, error)
	FindByName(ctx context.Context, name string) (*Doctor, error)
}
