package rooms

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	Update(ctx context.Context, r *Room) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns every room ordered by name, then id.
	List(ctx context.Context) ([]*Room, error)
	Count(ctx context.Context) (int, error)
	FindByName(ctx context.Context, name string) (*Room, error)
}
