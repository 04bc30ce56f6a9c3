package documents

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Document, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	StorageKeys(ctx context.Context, clientID uuid.UUID) ([]string, error)
}
