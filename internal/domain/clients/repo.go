package clients

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Lock takes a row lock on the client for the enclosing transaction.
	Lock(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q string, limit, offset int) ([]*Client, int, error)
	Stats(ctx context.Context, id uuid.UUID, now time.Time) (Stats, error)
	History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Visit, int, error)
	// Names returns every client name; the importer uses it to skip
	// duplicates.
	Names(ctx context.Context) ([]string, error)
	// FindByName matches case-insensitively and returns NOT_FOUND or the
	// oldest match.
	FindByName(ctx context.Context, name string) (*Client, error)
}
