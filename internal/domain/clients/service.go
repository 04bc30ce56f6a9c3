package clients

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

// Invalidator drops cached calendar layouts, which show client names.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Attachments reaches the stored files behind a client's documents. The
// rows go with the client; the files are removed once the delete commits.
type Attachments interface {
	StorageKeys(ctx context.Context, clientID uuid.UUID) ([]string, error)
	RemoveBlobs(ctx context.Context, keys []string)
}

type Service struct {
	repo        Repository
	tx          db.Transactor
	calendar    Invalidator
	attachments Attachments
	now         func() time.Time
}

func NewService(repo Repository, tx db.Transactor, calendar Invalidator, attachments Attachments) *Service {
	return &Service{repo: repo, tx: tx, calendar: calendar, attachments: attachments, now: time.Now}
}

func (s *Service) validate(c *Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := validate.MinLen("name", c.Name, 2); err != nil {
		return err
	}
	if c.BirthDate.IsZero() {
		return apperrors.NewValidationError("birth_date is required")
	}
	if c.BirthDate.After(s.now()) {
		return apperrors.NewValidationError("birth_date cannot be in the future")
	}
	email, err := validate.OptionalEmail(c.Email)
	if err != nil {
		return err
	}
	c.Email = email
	c.Phone = validate.Trimmed(c.Phone)
	c.Notes = validate.Trimmed(c.Notes)
	return nil
}

func (s *Service) CreateClient(ctx context.Context, c *Client) error {
	if err := s.validate(c); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateClient(ctx context.Context, c *Client) error {
	if err := s.validate(c); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	if s.calendar != nil {
		db.AfterCommit(ctx, func() { s.calendar.Invalidate(ctx) })
	}
	return nil
}

// DeleteClient removes a client without appointments. A client with
// appointments is a CONFLICT; their history must be kept. The client row is
// locked first so no document can be attached between listing the files
// and deleting the rows.
func (s *Service) DeleteClient(ctx context.Context, id uuid.UUID) error {
	var keys []string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, id); err != nil {
			return err
		}
		if s.attachments != nil {
			var err error
			if keys, err = s.attachments.StorageKeys(ctx, id); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		db.AfterCommit(ctx, func() { s.attachments.RemoveBlobs(context.WithoutCancel(ctx), keys) })
	}
	return nil
}

func (s *Service) SearchClients(ctx context.Context, q string, limit, offset int) ([]*Client, int, error) {
	return s.repo.Search(ctx, strings.TrimSpace(q), limit, offset)
}

// Names lists every client name.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	return s.repo.Names(ctx)
}

func (s *Service) FindByName(ctx context.Context, name string) (*Client, error) {
	return s.repo.FindByName(ctx, strings.TrimSpace(name))
}

// CountClients backs the dashboard.
func (s *Service) CountClients(ctx context.Context) (int, error) {
	_, total, err := s.repo.Search(ctx, "", 1, 0)
	return total, err
}

func (s *Service) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	return &Summary{Client: c, Stats: stats}, nil
}

// History lists a client's appointments, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.repo.History(ctx, id, limit, offset)
}
