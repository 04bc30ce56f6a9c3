package doctors

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

// Invalidator drops cached calendar layouts, which carry doctor names.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	repo     Repository
	events   *events.Emitter
	calendar Invalidator
}

func NewService(repo Repository, emitter *events.Emitter, calendar Invalidator) *Service {
	return &Service{repo: repo, events: emitter, calendar: calendar}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.calendar != nil {
		db.AfterCommit(ctx, func() { s.calendar.Invalidate(ctx) })
	}
}

func (s *Service) validate(d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Specialty = strings.TrimSpace(d.Specialty)
	if err := validate.MinLen("name", d.Name, 2); err != nil {
		return err
	}
	if err := validate.MinLen("specialty", d.Specialty, 2); err != nil {
		return err
	}
	d.Phone = validate.Trimmed(d.Phone)
	return nil
}

// CreateDoctor adds a doctor. New doctors are pending and inactive unless
// created pre-approved, in which case they are also active.
func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validate(d); err != nil {
		return err
	}
	d.Active = d.Approved
	return s.repo.Create(ctx, d)
}

// CreateLinked creates the doctor row for an account that joined through an
// invite: approved, active and with a placeholder specialty.
func (s *Service) CreateLinked(ctx context.Context, userID uuid.UUID, name string) (*Doctor, error) {
	d := &Doctor{
		UserID:    &userID,
		Name:      strings.TrimSpace(name),
		Specialty: PlaceholderSpecialty,
		Active:    true,
		Approved:  true,
	}
	if err := validate.MinLen("name", d.Name, 2); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validate(d); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) SearchDoctors(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	f.Q = strings.TrimSpace(f.Q)
	return s.repo.Search(ctx, f, limit, offset)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	pending := false
	return s.repo.Search(ctx, Filter{Approved: &pending}, limit, offset)
}

// FindDoctorByName matches case-insensitively, approved or not.
func (s *Service) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	return s.repo.FindByName(ctx, strings.TrimSpace(name))
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	return s.repo.Counts(ctx)
}

// Approve marks a doctor approved and active.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if err := s.repo.SetFlags(ctx, id, true, true); err != nil {
		return nil, err
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.events.Emit(ctx, events.Event{Type: events.DoctorApproved, EntityID: id.String()})
	return d, nil
}

// Reject deletes a pending doctor. An approved doctor cannot be rejected;
// deactivate it instead.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.Approved {
		return apperrors.NewConflictError("doctor is already approved")
	}
	return s.repo.Delete(ctx, id)
}

// SetActive activates or deactivates an approved doctor.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Approved {
		return nil, apperrors.NewConflictError("doctor is pending approval")
	}
	if d.Active == active {
		return d, nil
	}
	if err := s.repo.SetFlags(ctx, id, active, true); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	d.Active = active
	return d, nil
}
