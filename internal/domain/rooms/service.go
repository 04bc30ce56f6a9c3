package rooms

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/validate"
)

// Invalidator drops cached calendar layouts. Room names and order feed the
// layouts, so every room write invalidates them.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	repo     Repository
	calendar Invalidator
}

func NewService(repo Repository, calendar Invalidator) *Service {
	return &Service{repo: repo, calendar: calendar}
}

func (s *Service) validate(rm *Room) error {
	rm.Name = strings.TrimSpace(rm.Name)
	if err := validate.MinLen("name", rm.Name, 2); err != nil {
		return err
	}
	rm.Location = validate.Trimmed(rm.Location)
	rm.Notes = validate.Trimmed(rm.Notes)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.calendar != nil {
		s.calendar.Invalidate(ctx)
	}
}

func (s *Service) CreateRoom(ctx context.Context, rm *Room) error {
	if err := s.validate(rm); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, rm); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateRoom(ctx context.Context, rm *Room) error {
	if err := s.validate(rm); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, rm); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListRooms returns every room in SortByName order, the order the calendar
// assigns colours in.
func (s *Service) ListRooms(ctx context.Context) ([]*Room, error) {
	rs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	SortByName(rs)
	return rs, nil
}

func (s *Service) FindRoomByName(ctx context.Context, name string) (*Room, error) {
	return s.repo.FindByName(ctx, strings.TrimSpace(name))
}

func (s *Service) CountRooms(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
