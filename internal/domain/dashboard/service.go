// Package dashboard aggregates the counts shown on the landing page.
package dashboard

import (
	"context"
	"time"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/pkg/civil"
)

type ClientCounter interface {
	CountClients(ctx context.Context) (int, error)
}

type DoctorCounter interface {
	Counts(ctx context.Context) (doctors.Counts, error)
}

type RoomCounter interface {
	CountRooms(ctx context.Context) (int, error)
}

type AppointmentCounter interface {
	CountByStatus(ctx context.Context, from, to time.Time) (map[appointments.Status]int, error)
}

type InviteCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// Sources are the services the summary reads from.
type Sources struct {
	Clients      ClientCounter
	Doctors      DoctorCounter
	Rooms        RoomCounter
	Appointments AppointmentCounter
	Invites      InviteCounter
}

type DoctorCounts struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

type AppointmentCounts struct {
	Total    int                         `json:"total"`
	ByStatus map[appointments.Status]int `json:"by_status"`
}

type Summary struct {
	Date           civil.Date        `json:"date"`
	Clients        int               `json:"clients"`
	Doctors        DoctorCounts      `json:"doctors"`
	Rooms          int               `json:"rooms"`
	Appointments   AppointmentCounts `json:"appointments"`
	PendingInvites int               `json:"pending_invites"`
}

type Service struct {
	src Sources
	loc *time.Location
}

func NewService(src Sources, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{src: src, loc: loc}
}

func (s *Service) Location() *time.Location { return s.loc }

// Summary counts the practice as of date. Appointments are those starting
// on that day in the clinic time zone.
func (s *Service) Summary(ctx context.Context, date civil.Date) (*Summary, error) {
	out := &Summary{Date: date}
	var err error

	if out.Clients, err = s.src.Clients.CountClients(ctx); err != nil {
		return nil, err
	}
	dc, err := s.src.Doctors.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out.Doctors = DoctorCounts{Active: dc.Active, Pending: dc.Pending}
	if out.Rooms, err = s.src.Rooms.CountRooms(ctx); err != nil {
		return nil, err
	}

	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	byStatus, err := s.src.Appointments.CountByStatus(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	out.Appointments.ByStatus = byStatus
	for _, n := range byStatus {
		out.Appointments.Total += n
	}

	if s.src.Invites != nil {
		if out.PendingInvites, err = s.src.Invites.CountPending(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}
