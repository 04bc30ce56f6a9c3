package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/validate"
)

// Header aliases, matched against normalised header names.
var (
	clientNameCols  = []string{"name", "nome", "patient_name", "full_name"}
	birthDateCols   = []string{"birth_date", "data_nascimento", "nascimento", "birthday"}
	emailCols       = []string{"email", "e_mail", "email_address"}
	phoneCols       = []string{"phone", "telefone", "telemovel", "mobile", "contact"}
	notesCols       = []string{"notes", "notas", "observacoes", "comments", "summary"}
	apptClientCols  = []string{"client", "cliente", "client_name", "patient", "paciente", "name", "nome"}
	apptDoctorCols  = []string{"doctor", "medico", "doctor_name"}
	apptRoomCols    = []string{"room", "sala", "gabinete", "room_name"}
	apptDateCols    = []string{"date", "data", "appointment_date", "data_consulta"}
	apptTimeCols    = []string{"time", "hora"}
	apptDurationCol = []string{"duration", "duration_min", "duracao"}
	apptStatusCols  = []string{"status", "estado"}
)

type Clients interface {
	Names(ctx context.Context) ([]string, error)
	FindByName(ctx context.Context, name string) (*clients.Client, error)
	CreateClient(ctx context.Context, c *clients.Client) error
}

type Doctors interface {
	FindDoctorByName(ctx context.Context, name string) (*doctors.Doctor, error)
}

type Rooms interface {
	FindRoomByName(ctx context.Context, name string) (*rooms.Room, error)
}

type Appointments interface {
	CreateAppointment(ctx context.Context, a *appointments.Appointment) error
}

// Result reports one import run. Row numbers in Errors are 1-based sheet
// rows, the header being row 1.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (r *Result) fail(row int, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", row, apperrors.PublicMessage(err)))
}

// unresolved records a name that did not match, or the lookup failure.
func (r *Result) unresolved(row int, entity, name string, err error) {
	if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: unknown %s %q", row, entity, name))
	} else {
		r.fail(row, err)
	}
	r.Skipped++
}

type Service struct {
	clients      Clients
	doctors      Doctors
	rooms        Rooms
	appointments Appointments
	events       *events.Emitter
	loc          *time.Location
	logger       zerolog.Logger
}

func NewService(cl Clients, docs Doctors, rs Rooms, appts Appointments, emitter *events.Emitter,
	loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		clients:      cl,
		doctors:      docs,
		rooms:        rs,
		appointments: appts,
		events:       emitter,
		loc:          loc,
		logger:       logger,
	}
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ImportClients creates one client per row. Rows without a name, and names
// already present in the database or earlier in the file, are skipped.
func (s *Service) ImportClients(ctx context.Context, t *Table) (*Result, error) {
	nameCol := t.column(clientNameCols...)
	if nameCol < 0 {
		return nil, apperrors.Validationf("no name column; expected one of %s", strings.Join(clientNameCols, ", "))
	}
	birthCol := t.column(birthDateCols...)
	emailCol := t.column(emailCols...)
	phoneCol := t.column(phoneCols...)
	notesCol := t.column(notesCols...)

	existing, err := s.clients.Names(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing)+len(t.Rows))
	for _, n := range existing {
		seen[nameKey(n)] = struct{}{}
	}

	res := &Result{Errors: []string{}}
	for i, row := range t.Rows {
		if blank(row) {
			continue
		}
		line := i + 2
		name := cell(row, nameCol)
		if name == "" {
			res.Skipped++
			continue
		}
		if _, dup := seen[nameKey(name)]; dup {
			res.Skipped++
			continue
		}

		c := &clients.Client{
			Name:      name,
			BirthDate: parseBirthDate(cell(row, birthCol)),
			Phone:     optional(cell(row, phoneCol)),
			Notes:     optional(cell(row, notesCol)),
		}
		if email := cell(row, emailCol); strings.Contains(email, "@") {
			if e, err := validate.Email(email); err == nil {
				c.Email = &e
			}
		}
		if err := s.clients.CreateClient(ctx, c); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.fail(line, err)
			continue
		}
		seen[nameKey(name)] = struct{}{}
		res.Imported++
	}

	s.logger.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Int("errors", len(res.Errors)).
		Msg("client import finished")
	s.events.Emit(ctx, events.Event{
		Type: events.ClientsImported,
		Data: map[string]interface{}{"imported": res.Imported, "skipped": res.Skipped},
	})
	return res, nil
}

// ImportAppointments creates historical appointments, resolving client,
// doctor and room by name. Rows with an unknown client or doctor are
// reported and skipped; an unknown room leaves the slot without a room. A
// missing status means the visit happened.
func (s *Service) ImportAppointments(ctx context.Context, t *Table) (*Result, error) {
	clientCol := t.column(apptClientCols...)
	doctorCol := t.column(apptDoctorCols...)
	dateCol := t.column(apptDateCols...)
	for _, req := range []struct {
		col     int
		aliases []string
	}{{clientCol, apptClientCols}, {doctorCol, apptDoctorCols}, {dateCol, apptDateCols}} {
		if req.col < 0 {
			return nil, apperrors.Validationf("missing column; expected one of %s", strings.Join(req.aliases, ", "))
		}
	}
	roomCol := t.column(apptRoomCols...)
	timeCol := t.column(apptTimeCols...)
	durationCol := t.column(apptDurationCol...)
	statusCol := t.column(apptStatusCols...)
	notesCol := t.column(notesCols...)

	clientIDs := make(map[string]uuid.UUID)
	doctorIDs := make(map[string]uuid.UUID)
	roomIDs := make(map[string]uuid.UUID)

	res := &Result{Errors: []string{}}
	for i, row := range t.Rows {
		if blank(row) {
			continue
		}
		line := i + 2
		a := &appointments.Appointment{Status: appointments.StatusDone, Notes: optional(cell(row, notesCol))}

		clientID, err := resolve(ctx, clientIDs, cell(row, clientCol), func(ctx context.Context, n string) (uuid.UUID, error) {
			c, err := s.clients.FindByName(ctx, n)
			if err != nil {
				return uuid.Nil, err
			}
			return c.ID, nil
		})
		if err != nil {
			res.unresolved(line, "client", cell(row, clientCol), err)
			continue
		}
		a.ClientID = clientID

		doctorID, err := resolve(ctx, doctorIDs, cell(row, doctorCol), func(ctx context.Context, n string) (uuid.UUID, error) {
			d, err := s.doctors.FindDoctorByName(ctx, n)
			if err != nil {
				return uuid.Nil, err
			}
			return d.ID, nil
		})
		if err != nil {
			res.unresolved(line, "doctor", cell(row, doctorCol), err)
			continue
		}
		a.DoctorID = doctorID

		if room := cell(row, roomCol); room != "" {
			roomID, err := resolve(ctx, roomIDs, room, func(ctx context.Context, n string) (uuid.UUID, error) {
				rm, err := s.rooms.FindRoomByName(ctx, n)
				if err != nil {
					return uuid.Nil, err
				}
				return rm.ID, nil
			})
			if err != nil && !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
				res.fail(line, err)
				continue
			}
			if err == nil {
				a.RoomID = &roomID
			}
		}

		start, ok := parseDateTime(cell(row, dateCol), cell(row, timeCol), s.loc)
		if !ok {
			res.fail(line, apperrors.Validationf("invalid date %q", cell(row, dateCol)))
			continue
		}
		a.Date = start

		if v := cell(row, durationCol); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				res.fail(line, apperrors.Validationf("invalid duration %q", v))
				continue
			}
			a.DurationMin = n
		}
		if v := cell(row, statusCol); v != "" {
			st, err := appointments.ParseStatus(v)
			if err != nil {
				res.fail(line, err)
				continue
			}
			a.Status = st
		}

		if err := s.appointments.CreateAppointment(ctx, a); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.fail(line, err)
			continue
		}
		res.Imported++
	}

	s.logger.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Int("errors", len(res.Errors)).
		Msg("appointment import finished")
	s.events.Emit(ctx, events.Event{
		Type: events.AppointmentsImported,
		Data: map[string]interface{}{"imported": res.Imported, "skipped": res.Skipped},
	})
	return res, nil
}

// resolve looks a name up once per import and caches the id.
func resolve(ctx context.Context, cache map[string]uuid.UUID, name string, find func(context.Context, string) (uuid.UUID, error)) (uuid.UUID, error) {
	key := nameKey(name)
	if key == "" {
		return uuid.Nil, apperrors.NewNotFoundError("name is empty")
	}
	if id, ok := cache[key]; ok {
		return id, nil
	}
	id, err := find(ctx, name)
	if err != nil {
		return uuid.Nil, err
	}
	cache[key] = id
	return id, nil
}
