package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/pkg/apperrors"
)

type fakeClinic struct {
	clients []*clients.Client
	doctors []*doctors.Doctor
	rooms   []*rooms.Room
	appts   []*appointments.Appointment
	lookups int
}

func (f *fakeClinic) Names(context.Context) ([]string, error) {
	var out []string
	for _, c := range f.clients {
		out = append(out, c.Name)
	}
	return out, nil
}

func (f *fakeClinic) FindByName(_ context.Context, name string) (*clients.Client, error) {
	f.lookups++
	for _, c := range f.clients {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("client not found")
}

func (f *fakeClinic) CreateClient(_ context.Context, c *clients.Client) error {
	if len(strings.TrimSpace(c.Name)) < 2 {
		return apperrors.NewValidationError("name must be at least 2 characters")
	}
	c.ID = uuid.New()
	f.clients = append(f.clients, c)
	return nil
}

func (f *fakeClinic) FindDoctorByName(_ context.Context, name string) (*doctors.Doctor, error) {
	for _, d := range f.doctors {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, apperrors.NewNotFoundError("doctor not found")
}

func (f *fakeClinic) FindRoomByName(_ context.Context, name string) (*rooms.Room, error) {
	for _, rm := range f.rooms {
		if strings.EqualFold(rm.Name, name) {
			return rm, nil
		}
	}
	return nil, apperrors.NewNotFoundError("room not found")
}

func (f *fakeClinic) CreateAppointment(_ context.Context, a *appointments.Appointment) error {
	if a.DurationMin == 0 {
		a.DurationMin = appointments.DefaultDuration
	}
	if a.DurationMin < appointments.MinDuration {
		return apperrors.Validationf("duration_min must be between %d and %d", appointments.MinDuration, appointments.MaxDuration)
	}
	a.ID = uuid.New()
	f.appts = append(f.appts, a)
	return nil
}

var lisbonWinter = time.FixedZone("WET", 0)

func newTestService() (*Service, *fakeClinic, *events.Recorder) {
	f := &fakeClinic{}
	rec := &events.Recorder{}
	svc := NewService(f, f, f, f, events.NewEmitter(rec, zerolog.Nop(), nil), lisbonWinter, zerolog.Nop())
	return svc, f, rec
}

func table(t *testing.T, csv string) *Table {
	t.Helper()
	tbl, err := ReadTable("import.csv", strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestImportClients(t *testing.T) {
	svc, f, rec := newTestService()
	f.clients = append(f.clients, &clients.Client{ID: uuid.New(), Name: "Maria Silva"})

	res, err := svc.ImportClients(context.Background(), table(t, strings.Join([]string{
		"nome,data_nascimento,email,telefone,observacoes",
		"MARIA SILVA,01/02/1970,,,",
		"João Costa,15/03/1980,joao@example.com,912345678,Alergia a penicilina",
		"Ana Lopes,desconhecida,ana.example.com,,",
		"joão costa,,,,",
		",01/01/1990,x@y.pt,,",
		",,,,",
		"Z,,,,",
	}, "\n")))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "row 8")

	joao := f.clients[1]
	assert.Equal(t, "João Costa", joao.Name)
	assert.Equal(t, "1980-03-15", joao.BirthDate.String())
	require.NotNil(t, joao.Email)
	assert.Equal(t, "joao@example.com", *joao.Email)
	assert.Equal(t, "Alergia a penicilina", *joao.Notes)

	ana := f.clients[2]
	assert.Equal(t, UnknownBirthDate, ana.BirthDate)
	assert.Nil(t, ana.Email, "an address without @ is dropped")

	assert.Equal(t, []string{events.ClientsImported}, rec.Types())
}

func TestImportClients_NoNameColumn(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ImportClients(context.Background(), table(t, "email\na@b.pt\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestImportAppointments(t *testing.T) {
	svc, f, rec := newTestService()
	maria := &clients.Client{ID: uuid.New(), Name: "Maria Silva"}
	f.clients = append(f.clients, maria)
	helena := &doctors.Doctor{ID: uuid.New(), Name: "Dra. Helena", Active: true, Approved: true}
	f.doctors = append(f.doctors, helena)
	sala := &rooms.Room{ID: uuid.New(), Name: "Gabinete 1"}
	f.rooms = append(f.rooms, sala)

	res, err := svc.ImportAppointments(context.Background(), table(t, strings.Join([]string{
		"cliente,medico,sala,data,hora,duracao,estado,notas",
		"Maria Silva,Dra. Helena,Gabinete 1,04/05/2023,14:30,45,Concluída,Controlo",
		"maria silva,dra. helena,Sala X,2023-05-11,,,,",
		"Pedro Nunes,Dra. Helena,,2023-05-12,,,,",
		"Maria Silva,Dr. Ninguém,,2023-05-12,,,,",
		"Maria Silva,Dra. Helena,,amanhã,,,,",
		"Maria Silva,Dra. Helena,,2023-05-13,,10,,",
		"Maria Silva,Dra. Helena,,2023-05-14,,,talvez,",
		"Maria Silva,Dra. Helena,,2023-05-15,,,cancelada,",
	}, "\n")))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Errors, 5)
	assert.Contains(t, res.Errors[0], `unknown client "Pedro Nunes"`)
	assert.Contains(t, res.Errors[1], `unknown doctor "Dr. Ninguém"`)

	first := f.appts[0]
	assert.Equal(t, maria.ID, first.ClientID)
	assert.Equal(t, helena.ID, first.DoctorID)
	assert.Equal(t, sala.ID, *first.RoomID)
	assert.Equal(t, time.Date(2023, 5, 4, 14, 30, 0, 0, lisbonWinter), first.Date)
	assert.Equal(t, 45, first.DurationMin)
	assert.Equal(t, appointments.StatusDone, first.Status)
	assert.Equal(t, "Controlo", *first.Notes)

	second := f.appts[1]
	assert.Nil(t, second.RoomID, "unknown rooms are left empty")
	assert.Equal(t, 10, second.Date.Hour())
	assert.Equal(t, appointments.StatusDone, second.Status)

	assert.Equal(t, appointments.StatusCanceled, f.appts[2].Status)
	assert.Equal(t, 2, f.lookups, "each client name is looked up once")
	assert.Equal(t, []string{events.AppointmentsImported}, rec.Types())
}

func TestImportAppointments_MissingColumn(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ImportAppointments(context.Background(), table(t, "cliente,data\nMaria,2023-05-04\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medico")
}
