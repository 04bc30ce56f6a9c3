//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/domain/doctors"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/pkg/apperrors"
)

func TestClientsRepo(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := clients.NewRepoPG(globalPool)

	ana := createTestClient(t, ctx, "Ana Sousa")
	createTestClient(t, ctx, "Bruno Alves")
	createTestClient(t, ctx, "Mariana Costa")

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Sousa", got.Name)
		assert.Equal(t, "1985-03-14", got.BirthDate.String())
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("Search", func(t *testing.T) {
		items, total, err := repo.Search(ctx, "ana", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)
		assert.Equal(t, "Ana Sousa", items[0].Name)
		assert.Equal(t, "Mariana Costa", items[1].Name)

		items, total, err = repo.Search(ctx, "", 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 1)
		assert.Equal(t, "Bruno Alves", items[0].Name)
	})

	t.Run("FindByName", func(t *testing.T) {
		got, err := repo.FindByName(ctx, "ANA SOUSA")
		require.NoError(t, err)
		assert.Equal(t, ana.ID, got.ID)

		names, err := repo.Names(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Ana Sousa", "Bruno Alves", "Mariana Costa"}, names)
	})

	t.Run("Update", func(t *testing.T) {
		ana.Email = ptrStr("ana@example.com")
		require.NoError(t, repo.Update(ctx, ana))
		got, err := repo.GetByID(ctx, ana.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Email)
		assert.Equal(t, "ana@example.com", *got.Email)
	})
}

func TestClientWithAppointmentsCannotBeDeleted(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	c := createTestClient(t, ctx, "Carla Dias")
	d := createTestDoctor(t, ctx, "Dr. Rui Matos")
	createTestAppointment(t, ctx, c.ID, d.ID, nil, time.Now().Add(24*time.Hour))

	err := clients.NewRepoPG(globalPool).Delete(ctx, c.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict), "got %v", err)
}

func TestClientStatsAndHistory(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := clients.NewRepoPG(globalPool)
	apptRepo := appointments.NewRepoPG(globalPool)

	c := createTestClient(t, ctx, "Diana Reis")
	d := createTestDoctor(t, ctx, "Dr. Sofia Lima")
	room := createTestRoom(t, ctx, "Sala 1")

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := createTestAppointment(t, ctx, c.ID, d.ID, ptrUUID(room.ID), now.Add(-48*time.Hour))
	require.NoError(t, apptRepo.SetStatus(ctx, past.ID, appointments.StatusDone))
	canceled := createTestAppointment(t, ctx, c.ID, d.ID, nil, now.Add(-24*time.Hour))
	require.NoError(t, apptRepo.SetStatus(ctx, canceled.ID, appointments.StatusCanceled))
	next := createTestAppointment(t, ctx, c.ID, d.ID, nil, now.Add(72*time.Hour))

	s, err := repo.Stats(ctx, c.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Appointments)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 1, s.Canceled)
	require.NotNil(t, s.LastVisit)
	assert.True(t, s.LastVisit.Equal(past.Date))
	require.NotNil(t, s.NextVisit)
	assert.True(t, s.NextVisit.Equal(next.Date))

	visits, total, err := repo.History(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, visits, 3)
	assert.Equal(t, next.ID, visits[0].AppointmentID)
	assert.Equal(t, "Dr. Sofia Lima", visits[2].DoctorName)
	require.NotNil(t, visits[2].RoomName)
	assert.Equal(t, "Sala 1", *visits[2].RoomName)
}

func TestAppointmentsRepo(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := appointments.NewRepoPG(globalPool)

	c := createTestClient(t, ctx, "Eva Nunes")
	d1 := createTestDoctor(t, ctx, "Dr. Tiago Rocha")
	d2 := createTestDoctor(t, ctx, "Dr. Vera Pinto")
	room := createTestRoom(t, ctx, "Sala 2")

	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a1 := createTestAppointment(t, ctx, c.ID, d1.ID, ptrUUID(room.ID), day.Add(9*time.Hour))
	a2 := createTestAppointment(t, ctx, c.ID, d2.ID, nil, day.Add(14*time.Hour))
	createTestAppointment(t, ctx, c.ID, d1.ID, nil, day.Add(30*time.Hour))

	t.Run("GetByID_Joined", func(t *testing.T) {
		got, err := repo.GetByID(ctx, a1.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ClientName)
		assert.Equal(t, "Eva Nunes", *got.ClientName)
		require.NotNil(t, got.RoomName)
		assert.Equal(t, "Sala 2", *got.RoomName)
	})

	t.Run("Search_DayWindow", func(t *testing.T) {
		from, to := day, day.Add(24*time.Hour)
		items, total, err := repo.Search(ctx, appointments.Filter{From: &from, To: &to}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)
		assert.Equal(t, a1.ID, items[0].ID)
		assert.Equal(t, a2.ID, items[1].ID)
	})

	t.Run("Search_ByDoctorAndQuery", func(t *testing.T) {
		items, total, err := repo.Search(ctx, appointments.Filter{DoctorID: &d1.ID}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, items, 2)

		_, total, err = repo.Search(ctx, appointments.Filter{Q: "vera"}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("CountByStatus", func(t *testing.T) {
		require.NoError(t, repo.SetStatus(ctx, a2.ID, appointments.StatusCanceled))
		counts, err := repo.CountByStatus(ctx, day, day.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, counts[appointments.StatusScheduled])
		assert.Equal(t, 1, counts[appointments.StatusCanceled])
	})

	t.Run("DurationCheck", func(t *testing.T) {
		bad := &appointments.Appointment{ClientID: c.ID, DoctorID: d1.ID, Date: day, DurationMin: 5, Status: appointments.StatusScheduled}
		err := repo.Create(ctx, bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "got %v", err)
	})

	t.Run("DeletingRoomKeepsAppointment", func(t *testing.T) {
		require.NoError(t, rooms.NewRepoPG(globalPool).Delete(ctx, room.ID))
		got, err := repo.GetByID(ctx, a1.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RoomID)
	})
}

func TestDoctorsCounts(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := doctors.NewRepoPG(globalPool)

	createTestDoctor(t, ctx, "Dr. Active")
	pending := &doctors.Doctor{Name: "Dr. Pending", Specialty: "Nutrição"}
	require.NoError(t, repo.Create(ctx, pending))

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Active)
	assert.Equal(t, 1, counts.Pending)

	found, err := repo.FindByName(ctx, "dr. pending")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, found.ID)
}
