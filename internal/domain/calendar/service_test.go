package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/pkg/civil"
)

type fakeSource struct {
	rooms   []*rooms.Room
	appts   []*appointments.Appointment
	calls   int
	filters []appointments.Filter
	err     error
}

func (f *fakeSource) List(context.Context) ([]*rooms.Room, error) { return f.rooms, nil }

func (f *fakeSource) Search(_ context.Context, flt appointments.Filter, _, _ int) ([]*appointments.Appointment, int, error) {
	f.calls++
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*appointments.Appointment
	for _, a := range f.appts {
		if !a.Date.Before(*flt.From) && a.Date.Before(*flt.To) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func newTestService(src *fakeSource) *Service {
	return NewService(src, src, cache.NewMemoryStore(), Options{Location: time.UTC, Logger: zerolog.Nop()})
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestService_Daily_CachesUntilInvalidated(t *testing.T) {
	g1 := room("Gabinete 1")
	src := &fakeSource{
		rooms: []*rooms.Room{g1},
		appts: []*appointments.Appointment{appt(&g1.ID, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), 45, appointments.StatusScheduled)},
	}
	svc := newTestService(src)
	ctx := context.Background()
	date := mustDate(t, "2026-03-02")

	day, err := svc.Daily(ctx, date)
	require.NoError(t, err)
	require.Len(t, day.Columns[0].Blocks, 1)
	assert.Equal(t, 90, day.Columns[0].Blocks[0].Top)

	_, err = svc.Daily(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second read should come from cache")

	src.appts = append(src.appts, appt(&g1.ID, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), 60, appointments.StatusScheduled))
	svc.Invalidate(ctx)

	day, err = svc.Daily(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Len(t, day.Columns[0].Blocks, 2)
}

func TestService_Daily_QueriesWholeDay(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(src)

	_, err := svc.Daily(context.Background(), mustDate(t, "2026-03-02"))
	require.NoError(t, err)
	require.Len(t, src.filters, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *src.filters[0].From)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), *src.filters[0].To)
}

func TestService_Weekly(t *testing.T) {
	a1 := room("Sala A")
	src := &fakeSource{
		rooms: []*rooms.Room{a1},
		appts: []*appointments.Appointment{appt(&a1.ID, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), 60, appointments.StatusDone)},
	}
	svc := newTestService(src)

	week, err := svc.Weekly(context.Background(), mustDate(t, "2026-03-08"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", week.Start.String())
	require.Len(t, week.Days[3].Appointments, 1)
	assert.Equal(t, "green", week.Days[3].Appointments[0].StatusColor)

	// Any day of the same week shares the cache entry.
	_, err = svc.Weekly(context.Background(), mustDate(t, "2026-03-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestService_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := newTestService(src)
	_, err := svc.Daily(context.Background(), mustDate(t, "2026-03-02"))
	assert.Error(t, err)
}

type brokenStore struct{ cache.NopStore }

func (brokenStore) Counter(context.Context, string) (int64, error) {
	return 0, errors.New("redis unreachable")
}

func TestService_CacheDownStillServes(t *testing.T) {
	g1 := room("Gabinete 1")
	src := &fakeSource{rooms: []*rooms.Room{g1}, appts: []*appointments.Appointment{
		{ID: uuid.New(), RoomID: &g1.ID, Date: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), DurationMin: 60, Status: appointments.StatusScheduled},
	}}
	svc := NewService(src, src, brokenStore{}, Options{Location: time.UTC, Logger: zerolog.Nop()})

	day, err := svc.Daily(context.Background(), mustDate(t, "2026-03-02"))
	require.NoError(t, err)
	assert.Len(t, day.Columns[0].Blocks, 1)
}
