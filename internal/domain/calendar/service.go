package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/appointments"
	"github.com/clinic/clinic/internal/domain/rooms"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/civil"
)

const generationKey = "calendar:generation"

// AppointmentSource is satisfied by appointments.Repository.
type AppointmentSource interface {
	Search(ctx context.Context, f appointments.Filter, limit, offset int) ([]*appointments.Appointment, int, error)
}

// RoomSource is satisfied by rooms.Repository.
type RoomSource interface {
	List(ctx context.Context) ([]*rooms.Room, error)
}

type Options struct {
	Location *time.Location
	TTL      time.Duration
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// Service builds calendar layouts and caches them. Cache keys embed a
// generation number; Invalidate bumps it so every cached layout goes stale
// at once.
type Service struct {
	appts   AppointmentSource
	rooms   RoomSource
	store   cache.Store
	loc     *time.Location
	ttl     time.Duration
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewService(appts AppointmentSource, rs RoomSource, store cache.Store, opts Options) *Service {
	if store == nil {
		store = cache.NopStore{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Service{
		appts:   appts,
		rooms:   rs,
		store:   store,
		loc:     opts.Location,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Location is the zone used for day boundaries.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) midnight(d civil.Date) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) load(ctx context.Context, from, to time.Time) ([]*rooms.Room, []*appointments.Appointment, error) {
	rs, err := s.rooms.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	appts, _, err := s.appts.Search(ctx, appointments.Filter{From: &from, To: &to}, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return rs, appts, nil
}

// Daily returns the room grid for date.
func (s *Service) Daily(ctx context.Context, date civil.Date) (*Day, error) {
	var out Day
	err := s.cached(ctx, "daily:"+date.String(), &out, func() (interface{}, error) {
		day := s.midnight(date)
		rs, appts, err := s.load(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		return DailyLayout(day, rs, appts), nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Weekly returns the week containing anchor.
func (s *Service) Weekly(ctx context.Context, anchor civil.Date) (*Week, error) {
	start := WeekStart(s.midnight(anchor))
	var out Week
	err := s.cached(ctx, "weekly:"+civil.DateOf(start).String(), &out, func() (interface{}, error) {
		rs, appts, err := s.load(ctx, start, start.AddDate(0, 0, 7))
		if err != nil {
			return nil, err
		}
		return WeeklyLayout(start, rs, appts), nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate makes every cached layout stale. Failures are logged: the TTL
// still bounds how long a stale layout can be served.
func (s *Service) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if _, err := s.store.Incr(ctx, generationKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate calendar cache")
		s.metrics.SideEffectFailed("calendar_cache")
	}
}

// cached decodes the entry for key into dst, or builds, stores and decodes
// it. Cache errors degrade to building the layout every time.
func (s *Service) cached(ctx context.Context, key string, dst interface{}, build func() (interface{}, error)) error {
	gen, err := s.store.Counter(ctx, generationKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("calendar cache unavailable")
		return s.buildInto(dst, build)
	}
	fullKey := fmt.Sprintf("calendar:%d:%s:%s", gen, s.loc.String(), key)

	raw, err := s.store.Get(ctx, fullKey)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dst); jsonErr == nil {
			s.metrics.CacheLookup(true)
			return nil
		}
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn().Err(err).Str("key", fullKey).Msg("calendar cache read failed")
	}
	s.metrics.CacheLookup(false)

	v, err := build()
	if err != nil {
		return err
	}
	raw, err = json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode calendar layout: %w", err)
	}
	if err := s.store.Set(ctx, fullKey, raw, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", fullKey).Msg("calendar cache write failed")
	}
	return json.Unmarshal(raw, dst)
}

func (s *Service) buildInto(dst interface{}, build func() (interface{}, error)) error {
	v, err := build()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode calendar layout: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
