package clients

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/civil"
)

// -- Mock Repository --

type mockRepo struct {
	clients map[uuid.UUID]*Client
	visits  map[uuid.UUID][]*Visit
}

func newMockRepo() *mockRepo {
	return &mockRepo{clients: make(map[uuid.UUID]*Client), visits: make(map[uuid.UUID][]*Visit)}
}

func (m *mockRepo) Create(_ context.Context, c *Client) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("client not found")
	}
	return c, nil
}

func (m *mockRepo) Update(_ context.Context, c *Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return apperrors.NewNotFoundError("client not found")
	}
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clients[id]; !ok {
		return apperrors.NewNotFoundError("client not found")
	}
	if len(m.visits[id]) > 0 {
		return apperrors.NewConflictError("client has appointments")
	}
	delete(m.clients, id)
	return nil
}

func (m *mockRepo) Lock(_ context.Context, id uuid.UUID) error {
	if _, ok := m.clients[id]; !ok {
		return apperrors.NewNotFoundError("client not found")
	}
	return nil
}

func (m *mockRepo) Search(_ context.Context, q string, limit, offset int) ([]*Client, int, error) {
	var result []*Client
	for _, c := range m.clients {
		if q == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

func (m *mockRepo) Stats(_ context.Context, id uuid.UUID, _ time.Time) (Stats, error) {
	var s Stats
	for _, v := range m.visits[id] {
		s.Appointments++
		if v.Status == "done" {
			s.Done++
		}
	}
	return s, nil
}

func (m *mockRepo) History(_ context.Context, id uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return m.visits[id], len(m.visits[id]), nil
}

func (m *mockRepo) Names(_ context.Context) ([]string, error) {
	var names []string
	for _, c := range m.clients {
		names = append(names, c.Name)
	}
	return names, nil
}

func (m *mockRepo) FindByName(_ context.Context, name string) (*Client, error) {
	for _, c := range m.clients {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("client not found")
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) { c.n++ }

// fakeAttachments keeps storage keys per client and records removals.
type fakeAttachments struct {
	keys    map[uuid.UUID][]string
	removed []string
}

func (f *fakeAttachments) StorageKeys(_ context.Context, clientID uuid.UUID) ([]string, error) {
	return f.keys[clientID], nil
}

func (f *fakeAttachments) RemoveBlobs(_ context.Context, keys []string) {
	f.removed = append(f.removed, keys...)
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, db.NoopTransactor{}, nil, nil), repo
}

func birth(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func TestService_CreateClient(t *testing.T) {
	svc, _ := newTestService()
	c := &Client{Name: "  Maria Silva ", BirthDate: birth("1980-04-12"), Email: strPtr(" Maria@Example.com"), Phone: strPtr("  ")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if c.Name != "Maria Silva" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}
	if c.Email == nil || *c.Email != "maria@example.com" {
		t.Errorf("expected normalised email, got %v", c.Email)
	}
	if c.Phone != nil {
		t.Error("expected blank phone to be dropped")
	}
}

func TestService_CreateClient_Validation(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	cases := map[string]*Client{
		"short name":   {Name: "A", BirthDate: birth("1980-01-01")},
		"no birth":     {Name: "Ana Lima"},
		"future birth": {Name: "Ana Lima", BirthDate: birth("2030-01-01")},
		"bad email":    {Name: "Ana Lima", BirthDate: birth("1980-01-01"), Email: strPtr("ana")},
	}
	for name, c := range cases {
		err := svc.CreateClient(context.Background(), c)
		if !apperrors.Is(err, apperrors.ErrorTypeValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestService_UpdateClient_NotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.UpdateClient(context.Background(), &Client{ID: uuid.New(), Name: "Ana Lima", BirthDate: birth("1980-01-01")})
	if !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_DeleteClient_WithAppointments(t *testing.T) {
	svc, repo := newTestService()
	c := &Client{Name: "Ana Lima", BirthDate: birth("1980-01-01")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	repo.visits[c.ID] = []*Visit{{AppointmentID: uuid.New(), Status: "done"}}

	err := svc.DeleteClient(context.Background(), c.ID)
	if !apperrors.Is(err, apperrors.ErrorTypeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_UpdateClient_InvalidatesCalendar(t *testing.T) {
	repo := newMockRepo()
	cal := &countingInvalidator{}
	svc := NewService(repo, db.NoopTransactor{}, cal, nil)

	c := &Client{Name: "Ana Lima", BirthDate: birth("1980-01-01")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if cal.n != 0 {
		t.Errorf("create should not invalidate, got %d", cal.n)
	}

	c.Name = "Ana Lima Ferreira"
	if err := svc.UpdateClient(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.n != 1 {
		t.Errorf("expected 1 invalidation, got %d", cal.n)
	}

	err := svc.UpdateClient(context.Background(), &Client{ID: uuid.New(), Name: "Ana Lima", BirthDate: birth("1980-01-01")})
	if !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if cal.n != 1 {
		t.Errorf("failed update should not invalidate, got %d", cal.n)
	}
}

func TestService_DeleteClient_RemovesDocumentBlobs(t *testing.T) {
	repo := newMockRepo()
	files := &fakeAttachments{keys: make(map[uuid.UUID][]string)}
	svc := NewService(repo, db.NoopTransactor{}, nil, files)

	c := &Client{Name: "Rita Moreira", BirthDate: birth("1975-09-30")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	files.keys[c.ID] = []string{"clients/a/1.pdf", "clients/a/2.png"}

	if err := svc.DeleteClient(context.Background(), c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files.removed) != 2 || files.removed[0] != "clients/a/1.pdf" || files.removed[1] != "clients/a/2.png" {
		t.Errorf("unexpected removed blobs %v", files.removed)
	}
	if _, ok := repo.clients[c.ID]; ok {
		t.Error("expected client row to be deleted")
	}
}

func TestService_DeleteClient_KeepsBlobsWhenRefused(t *testing.T) {
	repo := newMockRepo()
	files := &fakeAttachments{keys: make(map[uuid.UUID][]string)}
	svc := NewService(repo, db.NoopTransactor{}, nil, files)

	c := &Client{Name: "Rita Moreira", BirthDate: birth("1975-09-30")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	files.keys[c.ID] = []string{"clients/a/1.pdf"}
	repo.visits[c.ID] = []*Visit{{AppointmentID: uuid.New(), Status: "scheduled"}}

	if err := svc.DeleteClient(context.Background(), c.ID); !apperrors.Is(err, apperrors.ErrorTypeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(files.removed) != 0 {
		t.Errorf("blobs must survive a refused delete, removed %v", files.removed)
	}

	if err := svc.DeleteClient(context.Background(), uuid.New()); !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_Summary(t *testing.T) {
	svc, repo := newTestService()
	c := &Client{Name: "Ana Lima", BirthDate: birth("1980-01-01")}
	if err := svc.CreateClient(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	repo.visits[c.ID] = []*Visit{
		{AppointmentID: uuid.New(), Status: "done"},
		{AppointmentID: uuid.New(), Status: "scheduled"},
		{AppointmentID: uuid.New(), Status: "done"},
	}

	sum, err := svc.Summary(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Stats.Appointments != 3 || sum.Stats.Done != 2 {
		t.Errorf("unexpected stats %+v", sum.Stats)
	}
}

func TestService_History_UnknownClient(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.History(context.Background(), uuid.New(), 20, 0)
	if !apperrors.Is(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
