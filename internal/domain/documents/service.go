package documents

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/clients"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/apperrors"
)

// Clients resolves the owner of an upload.
type Clients interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type Service struct {
	repo    Repository
	store   blobstore.Store
	clients Clients
	events  *events.Emitter
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, store blobstore.Store, cl Clients, emitter *events.Emitter,
	metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		clients: cl,
		events:  emitter,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload stores content for the client and records its metadata. The blob
// is removed again if the row cannot be written.
func (s *Service) Upload(ctx context.Context, clientID uuid.UUID, fileName, contentType string, content io.Reader) (*Document, error) {
	fileName = strings.TrimSpace(filepath.Base(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, apperrors.NewValidationError(blobstore.ErrMissingFileName.Error())
	}
	ct, err := blobstore.NormalizeContentType(contentType)
	if err != nil {
		return nil, apperrors.Validationf("content type is not allowed: %s", contentType)
	}
	if _, err := s.clients.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	key := blobstore.NewKey(clientID.String(), s.now().UTC())
	obj, err := s.store.Put(ctx, key, ct, content)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) {
			return nil, apperrors.Validationf("file exceeds %d MB", blobstore.MaxFileSize>>20)
		}
		return nil, apperrors.NewExternalError("store document", err)
	}

	d := &Document{
		ClientID:    clientID,
		FileName:    fileName,
		ContentType: ct,
		Size:        obj.Size,
		SHA256:      obj.SHA256,
		StorageKey:  obj.Key,
	}
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		d.UploadedBy = &uid
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned blob")
			s.metrics.SideEffectFailed("blob_cleanup")
		}
		return nil, err
	}

	s.events.Emit(ctx, events.Event{
		Type:     events.DocumentUploaded,
		EntityID: d.ID.String(),
		Data:     map[string]interface{}{"client_id": clientID.String(), "size": d.Size},
	})
	return d, nil
}

func (s *Service) List(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	return s.repo.ListByClient(ctx, clientID, limit, offset)
}

// get loads a document and hides it when it belongs to another client.
func (s *Service) get(ctx context.Context, clientID, id uuid.UUID) (*Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ClientID != clientID {
		return nil, apperrors.NewNotFoundError("document not found")
	}
	return d, nil
}

// Download returns the metadata and an open reader. The caller closes it.
func (s *Service) Download(ctx context.Context, clientID, id uuid.UUID) (*Document, io.ReadCloser, error) {
	d, err := s.get(ctx, clientID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Get(ctx, d.StorageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, nil, apperrors.NewNotFoundError("document content not found")
		}
		return nil, nil, apperrors.NewExternalError("read document", err)
	}
	return d, rc, nil
}

// Delete removes the blob, then the row. A blob that is already gone does
// not block removing the row.
func (s *Service) Delete(ctx context.Context, clientID, id uuid.UUID) error {
	d, err := s.get(ctx, clientID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, d.StorageKey); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return apperrors.NewExternalError("delete document", err)
	}
	return s.repo.Delete(ctx, id)
}

// Purger removes the files behind a deleted client's documents. The rows
// themselves go with the client.
type Purger struct {
	repo    Repository
	store   blobstore.Store
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewPurger(repo Repository, store blobstore.Store, metrics *telemetry.Metrics, logger zerolog.Logger) *Purger {
	return &Purger{repo: repo, store: store, metrics: metrics, logger: logger}
}

func (p *Purger) StorageKeys(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	return p.repo.StorageKeys(ctx, clientID)
}

// RemoveBlobs deletes every key, logging the ones that fail.
func (p *Purger) RemoveBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			p.logger.Warn().Err(err).Str("key", key).Msg("failed to remove document blob")
			p.metrics.SideEffectFailed("blob_cleanup")
		}
	}
}
