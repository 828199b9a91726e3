package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/ids"
	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/media/sniffer"
	"github.com/kdavid109/UpWake/internal/models"
	"github.com/kdavid109/UpWake/internal/naming"
	"github.com/kdavid109/UpWake/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("no authenticated identity")
	ErrInvalidImage    = errors.New("invalid image payload")
	ErrUploadFailed    = errors.New("upload failed")
)

// BlobStore is the slice of the object store the pipeline needs. Implemented
// by storage.ObjectStore.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (int64, error)
	Stat(ctx context.Context, key string) (int64, error)
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Remover strips the background from an image. Implemented by removal.Client.
type Remover interface {
	RemoveBytes(ctx context.Context, image []byte) ([]byte, error)
}

// ObjectCatalog is the catalog slice of repository.ObjectRepository.
type ObjectCatalog interface {
	Create(ctx context.Context, obj models.ScannedObject) error
	ListByUser(ctx context.Context, userID string) ([]models.ScannedObject, error)
	GetByID(ctx context.Context, id string) (models.ScannedObject, error)
	Delete(ctx context.Context, userID, id string) error
}

// TaskQueue hands work to the background worker. Implemented by queue.Producer.
type TaskQueue interface {
	Enqueue(ctx context.Context, values map[string]any) error
}

// ChangeNotifier signals list subscribers after a mutation. Implemented by
// livelist.Hub.
type ChangeNotifier interface {
	Notify(ctx context.Context, channel string)
}

// ScanService runs the upload-verify-register pipeline and the self-healing
// catalog read for scanned objects.
type ScanService struct {
	catalog  ObjectCatalog
	store    BlobStore
	remover  Remover
	queue    TaskQueue
	notifier ChangeNotifier
	cfg      *config.AppConfig
	log      zerolog.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

func NewScanService(
	catalog ObjectCatalog,
	store BlobStore,
	remover Remover,
	queue TaskQueue,
	notifier ChangeNotifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *ScanService {
	return &ScanService{
		catalog:  catalog,
		store:    store,
		remover:  remover,
		queue:    queue,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		sleep:    time.Sleep,
	}
}

type UploadInput struct {
	UserID string
	Name   string
	Data   []byte
}

// Upload turns a captured photo into a durable catalog entry, or fails with
// no catalog row and a best-effort cleanup of the blob. A successful return
// guarantees the blob was confirmed present by a metadata round-trip before
// the catalog row was written.
func (s *ScanService) Upload(ctx context.Context, input UploadInput) (models.ScannedObject, error) {
	if input.UserID == "" {
		return models.ScannedObject{}, ErrUnauthenticated
	}

	detected, err := sniffer.Detect(input.Data)
	if err != nil {
		return models.ScannedObject{}, fmt.Errorf("%w: %s", ErrInvalidImage, err)
	}

	data := input.Data
	contentType := detected.MIME
	ext := string(detected.Type)
	processed := false

	// Inline mode strips the background before anything is uploaded. The
	// removal call is never retried; a rejection aborts the whole pipeline.
	if s.cfg.Removal.Mode == config.RemovalModeInline {
		stripped, err := s.remover.RemoveBytes(ctx, data)
		if err != nil {
			return models.ScannedObject{}, err
		}
		strippedType, err := sniffer.Detect(stripped)
		if err != nil {
			return models.ScannedObject{}, fmt.Errorf("%w: removal returned %s", ErrInvalidImage, err)
		}
		data = stripped
		contentType = strippedType.MIME
		ext = string(strippedType.Type)
		processed = true
	}

	objectID := ids.New()
	safeName := naming.Sanitize(input.Name)
	key := naming.ObjectKey(input.UserID, objectID, safeName, ext)

	metadata := map[string]string{
		"user-id":   input.UserID,
		"object-id": objectID,
		"name":      safeName,
		"processed": strconv.FormatBool(processed),
	}

	size, err := s.putConfirmed(ctx, key, data, contentType, metadata)
	if err != nil {
		return models.ScannedObject{}, err
	}

	// Grace period for eventual consistency in the backing store before the
	// download reference is resolved.
	s.sleep(s.cfg.Pipeline.SettlingDelay)

	imageURL, err := s.verify(ctx, key)
	if err != nil {
		s.cleanupBlob(ctx, key)
		return models.ScannedObject{}, fmt.Errorf("%w: verification: %s", ErrUploadFailed, err)
	}

	status := models.ObjectStatusPending
	if processed {
		status = models.ObjectStatusCompleted
	}

	now := time.Now().UTC()
	obj := models.ScannedObject{
		ID:          objectID,
		UserID:      input.UserID,
		Name:        input.Name,
		SafeName:    safeName,
		StoragePath: key,
		ImageURL:    imageURL,
		ContentType: contentType,
		SizeBytes:   size,
		Processed:   processed,
		Status:      status,
		ScannedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.catalog.Create(ctx, obj); err != nil {
		s.cleanupBlob(ctx, key)
		return models.ScannedObject{}, fmt.Errorf("save catalog entry: %w", err)
	}

	if !processed {
		if err := s.queue.Enqueue(ctx, map[string]any{
			"type":     "removal",
			"objectId": objectID,
			"key":      key,
		}); err != nil {
			s.log.Warn().Err(err).Str("object_id", objectID).Msg("enqueue removal failed")
		}
	}

	s.notifier.Notify(ctx, livelist.ObjectsChannel(input.UserID))

	return obj, nil
}

// putConfirmed writes the blob with a bounded retry loop. A put call that
// returns success is not trusted on its own: every attempt is confirmed by a
// metadata round-trip requiring a non-zero stored size.
func (s *ScanService) putConfirmed(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (int64, error) {
	maxAttempts := s.cfg.Pipeline.MaxUploadAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := s.store.Put(ctx, key, data, contentType, metadata)
		if err == nil {
			size, statErr := s.store.Stat(ctx, key)
			if statErr == nil && size > 0 {
				return size, nil
			}
			if statErr != nil {
				err = fmt.Errorf("confirm upload: %w", statErr)
			} else {
				err = fmt.Errorf("confirm upload: stored size is zero")
			}
		}

		s.log.Warn().
			Err(err).
			Str("key", key).
			Int("attempt", attempt).
			Msg("upload attempt failed")

		s.sleep(s.cfg.Pipeline.BackoffBase << (attempt - 1))
	}

	return 0, fmt.Errorf("%w: not confirmed after %d attempts", ErrUploadFailed, maxAttempts)
}

// verify resolves the durable download reference and re-confirms the blob is
// present. No retries remain at this point.
func (s *ScanService) verify(ctx context.Context, key string) (string, error) {
	imageURL, err := s.store.URL(ctx, key, s.cfg.Storage.URLTTL)
	if err != nil {
		return "", err
	}
	size, err := s.store.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", errors.New("stored size is zero")
	}
	return imageURL, nil
}

// cleanupBlob makes exactly one removal attempt. Failures leave an orphan
// blob, which the scheduled sweep reclaims later; an orphan catalog row is
// never left behind.
func (s *ScanService) cleanupBlob(ctx context.Context, key string) {
	if err := s.store.Remove(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cleanup of uploaded blob failed")
	}
}

// List returns the user's catalog newest-first, pruning entries whose blob no
// longer exists. The per-entry verification runs sequentially and unbounded;
// catalogs are small.
func (s *ScanService) List(ctx context.Context, userID string) ([]models.ScannedObject, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	entries, err := s.catalog.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	live := make([]models.ScannedObject, 0, len(entries))
	pruned := false
	for _, entry := range entries {
		size, err := s.store.Stat(ctx, entry.StoragePath)
		if err != nil || size == 0 {
			// Orphan entry: the blob is gone, so the row goes too.
			if delErr := s.catalog.Delete(ctx, userID, entry.ID); delErr != nil {
				s.log.Warn().Err(delErr).Str("object_id", entry.ID).Msg("orphan entry delete failed")
			} else {
				pruned = true
				s.log.Info().Str("object_id", entry.ID).Str("key", entry.StoragePath).Msg("pruned orphan catalog entry")
			}
			continue
		}

		url, err := s.store.URL(ctx, entry.StoragePath, s.cfg.Storage.URLTTL)
		if err == nil {
			entry.ImageURL = url
		}
		live = append(live, entry)
	}

	if pruned {
		s.notifier.Notify(ctx, livelist.ObjectsChannel(userID))
	}

	return live, nil
}

// Delete removes an object's blob and catalog row.
func (s *ScanService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	obj, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if obj.UserID != userID {
		return repository.ErrObjectNotFound
	}

	if err := s.store.Remove(ctx, obj.StoragePath); err != nil {
		s.log.Warn().Err(err).Str("key", obj.StoragePath).Msg("blob delete failed")
	}

	if err := s.catalog.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.notifier.Notify(ctx, livelist.ObjectsChannel(userID))
	return nil
}
