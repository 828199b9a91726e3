// Package tasks implements the worker side of the scan pipeline: deferred
// background removal triggered by upload events, and the nightly sweep that
// reclaims orphaned blobs and catalog entries.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/media/sniffer"
	"github.com/kdavid109/UpWake/internal/models"
	"github.com/kdavid109/UpWake/internal/repository"
)

// ObjectCatalog is the catalog slice the processor needs.
type ObjectCatalog interface {
	GetByID(ctx context.Context, id string) (models.ScannedObject, error)
	List(ctx context.Context, limit, offset int) ([]models.ScannedObject, error)
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string, imageURL string, sizeBytes int64) error
	MarkError(ctx context.Context, id string) error
	Delete(ctx context.Context, userID, id string) error
}

type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (int64, error)
	Stat(ctx context.Context, key string) (int64, error)
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

type Remover interface {
	RemoveBytes(ctx context.Context, image []byte) ([]byte, error)
}

type ChangeNotifier interface {
	Notify(ctx context.Context, channel string)
}

type Processor struct {
	catalog  ObjectCatalog
	store    BlobStore
	remover  Remover
	notifier ChangeNotifier
	urlTTL   time.Duration
	logger   zerolog.Logger
}

type TaskPayload struct {
	Type     string `json:"type"`
	ObjectID string `json:"objectId"`
	Key      string `json:"key"`
}

func NewProcessor(catalog ObjectCatalog, store BlobStore, remover Remover, notifier ChangeNotifier, urlTTL time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		catalog:  catalog,
		store:    store,
		remover:  remover,
		notifier: notifier,
		urlTTL:   urlTTL,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case "removal":
		return p.handleRemoval(ctx, payload)
	case "sweep":
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// handleRemoval claims a pending object and runs background removal on its
// blob. The claim is a compare-and-set on status, so if the inline path (or
// another worker) already processed the object this becomes a no-op instead
// of double work.
func (p *Processor) handleRemoval(ctx context.Context, payload TaskPayload) error {
	if payload.ObjectID == "" {
		return fmt.Errorf("removal task without objectId")
	}

	claimed, err := p.catalog.ClaimPending(ctx, payload.ObjectID)
	if err != nil {
		return fmt.Errorf("claim object %s: %w", payload.ObjectID, err)
	}
	if !claimed {
		p.logger.Debug().Str("object_id", payload.ObjectID).Msg("object already claimed, skipping")
		return nil
	}

	obj, err := p.catalog.GetByID(ctx, payload.ObjectID)
	if err != nil {
		return fmt.Errorf("load object %s: %w", payload.ObjectID, err)
	}

	if err := p.process(ctx, obj); err != nil {
		p.logger.Error().Err(err).Str("object_id", obj.ID).Msg("background removal failed")
		if markErr := p.catalog.MarkError(ctx, obj.ID); markErr != nil {
			p.logger.Error().Err(markErr).Str("object_id", obj.ID).Msg("mark error failed")
		}
		p.notifier.Notify(ctx, livelist.ObjectsChannel(obj.UserID))
		return err
	}

	p.notifier.Notify(ctx, livelist.ObjectsChannel(obj.UserID))
	return nil
}

func (p *Processor) process(ctx context.Context, obj models.ScannedObject) error {
	data, err := p.store.Get(ctx, obj.StoragePath)
	if err != nil {
		return fmt.Errorf("fetch blob: %w", err)
	}

	stripped, err := p.remover.RemoveBytes(ctx, data)
	if err != nil {
		return err
	}

	// The removal API may transcode; trust the bytes over the original type.
	contentType := obj.ContentType
	if detected, err := sniffer.Detect(stripped); err == nil {
		contentType = detected.MIME
	}

	size, err := p.store.Put(ctx, obj.StoragePath, stripped, contentType, map[string]string{
		"user-id":   obj.UserID,
		"object-id": obj.ID,
		"name":      obj.SafeName,
		"processed": "true",
	})
	if err != nil {
		return fmt.Errorf("store processed blob: %w", err)
	}

	url, err := p.store.URL(ctx, obj.StoragePath, p.urlTTL)
	if err != nil {
		return fmt.Errorf("resolve url: %w", err)
	}

	if err := p.catalog.MarkProcessed(ctx, obj.ID, url, size); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	p.logger.Info().Str("object_id", obj.ID).Int64("size", size).Msg("background removal completed")
	return nil
}

// handleSweep converges catalog and storage from both sides: blobs whose
// catalog entry is gone are deleted, and entries whose blob is gone are
// deleted. The read path does the latter too, but only for catalogs somebody
// actually reads.
func (p *Processor) handleSweep(ctx context.Context) error {
	keys, err := p.store.List(ctx, "users/")
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	known := make(map[string]struct{}, len(keys))
	var removedBlobs int
	for _, key := range keys {
		objectID, ok := objectIDFromKey(key)
		if !ok {
			continue
		}
		if _, err := p.catalog.GetByID(ctx, objectID); !errors.Is(err, repository.ErrObjectNotFound) {
			known[key] = struct{}{}
			continue
		}
		if err := p.store.Remove(ctx, key); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("orphan blob delete failed")
			continue
		}
		removedBlobs++
	}

	removedRows, err := p.sweepCatalog(ctx, known)
	if err != nil {
		return err
	}

	p.logger.Info().Int("removed_blobs", removedBlobs).Int("removed_rows", removedRows).Msg("sweep finished")
	return nil
}

// stalePendingAge bounds how long an object may sit in pending before the
// sweep re-drives its removal. Long enough that a queued task still in flight
// is never raced.
const stalePendingAge = time.Hour

// sweepCatalog pages through the whole catalog, deleting entries whose blob
// is gone and re-driving removal for entries stuck in pending (their enqueue
// was lost). The storage listing predates the page reads, so a row missing
// from it is re-Stat'ed before it is condemned; uploads that landed after the
// listing snapshot keep their rows.
func (p *Processor) sweepCatalog(ctx context.Context, known map[string]struct{}) (int, error) {
	const pageSize = 200

	var removed int
	for offset := 0; ; offset += pageSize {
		page, err := p.catalog.List(ctx, pageSize, offset)
		if err != nil {
			return removed, fmt.Errorf("list catalog: %w", err)
		}
		for _, obj := range page {
			if _, ok := known[obj.StoragePath]; !ok {
				if size, err := p.store.Stat(ctx, obj.StoragePath); err != nil || size == 0 {
					if err := p.catalog.Delete(ctx, obj.UserID, obj.ID); err != nil {
						p.logger.Warn().Err(err).Str("object_id", obj.ID).Msg("orphan entry delete failed")
					} else {
						removed++
					}
					continue
				}
			}

			if obj.Status == models.ObjectStatusPending && time.Since(obj.UpdatedAt) >= stalePendingAge {
				p.redrivePending(ctx, obj.ID)
			}
		}
		if len(page) < pageSize {
			return removed, nil
		}
	}
}

// redrivePending runs the removal path for an object whose queued task never
// arrived. The compare-and-set claim still guards against racing a live task.
func (p *Processor) redrivePending(ctx context.Context, objectID string) {
	p.logger.Info().Str("object_id", objectID).Msg("re-driving stale pending object")
	if err := p.handleRemoval(ctx, TaskPayload{Type: "removal", ObjectID: objectID}); err != nil {
		p.logger.Error().Err(err).Str("object_id", objectID).Msg("re-drive failed")
	}
}

// objectIDFromKey extracts the object id from a key shaped
// users/{userID}/objects/{id}_{safeName}.{ext}. Alarm attachments and
// anything else return false.
func objectIDFromKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "users" || parts[2] != "objects" {
		return "", false
	}
	base := parts[3]
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return "", false
	}
	return base[:idx], true
}
