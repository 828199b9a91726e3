package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/ids"
	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/media/sniffer"
	"github.com/kdavid109/UpWake/internal/models"
	"github.com/kdavid109/UpWake/internal/naming"
)

var ErrInvalidAlarmTime = errors.New("alarm time out of range")

// AlarmCatalog is the catalog slice of repository.AlarmRepository.
type AlarmCatalog interface {
	Create(ctx context.Context, alarm models.Alarm) error
	Update(ctx context.Context, alarm models.Alarm) error
	SetEnabled(ctx context.Context, userID, id string, enabled bool) error
	GetByID(ctx context.Context, userID, id string) (models.Alarm, error)
	ListByUser(ctx context.Context, userID string) ([]models.Alarm, error)
	Delete(ctx context.Context, userID, id string) error
}

// AlarmService is plain CRUD over alarm records. Attachments go to the blob
// store raw: no background removal, no confirmation round-trip, no retry.
type AlarmService struct {
	catalog  AlarmCatalog
	store    BlobStore
	notifier ChangeNotifier
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAlarmService(catalog AlarmCatalog, store BlobStore, notifier ChangeNotifier, cfg *config.AppConfig, log zerolog.Logger) *AlarmService {
	return &AlarmService{
		catalog:  catalog,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

type CreateAlarmInput struct {
	UserID  string
	Minutes int
	Label   string
	Days    []models.Weekday
	Enabled bool
	Image   []byte
}

func (s *AlarmService) Create(ctx context.Context, input CreateAlarmInput) (models.Alarm, error) {
	if input.UserID == "" {
		return models.Alarm{}, ErrUnauthenticated
	}
	if !models.ValidMinutes(input.Minutes) {
		return models.Alarm{}, fmt.Errorf("%w: %d", ErrInvalidAlarmTime, input.Minutes)
	}

	now := time.Now().UTC()
	alarm := models.Alarm{
		ID:        ids.New(),
		UserID:    input.UserID,
		Minutes:   input.Minutes,
		Label:     input.Label,
		Days:      models.NormalizeDays(input.Days),
		Enabled:   input.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(input.Image) > 0 {
		detected, err := sniffer.Detect(input.Image)
		if err != nil {
			return models.Alarm{}, fmt.Errorf("%w: %s", ErrInvalidImage, err)
		}
		key := naming.AlarmKey(input.UserID, alarm.ID, "photo", string(detected.Type))
		if _, err := s.store.Put(ctx, key, input.Image, detected.MIME, map[string]string{
			"user-id":  input.UserID,
			"alarm-id": alarm.ID,
		}); err != nil {
			return models.Alarm{}, fmt.Errorf("upload alarm image: %w", err)
		}
		alarm.ImagePath = key
		if url, err := s.store.URL(ctx, key, s.cfg.Storage.URLTTL); err == nil {
			alarm.ImageURL = url
		}
	}

	if err := s.catalog.Create(ctx, alarm); err != nil {
		return models.Alarm{}, err
	}

	s.notifier.Notify(ctx, livelist.AlarmsChannel(input.UserID))
	return alarm, nil
}

type UpdateAlarmInput struct {
	UserID  string
	ID      string
	Minutes int
	Label   string
	Days    []models.Weekday
}

func (s *AlarmService) Update(ctx context.Context, input UpdateAlarmInput) (models.Alarm, error) {
	if input.UserID == "" {
		return models.Alarm{}, ErrUnauthenticated
	}
	if !models.ValidMinutes(input.Minutes) {
		return models.Alarm{}, fmt.Errorf("%w: %d", ErrInvalidAlarmTime, input.Minutes)
	}

	alarm, err := s.catalog.GetByID(ctx, input.UserID, input.ID)
	if err != nil {
		return models.Alarm{}, err
	}

	alarm.Minutes = input.Minutes
	alarm.Label = input.Label
	alarm.Days = models.NormalizeDays(input.Days)

	if err := s.catalog.Update(ctx, alarm); err != nil {
		return models.Alarm{}, err
	}

	s.notifier.Notify(ctx, livelist.AlarmsChannel(input.UserID))
	return alarm, nil
}

// Toggle flips enabled and nothing else.
func (s *AlarmService) Toggle(ctx context.Context, userID, id string, enabled bool) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.catalog.SetEnabled(ctx, userID, id, enabled); err != nil {
		return err
	}
	s.notifier.Notify(ctx, livelist.AlarmsChannel(userID))
	return nil
}

func (s *AlarmService) List(ctx context.Context, userID string) ([]models.Alarm, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.catalog.ListByUser(ctx, userID)
}

// Delete removes the record and best-effort clears any attachment blobs.
func (s *AlarmService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	if err := s.catalog.Delete(ctx, userID, id); err != nil {
		return err
	}

	prefix := naming.AlarmPrefix(userID, id)
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		s.log.Warn().Err(err).Str("prefix", prefix).Msg("list alarm attachments failed")
	}
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("alarm attachment delete failed")
		}
	}

	s.notifier.Notify(ctx, livelist.AlarmsChannel(userID))
	return nil
}
