package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/models"
)

type fakeAlarmCatalog struct {
	mu      sync.Mutex
	alarms  map[string]models.Alarm
	updates []models.Alarm
	toggles []string
}

func newFakeAlarmCatalog() *fakeAlarmCatalog {
	return &fakeAlarmCatalog{alarms: map[string]models.Alarm{}}
}

func (f *fakeAlarmCatalog) Create(_ context.Context, alarm models.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alarms[alarm.ID] = alarm
	return nil
}

func (f *fakeAlarmCatalog) Update(_ context.Context, alarm models.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alarms[alarm.ID]; !ok {
		return errors.New("alarm not found")
	}
	f.alarms[alarm.ID] = alarm
	f.updates = append(f.updates, alarm)
	return nil
}

// SetEnabled mutates the single enabled field, mirroring the partial UPDATE
// the real repository issues.
func (f *fakeAlarmCatalog) SetEnabled(_ context.Context, _, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[id]
	if !ok {
		return errors.New("alarm not found")
	}
	alarm.Enabled = enabled
	f.alarms[id] = alarm
	f.toggles = append(f.toggles, id)
	return nil
}

func (f *fakeAlarmCatalog) GetByID(_ context.Context, userID, id string) (models.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[id]
	if !ok || alarm.UserID != userID {
		return models.Alarm{}, errors.New("alarm not found")
	}
	return alarm, nil
}

func (f *fakeAlarmCatalog) ListByUser(_ context.Context, userID string) ([]models.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alarm
	for _, alarm := range f.alarms {
		if alarm.UserID == userID {
			out = append(out, alarm)
		}
	}
	return out, nil
}

func (f *fakeAlarmCatalog) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[id]
	if !ok || alarm.UserID != userID {
		return errors.New("alarm not found")
	}
	delete(f.alarms, id)
	return nil
}

func newAlarmFixture() (*AlarmService, *fakeAlarmCatalog, *fakeBlobStore, *fakeNotifier) {
	cfg := &config.AppConfig{
		Storage: config.StorageConfig{URLTTL: time.Hour},
	}
	catalog := newFakeAlarmCatalog()
	store := newFakeBlobStore()
	notifier := &fakeNotifier{}
	svc := NewAlarmService(catalog, store, notifier, cfg, zerolog.Nop())
	return svc, catalog, store, notifier
}

func TestCreateAlarmNormalizesDays(t *testing.T) {
	svc, catalog, _, _ := newAlarmFixture()

	alarm, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 7*60 + 30,
		Label:   "Work",
		Days:    []models.Weekday{models.Friday, models.Monday, models.Monday, models.Wednesday},
		Enabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []models.Weekday{models.Monday, models.Wednesday, models.Friday}, alarm.Days)
	assert.Equal(t, "07:30", alarm.Display())
	assert.Len(t, catalog.alarms, 1)
}

func TestCreateAlarmRejectsOutOfRangeTime(t *testing.T) {
	svc, catalog, _, _ := newAlarmFixture()

	_, err := svc.Create(context.Background(), CreateAlarmInput{UserID: "u1", Minutes: 1440})
	require.ErrorIs(t, err, ErrInvalidAlarmTime)

	_, err = svc.Create(context.Background(), CreateAlarmInput{UserID: "u1", Minutes: -1})
	require.ErrorIs(t, err, ErrInvalidAlarmTime)

	assert.Empty(t, catalog.alarms)
}

func TestCreateAlarmWithAttachmentSkipsVerification(t *testing.T) {
	svc, _, store, _ := newAlarmFixture()

	alarm, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 360,
		Label:   "Early",
		Image:   pngImage,
	})
	require.NoError(t, err)

	require.NotEmpty(t, alarm.ImagePath)
	assert.Contains(t, store.objects, alarm.ImagePath)
	assert.Equal(t, "https://blobs.test/"+alarm.ImagePath, alarm.ImageURL)
}

func TestCreateAlarmRejectsBadAttachment(t *testing.T) {
	svc, catalog, store, _ := newAlarmFixture()

	_, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 360,
		Image:   []byte("not an image"),
	})
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, catalog.alarms)
	assert.Empty(t, store.objects)
}

func TestToggleOnlyChangesEnabled(t *testing.T) {
	svc, catalog, _, notifier := newAlarmFixture()

	created, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 495,
		Label:   "Gym",
		Days:    []models.Weekday{models.Tuesday, models.Thursday},
		Enabled: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Toggle(context.Background(), "u1", created.ID, false))

	after, err := catalog.GetByID(context.Background(), "u1", created.ID)
	require.NoError(t, err)

	assert.False(t, after.Enabled)
	// every other field is untouched
	assert.Equal(t, created.Minutes, after.Minutes)
	assert.Equal(t, created.Label, after.Label)
	assert.Equal(t, created.Days, after.Days)
	assert.Equal(t, created.CreatedAt, after.CreatedAt)

	// the toggle went through the single-field path, not a full update
	assert.Len(t, catalog.toggles, 1)
	assert.Empty(t, catalog.updates)

	assert.Len(t, notifier.channels, 2) // create + toggle
}

func TestUpdateAlarmValidatesAndNormalizes(t *testing.T) {
	svc, _, _, _ := newAlarmFixture()

	created, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 420,
		Label:   "Old",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), UpdateAlarmInput{
		UserID:  "u1",
		ID:      created.ID,
		Minutes: 23*60 + 59,
		Label:   "New",
		Days:    []models.Weekday{models.Saturday, models.Sunday, models.Saturday},
	})
	require.NoError(t, err)

	assert.Equal(t, "23:59", updated.Display())
	assert.Equal(t, []models.Weekday{models.Sunday, models.Saturday}, updated.Days)
	assert.Equal(t, "New", updated.Label)
}

func TestDeleteAlarmRemovesAttachments(t *testing.T) {
	svc, catalog, store, _ := newAlarmFixture()

	alarm, err := svc.Create(context.Background(), CreateAlarmInput{
		UserID:  "u1",
		Minutes: 300,
		Image:   pngImage,
	})
	require.NoError(t, err)
	require.Contains(t, store.objects, alarm.ImagePath)

	require.NoError(t, svc.Delete(context.Background(), "u1", alarm.ID))
	assert.Empty(t, catalog.alarms)
	assert.NotContains(t, store.objects, alarm.ImagePath)
}
