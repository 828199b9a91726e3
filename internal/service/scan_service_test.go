package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/models"
)

var pngImage = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("fake png payload")...)

type fakeBlobStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	putFailures int
	statZero    bool
	urlErr      error
	removeErr   error
	removeCalls []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string, _ map[string]string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putFailures > 0 {
		f.putFailures--
		return 0, errors.New("transient store error")
	}
	f.objects[key] = data
	return int64(len(data)), nil
}

func (f *fakeBlobStore) Stat(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return 0, fmt.Errorf("stat object %s: not found", key)
	}
	if f.statZero {
		return 0, nil
	}
	return int64(len(data)), nil
}

func (f *fakeBlobStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlobStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, key)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type fakeCatalog struct {
	mu        sync.Mutex
	order     []string
	entries   map[string]models.ScannedObject
	createErr error
	deleted   []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: map[string]models.ScannedObject{}}
}

func (f *fakeCatalog) Create(_ context.Context, obj models.ScannedObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.entries[obj.ID] = obj
	f.order = append(f.order, obj.ID)
	return nil
}

func (f *fakeCatalog) ListByUser(_ context.Context, userID string) ([]models.ScannedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScannedObject
	for _, id := range f.order {
		if obj, ok := f.entries[id]; ok && obj.UserID == userID {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (models.ScannedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.entries[id]
	if !ok {
		return models.ScannedObject{}, errors.New("object not found")
	}
	return obj, nil
}

func (f *fakeCatalog) Delete(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []map[string]any
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, values)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	channels []string
}

func (f *fakeNotifier) Notify(_ context.Context, channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
}

type stubRemover struct {
	out   []byte
	err   error
	calls int
}

func (s *stubRemover) RemoveBytes(_ context.Context, _ []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type pipelineFixture struct {
	svc      *ScanService
	store    *fakeBlobStore
	catalog  *fakeCatalog
	queue    *fakeQueue
	notifier *fakeNotifier
	remover  *stubRemover
	sleeps   *[]time.Duration
}

func newPipeline(t *testing.T, mode string) pipelineFixture {
	t.Helper()

	cfg := &config.AppConfig{
		Storage: config.StorageConfig{URLTTL: time.Hour},
		Removal: config.RemovalConfig{Mode: mode},
		Pipeline: config.PipelineConfig{
			MaxUploadAttempts: 3,
			BackoffBase:       2 * time.Second,
			SettlingDelay:     2 * time.Second,
		},
	}

	store := newFakeBlobStore()
	catalog := newFakeCatalog()
	q := &fakeQueue{}
	notifier := &fakeNotifier{}
	remover := &stubRemover{out: pngImage}

	svc := NewScanService(catalog, store, remover, q, notifier, cfg, zerolog.Nop())

	sleeps := &[]time.Duration{}
	svc.sleep = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
	}

	return pipelineFixture{svc: svc, store: store, catalog: catalog, queue: q, notifier: notifier, remover: remover, sleeps: sleeps}
}

func TestUploadRejectsMissingIdentity(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	_, err := f.svc.Upload(context.Background(), UploadInput{Name: "Mug", Data: pngImage})
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, f.catalog.entries)
}

func TestUploadRejectsUndecodableImage(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: []byte("not an image")})
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.catalog.entries)
}

func TestUploadDeferredSuccess(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Coffee Mug!!", Data: pngImage})
	require.NoError(t, err)

	assert.Equal(t, "Coffee_Mug", obj.SafeName)
	assert.Equal(t, fmt.Sprintf("users/u1/objects/%s_Coffee_Mug.png", obj.ID), obj.StoragePath)
	assert.False(t, obj.Processed)
	assert.Equal(t, models.ObjectStatusPending, obj.Status)
	assert.Equal(t, "https://blobs.test/"+obj.StoragePath, obj.ImageURL)

	// the blob was confirmed present before the catalog row was written
	size, err := f.store.Stat(context.Background(), obj.StoragePath)
	require.NoError(t, err)
	assert.Positive(t, size)
	assert.Len(t, f.catalog.entries, 1)

	// deferred mode hands removal to the worker
	assert.Zero(t, f.remover.calls)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, "removal", f.queue.tasks[0]["type"])
	assert.Equal(t, obj.ID, f.queue.tasks[0]["objectId"])

	// only the settling delay was slept on the happy path
	assert.Equal(t, []time.Duration{2 * time.Second}, *f.sleeps)

	require.Len(t, f.notifier.channels, 1)
	assert.Contains(t, f.notifier.channels[0], "u1")
}

func TestUploadInlineRunsRemovalBeforeUpload(t *testing.T) {
	f := newPipeline(t, config.RemovalModeInline)

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Lamp", Data: pngImage})
	require.NoError(t, err)

	assert.Equal(t, 1, f.remover.calls)
	assert.True(t, obj.Processed)
	assert.Equal(t, models.ObjectStatusCompleted, obj.Status)
	assert.Empty(t, f.queue.tasks)
}

func TestUploadInlineRemovalRejectionAborts(t *testing.T) {
	f := newPipeline(t, config.RemovalModeInline)
	removalErr := errors.New("background removal rejected: status 402")
	f.remover.err = removalErr

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Lamp", Data: pngImage})
	require.ErrorIs(t, err, removalErr)

	// removal runs before any upload, so nothing needs cleanup
	assert.Equal(t, 1, f.remover.calls)
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.store.removeCalls)
	assert.Empty(t, f.catalog.entries)
}

func TestUploadRetriesTransientPutFailures(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.store.putFailures = 2

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)
	assert.Len(t, f.catalog.entries, 1)

	// backoff 2s then 4s for the two failures, then the settling delay
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 2 * time.Second}, *f.sleeps)

	size, err := f.store.Stat(context.Background(), obj.StoragePath)
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestUploadFailsAfterRetryBudget(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.store.putFailures = 3

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.ErrorIs(t, err, ErrUploadFailed)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, *f.sleeps)
	assert.Empty(t, f.catalog.entries)
}

func TestUploadDoesNotTrustUnconfirmedPut(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.store.statZero = true

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Empty(t, f.catalog.entries)
}

func TestUploadVerificationFailureCleansUpBlob(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.store.urlErr = errors.New("presign unavailable")

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.ErrorIs(t, err, ErrUploadFailed)

	assert.Empty(t, f.catalog.entries)
	assert.Len(t, f.store.removeCalls, 1, "exactly one blob deletion attempt")
}

func TestUploadCatalogFailureCleansUpBlob(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.catalog.createErr = errors.New("catalog write refused")

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.Error(t, err)

	assert.Empty(t, f.catalog.entries)
	assert.Len(t, f.store.removeCalls, 1)
	assert.Empty(t, f.store.objects)
}

func TestUploadCleanupFailureStillPropagates(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)
	f.catalog.createErr = errors.New("catalog write refused")
	f.store.removeErr = errors.New("delete refused")

	_, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.Error(t, err)

	// the orphan blob is tolerated; the catalog row is not
	assert.Len(t, f.store.removeCalls, 1)
	assert.Empty(t, f.catalog.entries)
}

func TestConcurrentUploadsUseDistinctPaths(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	first, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)
	second, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.StoragePath, second.StoragePath)
}

func TestListPrunesOrphanEntries(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	kept, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)
	orphan, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Lamp", Data: pngImage})
	require.NoError(t, err)

	// the blob disappears behind the catalog's back
	delete(f.store.objects, orphan.StoragePath)

	objects, err := f.svc.List(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, objects, 1)
	assert.Equal(t, kept.ID, objects[0].ID)
	assert.Contains(t, f.catalog.deleted, orphan.ID)

	// a second read no longer sees the orphan at all
	objects, err = f.svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, objects, 1)
}

func TestListRefreshesDownloadURLs(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)

	objects, err := f.svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "https://blobs.test/"+obj.StoragePath, objects[0].ImageURL)
}

func TestDeleteRemovesBlobAndEntry(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), "u1", obj.ID))
	assert.Empty(t, f.catalog.entries)
	assert.NotContains(t, f.store.objects, obj.StoragePath)
}

func TestDeleteRejectsForeignObject(t *testing.T) {
	f := newPipeline(t, config.RemovalModeDeferred)

	obj, err := f.svc.Upload(context.Background(), UploadInput{UserID: "u1", Name: "Mug", Data: pngImage})
	require.NoError(t, err)

	require.Error(t, f.svc.Delete(context.Background(), "u2", obj.ID))
	assert.Len(t, f.catalog.entries, 1)
}
