package stage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"callpipe/internal/queue"
	"callpipe/internal/speech"
	"callpipe/internal/store"
	"callpipe/pkg/models"

	"github.com/google/uuid"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
}

func (f *fakeStorage) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeStorage) Exists(_ context.Context, _, objectPath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("exists:" + objectPath)
	_, ok := f.objects[objectPath]
	return ok, nil
}

func (f *fakeStorage) Download(_ context.Context, _, objectPath, localDest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("download:" + objectPath)
	data, ok := f.objects[objectPath]
	if !ok {
		return fmt.Errorf("object not found: %s", objectPath)
	}
	return os.WriteFile(localDest, data, 0o644)
}

func (f *fakeStorage) Upload(_ context.Context, _, objectPath, localSrc, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:" + objectPath)
	data, err := os.ReadFile(localSrc)
	if err != nil {
		return err
	}
	f.objects[objectPath] = data
	return nil
}

func (f *fakeStorage) Remove(_ context.Context, _, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove:" + objectPath)
	delete(f.objects, objectPath)
	return nil
}

type delayedJob struct {
	req queue.EnqueueRequest
	at  time.Time
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []queue.EnqueueRequest
	delayed  []delayedJob
}

func (f *fakeQueue) Enqueue(_ context.Context, req queue.EnqueueRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, req)
	return nil
}

func (f *fakeQueue) EnqueueAt(_ context.Context, req queue.EnqueueRequest, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delayed = append(f.delayed, delayedJob{req: req, at: at})
	return nil
}

func (f *fakeQueue) Claim(context.Context, string) (*models.Job, error) { return nil, nil }

func (f *fakeQueue) Complete(context.Context, uuid.UUID) error { return nil }

func (f *fakeQueue) Fail(context.Context, uuid.UUID, string, time.Duration) error {
	return nil
}

// payloadOf decodes an enqueued payload into dst for assertions.
func payloadOf(req queue.EnqueueRequest, dst any) error {
	raw, err := json.Marshal(req.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

type fakeStore struct {
	mu            sync.Mutex
	statusUpdates map[uuid.UUID]string
	artifacts     []*models.Artifact
	saveAnalysis  func(store.SaveAnalysisParams) (bool, error)
	saved         []store.SaveAnalysisParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{statusUpdates: map[uuid.UUID]string{}}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateCall(context.Context, *models.Call) error { return nil }

func (f *fakeStore) GetCall(context.Context, uuid.UUID) (*models.Call, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateCallStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[id] = status
	return nil
}

func (f *fakeStore) RegisterArtifact(_ context.Context, artifact *models.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, artifact)
	return nil
}

func (f *fakeStore) ListArtifacts(context.Context, uuid.UUID) ([]*models.Artifact, error) {
	return nil, nil
}

func (f *fakeStore) SaveAnalysis(_ context.Context, params store.SaveAnalysisParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, params)
	if f.saveAnalysis != nil {
		return f.saveAnalysis(params)
	}
	return true, nil
}

func (f *fakeStore) GetAnalysisByPath(context.Context, string) (*models.CallAnalysis, error) {
	return nil, store.ErrNotFound
}

type fakeTranscoder struct {
	mu       sync.Mutex
	mp3Calls int
	oggCalls int
	fail     error
}

func (f *fakeTranscoder) copy(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeTranscoder) ExtractMP3(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mp3Calls++
	if f.fail != nil {
		return f.fail
	}
	return f.copy(src, dst)
}

func (f *fakeTranscoder) ConvertOggOpus(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oggCalls++
	if f.fail != nil {
		return f.fail
	}
	return f.copy(src, dst)
}

type fakeSpeech struct {
	startFn  func(audioURI string) (string, error)
	statusFn func(operationID string) (speech.OperationStatus, error)
	fetchFn  func(operationID string) ([]speech.Chunk, error)

	startCalls int
}

func (f *fakeSpeech) Start(_ context.Context, audioURI string) (string, error) {
	f.startCalls++
	if f.startFn != nil {
		return f.startFn(audioURI)
	}
	return "op-test", nil
}

func (f *fakeSpeech) Status(_ context.Context, operationID string) (speech.OperationStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(operationID)
	}
	return speech.OperationStatus{Done: true}, nil
}

func (f *fakeSpeech) FetchResult(_ context.Context, operationID string) ([]speech.Chunk, error) {
	if f.fetchFn != nil {
		return f.fetchFn(operationID)
	}
	return nil, nil
}
