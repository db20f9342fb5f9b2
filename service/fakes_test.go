package service

import (
	"context"
	"sync"

	"gorm.io/gorm"
	"pitch-recorder/dto"
	"pitch-recorder/entities"
	"pitch-recorder/queue"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	getErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[objectName] = data
	f.types[objectName] = contentType
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, objectName string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[objectName]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

type fakeRepo struct {
	saved   []*entities.Evaluation
	saveErr error
}

func (f *fakeRepo) SaveEvaluation(ctx context.Context, evaluation *entities.Evaluation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, evaluation)
	return nil
}

func (f *fakeRepo) FindEvaluationById(ctx context.Context, id string) (*entities.Evaluation, error) {
	for _, e := range f.saved {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListEvaluations(ctx context.Context, limit int) ([]*entities.Evaluation, error) {
	return f.saved, nil
}

type published struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{routingKey: routingKey, payload: payload})
	return nil
}

type fakeQueue struct {
	segments  []dto.Segment
	callbacks []queue.Callbacks
	err       error
}

func (f *fakeQueue) AddSegment(seg dto.Segment, cb queue.Callbacks) error {
	if f.err != nil {
		return f.err
	}
	f.segments = append(f.segments, seg)
	f.callbacks = append(f.callbacks, cb)
	return nil
}

type fakeSubmitter struct {
	segments []dto.Segment
	err      error
}

func (f *fakeSubmitter) Submit(ctx context.Context, seg dto.Segment) error {
	if f.err != nil {
		return f.err
	}
	f.segments = append(f.segments, seg)
	return nil
}
