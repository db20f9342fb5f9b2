package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
	"pitch-recorder/evaluation"
)

var validResult = dto.WebhookResult{
	"input":  "1\n00:00:01,000 --> 00:00:03,000\nWelcome to our pitch.",
	"output": "Strong opening.",
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEvaluationService(repo *fakeRepo, storage *fakeStorage, pub *fakePublisher) *evaluationService {
	s := &evaluationService{now: func() time.Time { return fixedNow }}
	if repo != nil {
		s.repo = repo
	}
	if storage != nil {
		s.storage = storage
	}
	if pub != nil {
		s.publisher = pub
	}
	return s
}

func testSegment() dto.Segment {
	return dto.Segment{ID: "seg-1", Audio: []byte("audio"), MimeType: "audio/ogg;codecs=opus", StartSlide: 2, EndSlide: 4, Audience: "investors"}
}

func TestRecord_AllSinks(t *testing.T) {
	repo, storage, pub := &fakeRepo{}, newFakeStorage(), &fakePublisher{}
	s := newTestEvaluationService(repo, storage, pub)

	require.NoError(t, s.Record(context.Background(), testSegment(), validResult))

	assert.Equal(t, []byte("audio"), storage.objects["segments/seg-1/audio.webm"])
	assert.Equal(t, "audio/ogg;codecs=opus", storage.types["segments/seg-1/audio.webm"])
	var archived map[string]any
	require.NoError(t, json.Unmarshal(storage.objects["segments/seg-1/result.json"], &archived))
	assert.Equal(t, "Strong opening.", archived["output"])

	require.Len(t, repo.saved, 1)
	row := repo.saved[0]
	assert.Equal(t, "seg-1", row.ID)
	assert.Equal(t, 2, row.StartSlide)
	assert.Equal(t, 4, row.EndSlide)
	assert.Equal(t, "investors", row.Audience)
	assert.Equal(t, "Welcome to our pitch.", row.Transcript)
	assert.Equal(t, "segments/seg-1/audio.webm", row.AudioObject)
	assert.Equal(t, fixedNow, row.CreatedAt)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, constant.EvaluationCompletedRoutingKey, pub.messages[0].routingKey)
	msg, ok := pub.messages[0].payload.(dto.EvaluationCompletedMessage)
	require.True(t, ok)
	assert.Equal(t, "seg-1", msg.SegmentId)
	assert.Equal(t, "Strong opening.", msg.Output)
	assert.Equal(t, fixedNow, msg.CompletedAt)
}

func TestRecord_InvalidResultTouchesNoSink(t *testing.T) {
	repo, storage, pub := &fakeRepo{}, newFakeStorage(), &fakePublisher{}
	s := newTestEvaluationService(repo, storage, pub)

	err := s.Record(context.Background(), testSegment(), dto.WebhookResult{"input": "only input"})

	var vErr *evaluation.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, storage.objects)
	assert.Empty(t, repo.saved)
	assert.Empty(t, pub.messages)
}

func TestRecord_StorageFailureStillPersists(t *testing.T) {
	repo, storage, pub := &fakeRepo{}, newFakeStorage(), &fakePublisher{}
	storage.putErr = errors.New("bucket unavailable")
	s := newTestEvaluationService(repo, storage, pub)

	err := s.Record(context.Background(), testSegment(), validResult)

	assert.ErrorContains(t, err, "bucket unavailable")
	require.Len(t, repo.saved, 1)
	assert.Empty(t, repo.saved[0].AudioObject)
	assert.Len(t, pub.messages, 1)
}

func TestRecord_NoSinksConfigured(t *testing.T) {
	s := NewEvaluationService(nil, nil, nil)
	assert.NoError(t, s.Record(context.Background(), testSegment(), validResult))
}

func TestRecord_DefaultsAudioContentType(t *testing.T) {
	storage := newFakeStorage()
	s := newTestEvaluationService(nil, storage, nil)
	seg := testSegment()
	seg.MimeType = ""

	require.NoError(t, s.Record(context.Background(), seg, validResult))
	assert.Equal(t, "audio/webm", storage.types["segments/seg-1/audio.webm"])
}
