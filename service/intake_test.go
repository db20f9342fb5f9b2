package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pitch-recorder/dto"
	"pitch-recorder/queue"
)

func intakeMessage() dto.SegmentMessage {
	return dto.SegmentMessage{
		SegmentId:  "remote-1",
		ObjectPath: "uploads/remote-1.ogg",
		StartSlide: 3,
		EndSlide:   5,
		Audience:   "board",
	}
}

func TestProcessSegmentMessage_Submits(t *testing.T) {
	storage, sub := newFakeStorage(), &fakeSubmitter{}
	storage.objects["uploads/remote-1.ogg"] = []byte("ogg-bytes")
	s := NewIntakeService(storage, sub)

	require.NoError(t, s.ProcessSegmentMessage(context.Background(), intakeMessage()))

	require.Len(t, sub.segments, 1)
	seg := sub.segments[0]
	assert.Equal(t, "remote-1", seg.ID)
	assert.Equal(t, []byte("ogg-bytes"), seg.Audio)
	assert.Equal(t, "audio/ogg", seg.MimeType)
	assert.Equal(t, 3, seg.StartSlide)
	assert.Equal(t, 5, seg.EndSlide)
	assert.Equal(t, "board", seg.Audience)
}

func TestProcessSegmentMessage_InvalidMessageIsNonRetryable(t *testing.T) {
	s := NewIntakeService(newFakeStorage(), &fakeSubmitter{})

	msg := intakeMessage()
	msg.ObjectPath = ""
	assert.ErrorIs(t, s.ProcessSegmentMessage(context.Background(), msg), ErrNonRetryable)

	msg = intakeMessage()
	msg.StartSlide = 0
	assert.ErrorIs(t, s.ProcessSegmentMessage(context.Background(), msg), ErrNonRetryable)
}

func TestProcessSegmentMessage_MissingObjectIsNonRetryable(t *testing.T) {
	s := NewIntakeService(newFakeStorage(), &fakeSubmitter{})

	err := s.ProcessSegmentMessage(context.Background(), intakeMessage())
	assert.ErrorIs(t, err, ErrNonRetryable)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestProcessSegmentMessage_EmptyObjectIsNonRetryable(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["uploads/remote-1.ogg"] = []byte{}
	s := NewIntakeService(storage, &fakeSubmitter{})

	assert.ErrorIs(t, s.ProcessSegmentMessage(context.Background(), intakeMessage()), ErrNonRetryable)
}

func TestProcessSegmentMessage_TransportErrorIsRetryable(t *testing.T) {
	storage := newFakeStorage()
	storage.getErr = errors.New("connection refused")
	s := NewIntakeService(storage, &fakeSubmitter{})

	err := s.ProcessSegmentMessage(context.Background(), intakeMessage())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNonRetryable)
}

func TestProcessSegmentMessage_RedeliveredSegmentIsAccepted(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["uploads/remote-1.ogg"] = []byte("ogg-bytes")
	s := NewIntakeService(storage, &fakeSubmitter{err: queue.ErrDuplicateSegment})

	assert.NoError(t, s.ProcessSegmentMessage(context.Background(), intakeMessage()))
}

func TestMimeTypeOf(t *testing.T) {
	assert.Equal(t, "audio/webm", mimeTypeOf("a/b.webm"))
	assert.Equal(t, "audio/mp4", mimeTypeOf("a/b.M4A"))
	assert.Equal(t, "audio/webm", mimeTypeOf("a/b"))
}
