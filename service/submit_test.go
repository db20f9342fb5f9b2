package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pitch-recorder/queue"
)

func TestSubmit_EnqueuesAndRecordsOnComplete(t *testing.T) {
	q, repo := &fakeQueue{}, &fakeRepo{}
	s := NewSegmentSubmitter(q, newTestEvaluationService(repo, nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(ctx, testSegment()))
	cancel()

	require.Len(t, q.segments, 1)
	assert.Equal(t, "seg-1", q.segments[0].ID)

	q.callbacks[0].OnComplete(validResult)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "seg-1", repo.saved[0].ID)
}

func TestSubmit_OnErrorDoesNotRecord(t *testing.T) {
	q, repo := &fakeQueue{}, &fakeRepo{}
	s := NewSegmentSubmitter(q, newTestEvaluationService(repo, nil, nil))

	require.NoError(t, s.Submit(context.Background(), testSegment()))
	q.callbacks[0].OnError(&queue.TerminalUploadError{SegmentID: "seg-1", MaxRetries: 3, LastError: "boom"})
	assert.Empty(t, repo.saved)
}

func TestSubmit_PropagatesQueueRejection(t *testing.T) {
	q := &fakeQueue{err: queue.ErrDuplicateSegment}
	s := NewSegmentSubmitter(q, nil)

	assert.ErrorIs(t, s.Submit(context.Background(), testSegment()), queue.ErrDuplicateSegment)
}
