package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueue_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultQueueSize, NewQueue(0).Cap())
	assert.Equal(t, 3, NewQueue(3).Cap())
}

func TestQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Push(context.Background(), Refresh{}))
	assert.Equal(t, 1, q.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Push(ctx, Refresh{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, ProcessLine{Line: "a"}))
	require.NoError(t, q.Push(ctx, RemovePane{Pane: 1}))
	require.NoError(t, q.Push(ctx, Refresh{}))

	assert.Equal(t, ProcessLine{Line: "a"}, <-q.ch)
	assert.Equal(t, RemovePane{Pane: 1}, <-q.ch)
	assert.Equal(t, Refresh{}, <-q.ch)
}
