// Package engine serializes every mutation of the tree and every window
// rename through one goroutine.
package engine

import (
	"context"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/classify"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
	"github.com/tchow-twistedxcom/tmux-renamer/internal/tree"
)

// DefaultQueueSize is the queue capacity when none is configured.
const DefaultQueueSize = 100

// Instruction is a unit of work for the Serializer.
type Instruction interface {
	kind() string
}

// ProcessLine asks the serializer to classify one control-mode line.
type ProcessLine struct {
	Line string
}

// RemovePane drops a pane from the tree.
type RemovePane struct {
	Pane tmux.PaneID
}

// Refresh rescans the topology and rebuilds the tree.
type Refresh struct{}

// ReloadPatterns replaces the classifier's pattern list.
type ReloadPatterns struct {
	Patterns []classify.Pattern
}

// Snapshot asks for a copy of the tree. Reply should be buffered.
type Snapshot struct {
	Reply chan<- tree.Snapshot
}

func (ProcessLine) kind() string    { return "process_line" }
func (RemovePane) kind() string     { return "remove_pane" }
func (Refresh) kind() string        { return "refresh" }
func (ReloadPatterns) kind() string { return "reload_patterns" }
func (Snapshot) kind() string       { return "snapshot" }

// Queue is the bounded FIFO feeding the serializer. Any number of
// goroutines may push; only the serializer receives.
type Queue struct {
	ch chan Instruction
}

// NewQueue creates a queue holding up to size pending instructions.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Instruction, size)}
}

// Push enqueues in, blocking while the queue is full. It returns the
// context's error if ctx ends first.
func (q *Queue) Push(ctx context.Context, in Instruction) error {
	select {
	case q.ch <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of pending instructions.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// RequestSnapshot pushes a Snapshot instruction and waits for the reply.
func (q *Queue) RequestSnapshot(ctx context.Context) (tree.Snapshot, error) {
	reply := make(chan tree.Snapshot, 1)
	if err := q.Push(ctx, Snapshot{Reply: reply}); err != nil {
		return tree.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return tree.Snapshot{}, ctx.Err()
	}
}
