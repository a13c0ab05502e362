package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Event names a high-frequency occurrence that is counted instead of logged
// one record at a time.
type Event string

// Events emitted by the daemon's hot paths.
const (
	// EventLineIgnored is a control-mode line no pattern matched.
	EventLineIgnored Event = "line_ignored"
	// EventReadRetry is an empty poll of an attached stream. Labelled by session.
	EventReadRetry Event = "read_retry"
	// EventRequest is a notification handled by the listener. Labelled by kind.
	EventRequest Event = "request"
	// EventReadError is a notification connection that failed before a full line.
	EventReadError Event = "read_error"
)

// maxLabels bounds the per-event breakdown; further labels count as "other".
const maxLabels = 16

const otherLabel = "other"

// aggregateKey uniquely identifies an event type for batching.
type aggregateKey struct {
	Component string
	Event     Event
}

// aggregateEntry tracks a batched event's total and its per-label counts.
type aggregateEntry struct {
	Count    int64
	ByLabel  map[string]int64
	LastSeen time.Time
}

// Aggregator batches high-frequency events and emits one event_summary per
// (component, event) every interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[aggregateKey]*aggregateEntry
	since   time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// If logger is nil, recorded events are silently dropped.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[aggregateKey]*aggregateEntry),
		since:    time.Now(),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.flushLoop()
}

// Stop flushes remaining entries and stops the background goroutine.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.flush() // final flush
	})
}

// Record counts one occurrence of ev. label may be empty.
func (a *Aggregator) Record(component string, ev Event, label string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := aggregateKey{Component: component, Event: ev}
	entry, ok := a.entries[key]
	if !ok {
		entry = &aggregateEntry{ByLabel: make(map[string]int64)}
		a.entries[key] = entry
	}
	entry.Count++
	entry.LastSeen = time.Now()
	if label == "" {
		return
	}
	if _, known := entry.ByLabel[label]; !known && len(entry.ByLabel) >= maxLabels {
		label = otherLabel
	}
	entry.ByLabel[label]++
}

func (a *Aggregator) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.entries) == 0 {
		a.since = time.Now()
		a.mu.Unlock()
		return
	}
	// Swap out entries under lock
	entries := a.entries
	since := a.since
	a.entries = make(map[aggregateKey]*aggregateEntry)
	a.since = time.Now()
	a.mu.Unlock()

	if a.logger == nil {
		return
	}

	keys := make([]aggregateKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Component != keys[j].Component {
			return keys[i].Component < keys[j].Component
		}
		return keys[i].Event < keys[j].Event
	})

	for _, key := range keys {
		entry := entries[key]
		attrs := []any{
			slog.String("component", key.Component),
			slog.String("event", string(key.Event)),
			slog.Int64("count", entry.Count),
			slog.Duration("span", entry.LastSeen.Sub(since)),
		}
		if len(entry.ByLabel) > 0 {
			attrs = append(attrs, slog.Any("by", entry.ByLabel))
		}
		a.logger.Info("event_summary", attrs...)
	}
}
