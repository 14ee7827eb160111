// Package feed holds the client-side cache of task records delivered by
// live queries. Each query writes into its own named stream; the feed
// merges the streams into one deduplicated view and notifies subscribers
// whenever that view changes.
package feed

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

// Snapshot is the merged view handed to listeners.
type Snapshot struct {
	Tasks   []*models.Task
	Loaded  bool
	Version uint64
}

// Listener receives every new snapshot.
type Listener func(Snapshot)

type subscription struct {
	id       uint64
	listener Listener
}

// Feed is safe for concurrent use. Listeners are called synchronously on
// the goroutine that delivered the update, after the feed lock is released.
type Feed struct {
	mu      sync.RWMutex
	order   []string
	streams map[string][]*models.Task
	merged  []*models.Task
	loaded  bool
	version uint64

	subsMu sync.RWMutex
	subs   []subscription
	nextID uint64

	logger *slog.Logger
}

func New(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		streams: make(map[string][]*models.Task),
		logger:  logger,
	}
}

// Update replaces the records of stream and publishes the new merged view.
// The first update on any stream marks the feed as loaded.
func (f *Feed) Update(stream string, records []*models.Task) {
	f.mu.Lock()
	if _, ok := f.streams[stream]; !ok {
		f.order = append(f.order, stream)
	}
	f.streams[stream] = append([]*models.Task(nil), records...)
	f.loaded = true
	snap := f.rebuildLocked()
	f.mu.Unlock()

	f.publish(snap)
}

// Remove drops a stream and its records from the merged view.
func (f *Feed) Remove(stream string) {
	f.mu.Lock()
	if _, ok := f.streams[stream]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.streams, stream)
	for i, name := range f.order {
		if name == stream {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	snap := f.rebuildLocked()
	f.mu.Unlock()

	f.publish(snap)
}

func (f *Feed) rebuildLocked() Snapshot {
	streams := make([][]*models.Task, 0, len(f.order))
	for _, name := range f.order {
		streams = append(streams, f.streams[name])
	}
	f.merged = visibility.Merge(streams...)
	f.version++
	return Snapshot{Tasks: f.merged, Loaded: f.loaded, Version: f.version}
}

// Tasks returns the current merged view.
func (f *Feed) Tasks() []*models.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*models.Task(nil), f.merged...)
}

// Loaded reports whether any stream has delivered data yet.
func (f *Feed) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}

// Version increases by one with every published view.
func (f *Feed) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Snapshot returns the current merged view with its version.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Snapshot{
		Tasks:   append([]*models.Task(nil), f.merged...),
		Loaded:  f.loaded,
		Version: f.version,
	}
}

// Subscribe registers listener and returns a function that removes it.
func (f *Feed) Subscribe(listener Listener) (unsubscribe func()) {
	f.subsMu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscription{id: id, listener: listener})
	f.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subsMu.Lock()
			defer f.subsMu.Unlock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// SubscriberCount returns the number of registered listeners.
func (f *Feed) SubscriberCount() int {
	f.subsMu.RLock()
	defer f.subsMu.RUnlock()
	return len(f.subs)
}

func (f *Feed) publish(snap Snapshot) {
	f.subsMu.RLock()
	subs := make([]subscription, len(f.subs))
	copy(subs, f.subs)
	f.subsMu.RUnlock()

	for _, s := range subs {
		f.safeCall(s.listener, snap)
	}
}

func (f *Feed) safeCall(listener Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("feed listener panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	listener(snap)
}
