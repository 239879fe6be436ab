package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. It is safe for concurrent use.
//
// With a TTL, a background goroutine removes snapshots older than the TTL;
// call Stop to end it. Use RedisStore when several forecaster instances
// must share results.
type MemoryStore struct {
	mu     sync.RWMutex
	latest map[string]string // series -> run ID
	runs   map[string]Snapshot

	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

// NewMemoryStore creates a store that keeps snapshots until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		latest: make(map[string]string),
		runs:   make(map[string]Snapshot),
	}
}

// NewMemoryStoreWithTTL creates a store that expires snapshots older than ttl,
// checking every cleanupInterval (one minute if <= 0).
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := NewMemoryStore()
	s.ttl = ttl
	s.cleanupTicker = time.NewTicker(cleanupInterval)
	s.stopCleanup = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go s.runCleanup()
	return s
}

// Stop ends the cleanup goroutine. It is safe to call more than once and on
// stores without TTL.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
		s.cleanupTicker.Stop()
	})
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range s.runs {
		if now.Sub(snap.GeneratedAt) > s.ttl {
			delete(s.runs, id)
			if s.latest[snap.Series] == id {
				delete(s.latest, snap.Series)
			}
		}
	}
}

// Put stores a snapshot and makes it the latest for its series.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := validate(snapshot); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[snapshot.RunID] = snapshot
	s.latest[snapshot.Series] = snapshot.RunID
	return nil
}

// GetLatest returns the most recent snapshot of a series.
func (s *MemoryStore) GetLatest(ctx context.Context, series string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.latest[series]
	if !ok {
		return Snapshot{}, false, nil
	}
	snap, ok := s.runs[id]
	return snap, ok, nil
}

// GetRun returns the snapshot of a run.
func (s *MemoryStore) GetRun(ctx context.Context, runID string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.runs[runID]
	return snap, ok, nil
}

// Len returns the number of stored runs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Delete removes a run. It reports whether the run existed.
func (s *MemoryStore) Delete(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, existed := s.runs[runID]
	delete(s.runs, runID)
	if existed && s.latest[snap.Series] == runID {
		delete(s.latest, snap.Series)
	}
	return existed
}
