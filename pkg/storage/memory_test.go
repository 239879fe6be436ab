package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func snapshot(series, runID string, at time.Time) Snapshot {
	return Snapshot{
		RunID:       runID,
		Series:      series,
		GeneratedAt: at,
		Times:       []float64{0, 1, 2, 3},
		Observed:    []float64{4, 7},
		Nobs:        2,
		Mean:        []float64{4, 7, 9.5, 12},
		Quantiles: map[string][]float64{
			"p2.5":  {4, 7, 5, 3},
			"p97.5": {4, 7, 15, 22},
		},
		NumDraws:    400,
		Diagnostics: Diagnostics{Sampler: "nuts", Chains: 1, AcceptRate: 0.82},
	}
}

func TestMemoryStore_PutAndGetLatest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Put(ctx, snapshot("flu", "run-1", now)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, snapshot("flu", "run-2", now.Add(time.Minute))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := store.GetLatest(ctx, "flu")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}
	if got.RunID != "run-2" {
		t.Errorf("RunID = %q, want run-2", got.RunID)
	}
	if got.Nobs != 2 || len(got.Quantiles["p97.5"]) != 4 {
		t.Errorf("unexpected snapshot contents: %+v", got)
	}

	// earlier runs stay reachable by ID
	old, found, err := store.GetRun(ctx, "run-1")
	if err != nil || !found {
		t.Fatalf("GetRun(run-1) = found %v, err %v", found, err)
	}
	if old.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", old.RunID)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, found, err := store.GetLatest(ctx, "missing"); err != nil || found {
		t.Errorf("GetLatest = found %v, err %v; want not found", found, err)
	}
	if _, found, err := store.GetRun(ctx, "missing"); err != nil || found {
		t.Errorf("GetRun = found %v, err %v; want not found", found, err)
	}
}

func TestMemoryStore_PutValidation(t *testing.T) {
	tests := []struct {
		name   string
		series string
		runID  string
	}{
		{"empty series", "", "run-1"},
		{"empty run id", "flu", ""},
		{"series with colon", "flu:a", "run-1"},
		{"series with space", "flu a", "run-1"},
		{"run id with slash", "flu", "a/b"},
	}

	store := NewMemoryStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Put(context.Background(), snapshot(tt.series, tt.runID, time.Now()))
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("Put error = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after rejected puts, want 0", store.Len())
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, snapshot("flu", "run-1", time.Now())); !errors.Is(err, context.Canceled) {
		t.Errorf("Put error = %v, want context.Canceled", err)
	}
	if _, _, err := store.GetLatest(ctx, "flu"); !errors.Is(err, context.Canceled) {
		t.Errorf("GetLatest error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, snapshot("flu", "run-1", time.Now()))

	if !store.Delete("run-1") {
		t.Error("Delete should report an existing run")
	}
	if store.Delete("run-1") {
		t.Error("second Delete should report a missing run")
	}
	if _, found, _ := store.GetLatest(ctx, "flu"); found {
		t.Error("latest pointer should be removed with its run")
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Hour, time.Hour)
	defer store.Stop()

	ctx := context.Background()
	now := time.Now()
	_ = store.Put(ctx, snapshot("flu", "old", now.Add(-2*time.Hour)))
	_ = store.Put(ctx, snapshot("covid", "fresh", now))

	store.cleanup(now)

	if _, found, _ := store.GetRun(ctx, "old"); found {
		t.Error("expired run should be removed")
	}
	if _, found, _ := store.GetLatest(ctx, "flu"); found {
		t.Error("expired series should be removed")
	}
	if _, found, _ := store.GetLatest(ctx, "covid"); !found {
		t.Error("fresh series should be kept")
	}
}

func TestMemoryStore_CleanupKeepsNewerLatest(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Hour, time.Hour)
	defer store.Stop()

	ctx := context.Background()
	now := time.Now()
	_ = store.Put(ctx, snapshot("flu", "old", now.Add(-2*time.Hour)))
	_ = store.Put(ctx, snapshot("flu", "new", now))

	store.cleanup(now)

	got, found, _ := store.GetLatest(ctx, "flu")
	if !found || got.RunID != "new" {
		t.Errorf("GetLatest = %q found %v, want new", got.RunID, found)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryStore_TTLBackground(t *testing.T) {
	store := NewMemoryStoreWithTTL(50*time.Millisecond, 10*time.Millisecond)
	defer store.Stop()

	_ = store.Put(context.Background(), snapshot("flu", "run-1", time.Now()))

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("snapshot was not expired by the cleanup goroutine")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemoryStore_StopIdempotent(t *testing.T) {
	NewMemoryStore().Stop()

	store := NewMemoryStoreWithTTL(time.Minute, time.Minute)
	store.Stop()
	store.Stop()
}

func TestMemoryStore_TTLMustBePositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero TTL")
		}
	}()
	NewMemoryStoreWithTTL(0, time.Minute)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Put(ctx, snapshot(fmt.Sprintf("series-%d", i%4), fmt.Sprintf("run-%d", i), time.Now()))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _, _ = store.GetLatest(ctx, fmt.Sprintf("series-%d", i%4))
		}(i)
	}
	wg.Wait()

	if store.Len() != 20 {
		t.Errorf("Len() = %d, want 20", store.Len())
	}
}
