package identity

import (
	"sync"
	"testing"
)

func TestNewHistoryID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := NewHistoryID()
		if err != nil {
			t.Fatalf("NewHistoryID failed: %v", err)
		}
		if id == "" {
			t.Fatal("empty history id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate history id after %d generations: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewHistoryID_UniqueConcurrent(t *testing.T) {
	const n = 1000

	var mu sync.Mutex
	ids := make(map[string]struct{}, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := NewHistoryID()
			if err != nil {
				t.Errorf("NewHistoryID failed: %v", err)
				return
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != n {
		t.Errorf("expected %d distinct ids, got %d", n, len(ids))
	}
}
