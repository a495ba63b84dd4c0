package session

import (
	"errors"
	"sync"
	"testing"
)

func TestMemoryStorePutGetClear(t *testing.T) {
	s := NewMemoryStore()
	key := Key{UserID: 1, Flow: FlowTraining}

	if _, ok := s.Get(key); ok {
		t.Fatal("expected empty store")
	}

	v1 := s.Put(key, "a")
	rec, ok := s.Get(key)
	if !ok {
		t.Fatal("expected record after Put")
	}
	if rec.Value != "a" || rec.Version != v1 {
		t.Fatalf("got %+v, want value=a version=%d", rec, v1)
	}

	v2 := s.Put(key, "b")
	if v2 <= v1 {
		t.Fatalf("version did not advance: %d then %d", v1, v2)
	}

	s.Clear(key)
	if _, ok := s.Get(key); ok {
		t.Fatal("expected record gone after Clear")
	}
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	s := NewMemoryStore()
	key := Key{UserID: 7, Flow: FlowAuthoring}

	v1 := s.Put(key, "draft")

	v2, err := s.CompareAndSwap(key, "draft2", v1)
	if err != nil {
		t.Fatalf("cas on current version: %v", err)
	}

	if _, err := s.CompareAndSwap(key, "stale", v1); !errors.Is(err, ErrConflict) {
		t.Fatalf("cas on stale version: got %v, want ErrConflict", err)
	}

	rec, _ := s.Get(key)
	if rec.Value != "draft2" || rec.Version != v2 {
		t.Fatalf("stale cas mutated record: %+v", rec)
	}

	if _, err := s.CompareAndSwap(Key{UserID: 8, Flow: FlowAuthoring}, "x", 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("cas on missing key: got %v, want ErrConflict", err)
	}
}

func TestMemoryStoreKeysIndependent(t *testing.T) {
	s := NewMemoryStore()
	a := Key{UserID: 1, Flow: FlowTraining}
	b := Key{UserID: 1, Flow: FlowBrowsing}

	s.Put(a, "t")
	s.Put(b, "b")
	s.Clear(a)

	if _, ok := s.Get(a); ok {
		t.Fatal("training key should be cleared")
	}
	if rec, ok := s.Get(b); !ok || rec.Value != "b" {
		t.Fatal("browsing key should be untouched")
	}
}

func TestMemoryStoreConcurrentPut(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			key := Key{UserID: id, Flow: FlowTraining}
			for j := 0; j < 50; j++ {
				s.Put(key, j)
			}
		}(int64(i))
	}
	wg.Wait()

	for i := int64(0); i < 32; i++ {
		rec, ok := s.Get(Key{UserID: i, Flow: FlowTraining})
		if !ok || rec.Value != 49 {
			t.Fatalf("user %d: got %+v", i, rec)
		}
	}
}
