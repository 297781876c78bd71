package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestMap_SetGet(t *testing.T) {
	m := New[int]()

	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}
}

func TestMap_SetIfAbsent(t *testing.T) {
	m := New[string]()

	if !m.SetIfAbsent("k", "first") {
		t.Error("first SetIfAbsent should succeed")
	}
	if m.SetIfAbsent("k", "second") {
		t.Error("second SetIfAbsent should fail")
	}
	if v, _ := m.Get("k"); v != "first" {
		t.Errorf("value = %q, want first", v)
	}
}

func TestMap_Pop(t *testing.T) {
	m := New[int]()
	m.Set("k", 7)

	v, ok := m.Pop("k")
	if !ok || v != 7 {
		t.Errorf("Pop = %d, %v; want 7, true", v, ok)
	}
	if m.Has("k") {
		t.Error("key should be gone after Pop")
	}
	if _, ok := m.Pop("k"); ok {
		t.Error("Pop on missing key should report absent")
	}
}

func TestMap_Update(t *testing.T) {
	m := New[int]()

	m.Update("n", func(v int, exists bool) int {
		if exists {
			t.Error("first Update should see absent key")
		}
		return 1
	})
	got := m.Update("n", func(v int, exists bool) int {
		return v + 1
	})
	if got != 2 {
		t.Errorf("Update result = %d, want 2", got)
	}
}

func TestMap_Range(t *testing.T) {
	m := New[int]()
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("key-%d", i), i)
	}

	seen := 0
	m.Range(func(_ string, _ int) bool {
		seen++
		return true
	})
	if seen != 100 {
		t.Errorf("Range visited %d items, want 100", seen)
	}

	// Early stop
	seen = 0
	m.Range(func(_ string, _ int) bool {
		seen++
		return seen < 10
	})
	if seen != 10 {
		t.Errorf("Range with early stop visited %d, want 10", seen)
	}
}

func TestMap_InvalidShardCount(t *testing.T) {
	m := NewWithShards[int](7) // not a power of 2
	if got := len(m.shards); got != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", got, DefaultShardCount)
	}
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", i%50)
				m.Update(key, func(v int, _ bool) int { return v + 1 })
				m.Get(key)
			}
		}(g)
	}
	wg.Wait()

	total := 0
	m.Range(func(_ string, v int) bool {
		total += v
		return true
	})
	if total != 8*200 {
		t.Errorf("total updates = %d, want %d", total, 8*200)
	}
}
