package embedding

import (
	"reflect"
	"testing"
)

func TestLRUCacheEviction(t *testing.T) {
	cache := newLRUCache(2)
	cache.set("a", []float32{1})
	cache.set("b", []float32{2})

	// Touch "a" so "b" is the eviction candidate.
	if _, ok := cache.get("a"); !ok {
		t.Fatal("a should be cached")
	}
	cache.set("c", []float32{3})

	if _, ok := cache.get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := cache.get("a"); !ok || v[0] != 1 {
		t.Error("a should survive, it was used most recently before the insert")
	}
	if v, ok := cache.get("c"); !ok || v[0] != 3 {
		t.Error("c should be cached")
	}
	if cache.len() != 2 {
		t.Errorf("len = %d, want 2", cache.len())
	}
}

func TestLRUCacheOverwrite(t *testing.T) {
	cache := newLRUCache(2)
	cache.set("a", []float32{1})
	cache.set("a", []float32{9})
	if cache.len() != 1 {
		t.Fatalf("len = %d, want 1", cache.len())
	}
	v, ok := cache.get("a")
	if !ok || !reflect.DeepEqual(v, []float32{9}) {
		t.Errorf("get(a) = %v, want [9]", v)
	}
}

func TestLRUCacheMiss(t *testing.T) {
	cache := newLRUCache(4)
	if _, ok := cache.get("nope"); ok {
		t.Error("empty cache must miss")
	}
}
