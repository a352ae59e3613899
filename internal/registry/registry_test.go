package registry

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_SetGetDelete(t *testing.T) {
	r := New()

	if _, ok := r.Get("c1"); ok {
		t.Fatal("Empty registry should not contain c1")
	}

	r.Set("c1", "Ana")
	if name, ok := r.Get("c1"); !ok || name != "Ana" {
		t.Errorf("Expected Ana, got %q (ok=%v)", name, ok)
	}

	// duplicate join overwrites
	r.Set("c1", "Ana Maria")
	if name, _ := r.Get("c1"); name != "Ana Maria" {
		t.Errorf("Expected overwrite to Ana Maria, got %q", name)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", r.Len())
	}

	name, ok := r.Delete("c1")
	if !ok || name != "Ana Maria" {
		t.Errorf("Delete returned %q (ok=%v)", name, ok)
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("Entry should be removed after Delete")
	}
	if _, ok := r.Delete("c1"); ok {
		t.Error("Second Delete should report missing entry")
	}
}

func TestRegistry_NamesNeedNotBeUnique(t *testing.T) {
	r := New()
	r.Set("c1", "Luis")
	r.Set("c2", "Luis")

	if r.Len() != 2 {
		t.Errorf("Expected 2 entries for duplicate names, got %d", r.Len())
	}
}

// TestRegistry_Concurrent 並行アクセスでデータ競合が起きないこと
func TestRegistry_Concurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			r.Set(id, "user")
			r.Get(id)
			if i%2 == 0 {
				r.Delete(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Errorf("Expected 25 entries, got %d", r.Len())
	}
}
