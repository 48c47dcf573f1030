package namegen

import (
	"context"
	"strings"
	"testing"
)

type fakeStore struct {
	exists map[string]bool
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	return f.exists[key], nil
}

func TestAllocateUnique_Animal(t *testing.T) {
	store := &fakeStore{exists: map[string]bool{}}
	name, err := AllocateUnique(context.Background(), Animal, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name == "" {
		t.Fatal("expected non-empty name")
	}
}

func TestAllocateUnique_FallsBackToSixCharAfterCollisions(t *testing.T) {
	store := &fakeStore{exists: map[string]bool{}}
	for _, adj := range shortAdjectives {
		for _, an := range animals {
			store.exists[adj+"-"+an] = true
		}
	}

	name, err := AllocateUnique(context.Background(), Animal, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(name) != 6 {
		t.Fatalf("expected a six-char fallback name, got %q", name)
	}
}

func TestAllocateUnique_SixChar(t *testing.T) {
	store := &fakeStore{exists: map[string]bool{}}
	name, err := AllocateUnique(context.Background(), SixChar, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(name) != 6 {
		t.Fatalf("expected length 6, got %q (%d)", name, len(name))
	}
	for _, r := range name {
		if !strings.ContainsRune(sixCharAlphabet, r) {
			t.Fatalf("unexpected rune %q in generated name %q", r, name)
		}
	}
}
