package store

import (
	"context"
	"testing"
)

func TestMemory_PutGetExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if exists, err := m.Exists(ctx, "potatosession"); err != nil || exists {
		t.Fatalf("expected absent key, got exists=%v err=%v", exists, err)
	}

	if err := m.Put(ctx, "potatosession", `{"session_token":"t"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, err := m.Exists(ctx, "potatosession")
	if err != nil || !exists {
		t.Fatalf("expected key to exist, got exists=%v err=%v", exists, err)
	}

	val, ok, err := m.Get(ctx, "potatosession")
	if err != nil || !ok || val != `{"session_token":"t"}` {
		t.Fatalf("unexpected Get result: val=%q ok=%v err=%v", val, ok, err)
	}
}

func TestMemory_GetAbsentKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	val, ok, err := m.Get(ctx, "missing")
	if err != nil || ok || val != "" {
		t.Fatalf("expected absent-key zero value, got val=%q ok=%v err=%v", val, ok, err)
	}
}

func TestMemory_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "k", "first")
	_ = m.Put(ctx, "k", "second")

	val, _, _ := m.Get(ctx, "k")
	if val != "second" {
		t.Fatalf("expected last write to win, got %q", val)
	}
}
