package allocator

import (
	"context"
	"testing"

	"github.com/linkupdev/linkup-go/internal/namegen"
	"github.com/linkupdev/linkup-go/internal/session"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeStore) Put(_ context.Context, key, value string) error {
	f.data[key] = value
	return nil
}

func testSession(t *testing.T, token string) *session.Session {
	t.Helper()
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: token,
		Services:     []session.StorableService{{Name: "frontend", Location: "http://localhost:3000"}},
		Domains:      []session.StorableDomain{{Domain: "example.com", DefaultService: "frontend"}},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	return sess
}

func TestAllocate_GeneratesFreshNameWhenNoDesiredName(t *testing.T) {
	store := newFakeStore()
	sess := testSession(t, "tok-1")

	name, err := Allocate(context.Background(), store, namegen.Animal, "", sess)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if name == "" {
		t.Fatal("expected non-empty allocated name")
	}
	if _, ok := store.data[name]; !ok {
		t.Fatalf("expected session stored under %q", name)
	}
}

func TestAllocate_ReusesDesiredNameWhenTokenMatches(t *testing.T) {
	store := newFakeStore()
	sess := testSession(t, "tok-shared")

	first, err := Allocate(context.Background(), store, namegen.Animal, "potatosession", sess)
	if err != nil {
		t.Fatalf("Allocate (first): %v", err)
	}
	if first != "potatosession" {
		t.Fatalf("expected first allocation to use desired name, got %q", first)
	}

	second, err := Allocate(context.Background(), store, namegen.Animal, "potatosession", sess)
	if err != nil {
		t.Fatalf("Allocate (second): %v", err)
	}
	if second != "potatosession" {
		t.Fatalf("expected reuse of desired name, got %q", second)
	}
}

func TestAllocate_GeneratesFreshNameWhenTokenMismatches(t *testing.T) {
	store := newFakeStore()

	firstSess := testSession(t, "tok-a")
	first, err := Allocate(context.Background(), store, namegen.Animal, "potatosession", firstSess)
	if err != nil {
		t.Fatalf("Allocate (first): %v", err)
	}
	if first != "potatosession" {
		t.Fatalf("expected first allocation to use desired name, got %q", first)
	}

	secondSess := testSession(t, "tok-b")
	second, err := Allocate(context.Background(), store, namegen.Animal, "potatosession", secondSess)
	if err != nil {
		t.Fatalf("Allocate (second): %v", err)
	}
	if second == "potatosession" {
		t.Fatalf("expected fresh name on token mismatch, got reused %q", second)
	}
}
