package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, _ := os.MkdirTemp("", "arthub-test")
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := "users/alice/folders/f1"

	if _, err := store.Get(ctx, path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, path, Doc{"name": "Lilies", "images": []string{"a:1"}}); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	got, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got["name"] != "Lilies" {
		t.Errorf("Expected name Lilies, got %v", got["name"])
	}

	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := store.Get(ctx, path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected document gone, got %v", err)
	}

	// Deleting again is fine
	if err := store.Delete(ctx, path); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, path := range []string{"", "users", "users/alice/folders", "users//folders/f1", "/users/a"} {
		if err := store.Set(ctx, path, Doc{}); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Set(%q): expected ErrInvalidPath, got %v", path, err)
		}
		if _, err := store.Get(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Get(%q): expected ErrInvalidPath, got %v", path, err)
		}
	}
}

func TestUpdateArraySetSemantics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := "users/alice/folders/f1"
	store.Set(ctx, path, Doc{"images": []string{}})

	store.Update(ctx, path, ArrayUnion("images", "a:1"))
	store.Update(ctx, path, ArrayUnion("images", "a:1"))
	store.Update(ctx, path, ArrayUnion("images", "b:2"))

	got, _ := store.Get(ctx, path)
	images := stringList(got["images"])
	if len(images) != 2 || images[0] != "a:1" || images[1] != "b:2" {
		t.Fatalf("Expected [a:1 b:2], got %v", images)
	}

	store.Update(ctx, path, ArrayRemove("images", "a:1"))
	store.Update(ctx, path, ArrayRemove("images", "a:1"))
	got, _ = store.Get(ctx, path)
	images = stringList(got["images"])
	if len(images) != 1 || images[0] != "b:2" {
		t.Errorf("Expected [b:2], got %v", images)
	}

	if err := store.Update(ctx, "users/alice/folders/missing", ArrayUnion("images", "x:1")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating missing doc, got %v", err)
	}
}

func TestConcurrentUnionsDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := "users/alice/folders/f1"
	store.Set(ctx, path, Doc{"images": []string{}})

	keys := []string{"a:1", "a:2", "a:3", "a:4", "a:5", "a:6"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(ctx, path, ArrayUnion("images", k))
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, path)
	if n := len(stringList(got["images"])); n != len(keys) {
		t.Errorf("Expected %d images, got %d", len(keys), n)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.Set(ctx, "users/alice/savedResults/a:1", Doc{"title": "Keep"})
	before := store.Version()

	err := store.Batch(ctx, []Write{
		{Kind: WriteDelete, Path: "users/alice/savedResults/a:1"},
		{Kind: WriteUpdate, Path: "users/alice/folders/missing", Updates: []FieldUpdate{ArrayRemove("images", "a:1")}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "users/alice/savedResults/a:1"); err != nil {
		t.Errorf("Failed batch must not delete: %v", err)
	}
	if store.Version() != before {
		t.Errorf("Failed batch bumped version %d -> %d", before, store.Version())
	}
}

func TestBatchSkipsMissingIfExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.Set(ctx, "users/alice/savedResults/a:1", Doc{"title": "Gone"})

	err := store.Batch(ctx, []Write{
		{Kind: WriteDelete, Path: "users/alice/savedResults/a:1"},
		{Kind: WriteUpdate, Path: "users/alice/folders/missing", Updates: []FieldUpdate{ArrayRemove("images", "a:1")}, IfExists: true},
	})
	if err != nil {
		t.Fatalf("Expected missing folder to be skipped, got %v", err)
	}
	if _, err := store.Get(ctx, "users/alice/savedResults/a:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected delete to commit, got %v", err)
	}
	if _, err := store.Get(ctx, "users/alice/folders/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Skipped update must not create the document, got %v", err)
	}
}

func TestListScopedToCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.Set(ctx, "users/alice/folders/b", Doc{"name": "B"})
	store.Set(ctx, "users/alice/folders/a", Doc{"name": "A"})
	store.Set(ctx, "users/bob/folders/c", Doc{"name": "C"})
	store.Set(ctx, "users/alice/savedResults/x:1", Doc{"title": "X"})

	docs, err := store.List(ctx, "users/alice/folders")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 docs, got %d", len(docs))
	}
	if docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("Expected ordered ids [a b], got [%s %s]", docs[0].ID, docs[1].ID)
	}

	empty, _ := store.List(ctx, "users/carol/folders")
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", empty)
	}
}

func TestSubscribeDeliversVersionedSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.Set(ctx, "users/alice/folders/a", Doc{"name": "A"})

	var mu sync.Mutex
	var snaps []Snapshot
	cancel, err := store.Subscribe(ctx, "users/alice/folders", func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	store.Set(ctx, "users/alice/folders/b", Doc{"name": "B"})
	store.Set(ctx, "users/alice/savedResults/x:1", Doc{}) // other collection
	store.Delete(ctx, "users/alice/folders/a")
	cancel()
	store.Set(ctx, "users/alice/folders/c", Doc{"name": "C"})

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) != 3 {
		t.Fatalf("Expected initial + 2 snapshots, got %d", len(snaps))
	}
	wantSizes := []int{1, 2, 1}
	for i, s := range snaps {
		if len(s.Docs) != wantSizes[i] {
			t.Errorf("Snapshot %d: expected %d docs, got %d", i, wantSizes[i], len(s.Docs))
		}
		if i > 0 && s.Version <= snaps[i-1].Version {
			t.Errorf("Snapshot versions not increasing: %d after %d", s.Version, snaps[i-1].Version)
		}
	}
}

func TestVersionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	tmpDir, _ := os.MkdirTemp("", "arthub-test")
	defer os.RemoveAll(tmpDir)

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.Set(ctx, "users/alice/folders/a", Doc{})
	store.Set(ctx, "users/alice/folders/b", Doc{})
	v := store.Version()
	store.Close()

	store, err = NewStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	if store.Version() != v {
		t.Errorf("Expected version %d after reopen, got %d", v, store.Version())
	}
	store.Set(ctx, "users/alice/folders/c", Doc{})
	if store.Version() != v+1 {
		t.Errorf("Expected version %d, got %d", v+1, store.Version())
	}
}

func TestMetadata(t *testing.T) {
	store := newTestStore(t)

	if v, err := store.GetMetadata("last_reconcile_at"); err != nil || v != "" {
		t.Fatalf("Expected empty metadata, got %q, %v", v, err)
	}
	store.SetMetadata("last_reconcile_at", "2024-05-01T12:00:00Z")
	v, _ := store.GetMetadata("last_reconcile_at")
	if v != "2024-05-01T12:00:00Z" {
		t.Errorf("Unexpected metadata value %q", v)
	}
}

func TestArtworkKeyRoundTrip(t *testing.T) {
	tests := []struct {
		source, id string
	}{
		{"Art Institute of Chicago", "16568"},
		{"Victoria and Albert Museum", "O1:23/4"},
		{"Smithsonian Institution", "edanmdm:nmaahc_2012.36.4"},
	}
	for _, tt := range tests {
		key := ArtworkKey(tt.source, tt.id)
		if _, _, err := SplitPath("users/alice/savedResults/" + key); err != nil {
			t.Errorf("Key %q is not a valid path segment", key)
		}
		source, id, err := ParseKey(key)
		if err != nil || source != tt.source || id != tt.id {
			t.Errorf("ParseKey(%q) = %q, %q, %v", key, source, id, err)
		}
	}

	a := ArtworkKey("Art Institute of Chicago", "1")
	b := ArtworkKey("Harvard Art Museums", "1")
	if a == b {
		t.Error("Expected keys from different sources to differ")
	}

	for _, bad := range []string{"", "nosep", ":1", "src:", "%zz:1"} {
		if _, _, err := ParseKey(bad); !errors.Is(err, ErrMalformedKey) {
			t.Errorf("ParseKey(%q): expected ErrMalformedKey, got %v", bad, err)
		}
	}
}
