package collection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/user/arthub/internal/db"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func watch(t *testing.T, s *Synchronizer) *View {
	t.Helper()
	v, err := s.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func TestWatch_RequiresUser(t *testing.T) {
	s := newTestSync(newTestStore(t), "")
	if _, err := s.Watch(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}

func TestView_InitialSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := newTestSync(store, "alice")
	s.Save(ctx, monet())
	s.CreateFolder(ctx, "Lilies")

	v := watch(t, s)
	st := v.State()
	if len(st.Saved) != 1 || len(st.Folders) != 1 {
		t.Fatalf("expected preloaded state, got %d saved, %d folders", len(st.Saved), len(st.Folders))
	}
	assert.Equal(t, st.SavedVersion, store.Version())
	assert.Assert(t, !st.SavedPending && !st.FoldersPending)
}

func TestView_OptimisticSaveConfirmedBySnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	v := watch(t, newTestSync(store, "alice"))
	rec := &stateRecorder{}
	v.OnChange(rec.record)

	if err := v.Save(ctx, monet()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	states := rec.all()
	if len(states) < 2 {
		t.Fatalf("expected optimistic and confirmed notifications, got %d", len(states))
	}
	first := states[0]
	if _, ok := first.Saved[monet().Key()]; !ok || !first.SavedPending {
		t.Errorf("first notification should be the pending optimistic save: %+v", first)
	}
	final := v.State()
	if !v.IsSaved(monet().Key()) || final.SavedPending {
		t.Errorf("expected confirmed save, got %+v", final)
	}
	assert.Equal(t, final.SavedVersion, store.Version())
}

func TestView_RollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{DocumentStore: newTestStore(t)}
	s := newTestSync(fs, "alice")
	s.Save(ctx, monet())
	f, _ := s.CreateFolder(ctx, "Lilies")
	v := watch(t, s)

	other := db.Artwork{ID: "99", Title: "Haystacks", ImageURL: "i", Source: "Art Institute of Chicago"}
	fs.failSet = errors.New("offline")
	if err := v.Save(ctx, other); err == nil {
		t.Fatal("expected save to fail")
	}
	if v.IsSaved(other.Key()) {
		t.Error("failed save was not rolled back")
	}
	assert.Assert(t, !v.State().SavedPending)

	fs.failUpdates = map[string]error{folderPath("alice", f.ID): errors.New("offline")}
	if _, err := v.ToggleFolder(ctx, monet().Key(), f.ID); err == nil {
		t.Fatal("expected toggle to fail")
	}
	if v.Membership(monet().Key())[f.ID] {
		t.Error("failed toggle was not rolled back")
	}

	if err := v.RenameFolder(ctx, f.ID, "Renamed"); err == nil {
		t.Fatal("expected rename to fail")
	}
	assert.Equal(t, v.State().Folders[0].Name, "Lilies")
}

func TestView_RenameAppliesTrimmedName(t *testing.T) {
	ctx := context.Background()
	s := newTestSync(newTestStore(t), "alice")
	f, _ := s.CreateFolder(ctx, "Lilies")
	v := watch(t, s)

	rec := &stateRecorder{}
	v.OnChange(rec.record)
	if err := v.RenameFolder(ctx, f.ID, "  Water Garden  "); err != nil {
		t.Fatalf("rename: %v", err)
	}

	states := rec.all()
	if len(states) == 0 {
		t.Fatal("expected an optimistic notification")
	}
	optimistic := states[0].Folders[0]
	assert.Assert(t, states[0].FoldersPending)
	assert.Equal(t, optimistic.Name, "Water Garden")
	assert.Equal(t, optimistic.Slug, "water-garden")

	confirmed := v.State().Folders[0]
	assert.Equal(t, confirmed.Name, optimistic.Name)
	assert.Equal(t, confirmed.Slug, optimistic.Slug)
}

func TestView_PartialCascadeKeepsUnsave(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{DocumentStore: newTestStore(t)}
	s := newTestSync(fs, "alice")
	s.Save(ctx, monet())
	f, _ := s.CreateFolder(ctx, "Lilies")
	s.ToggleFolder(ctx, monet().Key(), f.ID)
	v := watch(t, s)

	fs.failUpdates = map[string]error{folderPath("alice", f.ID): errors.New("offline")}
	err := v.Unsave(ctx, monet().Key())
	if !errors.Is(err, ErrPartialCascade) {
		t.Fatalf("expected partial cascade, got %v", err)
	}
	if v.IsSaved(monet().Key()) {
		t.Error("item should stay unsaved in the view")
	}
}

func TestView_IgnoresOlderSnapshots(t *testing.T) {
	v := &View{syncer: newTestSync(nil, "alice")}
	newer := db.Snapshot{Collection: "users/alice/savedResults", Version: 5, Docs: []db.Document{{
		ID:   monet().Key(),
		Data: encodeSaved(db.SavedItem{Artwork: monet(), Key: monet().Key()}),
	}}}
	older := db.Snapshot{Collection: "users/alice/savedResults", Version: 3}

	v.onSaved(newer)
	v.onSaved(older)

	st := v.State()
	assert.Equal(t, st.SavedVersion, int64(5))
	if _, ok := st.Saved[monet().Key()]; !ok {
		t.Error("older snapshot overwrote newer state")
	}

	v.onFolders(db.Snapshot{Version: 7, Docs: []db.Document{{ID: "f1", Data: db.Doc{"name": "A", "images": []any{}}}}})
	v.onFolders(db.Snapshot{Version: 6})
	assert.Equal(t, len(v.State().Folders), 1)
}

func TestView_SnapshotReplacesPendingState(t *testing.T) {
	v := &View{syncer: newTestSync(nil, "alice")}
	v.onSaved(db.Snapshot{Version: 1})

	v.mu.Lock()
	v.saved.current[monet().Key()] = db.SavedItem{Artwork: monet(), Key: monet().Key()}
	v.saved.pending = true
	v.mu.Unlock()

	v.onSaved(db.Snapshot{Version: 2})
	st := v.State()
	assert.Equal(t, len(st.Saved), 0)
	assert.Assert(t, !st.SavedPending)
}

func TestView_TwoViewsConverge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := watch(t, newTestSync(store, "alice"))
	b := watch(t, newTestSync(store, "alice"))

	if err := a.Save(ctx, monet()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f, err := a.CreateFolder(ctx, "Lilies")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if _, err := b.ToggleFolder(ctx, monet().Key(), f.ID); err != nil {
		t.Fatalf("ToggleFolder: %v", err)
	}

	for name, v := range map[string]*View{"a": a, "b": b} {
		if !v.IsSaved(monet().Key()) {
			t.Errorf("view %s missing saved item", name)
		}
		if !v.Membership(monet().Key())[f.ID] {
			t.Errorf("view %s missing membership", name)
		}
		assert.Equal(t, a.State().FoldersVersion, v.State().FoldersVersion)
	}

	if err := b.Unsave(ctx, monet().Key()); err != nil {
		t.Fatalf("Unsave: %v", err)
	}
	if a.IsSaved(monet().Key()) || a.FolderCounts()[f.ID] != 0 {
		t.Error("view a did not observe the cascade")
	}
}

func TestView_CreateFolderVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	v := watch(t, newTestSync(newTestStore(t), "alice"))

	f, err := v.CreateFolder(ctx, "Lilies")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	counts := v.FolderCounts()
	if n, ok := counts[f.ID]; !ok || n != 0 {
		t.Errorf("expected new empty folder in view, got %v", counts)
	}
	if _, err := v.CreateFolder(ctx, ""); !errors.Is(err, ErrEmptyFolderName) {
		t.Errorf("expected ErrEmptyFolderName, got %v", err)
	}
	assert.Equal(t, len(v.State().Folders), 1)

	if err := v.DeleteFolder(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	assert.Equal(t, len(v.State().Folders), 0)
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "Empty"},
		{1, "1 image"},
		{2, "2 images"},
		{12, "12 images"},
	}
	for _, tt := range tests {
		assert.Equal(t, CountLabel(tt.n), tt.want)
	}
}
