package collection

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/user/arthub/internal/db"
)

// State is one view's cached copy of a user's collection. Each half carries
// the store version it was last confirmed at and whether a local optimistic
// change is waiting for confirmation.
type State struct {
	Saved          map[string]db.SavedItem
	Folders        []db.Folder
	SavedVersion   int64
	FoldersVersion int64
	SavedPending   bool
	FoldersPending bool
}

type part[T any] struct {
	confirmed T
	current   T
	version   int64
	pending   bool
	loaded    bool
}

// View keeps a locally cached, optimistically updated copy of the saved
// items and folders, reconciled against live store snapshots. The newest
// confirmed snapshot always replaces local state wholesale; snapshots older
// than what the view already confirmed are ignored.
type View struct {
	syncer *Synchronizer

	mu        sync.Mutex
	saved     part[map[string]db.SavedItem]
	folders   part[[]db.Folder]
	observers []func(State)
	cancels   []func()
}

// Watch opens a view for the current user and subscribes it to the saved
// and folder collections. Close releases the subscriptions.
func (s *Synchronizer) Watch(ctx context.Context) (*View, error) {
	uid, err := s.user()
	if err != nil {
		return nil, err
	}
	v := &View{syncer: s}

	cancelSaved, err := s.store.Subscribe(ctx, savedCollection(uid), v.onSaved)
	if err != nil {
		return nil, fmt.Errorf("watch saved: %w", err)
	}
	v.cancels = append(v.cancels, cancelSaved)

	cancelFolders, err := s.store.Subscribe(ctx, foldersCollection(uid), v.onFolders)
	if err != nil {
		cancelSaved()
		return nil, fmt.Errorf("watch folders: %w", err)
	}
	v.cancels = append(v.cancels, cancelFolders)

	return v, nil
}

func (v *View) Close() {
	v.mu.Lock()
	cancels := v.cancels
	v.cancels = nil
	v.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// OnChange registers fn to receive the view state after every change.
// fn runs on the goroutine that caused the change.
func (v *View) OnChange(fn func(State)) {
	v.mu.Lock()
	v.observers = append(v.observers, fn)
	v.mu.Unlock()
}

func (v *View) onSaved(snap db.Snapshot) {
	items, err := decodeSaved(snap.Docs)
	if err != nil {
		v.syncer.log.Error("decode saved snapshot", "collection", snap.Collection, "err", err)
		return
	}
	v.mu.Lock()
	if v.saved.loaded && snap.Version < v.saved.version {
		v.mu.Unlock()
		return
	}
	v.saved = part[map[string]db.SavedItem]{confirmed: items, current: maps.Clone(items), version: snap.Version, loaded: true}
	v.mu.Unlock()
	v.notify()
}

func (v *View) onFolders(snap db.Snapshot) {
	folders, err := decodeFolders(snap.Docs)
	if err != nil {
		v.syncer.log.Error("decode folder snapshot", "collection", snap.Collection, "err", err)
		return
	}
	v.mu.Lock()
	if v.folders.loaded && snap.Version < v.folders.version {
		v.mu.Unlock()
		return
	}
	v.folders = part[[]db.Folder]{confirmed: folders, current: cloneFolders(folders), version: snap.Version, loaded: true}
	v.mu.Unlock()
	v.notify()
}

// State returns a copy of the current cached state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() State {
	saved := maps.Clone(v.saved.current)
	if saved == nil {
		saved = map[string]db.SavedItem{}
	}
	return State{
		Saved:          saved,
		Folders:        cloneFolders(v.folders.current),
		SavedVersion:   v.saved.version,
		FoldersVersion: v.folders.version,
		SavedPending:   v.saved.pending,
		FoldersPending: v.folders.pending,
	}
}

func (v *View) notify() {
	v.mu.Lock()
	st := v.stateLocked()
	observers := slices.Clone(v.observers)
	v.mu.Unlock()
	for _, fn := range observers {
		fn(st)
	}
}

func (v *View) IsSaved(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.saved.current[key]
	return ok
}

// Recent returns the n most recently saved items, newest first.
func (v *View) Recent(n int) []db.SavedItem {
	v.mu.Lock()
	items := newestFirst(v.saved.current)
	v.mu.Unlock()
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// Membership maps every folder id to whether it contains key.
func (v *View) Membership(key string) map[string]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	m := make(map[string]bool, len(v.folders.current))
	for _, f := range v.folders.current {
		m[f.ID] = f.Contains(key)
	}
	return m
}

// FolderCounts maps every folder id to its image count.
func (v *View) FolderCounts() map[string]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	counts := make(map[string]int, len(v.folders.current))
	for _, f := range v.folders.current {
		counts[f.ID] = len(f.Images)
	}
	return counts
}

// CountLabel renders a folder image count for display.
func CountLabel(n int) string {
	switch n {
	case 0:
		return "Empty"
	case 1:
		return "1 image"
	default:
		return fmt.Sprintf("%d images", n)
	}
}

// Save applies the save locally, then persists it. On failure the local
// state goes back to the last confirmed snapshot.
func (v *View) Save(ctx context.Context, a db.Artwork) error {
	key := a.Key()
	v.mu.Lock()
	if _, ok := v.saved.current[key]; !ok {
		if v.saved.current == nil {
			v.saved.current = map[string]db.SavedItem{}
		}
		v.saved.current[key] = db.SavedItem{Artwork: a, Key: key, SavedAt: v.syncer.now()}
		v.saved.pending = true
	}
	v.mu.Unlock()
	v.notify()

	if err := v.syncer.Save(ctx, a); err != nil {
		v.rollback(true, false)
		return err
	}
	return nil
}

// Unsave removes the item and its folder memberships locally, then
// persists. A partial cascade keeps the local state: the item is unsaved.
func (v *View) Unsave(ctx context.Context, key string) error {
	v.mu.Lock()
	if _, ok := v.saved.current[key]; ok {
		delete(v.saved.current, key)
		v.saved.pending = true
	}
	for i, f := range v.folders.current {
		if f.Contains(key) {
			v.folders.current[i].Images = without(f.Images, key)
			v.folders.pending = true
		}
	}
	v.mu.Unlock()
	v.notify()

	err := v.syncer.Unsave(ctx, key)
	var cerr *CascadeError
	if err != nil && !errors.As(err, &cerr) {
		v.rollback(true, true)
	}
	return err
}

// ToggleFolder flips membership locally, then persists.
func (v *View) ToggleFolder(ctx context.Context, key, folderID string) (bool, error) {
	v.mu.Lock()
	for i, f := range v.folders.current {
		if f.ID != folderID {
			continue
		}
		if f.Contains(key) {
			v.folders.current[i].Images = without(f.Images, key)
		} else {
			v.folders.current[i].Images = append(slices.Clone(f.Images), key)
		}
		v.folders.pending = true
	}
	v.mu.Unlock()
	v.notify()

	member, err := v.syncer.ToggleFolder(ctx, key, folderID)
	if err != nil {
		v.rollback(false, true)
	}
	return member, err
}

// CreateFolder persists first since the id is assigned by the synchronizer,
// then shows the folder locally until the snapshot confirms it.
func (v *View) CreateFolder(ctx context.Context, name string) (db.Folder, error) {
	folder, err := v.syncer.CreateFolder(ctx, name)
	if err != nil {
		return db.Folder{}, err
	}
	v.mu.Lock()
	exists := false
	for _, f := range v.folders.current {
		if f.ID == folder.ID {
			exists = true
		}
	}
	if !exists {
		v.folders.current = append(v.folders.current, folder)
		v.folders.pending = true
	}
	v.mu.Unlock()
	v.notify()
	return folder, nil
}

func (v *View) RenameFolder(ctx context.Context, folderID, name string) error {
	name = strings.TrimSpace(name)
	v.mu.Lock()
	for i, f := range v.folders.current {
		if f.ID == folderID {
			v.folders.current[i].Name = name
			v.folders.current[i].Slug = Slugify(name)
			v.folders.pending = true
		}
	}
	v.mu.Unlock()
	v.notify()

	if err := v.syncer.RenameFolder(ctx, folderID, name); err != nil {
		v.rollback(false, true)
		return err
	}
	return nil
}

func (v *View) DeleteFolder(ctx context.Context, folderID string) error {
	v.mu.Lock()
	v.folders.current = slices.DeleteFunc(v.folders.current, func(f db.Folder) bool {
		if f.ID == folderID {
			v.folders.pending = true
			return true
		}
		return false
	})
	v.mu.Unlock()
	v.notify()

	if err := v.syncer.DeleteFolder(ctx, folderID); err != nil {
		v.rollback(false, true)
		return err
	}
	return nil
}

func (v *View) rollback(saved, folders bool) {
	v.mu.Lock()
	if saved {
		v.saved.current = maps.Clone(v.saved.confirmed)
		v.saved.pending = false
	}
	if folders {
		v.folders.current = cloneFolders(v.folders.confirmed)
		v.folders.pending = false
	}
	v.mu.Unlock()
	v.notify()
}

func cloneFolders(folders []db.Folder) []db.Folder {
	if folders == nil {
		return []db.Folder{}
	}
	out := make([]db.Folder, len(folders))
	for i, f := range folders {
		f.Images = slices.Clone(f.Images)
		out[i] = f
	}
	return out
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
