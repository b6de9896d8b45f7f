package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/user/arthub/internal/db"
)

// Synchronizer owns every write to a user's saved items and folders.
type Synchronizer struct {
	store    DocumentStore
	identity Identity
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Synchronizer)

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

func New(store DocumentStore, identity Identity, opts ...Option) *Synchronizer {
	s := &Synchronizer{store: store, identity: identity, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) user() (string, error) {
	if s.identity == nil {
		return "", ErrAuthRequired
	}
	uid := s.identity.CurrentUser()
	if uid == "" {
		return "", ErrAuthRequired
	}
	if strings.Contains(uid, "/") {
		return "", fmt.Errorf("%w: user id %q", ErrInvalidReference, uid)
	}
	return uid, nil
}

// validKey accepts only keys ArtworkKey could have produced.
func validKey(key string) error {
	src, id, err := db.ParseKey(key)
	if err != nil || db.ArtworkKey(src, id) != key {
		return fmt.Errorf("%w: %q", ErrInvalidReference, key)
	}
	return nil
}

// Save marks an artwork as saved. Saving an already saved artwork is a
// no-op and keeps the original savedAt.
func (s *Synchronizer) Save(ctx context.Context, a db.Artwork) error {
	uid, err := s.user()
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Source) == "" {
		return fmt.Errorf("%w: artwork needs an id and a source", ErrInvalidReference)
	}

	key := a.Key()
	path := savedPath(uid, key)
	if _, err := s.store.Get(ctx, path); err == nil {
		return nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("save %s: %w", key, err)
	}

	item := db.SavedItem{Artwork: a, Key: key, SavedAt: s.now()}
	if err := s.store.Set(ctx, path, encodeSaved(item)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.log.Debug("saved artwork", "user", uid, "key", key)
	return nil
}

// Unsave deletes the saved item and removes its key from every folder of
// the user. With a batching store the whole cascade is one atomic commit.
// Otherwise the writes fan out concurrently: a failed item delete fails
// the call, while failed folder updates after a successful delete are
// returned as *CascadeError and left for Reconcile.
func (s *Synchronizer) Unsave(ctx context.Context, key string) error {
	uid, err := s.user()
	if err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}

	folders, err := s.listFolders(ctx, uid)
	if err != nil {
		return fmt.Errorf("unsave %s: %w", key, err)
	}
	var affected []string
	for _, f := range folders {
		if f.Contains(key) {
			affected = append(affected, f.ID)
		}
	}

	if b, ok := s.store.(Batcher); ok {
		writes := []db.Write{{Kind: db.WriteDelete, Path: savedPath(uid, key)}}
		for _, id := range affected {
			writes = append(writes, db.Write{
				Kind:     db.WriteUpdate,
				Path:     folderPath(uid, id),
				Updates:  []db.FieldUpdate{db.ArrayRemove("images", key)},
				IfExists: true,
			})
		}
		if err := b.Batch(ctx, writes); err != nil {
			return fmt.Errorf("unsave %s: %w", key, err)
		}
		s.log.Debug("unsaved artwork", "user", uid, "key", key, "folders", len(affected))
		return nil
	}

	var deleteErr error
	folderErrs := make([]error, len(affected))
	var wg conc.WaitGroup
	wg.Go(func() {
		deleteErr = s.store.Delete(ctx, savedPath(uid, key))
	})
	for i, id := range affected {
		wg.Go(func() {
			folderErrs[i] = s.store.Update(ctx, folderPath(uid, id), db.ArrayRemove("images", key))
		})
	}
	wg.Wait()

	if deleteErr != nil {
		return fmt.Errorf("unsave %s: %w", key, deleteErr)
	}
	cerr := &CascadeError{Key: key}
	for i, err := range folderErrs {
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			cerr.Folders = append(cerr.Folders, affected[i])
			cerr.Errs = append(cerr.Errs, err)
		}
	}
	if len(cerr.Errs) > 0 {
		s.log.Warn("partial unsave cascade", "user", uid, "key", key, "folders", cerr.Folders, "err", errors.Join(cerr.Errs...))
		return cerr
	}
	s.log.Debug("unsaved artwork", "user", uid, "key", key, "folders", len(affected))
	return nil
}

// ToggleFolder flips membership of key in the folder and returns the new
// state. Adding requires the artwork to be saved; removing never does, so
// stale references can always be cleared.
func (s *Synchronizer) ToggleFolder(ctx context.Context, key, folderID string) (bool, error) {
	uid, err := s.user()
	if err != nil {
		return false, err
	}
	if err := validKey(key); err != nil {
		return false, err
	}
	if strings.TrimSpace(folderID) == "" || strings.Contains(folderID, "/") {
		return false, fmt.Errorf("%w: folder id %q", ErrInvalidReference, folderID)
	}

	folder, err := s.Folder(ctx, folderID)
	if err != nil {
		return false, err
	}

	path := folderPath(uid, folderID)
	if folder.Contains(key) {
		if err := s.store.Update(ctx, path, db.ArrayRemove("images", key)); err != nil {
			return true, fmt.Errorf("remove %s from folder %s: %w", key, folderID, err)
		}
		return false, nil
	}

	if _, err := s.store.Get(ctx, savedPath(uid, key)); errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrNotSaved, key)
	} else if err != nil {
		return false, err
	}
	if err := s.store.Update(ctx, path, db.ArrayUnion("images", key)); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
		}
		return false, fmt.Errorf("add %s to folder %s: %w", key, folderID, err)
	}
	return true, nil
}

// CreateFolder creates an empty folder with an opaque id. Names that trim
// to nothing are rejected without touching the store; names whose slug is
// already used by another folder are rejected as duplicates.
func (s *Synchronizer) CreateFolder(ctx context.Context, name string) (db.Folder, error) {
	uid, err := s.user()
	if err != nil {
		return db.Folder{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return db.Folder{}, ErrEmptyFolderName
	}

	slug := Slugify(name)
	folders, err := s.listFolders(ctx, uid)
	if err != nil {
		return db.Folder{}, fmt.Errorf("create folder: %w", err)
	}
	for _, f := range folders {
		if f.Slug == slug {
			return db.Folder{}, fmt.Errorf("%w: %q", ErrFolderExists, f.Name)
		}
	}

	folder := db.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		Images:    []string{},
		CreatedAt: s.now(),
	}
	if err := s.store.Set(ctx, folderPath(uid, folder.ID), encodeFolder(folder)); err != nil {
		return db.Folder{}, fmt.Errorf("create folder: %w", err)
	}
	s.log.Debug("created folder", "user", uid, "folder", folder.ID, "name", name)
	return folder, nil
}

// RenameFolder changes the display name in place; the id never changes.
func (s *Synchronizer) RenameFolder(ctx context.Context, folderID, name string) error {
	uid, err := s.user()
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyFolderName
	}
	if strings.TrimSpace(folderID) == "" {
		return fmt.Errorf("%w: empty folder id", ErrInvalidReference)
	}

	folders, err := s.listFolders(ctx, uid)
	if err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	slug := Slugify(name)
	found := false
	for _, f := range folders {
		if f.ID == folderID {
			found = true
			continue
		}
		if f.Slug == slug {
			return fmt.Errorf("%w: %q", ErrFolderExists, f.Name)
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}

	if err := s.store.Update(ctx, folderPath(uid, folderID), db.SetField("name", name), db.SetField("slug", slug)); err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	return nil
}

// DeleteFolder removes the folder document. Saved items are untouched.
func (s *Synchronizer) DeleteFolder(ctx context.Context, folderID string) error {
	if _, err := s.Folder(ctx, folderID); err != nil {
		return err
	}
	uid, _ := s.user()
	if err := s.store.Delete(ctx, folderPath(uid, folderID)); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

// Saved returns every saved item, newest first.
func (s *Synchronizer) Saved(ctx context.Context) ([]db.SavedItem, error) {
	uid, err := s.user()
	if err != nil {
		return nil, err
	}
	items, err := s.savedItems(ctx, uid)
	if err != nil {
		return nil, err
	}
	return newestFirst(items), nil
}

// Recent returns the n most recently saved items.
func (s *Synchronizer) Recent(ctx context.Context, n int) ([]db.SavedItem, error) {
	items, err := s.Saved(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// IsSaved reports whether key is currently saved.
func (s *Synchronizer) IsSaved(ctx context.Context, key string) (bool, error) {
	uid, err := s.user()
	if err != nil {
		return false, err
	}
	if err := validKey(key); err != nil {
		return false, err
	}
	_, err = s.store.Get(ctx, savedPath(uid, key))
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Synchronizer) Folders(ctx context.Context) ([]db.Folder, error) {
	uid, err := s.user()
	if err != nil {
		return nil, err
	}
	return s.listFolders(ctx, uid)
}

func (s *Synchronizer) Folder(ctx context.Context, folderID string) (db.Folder, error) {
	uid, err := s.user()
	if err != nil {
		return db.Folder{}, err
	}
	if strings.TrimSpace(folderID) == "" || strings.Contains(folderID, "/") {
		return db.Folder{}, fmt.Errorf("%w: folder id %q", ErrInvalidReference, folderID)
	}
	doc, err := s.store.Get(ctx, folderPath(uid, folderID))
	if errors.Is(err, db.ErrNotFound) {
		return db.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	if err != nil {
		return db.Folder{}, err
	}
	folders, err := decodeFolders([]db.Document{{ID: folderID, Data: doc}})
	if err != nil {
		return db.Folder{}, err
	}
	return folders[0], nil
}

// FolderContents resolves the folder's keys to saved items in folder
// order. Keys whose saved item no longer exists are skipped.
func (s *Synchronizer) FolderContents(ctx context.Context, folderID string) (db.Folder, []db.SavedItem, error) {
	folder, err := s.Folder(ctx, folderID)
	if err != nil {
		return db.Folder{}, nil, err
	}
	uid, _ := s.user()
	saved, err := s.savedItems(ctx, uid)
	if err != nil {
		return db.Folder{}, nil, err
	}
	items := make([]db.SavedItem, 0, len(folder.Images))
	for _, key := range folder.Images {
		if it, ok := saved[key]; ok {
			items = append(items, it)
		}
	}
	return folder, items, nil
}

// Reconcile drops folder references to keys that are no longer saved and
// returns how many were removed. It is idempotent and safe to run on every
// load.
func (s *Synchronizer) Reconcile(ctx context.Context) (int, error) {
	uid, err := s.user()
	if err != nil {
		return 0, err
	}
	saved, err := s.savedItems(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	folders, err := s.listFolders(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	var writes []db.Write
	for _, f := range folders {
		for _, key := range f.Images {
			if _, ok := saved[key]; ok {
				continue
			}
			writes = append(writes, db.Write{
				Kind:     db.WriteUpdate,
				Path:     folderPath(uid, f.ID),
				Updates:  []db.FieldUpdate{db.ArrayRemove("images", key)},
				IfExists: true,
			})
		}
	}
	if len(writes) == 0 {
		return 0, nil
	}

	if b, ok := s.store.(Batcher); ok {
		if err := b.Batch(ctx, writes); err != nil {
			return 0, fmt.Errorf("reconcile: %w", err)
		}
	} else {
		for i, w := range writes {
			if err := s.store.Update(ctx, w.Path, w.Updates...); err != nil && !errors.Is(err, db.ErrNotFound) {
				return i, fmt.Errorf("reconcile: %w", err)
			}
		}
	}
	s.log.Info("removed dangling folder references", "user", uid, "count", len(writes))
	return len(writes), nil
}

func (s *Synchronizer) savedItems(ctx context.Context, uid string) (map[string]db.SavedItem, error) {
	docs, err := s.store.List(ctx, savedCollection(uid))
	if err != nil {
		return nil, err
	}
	return decodeSaved(docs)
}

func (s *Synchronizer) listFolders(ctx context.Context, uid string) ([]db.Folder, error) {
	docs, err := s.store.List(ctx, foldersCollection(uid))
	if err != nil {
		return nil, err
	}
	return decodeFolders(docs)
}
