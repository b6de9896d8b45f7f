package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const versionKey = "store_version"

// Store is a path-keyed document store over SQLite with live collection
// subscriptions. Each document write is atomic; Batch commits several
// writes in one transaction. Every commit bumps a global version that is
// stamped on the snapshots delivered to subscribers.
type Store struct {
	db *sql.DB

	// mu serializes commits so versions are strictly increasing.
	mu      sync.Mutex
	version int64

	subMu  sync.Mutex
	nextID int
	subs   map[string]map[int]func(Snapshot)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "arthub.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, subs: make(map[string]map[int]func(Snapshot))}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	v, err := s.GetMetadata(versionKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	if v != "" {
		if s.version, err = strconv.ParseInt(v, 10, 64); err != nil {
			db.Close()
			return nil, fmt.Errorf("corrupt store version %q: %w", v, err)
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		data TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Version returns the version of the last committed write.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) Get(ctx context.Context, path string) (Doc, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, err
	}
	return getDoc(ctx, s.db, path)
}

func getDoc(ctx context.Context, q queryer, path string) (Doc, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// List returns every document directly under collection, ordered by path.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	return listDocs(ctx, s.db, collection)
}

func listDocs(ctx context.Context, q queryer, collection string) ([]Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT path, data FROM documents WHERE collection = ? ORDER BY path`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		var data Doc
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		_, id, _ := SplitPath(path)
		docs = append(docs, Document{Path: path, ID: id, Data: data})
	}
	return docs, rows.Err()
}

func (s *Store) Set(ctx context.Context, path string, data Doc) error {
	return s.Batch(ctx, []Write{{Kind: WriteSet, Path: path, Data: data}})
}

// Update applies field updates to an existing document. The read-modify-write
// runs inside one transaction, so a single set add or remove is atomic.
func (s *Store) Update(ctx context.Context, path string, updates ...FieldUpdate) error {
	return s.Batch(ctx, []Write{{Kind: WriteUpdate, Path: path, Updates: updates}})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Batch(ctx, []Write{{Kind: WriteDelete, Path: path}})
}

// Batch commits all writes atomically. If any write fails none is applied.
func (s *Store) Batch(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	touched := make(map[string]bool)
	for _, w := range writes {
		coll, _, err := SplitPath(w.Path)
		if err != nil {
			return fmt.Errorf("%s: %w", w.Path, err)
		}
		touched[coll] = true
	}

	s.mu.Lock()
	snaps, err := s.commitLocked(ctx, writes, touched)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(snaps)
	return nil
}

func (s *Store) commitLocked(ctx context.Context, writes []Write, touched map[string]bool) ([]Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	version := s.version + 1
	for _, w := range writes {
		if err := applyWrite(ctx, tx, w, version); err != nil {
			return nil, fmt.Errorf("%s: %w", w.Path, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`,
		versionKey, strconv.FormatInt(version, 10)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.version = version

	if !s.hasSubscribers(touched) {
		return nil, nil
	}
	snaps := make([]Snapshot, 0, len(touched))
	for coll := range touched {
		docs, err := listDocs(ctx, s.db, coll)
		if err != nil {
			// The commit stands; subscribers catch up on the next write.
			continue
		}
		snaps = append(snaps, Snapshot{Collection: coll, Version: version, Docs: docs})
	}
	return snaps, nil
}

func applyWrite(ctx context.Context, tx *sql.Tx, w Write, version int64) error {
	coll, _, _ := SplitPath(w.Path)
	switch w.Kind {
	case WriteDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, w.Path)
		return err
	case WriteUpdate:
		doc, err := getDoc(ctx, tx, w.Path)
		if errors.Is(err, ErrNotFound) && w.IfExists {
			return nil
		}
		if err != nil {
			return err
		}
		return putDoc(ctx, tx, w.Path, coll, applyUpdates(doc, w.Updates), version)
	case WriteSet:
		return putDoc(ctx, tx, w.Path, coll, w.Data, version)
	default:
		return fmt.Errorf("unknown write kind %d", w.Kind)
	}
}

func putDoc(ctx context.Context, tx *sql.Tx, path, coll string, data Doc, version int64) error {
	if data == nil {
		data = Doc{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO documents (path, collection, data, version, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		data = excluded.data,
		version = excluded.version,
		updated_at = excluded.updated_at
	`, path, coll, string(raw), version, time.Now())
	return err
}

// Subscribe delivers the current snapshot of collection immediately and a
// fresh one after every commit that touches it. The returned func cancels.
func (s *Store) Subscribe(ctx context.Context, collection string, fn func(Snapshot)) (func(), error) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(Snapshot))
	}
	s.subs[collection][id] = fn
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subs[collection], id)
		s.subMu.Unlock()
	}

	s.mu.Lock()
	docs, err := listDocs(ctx, s.db, collection)
	version := s.version
	s.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}
	fn(Snapshot{Collection: collection, Version: version, Docs: docs})

	return cancel, nil
}

func (s *Store) hasSubscribers(touched map[string]bool) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for coll := range touched {
		if len(s.subs[coll]) > 0 {
			return true
		}
	}
	return false
}

func (s *Store) publish(snaps []Snapshot) {
	for _, snap := range snaps {
		s.subMu.Lock()
		fns := make([]func(Snapshot), 0, len(s.subs[snap.Collection]))
		for _, fn := range s.subs[snap.Collection] {
			fns = append(fns, fn)
		}
		s.subMu.Unlock()

		for _, fn := range fns {
			fn(snap)
		}
	}
}

func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	return err
}
