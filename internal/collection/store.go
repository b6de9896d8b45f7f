package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/arthub/internal/db"
)

// DocumentStore is the remote store the synchronizer persists through.
// *db.Store implements it.
type DocumentStore interface {
	Get(ctx context.Context, path string) (db.Doc, error)
	Set(ctx context.Context, path string, data db.Doc) error
	Update(ctx context.Context, path string, updates ...db.FieldUpdate) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]db.Document, error)
	Subscribe(ctx context.Context, collection string, fn func(db.Snapshot)) (func(), error)
}

// Batcher is implemented by stores that can commit several writes atomically.
type Batcher interface {
	Batch(ctx context.Context, writes []db.Write) error
}

// Identity is the "current user id or none" signal. An empty id means
// nobody is signed in.
type Identity interface {
	CurrentUser() string
}

// StaticUser is an Identity fixed at construction.
type StaticUser string

func (u StaticUser) CurrentUser() string { return string(u) }

var (
	ErrAuthRequired     = errors.New("sign in required")
	ErrInvalidReference = errors.New("invalid artwork reference")
	ErrEmptyFolderName  = errors.New("folder name is empty")
	ErrFolderExists     = errors.New("folder already exists")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrNotSaved         = errors.New("artwork is not saved")
	ErrPartialCascade   = errors.New("unsave left folder references behind")
)

// CascadeError reports folder updates that failed after the saved item
// itself was deleted. The artwork is unsaved; the listed folders may still
// reference it until the next Reconcile.
type CascadeError struct {
	Key     string
	Folders []string
	Errs    []error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("unsave %s: %d folder update(s) failed: %v", e.Key, len(e.Folders), errors.Join(e.Errs...))
}

func (e *CascadeError) Unwrap() []error {
	return append([]error{ErrPartialCascade}, e.Errs...)
}

func savedCollection(uid string) string {
	return "users/" + uid + "/savedResults"
}

func savedPath(uid, key string) string {
	return savedCollection(uid) + "/" + key
}

func foldersCollection(uid string) string {
	return "users/" + uid + "/folders"
}

func folderPath(uid, id string) string {
	return foldersCollection(uid) + "/" + id
}

// Slugify lower-cases name and collapses whitespace runs into single hyphens.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
