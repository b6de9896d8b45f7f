package sources

import (
	"context"

	"github.com/user/arthub/internal/db"
)

// Source defines the interface for artwork catalogs
type Source interface {
	// ID returns the config identifier (artic, harvard, met, ...)
	ID() string
	// Name returns the display name stamped on records and failure notices
	Name() string
	// Search queries the catalog and returns normalized records.
	// Records without a displayable image are dropped. Any transport or
	// remote error fails the whole call.
	Search(ctx context.Context, term string) ([]db.Artwork, error)
}
