package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/db"
)

type savedResponse struct {
	Key            string   `json:"key"`
	Saved          bool     `json:"saved"`
	PendingFolders []string `json:"pendingFolders,omitempty"` // still referencing key after a partial unsave
}

// HandleSaved lists saved items (newest first, ?limit=n or ?recent for the
// configured recent count) and saves posted artworks.
func (h *Handler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	s := h.syncer(r)

	switch r.Method {
	case http.MethodGet:
		var (
			items []db.SavedItem
			err   error
		)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 0 {
				h.writeError(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			items, err = s.Recent(r.Context(), n)
		} else if r.URL.Query().Has("recent") {
			items, err = s.Recent(r.Context(), h.recentLimit)
		} else {
			items, err = s.Saved(r.Context())
		}
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, items)
	case http.MethodPost:
		var a db.Artwork
		if !h.decodeBody(w, r, &a) {
			return
		}
		if err := s.Save(r.Context(), a); err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSONCode(w, http.StatusCreated, savedResponse{Key: a.Key(), Saved: true})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSavedDetail serves /api/saved/{key}. The key is path-escaped by
// the client, so it is read from the raw path.
func (h *Handler) HandleSavedDetail(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/api/saved/"))
	if err != nil || key == "" {
		h.writeError(w, "Invalid key", http.StatusBadRequest)
		return
	}
	s := h.syncer(r)

	switch r.Method {
	case http.MethodGet:
		ok, err := s.IsSaved(r.Context(), key)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, savedResponse{Key: key, Saved: ok})
	case http.MethodDelete:
		err := s.Unsave(r.Context(), key)
		var cerr *collection.CascadeError
		if errors.As(err, &cerr) {
			h.writeJSON(w, savedResponse{Key: key, PendingFolders: cerr.Folders})
			return
		}
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, savedResponse{Key: key})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
