package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/search"
)

// UserHeader carries the signed-in user id on API requests.
const UserHeader = "X-User-ID"

type Handler struct {
	coord       *search.Coordinator
	store       collection.DocumentStore
	defaultUser string
	recentLimit int
	log         *slog.Logger
}

type Option func(*Handler)

// WithDefaultUser sets the user assumed when a request has no X-User-ID.
func WithDefaultUser(uid string) Option {
	return func(h *Handler) { h.defaultUser = uid }
}

func WithRecentLimit(n int) Option {
	return func(h *Handler) { h.recentLimit = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func New(coord *search.Coordinator, store collection.DocumentStore, opts ...Option) *Handler {
	h := &Handler{coord: coord, store: store, recentLimit: 10, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires every API endpoint onto a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", h.HandleSearch)
	mux.HandleFunc("/api/saved", h.HandleSaved)
	mux.HandleFunc("/api/saved/", h.HandleSavedDetail)
	mux.HandleFunc("/api/folders", h.HandleFolders)
	mux.HandleFunc("/api/folders/", h.HandleFolderDetail)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			h.log.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// syncer returns a synchronizer bound to the requesting user.
func (h *Handler) syncer(r *http.Request) *collection.Synchronizer {
	uid := r.Header.Get(UserHeader)
	if uid == "" {
		uid = h.defaultUser
	}
	return collection.New(h.store, collection.StaticUser(uid), collection.WithLogger(h.log))
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONCode(w, http.StatusOK, data)
}

func (h *Handler) writeJSONCode(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		h.log.Error(message, "status", code)
	} else {
		h.log.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeErr maps domain errors onto HTTP status codes.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, collection.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, collection.ErrInvalidReference),
		errors.Is(err, collection.ErrEmptyFolderName),
		errors.Is(err, search.ErrQueryTooShort):
		return http.StatusBadRequest
	case errors.Is(err, collection.ErrFolderNotFound):
		return http.StatusNotFound
	case errors.Is(err, collection.ErrFolderExists),
		errors.Is(err, collection.ErrNotSaved):
		return http.StatusConflict
	case errors.Is(err, search.ErrAllSourcesFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
