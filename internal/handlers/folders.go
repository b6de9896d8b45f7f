package handlers

import (
	"net/http"
	"strings"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/db"
)

type folderRequest struct {
	Name string `json:"name"`
}

type toggleRequest struct {
	Key string `json:"key"`
}

type toggleResponse struct {
	FolderID string `json:"folderId"`
	Key      string `json:"key"`
	Member   bool   `json:"member"`
}

type folderDetail struct {
	db.Folder
	Label string         `json:"label"`
	Items []db.SavedItem `json:"items"`
}

func (h *Handler) HandleFolders(w http.ResponseWriter, r *http.Request) {
	s := h.syncer(r)

	switch r.Method {
	case http.MethodGet:
		folders, err := s.Folders(r.Context())
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, folders)
	case http.MethodPost:
		var req folderRequest
		if !h.decodeBody(w, r, &req) {
			return
		}
		folder, err := s.CreateFolder(r.Context(), req.Name)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSONCode(w, http.StatusCreated, folder)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleFolderDetail serves /api/folders/{id} and /api/folders/{id}/toggle.
func (h *Handler) HandleFolderDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/folders/")
	folderID, action, _ := strings.Cut(rest, "/")
	if folderID == "" {
		h.writeError(w, "Folder not found", http.StatusNotFound)
		return
	}
	s := h.syncer(r)

	if action == "toggle" {
		if r.Method != http.MethodPost {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req toggleRequest
		if !h.decodeBody(w, r, &req) {
			return
		}
		member, err := s.ToggleFolder(r.Context(), req.Key, folderID)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, toggleResponse{FolderID: folderID, Key: req.Key, Member: member})
		return
	}
	if action != "" {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		folder, items, err := s.FolderContents(r.Context(), folderID)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, folderDetail{Folder: folder, Label: collection.CountLabel(len(folder.Images)), Items: items})
	case http.MethodPatch:
		var req folderRequest
		if !h.decodeBody(w, r, &req) {
			return
		}
		if err := s.RenameFolder(r.Context(), folderID, req.Name); err != nil {
			h.writeErr(w, err)
			return
		}
		folder, err := s.Folder(r.Context(), folderID)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		h.writeJSON(w, folder)
	case http.MethodDelete:
		if err := s.DeleteFolder(r.Context(), folderID); err != nil {
			h.writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
