package handlers

import (
	"net/http"
)

// HandleSearch runs a federated search for ?q= and returns the ranked
// result together with the sources that failed.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.coord.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, res)
}
