package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/curation/internal/core/ports"
)

const operationHeader = "X-Operation-ID"

// track starts an operation and exposes its id on the response. Call the
// returned func with the outcome before writing the body.
func track(w http.ResponseWriter, tracker ports.OperationTracker, kind string) func(error) {
	id := tracker.Begin(kind)
	w.Header().Set(operationHeader, id)
	return func(err error) {
		tracker.Finish(id, err)
	}
}

type OperationHandler struct {
	tracker ports.OperationTracker
}

func NewOperationHandler(tracker ports.OperationTracker) *OperationHandler {
	return &OperationHandler{
		tracker: tracker,
	}
}

func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := h.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "operation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, op)
}
