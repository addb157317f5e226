package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type ListHandler struct {
	service ports.ListService
	tracker ports.OperationTracker
}

func NewListHandler(service ports.ListService, tracker ports.OperationTracker) *ListHandler {
	return &ListHandler{
		service: service,
		tracker: tracker,
	}
}

type createListRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *ListHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	lists, err := h.service.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *ListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	done := track(w, h.tracker, "create_list")
	list, err := h.service.CreateList(r.Context(), ports.CreateListInput{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   accountFrom(r),
	})
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, list)
}

func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing list id", http.StatusBadRequest)
		return
	}

	list, err := h.service.GetList(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
