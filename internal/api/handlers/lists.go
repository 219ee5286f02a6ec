package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

type ListsHandler struct {
	Service *lists.ListService
	Env     string
}

func NewListsHandler(service *lists.ListService, env string) *ListsHandler {
	return &ListsHandler{Service: service, Env: env}
}

// Create handles POST /api/v1/lists
func (h *ListsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input lists.CreateListInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.CreateList(r.Context(), input, auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeData(w, http.StatusCreated, "List created successfully", list)
}

// All handles GET /api/v1/lists
func (h *ListsHandler) All(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.All(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", all)
}

// Mine handles GET /api/v1/lists/mine
func (h *ListsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	mine, err := h.Service.ByOwner(r.Context(), auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", mine)
}

// Get handles GET /api/v1/lists/{id}
func (h *ListsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

// Update handles PUT /api/v1/lists/{id}
func (h *ListsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	var patch lists.ListPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.UpdateList(r.Context(), id, patch, auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "List updated successfully", list)
}

// Delete handles DELETE /api/v1/lists/{id}
func (h *ListsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if err := h.Service.DeleteList(r.Context(), id, auth.ActorID(r.Context())); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "List deleted successfully", nil)
}
