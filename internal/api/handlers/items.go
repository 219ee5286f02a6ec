package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

type ItemsHandler struct {
	Service *lists.ItemService
	Env     string
}

func NewItemsHandler(service *lists.ItemService, env string) *ItemsHandler {
	return &ItemsHandler{Service: service, Env: env}
}

// Create handles POST /api/v1/lists/{listId}/items
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listId", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	var input lists.CreateItemInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	item, err := h.Service.CreateItem(r.Context(), listID, input, auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, "Item created successfully", item)
}

// ByList handles GET /api/v1/lists/{listId}/items
func (h *ItemsHandler) ByList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listId", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	page, err := h.Service.ByList(r.Context(), listID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", page)
}

// Stats handles GET /api/v1/lists/{listId}/items/stats
func (h *ItemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listId", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	stats, err := h.Service.Stats(r.Context(), listID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

// Get handles GET /api/v1/items/{id}
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "item")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	item, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", item)
}

// Update handles PUT /api/v1/items/{id}
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "item")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	var patch lists.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	item, err := h.Service.UpdateItem(r.Context(), id, patch, auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "Item updated successfully", item)
}

// Toggle handles PATCH /api/v1/items/{id}/toggle
func (h *ItemsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "item")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	item, err := h.Service.ToggleItem(r.Context(), id, auth.ActorID(r.Context()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	message := "Item marked as incomplete"
	if item.Completed {
		message = "Item marked as completed"
	}
	writeData(w, http.StatusOK, message, item)
}

// Delete handles DELETE /api/v1/items/{id}
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "item")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if err := h.Service.DeleteItem(r.Context(), id, auth.ActorID(r.Context())); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "Item deleted successfully", nil)
}
