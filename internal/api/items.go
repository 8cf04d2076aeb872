package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// ItemsHandler handles item CRUD and lifecycle endpoints.
type ItemsHandler struct {
	DB      *sqlx.DB
	Metrics *metrics.Metrics
}

// itemResponse adds the derived status fields, computed for today.
type itemResponse struct {
	model.Item
	IsArchived          bool `json:"isArchived"`
	IsExpired           bool `json:"isExpired"`
	DaysUntilExpiration int  `json:"daysUntilExpiration"`
}

func newItemResponse(item model.Item, today model.Date) itemResponse {
	return itemResponse{
		Item:                item,
		IsArchived:          model.IsArchived(item),
		IsExpired:           model.IsExpired(item, today),
		DaysUntilExpiration: model.DaysUntilExpiration(item, today),
	}
}

func newItemResponses(items []model.Item) []itemResponse {
	today := model.Today()
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newItemResponse(item, today))
	}
	return out
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.ItemFilter
	if v := r.URL.Query().Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "archived must be true or false")
			return
		}
		filter.Archived = &archived
	}

	items, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponses(items))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req)
	if err != nil {
		storeError(w, err, "create item")
		return
	}

	w.Header().Set("Location", "/api/items/"+item.ID)
	jsonResponse(w, http.StatusCreated, newItemResponse(*item, model.Today()))
}

// CreateBatch handles POST /api/items/batch.
func (h *ItemsHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req []model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := store.CreateItems(r.Context(), h.DB, req)
	if err != nil {
		storeError(w, err, "create items")
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponses(items))
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err, "get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponse(*item, model.Today()))
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := store.UpdateItem(r.Context(), h.DB, chi.URLParam(r, "id"), req); err != nil {
		storeError(w, err, "update item")
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteItem(r.Context(), h.DB, chi.URLParam(r, "id")); err != nil {
		storeError(w, err, "delete item")
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// MarkUsed handles POST /api/items/{id}/mark-as-used.
func (h *ItemsHandler) MarkUsed(w http.ResponseWriter, r *http.Request) {
	item, err := store.MarkItemUsed(r.Context(), h.DB, chi.URLParam(r, "id"), time.Now())
	if err != nil {
		storeError(w, err, "mark item used")
		return
	}
	h.Metrics.ItemArchived(string(model.ArchiveUsed))
	jsonResponse(w, http.StatusOK, newItemResponse(*item, model.Today()))
}

// ClearHistory handles DELETE /api/items/history.
func (h *ItemsHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := store.ClearHistory(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "clear history")
		return
	}
	slog.Info("history cleared", "items", n)
	jsonResponse(w, http.StatusNoContent, nil)
}
