package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"store-api/internal/item"
	"store-api/internal/record"
)

type Handler struct {
	stores record.Store[Store]
	items  record.Store[item.Item]
}

func NewHandler(stores record.Store[Store], items record.Store[item.Item]) *Handler {
	return &Handler{stores: stores, items: items}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.stores.FindByName(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Store not found")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred loading the store.")
		return
	}

	views, err := h.withItems(r.Context(), []Store{s})
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred loading the store.")
		return
	}

	writeJSON(w, http.StatusOK, views[0])
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exists := fmt.Sprintf("A store with name '%s' already exists.", name)

	_, err := h.stores.FindByName(r.Context(), name)
	switch {
	case err == nil:
		writeMessage(w, http.StatusBadRequest, exists)
		return
	case !errors.Is(err, record.ErrNotFound):
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred creating the store.")
		return
	}

	s := Store{Name: name}
	if err := h.stores.Save(r.Context(), &s); err != nil {
		if errors.Is(err, record.ErrConflict) {
			writeMessage(w, http.StatusBadRequest, exists)
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred creating the store.")
		return
	}

	writeJSON(w, http.StatusCreated, View{ID: s.ID, Name: s.Name, Items: []item.Item{}})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := h.stores.FindByName(r.Context(), r.PathValue("name"))
	if err == nil {
		err = h.stores.Delete(r.Context(), s)
	}
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred deleting the store.")
		return
	}

	writeMessage(w, http.StatusOK, "Store deleted")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.FindAll(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred listing stores.")
		return
	}

	views, err := h.withItems(r.Context(), stores)
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred listing stores.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stores": views})
}

func (h *Handler) withItems(ctx context.Context, stores []Store) ([]View, error) {
	items, err := h.items.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	byStore := make(map[int64][]item.Item)
	for _, it := range items {
		byStore[it.StoreID] = append(byStore[it.StoreID], it)
	}

	views := make([]View, 0, len(stores))
	for _, s := range stores {
		owned := byStore[s.ID]
		if owned == nil {
			owned = []item.Item{}
		}
		views = append(views, View{ID: s.ID, Name: s.Name, Items: owned})
	}
	return views, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
