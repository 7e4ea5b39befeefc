package item

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"store-api/internal/auth"
	"store-api/internal/observability"
	"store-api/internal/record"
	"store-api/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	items record.Store[Item]
}

func NewHandler(items record.Store[Item]) *Handler {
	return &Handler{items: items}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.FindByName(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Item not found")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred loading the item.")
		return
	}

	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	_, err := h.items.FindByName(r.Context(), name)
	switch {
	case err == nil:
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("An item with name '%s' already exists.", name))
		return
	case !errors.Is(err, record.ErrNotFound):
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred inserting the item.")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	it := Item{Name: name, Price: *input.Price, StoreID: *input.StoreID}
	if err := h.items.Save(r.Context(), &it); err != nil {
		if errors.Is(err, record.ErrConflict) {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("An item with name '%s' already exists.", name))
			return
		}
		observability.CaptureError("item_create", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred inserting the item.")
		return
	}

	writeJSON(w, http.StatusCreated, it)
}

// Put creates the item or updates its price. The store of an existing item is
// left alone.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	it, err := h.upsert(r.Context(), name, input)
	if err != nil {
		observability.CaptureError("item_upsert", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred saving the item.")
		return
	}

	writeJSON(w, http.StatusOK, it)
}

// upsert retries once as an update when a concurrent request created the
// same name between the lookup and the insert.
func (h *Handler) upsert(ctx context.Context, name string, input Input) (Item, error) {
	for attempt := 0; ; attempt++ {
		it, err := h.items.FindByName(ctx, name)
		switch {
		case errors.Is(err, record.ErrNotFound):
			it = Item{Name: name, Price: *input.Price, StoreID: *input.StoreID}
		case err != nil:
			return Item{}, err
		default:
			it.Price = *input.Price
		}

		err = h.items.Save(ctx, &it)
		if errors.Is(err, record.ErrConflict) && it.ID == 0 && attempt == 0 {
			continue
		}
		return it, err
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.FindByName(r.Context(), r.PathValue("name"))
	if err == nil {
		err = h.items.Delete(r.Context(), it)
	}
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred deleting the item.")
		return
	}

	writeMessage(w, http.StatusOK, "Item deleted")
}

// List returns full items to authenticated callers and only names otherwise.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.FindAll(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred listing items.")
		return
	}

	if _, ok := auth.PrincipalFrom(r.Context()); ok {
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   names,
		"message": "More data available if you login.",
	})
}

func parseInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return Input{}, false
	}

	if details := validation.Struct(r.Context(), input); details != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": details})
		return Input{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
