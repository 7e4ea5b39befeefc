package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store-api/internal/item"
)

func newRouter(t *testing.T) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(NewMemoryStore(), item.NewMemoryStore())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /store/{name}", h.Get)
	mux.HandleFunc("POST /store/{name}", h.Create)
	mux.HandleFunc("DELETE /store/{name}", h.Delete)
	mux.HandleFunc("GET /stores", h.List)
	return mux, h
}

func call(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStoreLifecycle(t *testing.T) {
	router, h := newRouter(t)

	rec := call(router, http.MethodPost, "/store/north")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"north","items":[]}`, rec.Body.String())

	rec = call(router, http.MethodPost, "/store/north")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"A store with name 'north' already exists."}`, rec.Body.String())

	require.NoError(t, h.items.Save(context.Background(), &item.Item{Name: "chair", Price: 2, StoreID: 1}))
	require.NoError(t, h.items.Save(context.Background(), &item.Item{Name: "lamp", Price: 4, StoreID: 7}))

	rec = call(router, http.MethodGet, "/store/north")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"north","items":[{"id":1,"name":"chair","price":2,"store_id":1}]}`, rec.Body.String())

	call(router, http.MethodPost, "/store/south")
	rec = call(router, http.MethodGet, "/stores")
	assert.JSONEq(t, `{"stores":[
		{"id":1,"name":"north","items":[{"id":1,"name":"chair","price":2,"store_id":1}]},
		{"id":2,"name":"south","items":[]}
	]}`, rec.Body.String())

	rec = call(router, http.MethodDelete, "/store/north")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Store deleted"}`, rec.Body.String())

	rec = call(router, http.MethodGet, "/store/north")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Store not found"}`, rec.Body.String())

	rec = call(router, http.MethodDelete, "/store/north")
	assert.Equal(t, http.StatusOK, rec.Code)
}
