package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepos/internal/license"
	"github.com/storepos/pkg/models"
)

func TestRemoteDataService(t *testing.T) {
	var gotUser userPayload
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cof", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("category_id"))
		_ = json.NewEncoder(w).Encode([]models.Product{{ID: 1, Code: "7501", Name: "Coffee"}})
	})
	mux.HandleFunc("GET /api/v1/products/by-code/{code}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUser))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(gotUser.User)
	})
	mux.HandleFunc("PUT /api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /api/v1/reports/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	ds := NewRemoteDataService(srv.URL+"/", 5*time.Second)

	products, err := ds.ListProducts(ctx, ProductFilter{Query: "cof", CategoryID: 3})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Coffee", products[0].Name)

	_, err = ds.FindProductByCode(ctx, "0000")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := ds.CreateUser(ctx, models.User{Username: "luis", RoleID: 3}, "pw")
	require.NoError(t, err)
	assert.Equal(t, "luis", u.Username)
	assert.Equal(t, "pw", gotUser.Password)

	require.NoError(t, ds.UpdateStoreSettings(ctx, models.StoreSettings{Name: "Corner Shop"}))

	_, err = ds.Authenticate(ctx, models.Credentials{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = ds.SalesSummary(ctx, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, license.IsTransport(err))
}
