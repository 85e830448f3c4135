package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdevries/prijswachter/internal/promo"
	"jdevries/prijswachter/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func floatPtr(v float64) *float64 { return &v }

func seededRouter(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()

	fixtures := []store.NewProduct{
		{Name: "Halfvolle melk 1L", URL: "https://www.ah.nl/p/1", Price: floatPtr(1.09), SourceType: "category", Supermarket: "ah"},
		{Name: "Volle melk 1L", URL: "https://www.aldi.nl/p/2", Price: floatPtr(0.99), SourceType: "deals", Supermarket: "aldi"},
		{
			Name: "Goudse kaas", URL: "https://www.ah.nl/p/3", Price: floatPtr(4.99),
			SourceType: "brand", Supermarket: "ah",
			Sale: promo.Annotation{IsActiveSale: true, SalePrice: floatPtr(3.74), SaleType: "korting"},
		},
	}
	for _, np := range fixtures {
		_, _, err := st.FindOrCreateProduct(ctx, np)
		require.NoError(t, err)
	}
	return NewHandler(st).Router(), st
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestSearchProducts(t *testing.T) {
	r, _ := seededRouter(t)

	t.Run("all products", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Products []productResponse `json:"products"`
			Count    int               `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 3, body.Count)
		assert.Len(t, body.Products, 3)
	})

	t.Run("keyword filter", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products?q=melk")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Products []productResponse `json:"products"`
			Count    int               `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Count)
	})

	t.Run("supermarket filter", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products?supermarkets=aldi")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Products []productResponse `json:"products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Products, 1)
		assert.Equal(t, "Volle melk 1L", body.Products[0].Name)
	})

	t.Run("combined filter", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products?q=melk&supermarkets=ah,aldi")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Count)
	})

	t.Run("sale fields exposed", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products?q=kaas")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Products []productResponse `json:"products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Products, 1)
		p := body.Products[0]
		assert.True(t, p.IsActiveSale)
		require.NotNil(t, p.SalePrice)
		assert.InDelta(t, 3.74, *p.SalePrice, 0.0001)
		assert.Equal(t, "korting", p.SaleType)
	})
}

func TestGetProduct(t *testing.T) {
	r, st := seededRouter(t)

	prod, err := st.GetProductByURL(context.Background(), "https://www.ah.nl/p/1")
	require.NoError(t, err)

	w := doRequest(r, http.MethodGet, fmt.Sprintf("/api/products/%d", prod.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var body productResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Halfvolle melk 1L", body.Name)
	require.NotNil(t, body.CurrentPrice)
	assert.InDelta(t, 1.09, *body.CurrentPrice, 0.0001)

	t.Run("not found", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products/9999")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products/abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetPriceHistory(t *testing.T) {
	r, st := seededRouter(t)
	ctx := context.Background()

	prod, err := st.GetProductByURL(ctx, "https://www.aldi.nl/p/2")
	require.NoError(t, err)
	require.NoError(t, st.RecordPriceChange(ctx, prod.ID, 1.09, promo.Annotation{}))

	w := doRequest(r, http.MethodGet, fmt.Sprintf("/api/products/%d/history", prod.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		History []store.PriceHistoryEntry `json:"history"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.InDelta(t, 0.99, body.History[0].Price, 0.0001)
	assert.InDelta(t, 1.09, body.History[1].Price, 0.0001)

	t.Run("not found", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/products/9999/history")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetStats(t *testing.T) {
	r, _ := seededRouter(t)

	w := doRequest(r, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Products)
	assert.Equal(t, 3, stats.HistoryEntries)
	assert.Equal(t, 2, stats.PerSupermarket["ah"])
	assert.Equal(t, 1, stats.PerSupermarket["aldi"])
}

func TestClearAll(t *testing.T) {
	r, st := seededRouter(t)

	w := doRequest(r, http.MethodDelete, "/api/products")
	require.Equal(t, http.StatusOK, w.Code)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Products)
}

func TestHealth(t *testing.T) {
	r, _ := seededRouter(t)

	w := doRequest(r, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
