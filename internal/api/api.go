// Package api exposes the stored products over HTTP for the search
// frontend.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"jdevries/prijswachter/internal/store"
	"jdevries/prijswachter/logger"
)

// Handler serves the product query and administrative endpoints.
type Handler struct {
	store store.Store
	log   *logger.Logger
}

// NewHandler creates a handler on top of the given store.
func NewHandler(st store.Store) *Handler {
	return &Handler{
		store: st,
		log:   logger.ForAPI(),
	}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/products", h.SearchProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/history", h.GetPriceHistory)
		api.GET("/stats", h.GetStats)
		api.DELETE("/products", h.ClearAll)
	}
	r.GET("/health", h.Health)

	return r
}

// productResponse is the flattened wire shape of a product.
type productResponse struct {
	Name         string   `json:"name"`
	CurrentPrice *float64 `json:"current_price"`
	URL          string   `json:"url"`
	Supermarket  string   `json:"supermarket"`
	SourceType   string   `json:"source_type"`
	IsActiveSale bool     `json:"is_active_sale"`
	IsFutureSale bool     `json:"is_future_sale"`
	SalePrice    *float64 `json:"sale_price,omitempty"`
	SaleStartsAt string   `json:"sale_starts_at,omitempty"`
	SaleType     string   `json:"sale_type,omitempty"`
}

func toResponse(p store.Product) productResponse {
	return productResponse{
		Name:         p.Name,
		CurrentPrice: p.CurrentPrice,
		URL:          p.URL,
		Supermarket:  p.Supermarket,
		SourceType:   p.SourceType,
		IsActiveSale: p.Sale.IsActiveSale,
		IsFutureSale: p.Sale.IsFutureSale,
		SalePrice:    p.Sale.SalePrice,
		SaleStartsAt: p.Sale.SaleStartsAt,
		SaleType:     p.Sale.SaleType,
	}
}

// SearchProducts returns products matching ?q= (name substring) and
// ?supermarkets= (comma-separated allow-list).
func (h *Handler) SearchProducts(c *gin.Context) {
	filter := store.SearchFilter{
		Keyword: strings.TrimSpace(c.Query("q")),
	}
	if raw := c.Query("supermarkets"); raw != "" {
		for _, sm := range strings.Split(raw, ",") {
			if sm = strings.TrimSpace(sm); sm != "" {
				filter.Supermarkets = append(filter.Supermarkets, sm)
			}
		}
	}

	products, err := h.store.Search(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}

	responses := make([]productResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, toResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": responses, "count": len(responses)})
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	prod, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Product fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}
	c.JSON(http.StatusOK, toResponse(prod))
}

// GetPriceHistory returns the append-only price history of a product,
// oldest entry first.
func (h *Handler) GetPriceHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if _, err := h.store.GetProductByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.log.Error().Err(err).Int64("id", id).Msg("Product fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}

	history, err := h.store.HistoryForProduct(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("History fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// GetStats returns product and history counts per supermarket.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ClearAll empties the entire store. Used before a full resync.
func (h *Handler) ClearAll(c *gin.Context) {
	if err := h.store.ClearAll(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("Clear failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear"})
		return
	}
	h.log.Info().Msg("Store cleared")
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
