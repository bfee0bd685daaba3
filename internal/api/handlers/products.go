package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type ProductHandler struct {
	store *storage.Store
	log   logx.Logger
}

func NewProductHandler(store *storage.Store, log logx.Logger) *ProductHandler {
	return &ProductHandler{store: store, log: log}
}

type productDoc struct {
	Slug   string                    `json:"slug"`
	Type   string                    `json:"type"`
	Title  string                    `json:"title"`
	Brand  string                    `json:"brand"`
	Score  float64                   `json:"score,omitempty"`
	Specs  storage.Specs             `json:"specs"`
	Image  string                    `json:"image,omitempty"`
	Prices map[string]priceRegionDoc `json:"prices,omitempty"`
}

type priceRegionDoc struct {
	Price    float64         `json:"price"`
	Currency string          `json:"currency"`
	Retailer string          `json:"retailer"`
	URL      string          `json:"url,omitempty"`
	InStock  bool            `json:"in_stock"`
	Stats    json.RawMessage `json:"stats,omitempty"`
	Metrics  json.RawMessage `json:"metrics,omitempty"`
}

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// List returns published products, optionally filtered by ?type=, with their
// cached regional prices. Paged via ?limit= and ?offset=.
func (h *ProductHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)

	products, err := h.store.Products(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.log.Error("list products", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}
	cache, err := h.store.CacheRows(c.Request.Context())
	if err != nil {
		h.log.Error("list cache rows", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch prices"})
		return
	}

	total := len(products)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	docs := make([]productDoc, 0, end-offset)
	for _, p := range products[offset:end] {
		docs = append(docs, toProductDoc(p, cache[p.Slug]))
	}
	c.JSON(http.StatusOK, gin.H{"data": docs, "meta": gin.H{
		"total": total, "limit": limit, "offset": offset,
	}})
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}

// Get returns one product with prices, stats and metrics.
func (h *ProductHandler) Get(c *gin.Context) {
	slug := c.Param("slug")
	product, err := h.store.Product(c.Request.Context(), slug)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		h.log.Error("get product", logx.String("slug", slug), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}
	if !product.Published {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	rows, err := h.store.CacheRowsForProduct(c.Request.Context(), slug)
	if err != nil {
		h.log.Error("get cache rows", logx.String("slug", slug), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch prices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toProductDoc(product, rows)})
}

func toProductDoc(p storage.Product, rows []storage.CacheRow) productDoc {
	doc := productDoc{
		Slug:  p.Slug,
		Type:  p.Type,
		Title: p.Title,
		Brand: p.Brand,
		Score: p.Score,
		Specs: p.Specs,
		Image: p.Image,
	}
	if len(rows) > 0 {
		doc.Prices = make(map[string]priceRegionDoc, len(rows))
		for _, r := range rows {
			doc.Prices[r.Region] = priceRegionDoc{
				Price:    r.Price,
				Currency: r.Currency,
				Retailer: r.Retailer,
				URL:      r.URL,
				InStock:  r.InStock,
				Stats:    json.RawMessage(r.StatsJSON),
				Metrics:  json.RawMessage(r.MetricsJSON),
			}
		}
	}
	return doc
}
