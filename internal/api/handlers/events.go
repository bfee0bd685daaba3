package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type EventHandler struct {
	store *storage.Store
	log   logx.Logger
}

func NewEventHandler(store *storage.Store, log logx.Logger) *EventHandler {
	return &EventHandler{store: store, log: log}
}

type viewEventReq struct {
	Product string `json:"product" binding:"required"`
}

type compareEventReq struct {
	Products []string `json:"products" binding:"required"`
}

// View counts one product page view. Beacons are fire-and-forget; bad slugs
// are accepted and simply never surface in the popularity ranking.
func (h *EventHandler) View(c *gin.Context) {
	var req viewEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.BumpView(c.Request.Context(), req.Product, time.Now()); err != nil {
		h.log.Error("bump view", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record view"})
		return
	}
	c.Status(http.StatusAccepted)
}

// Compare counts one comparison of two or more products.
func (h *EventHandler) Compare(c *gin.Context) {
	var req compareEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.BumpComparison(c.Request.Context(), req.Products, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}
