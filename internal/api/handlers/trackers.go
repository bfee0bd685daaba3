package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridewatch/internal/pricing"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type TrackerHandler struct {
	store *storage.Store
	log   logx.Logger
}

func NewTrackerHandler(store *storage.Store, log logx.Logger) *TrackerHandler {
	return &TrackerHandler{store: store, log: log}
}

type createTrackerReq struct {
	Email       string  `json:"email" binding:"required,email"`
	Product     string  `json:"product" binding:"required"`
	Region      string  `json:"region" binding:"required"`
	Kind        string  `json:"kind" binding:"required"`
	TargetPrice float64 `json:"target_price"`
	DropPercent float64 `json:"drop_percent"`
}

// Create registers a new price tracker. The tracker stays dormant until the
// confirm endpoint is hit with the returned token (double opt-in).
func (h *TrackerHandler) Create(c *gin.Context) {
	var req createTrackerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	region := strings.ToUpper(strings.TrimSpace(req.Region))
	if !validRegion(region) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown region"})
		return
	}
	switch req.Kind {
	case storage.TrackerKindTarget:
		if req.TargetPrice <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_price must be > 0"})
			return
		}
	case storage.TrackerKindDrop:
		if req.DropPercent <= 0 || req.DropPercent >= 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "drop_percent must be between 0 and 100"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be target or drop"})
		return
	}

	ctx := c.Request.Context()
	product, err := h.store.Product(ctx, req.Product)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.log.Error("tracker product lookup", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tracker"})
		return
	}

	// Drop trackers measure against the price at signup time, so one must
	// exist; a zero baseline could never fire.
	var baseline float64
	row, err := h.store.CacheRow(ctx, req.Product, region)
	switch {
	case err == nil:
		baseline = row.Price
	case !errors.Is(err, storage.ErrNotFound):
		h.log.Error("tracker baseline lookup", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tracker"})
		return
	}
	if req.Kind == storage.TrackerKindDrop && baseline <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no current price for this product in " + region})
		return
	}

	tracker, err := h.store.CreateTracker(ctx, storage.Tracker{
		Token:         uuid.NewString(),
		Email:         req.Email,
		ProductSlug:   req.Product,
		Region:        region,
		Kind:          req.Kind,
		TargetPrice:   req.TargetPrice,
		DropPercent:   req.DropPercent,
		BaselinePrice: baseline,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "tracker already exists"})
		return
	}
	if err != nil {
		h.log.Error("create tracker", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tracker"})
		return
	}

	// Confirmation email is best effort; the token in the response covers
	// clients that confirm in-band.
	_, err = h.store.EnqueueEmail(ctx, storage.OutboxEmail{
		Recipient: req.Email,
		Subject:   "Confirm your price alert for " + product.Title,
		Body: "You asked us to watch " + product.Title + " prices for you.\n\n" +
			"Confirm this alert with token: " + tracker.Token + "\n" +
			"If this wasn't you, ignore this message and the alert stays off.\n",
	})
	if err != nil {
		h.log.Warn("confirm email enqueue failed", logx.String("token", tracker.Token), logx.Err(err))
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"token": tracker.Token}})
}

// Confirm activates a tracker from its emailed token.
func (h *TrackerHandler) Confirm(c *gin.Context) {
	err := h.store.ConfirmTracker(c.Request.Context(), c.Param("token"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
		return
	}
	if err != nil {
		h.log.Error("confirm tracker", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm tracker"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"confirmed": true}})
}

// Delete deactivates a tracker (the unsubscribe link).
func (h *TrackerHandler) Delete(c *gin.Context) {
	err := h.store.DeactivateTracker(c.Request.Context(), c.Param("token"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
		return
	}
	if err != nil {
		h.log.Error("deactivate tracker", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove tracker"})
		return
	}
	c.Status(http.StatusNoContent)
}

func validRegion(region string) bool {
	for _, r := range pricing.Regions() {
		if string(r) == region {
			return true
		}
	}
	return false
}
