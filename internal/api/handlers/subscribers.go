package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type SubscriberHandler struct {
	store *storage.Store
	log   logx.Logger
}

func NewSubscriberHandler(store *storage.Store, log logx.Logger) *SubscriberHandler {
	return &SubscriberHandler{store: store, log: log}
}

type createSubscriberReq struct {
	Email string `json:"email" binding:"required,email"`
}

// Create signs an address up for the newsletter; dormant until confirmed.
func (h *SubscriberHandler) Create(c *gin.Context) {
	var req createSubscriberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.store.CreateSubscriber(c.Request.Context(), storage.Subscriber{
		Token: uuid.NewString(),
		Email: req.Email,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "already subscribed"})
		return
	}
	if err != nil {
		h.log.Error("create subscriber", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	_, err = h.store.EnqueueEmail(c.Request.Context(), storage.OutboxEmail{
		Recipient: req.Email,
		Subject:   "Confirm your newsletter subscription",
		Body: "Confirm your subscription with token: " + sub.Token + "\n" +
			"If this wasn't you, ignore this message.\n",
	})
	if err != nil {
		h.log.Warn("confirm email enqueue failed", logx.String("token", sub.Token), logx.Err(err))
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"token": sub.Token}})
}

func (h *SubscriberHandler) Confirm(c *gin.Context) {
	err := h.store.ConfirmSubscriber(c.Request.Context(), c.Param("token"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	if err != nil {
		h.log.Error("confirm subscriber", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"confirmed": true}})
}

func (h *SubscriberHandler) Delete(c *gin.Context) {
	err := h.store.DeactivateSubscriber(c.Request.Context(), c.Param("token"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	if err != nil {
		h.log.Error("deactivate subscriber", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsubscribe"})
		return
	}
	c.Status(http.StatusNoContent)
}
