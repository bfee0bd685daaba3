package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

type HealthHandler struct {
	store *storage.Store
	log   logx.Logger
}

func NewHealthHandler(store *storage.Store, log logx.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

func (h *HealthHandler) Check(c *gin.Context) {
	version, err := h.store.SchemaVersion(c.Request.Context())
	if err != nil {
		h.log.Error("health check", logx.Err(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "schema_version": version})
}
