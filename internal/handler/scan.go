package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerScan godoc
// @Summary      Run one watchlist scan cycle manually
// @Description  Scores every watchlist symbol and returns the results that cleared the minimum threshold
// @Tags         scan
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/scan/run [post]
func (h *Handler) TriggerScan(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan job unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-scan")
	defer span.End()

	signals, err := h.scanner.RunScan(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"signals": signals,
		"count":   len(signals),
	})
}
