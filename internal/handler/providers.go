package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListProviders godoc
// @Summary      List registered sentiment providers
// @Description  Returns the source names that passed the availability check at startup
// @Tags         providers
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Security     ApiKeyAuth
// @Router       /api/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	names := h.providers.Names()
	c.JSON(http.StatusOK, gin.H{
		"providers": names,
		"count":     len(names),
	})
}
