package handler

import (
	"net/http"
	"strconv"
	"strings"

	"tickerpulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	minWindowHours = 1
	maxWindowHours = 168
)

// windowHours parses the hours query parameter. Zero means "use the
// configured default"; anything else outside [1,168] is rejected.
func windowHours(c *gin.Context) (int, bool) {
	raw := c.Query("hours")
	if raw == "" {
		return 0, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < minWindowHours || hours > maxWindowHours {
		return 0, false
	}
	return hours, true
}

// GetSentiment godoc
// @Summary      Get aggregated sentiment for a symbol
// @Description  Combines all available sources into a unified time-decayed sentiment score
// @Tags         sentiment
// @Produce      json
// @Param        symbol   path   string  true   "Equity symbol (e.g., AAPL)"
// @Param        hours    query  int     false  "Trailing window in hours (1-168)"  default(24)
// @Param        sources  query  string  false  "Comma-separated source filter"
// @Success      200  {object}  domain.AggregatedSentiment
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/sentiment/{symbol} [get]
func (h *Handler) GetSentiment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-sentiment")
	defer span.End()

	symbol, ok := domain.NormalizeSymbol(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + c.Param("symbol")})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	hours, ok := windowHours(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer in [1,168]"})
		return
	}

	var sources []string
	if raw := c.Query("sources"); raw != "" {
		sources = strings.Split(raw, ",")
	}

	result, err := h.sentiment.GetAggregatedSentiment(ctx, symbol, hours, sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sentiment data available for " + symbol})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSourceSentiments godoc
// @Summary      Get per-source sentiment for a symbol
// @Description  Returns each source's individual reading without aggregation
// @Tags         sentiment
// @Produce      json
// @Param        symbol  path   string  true   "Equity symbol (e.g., AAPL)"
// @Param        hours   query  int     false  "Trailing window in hours (1-168)"  default(24)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/sentiment/{symbol}/sources [get]
func (h *Handler) GetSourceSentiments(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-source-sentiments")
	defer span.End()

	symbol, ok := domain.NormalizeSymbol(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + c.Param("symbol")})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	hours, ok := windowHours(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer in [1,168]"})
		return
	}

	results := h.sentiment.GetSourceSentiments(ctx, symbol, hours)
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"sources": results,
	})
}
