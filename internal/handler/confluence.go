package handler

import (
	"net/http"
	"strconv"

	"tickerpulse/internal/confluence"
	"tickerpulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetConfluence godoc
// @Summary      Get the confluence score for a symbol
// @Description  Combines technical, sentiment and options-flow components into one agreement score
// @Tags         confluence
// @Produce      json
// @Param        symbol            path   string  true   "Equity symbol (e.g., AAPL)"
// @Param        hours             query  int     false  "Sentiment window in hours (1-168)"  default(24)
// @Param        use_sentiment     query  bool    false  "Override the sentiment component toggle"
// @Param        use_options_flow  query  bool    false  "Override the options-flow component toggle"
// @Success      200  {object}  domain.ConfluenceScore
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/confluence/{symbol} [get]
func (h *Handler) GetConfluence(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-confluence")
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

	opts, ok := toggleOverrides(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "toggle overrides must be true or false"})
		return
	}

	result, err := h.confluence.Score(ctx, symbol, hours, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "insufficient market data for " + symbol})
		return
	}

	c.JSON(http.StatusOK, result)
}

func toggleOverrides(c *gin.Context) (*confluence.Options, bool) {
	var opts confluence.Options
	overridden := false
	for query, target := range map[string]**bool{
		"use_sentiment":    &opts.UseSentiment,
		"use_options_flow": &opts.UseOptionsFlow,
	} {
		raw := c.Query(query)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false
		}
		*target = &v
		overridden = true
	}
	if !overridden {
		return nil, true
	}
	return &opts, true
}
