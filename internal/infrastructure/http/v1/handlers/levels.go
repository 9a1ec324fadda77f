package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// LevelHandler serves the aggregated stock level report.
type LevelHandler struct {
	*BaseHandler
	levels *stock.LevelService
}

// NewLevelHandler creates a new level handler.
func NewLevelHandler(base *BaseHandler, levels *stock.LevelService) *LevelHandler {
	return &LevelHandler{
		BaseHandler: base,
		levels:      levels,
	}
}

// Levels returns aggregated stock per product/location group.
// GET /api/v1/stock/levels?productId=...&locationId=...
func (h *LevelHandler) Levels(c *gin.Context) {
	var query stock.LevelQuery

	if raw := c.Query("productId"); raw != "" {
		productID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid product id").WithDetail("query", "productId"))
			return
		}
		query.ProductID = &productID
	}

	if raw := c.Query("locationId"); raw != "" {
		locationID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid location id").WithDetail("query", "locationId"))
			return
		}
		query.LocationID = &locationID
	}

	levels, err := h.levels.Levels(c.Request.Context(), h.GetTenantKey(c), query)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(levels, len(levels)))
}
