package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles adjustment and receipt requests.
type StockHandler struct {
	*BaseHandler
	adjustments *stock.AdjustmentService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, adjustments *stock.AdjustmentService) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		adjustments: adjustments,
	}
}

// Adjust records one stock adjustment.
// POST /api/v1/stock/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cmd, err := req.ToCommand(h.GetTenantKey(c), h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.adjustments.Adjust(c.Request.Context(), cmd)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromAdjustmentResult(result))
}

// Receive creates a new lot from a received consignment.
// POST /api/v1/stock/receipts
func (h *StockHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cmd, err := req.ToCommand(h.GetTenantKey(c), h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.adjustments.Receive(c.Request.Context(), cmd)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromAdjustmentResult(result))
}

// GetAdjustment returns one ledger entry.
// GET /api/v1/stock/adjustments/:id
func (h *StockHandler) GetAdjustment(c *gin.Context) {
	adjustmentID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid adjustment id"))
		return
	}

	adj, err := h.adjustments.GetAdjustment(c.Request.Context(), h.GetTenantKey(c), adjustmentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, adj)
}

// ListAdjustments returns ledger history for a product, newest first.
// GET /api/v1/stock/adjustments?productId=...
func (h *StockHandler) ListAdjustments(c *gin.Context) {
	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id").WithDetail("query", "productId"))
		return
	}

	filter := stock.AdjustmentFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if t := c.Query("type"); t != "" {
		adjType := stock.AdjustmentType(t)
		filter.Type = &adjType
	}

	adjustments, err := h.adjustments.ListAdjustments(c.Request.Context(), h.GetTenantKey(c), productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(adjustments, len(adjustments)))
}

// ItemHistory returns the audit trail of one lot, newest first.
// GET /api/v1/stock/items/:id/history
func (h *StockHandler) ItemHistory(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid stock item id"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	records, err := h.adjustments.ItemHistory(c.Request.Context(), h.GetTenantKey(c), itemID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(records, len(records)))
}

// GetItem returns one lot.
// GET /api/v1/stock/items/:id
func (h *StockHandler) GetItem(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid stock item id"))
		return
	}

	item, err := h.adjustments.GetItem(c.Request.Context(), h.GetTenantKey(c), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}
