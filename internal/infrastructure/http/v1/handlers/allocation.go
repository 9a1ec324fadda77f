package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// AllocationHandler handles reservation requests.
type AllocationHandler struct {
	*BaseHandler
	allocations *stock.AllocationService
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(base *BaseHandler, allocations *stock.AllocationService) *AllocationHandler {
	return &AllocationHandler{
		BaseHandler: base,
		allocations: allocations,
	}
}

// Allocate reserves stock against a lot.
// POST /api/v1/stock/allocations
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cmd, err := req.ToCommand(h.GetTenantKey(c), h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.allocations.Allocate(c.Request.Context(), cmd)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromAllocationResult(result))
}

// Release releases a reservation. Releasing an absent or already-released
// allocation is a 404, not a silent success.
// POST /api/v1/stock/allocations/:id/release
func (h *AllocationHandler) Release(c *gin.Context) {
	allocationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid allocation id"))
		return
	}

	result, err := h.allocations.Release(c.Request.Context(), h.GetTenantKey(c), allocationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReleaseResult(result))
}

// Get returns one reservation.
// GET /api/v1/stock/allocations/:id
func (h *AllocationHandler) Get(c *gin.Context) {
	allocationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid allocation id"))
		return
	}

	alloc, err := h.allocations.GetAllocation(c.Request.Context(), h.GetTenantKey(c), allocationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, alloc)
}

// ListByItem returns reservations against a lot.
// GET /api/v1/stock/items/:id/allocations
func (h *AllocationHandler) ListByItem(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid stock item id"))
		return
	}

	var status *stock.AllocationStatus
	if s := c.Query("status"); s != "" {
		st := stock.AllocationStatus(s)
		status = &st
	}

	allocations, err := h.allocations.ListAllocations(c.Request.Context(), h.GetTenantKey(c), itemID, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(allocations, len(allocations)))
}
