package handler

import (
	"time"

	settlementapp "github.com/gestion/backend/internal/application/settlement"
	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationHandler handles payment posting and allocation engine endpoints
type AllocationHandler struct {
	BaseHandler
	allocationService *settlementapp.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocationService *settlementapp.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService}
}

// AllocationResponse represents an allocation row in API responses
type AllocationResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	TargetID    string    `json:"target_id"`
	Amount      string    `json:"amount"`
	AllocatedAt time.Time `json:"allocated_at"`
	Observation string    `json:"observation,omitempty"`
}

// CreatePaymentResponse reports what the engine committed for a new payment
type CreatePaymentResponse struct {
	Document           DocumentResponse     `json:"document"`
	Allocations        []AllocationResponse `json:"allocations"`
	AllocatedTotal     string               `json:"allocated_total"`
	UnallocatedSurplus string               `json:"unallocated_surplus"`
}

// InstrumentRequest is one means of payment inside a payment request
type InstrumentRequest struct {
	Method    string  `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHECK CARD OTHER"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Reference string  `json:"reference" binding:"omitempty,max=200"`
}

// AllocationLineRequest is one requested allocation line
type AllocationLineRequest struct {
	TargetID    string  `json:"target_id" binding:"required,uuid"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Observation string  `json:"observation" binding:"omitempty,max=500"`
}

// CreatePaymentRequest is the request body for posting a receipt or payment
// order, optionally applying it against debt documents in the same call
type CreatePaymentRequest struct {
	PartyID     string                  `json:"party_id" binding:"required,uuid"`
	Kind        string                  `json:"kind" binding:"required,oneof=RECEIPT PAYMENT_ORDER"`
	Number      string                  `json:"number" binding:"required,min=1,max=50"`
	IssueDate   string                  `json:"issue_date" binding:"required"`
	Instruments []InstrumentRequest     `json:"instruments" binding:"required,min=1,dive"`
	Allocations []AllocationLineRequest `json:"allocations" binding:"omitempty,dive"`
	Observation string                  `json:"observation" binding:"omitempty,max=500"`
}

// ImputeRequest applies an existing payment document's spare capacity
// against debt documents
type ImputeRequest struct {
	Allocations []AllocationLineRequest `json:"allocations" binding:"required,min=1,dive"`
}

// AllocationChangeRequest amends one allocation row; zero deletes it
type AllocationChangeRequest struct {
	AllocationID string  `json:"allocation_id" binding:"required,uuid"`
	NewAmount    float64 `json:"new_amount" binding:"min=0"`
}

// ModifyAllocationsRequest rewrites a payment document's allocation set
type ModifyAllocationsRequest struct {
	Changes []AllocationChangeRequest `json:"changes" binding:"required,min=1,dive"`
}

func toAllocationResponse(a *settlement.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:          a.ID.String(),
		SourceID:    a.SourceID.String(),
		TargetID:    a.TargetID.String(),
		Amount:      a.Amount.String(),
		AllocatedAt: a.AllocatedAt,
		Observation: a.Observation,
	}
}

func toAllocationResponses(allocations []*settlement.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, toAllocationResponse(a))
	}
	return out
}

func toAllocationRequests(lines []AllocationLineRequest) ([]settlementapp.AllocationRequest, error) {
	out := make([]settlementapp.AllocationRequest, 0, len(lines))
	for _, line := range lines {
		targetID, err := uuid.Parse(line.TargetID)
		if err != nil {
			return nil, err
		}
		out = append(out, settlementapp.AllocationRequest{
			TargetID:    targetID,
			Amount:      decimal.NewFromFloat(line.Amount),
			Observation: line.Observation,
		})
	}
	return out, nil
}

// CreatePayment posts a receipt or payment order and applies its requested
// allocations as one atomic batch
func (h *AllocationHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	partyID, err := uuid.Parse(req.PartyID)
	if err != nil {
		h.BadRequest(c, "Invalid party ID format")
		return
	}
	issueDate, err := parseDateTime(req.IssueDate)
	if err != nil {
		h.BadRequest(c, "Invalid issue date format")
		return
	}

	instruments := make(settlement.Instruments, 0, len(req.Instruments))
	for _, i := range req.Instruments {
		instrument, err := settlement.NewInstrument(
			settlement.PaymentMethod(i.Method),
			valueobject.NewMoneyARS(decimal.NewFromFloat(i.Amount)),
			i.Reference,
		)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		instruments = append(instruments, *instrument)
	}

	allocations, err := toAllocationRequests(req.Allocations)
	if err != nil {
		h.BadRequest(c, "Invalid target ID format")
		return
	}

	result, err := h.allocationService.CreateWithAllocations(c.Request.Context(), settlementapp.CreateWithAllocationsRequest{
		PartyID:     partyID,
		Kind:        settlement.DocumentKind(req.Kind),
		Number:      req.Number,
		IssueDate:   issueDate,
		Instruments: instruments,
		Allocations: allocations,
		Observation: req.Observation,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, CreatePaymentResponse{
		Document:           toDocumentResponse(result.Document),
		Allocations:        toAllocationResponses(result.Allocations),
		AllocatedTotal:     result.AllocatedTotal.String(),
		UnallocatedSurplus: result.UnallocatedSurplus.String(),
	})
}

// ImputeExisting applies an existing payment document's spare capacity
// against further debt documents
func (h *AllocationHandler) ImputeExisting(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	var req ImputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	requests, err := toAllocationRequests(req.Allocations)
	if err != nil {
		h.BadRequest(c, "Invalid target ID format")
		return
	}

	rows, err := h.allocationService.ImputeExisting(c.Request.Context(), sourceID, requests)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toAllocationResponses(rows))
}

// ModifyAllocations amends a payment document's allocation rows. A zero
// new amount deletes the row.
func (h *AllocationHandler) ModifyAllocations(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	var req ModifyAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	changes := make([]settlementapp.AllocationChange, 0, len(req.Changes))
	for _, change := range req.Changes {
		allocationID, err := uuid.Parse(change.AllocationID)
		if err != nil {
			h.BadRequest(c, "Invalid allocation ID format")
			return
		}
		changes = append(changes, settlementapp.AllocationChange{
			AllocationID: allocationID,
			NewAmount:    decimal.NewFromFloat(change.NewAmount),
		})
	}

	rows, err := h.allocationService.ModifyAllocations(c.Request.Context(), documentID, changes)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAllocationResponses(rows))
}

// ReverseAllocation removes a single allocation row, returning its amount
// to both documents' available capacity
func (h *AllocationHandler) ReverseAllocation(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	if err := h.allocationService.ReverseAllocation(c.Request.Context(), allocationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
