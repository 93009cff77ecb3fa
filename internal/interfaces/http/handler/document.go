package handler

import (
	"time"

	settlementapp "github.com/gestion/backend/internal/application/settlement"
	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentHandler handles document posting and lookup endpoints
type DocumentHandler struct {
	BaseHandler
	documentService   *settlementapp.DocumentService
	allocationService *settlementapp.AllocationService
	statementService  *settlementapp.StatementService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(
	documentService *settlementapp.DocumentService,
	allocationService *settlementapp.AllocationService,
	statementService *settlementapp.StatementService,
) *DocumentHandler {
	return &DocumentHandler{
		documentService:   documentService,
		allocationService: allocationService,
		statementService:  statementService,
	}
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID          string               `json:"id"`
	PartyID     string               `json:"party_id"`
	Kind        string               `json:"kind"`
	Number      string               `json:"number"`
	IssueDate   time.Time            `json:"issue_date"`
	TotalAmount string               `json:"total_amount"`
	Instruments []InstrumentResponse `json:"instruments,omitempty"`
	Observation string               `json:"observation,omitempty"`
	Settled     bool                 `json:"settled"`
	Voided      bool                 `json:"voided"`
	VoidedAt    *time.Time           `json:"voided_at,omitempty"`
	VoidReason  string               `json:"void_reason,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// InstrumentResponse represents a payment instrument in API responses
type InstrumentResponse struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// DocumentDetailResponse is the full capacity picture of one document
type DocumentDetailResponse struct {
	Document    DocumentResponse         `json:"document"`
	Allocated   string                   `json:"allocated"`
	Remaining   string                   `json:"remaining"`
	Allocations []AllocationLineResponse `json:"allocations"`
}

// AllocationLineResponse annotates an allocation with its counter-party document
type AllocationLineResponse struct {
	ID                 string    `json:"id"`
	SourceID           string    `json:"source_id"`
	TargetID           string    `json:"target_id"`
	Amount             string    `json:"amount"`
	AllocatedAt        time.Time `json:"allocated_at"`
	Observation        string    `json:"observation,omitempty"`
	CounterpartyID     string    `json:"counterparty_id"`
	CounterpartyKind   string    `json:"counterparty_kind"`
	CounterpartyNumber string    `json:"counterparty_number"`
}

// RegisterDebtRequest is the request body for posting an invoice or purchase
type RegisterDebtRequest struct {
	PartyID     string  `json:"party_id" binding:"required,uuid"`
	Kind        string  `json:"kind" binding:"required,oneof=INVOICE PURCHASE"`
	Number      string  `json:"number" binding:"required,min=1,max=50"`
	IssueDate   string  `json:"issue_date" binding:"required"`
	TotalAmount float64 `json:"total_amount" binding:"required,gt=0"`
	Observation string  `json:"observation" binding:"omitempty,max=500"`
}

// RegisterAdjustmentRequest is the request body for posting a debit or credit note
type RegisterAdjustmentRequest struct {
	PartyID     string  `json:"party_id" binding:"required,uuid"`
	Kind        string  `json:"kind" binding:"required,oneof=DEBIT_NOTE CREDIT_NOTE"`
	Number      string  `json:"number" binding:"required,min=1,max=50"`
	IssueDate   string  `json:"issue_date" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Observation string  `json:"observation" binding:"omitempty,max=500"`
}

// VoidDocumentRequest is the request body for reversing a document
type VoidDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

func toDocumentResponse(d *settlement.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:          d.ID.String(),
		PartyID:     d.PartyID.String(),
		Kind:        d.Kind.String(),
		Number:      d.Number,
		IssueDate:   d.IssueDate,
		TotalAmount: d.TotalAmount.String(),
		Observation: d.Observation,
		Settled:     d.Settled,
		Voided:      d.Voided,
		VoidedAt:    d.VoidedAt,
		VoidReason:  d.VoidReason,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, i := range d.Instruments {
		resp.Instruments = append(resp.Instruments, InstrumentResponse{
			ID:        i.ID.String(),
			Method:    i.Method.String(),
			Amount:    i.Amount.String(),
			Reference: i.Reference,
		})
	}
	return resp
}

func toAllocationLineResponse(line settlementapp.AllocationLine) AllocationLineResponse {
	a := line.Allocation
	return AllocationLineResponse{
		ID:                 a.ID.String(),
		SourceID:           a.SourceID.String(),
		TargetID:           a.TargetID.String(),
		Amount:             a.Amount.String(),
		AllocatedAt:        a.AllocatedAt,
		Observation:        a.Observation,
		CounterpartyID:     line.CounterpartyID.String(),
		CounterpartyKind:   line.CounterpartyKind.String(),
		CounterpartyNumber: line.CounterpartyNumber,
	}
}

// RegisterDebt posts a debt document with its externally computed total
func (h *DocumentHandler) RegisterDebt(c *gin.Context) {
	var req RegisterDebtRequest
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

	doc, err := h.documentService.RegisterDebt(c.Request.Context(), settlementapp.RegisterDebtRequest{
		PartyID:     partyID,
		Kind:        settlement.DocumentKind(req.Kind),
		Number:      req.Number,
		IssueDate:   issueDate,
		TotalAmount: decimal.NewFromFloat(req.TotalAmount),
		Observation: req.Observation,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toDocumentResponse(doc))
}

// RegisterAdjustment posts a debit or credit note
func (h *DocumentHandler) RegisterAdjustment(c *gin.Context) {
	var req RegisterAdjustmentRequest
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

	doc, err := h.documentService.RegisterAdjustment(c.Request.Context(), settlementapp.RegisterAdjustmentRequest{
		PartyID:     partyID,
		Kind:        settlement.DocumentKind(req.Kind),
		Number:      req.Number,
		IssueDate:   issueDate,
		Amount:      decimal.NewFromFloat(req.Amount),
		Observation: req.Observation,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toDocumentResponse(doc))
}

// GetDocument retrieves a document by ID
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toDocumentResponse(doc))
}

// GetDocumentDetail retrieves a document with its allocation rows and
// remaining capacity
func (h *DocumentHandler) GetDocumentDetail(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	detail, err := h.statementService.Detail(c.Request.Context(), documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := DocumentDetailResponse{
		Document:    toDocumentResponse(detail.Document),
		Allocated:   detail.Allocated.String(),
		Remaining:   detail.Remaining.String(),
		Allocations: make([]AllocationLineResponse, 0, len(detail.Allocations)),
	}
	for _, line := range detail.Allocations {
		resp.Allocations = append(resp.Allocations, toAllocationLineResponse(line))
	}

	h.Success(c, resp)
}

// VoidDocument reverses a document: removes all its allocation rows and
// marks it voided so it no longer affects the party balance
func (h *DocumentHandler) VoidDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	var req VoidDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.allocationService.ReverseDocument(c.Request.Context(), documentID, req.Reason); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
