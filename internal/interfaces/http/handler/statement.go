package handler

import (
	"time"

	settlementapp "github.com/gestion/backend/internal/application/settlement"
	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatementHandler handles party account statement endpoints
type StatementHandler struct {
	BaseHandler
	statementService *settlementapp.StatementService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(statementService *settlementapp.StatementService) *StatementHandler {
	return &StatementHandler{statementService: statementService}
}

// StatementRowResponse is one line of a party account statement
type StatementRowResponse struct {
	DocumentID     string    `json:"document_id"`
	Kind           string    `json:"kind"`
	Number         string    `json:"number"`
	IssueDate      time.Time `json:"issue_date"`
	Voided         bool      `json:"voided"`
	TotalAmount    string    `json:"total_amount"`
	Allocated      string    `json:"allocated"`
	Remaining      string    `json:"remaining"`
	SignedEffect   string    `json:"signed_effect"`
	RunningBalance string    `json:"running_balance"`
}

// StatementResponse is a party's account statement
type StatementResponse struct {
	PartyID string                 `json:"party_id"`
	Rows    []StatementRowResponse `json:"rows"`
	Balance string                 `json:"balance"`
}

// PendingDebtResponse is one open debt document, oldest first
type PendingDebtResponse struct {
	Document  DocumentResponse `json:"document"`
	Allocated string           `json:"allocated"`
	Remaining string           `json:"remaining"`
}

// StatementRequest is the query for a party statement
type StatementRequest struct {
	FromDate      string `form:"from_date" binding:"omitempty"`
	ToDate        string `form:"to_date" binding:"omitempty"`
	IncludeVoided bool   `form:"include_voided" binding:"omitempty"`
}

func toStatementResponse(s *settlement.Statement) StatementResponse {
	resp := StatementResponse{
		PartyID: s.PartyID.String(),
		Rows:    make([]StatementRowResponse, 0, len(s.Rows)),
		Balance: s.Balance.String(),
	}
	for _, row := range s.Rows {
		resp.Rows = append(resp.Rows, StatementRowResponse{
			DocumentID:     row.DocumentID.String(),
			Kind:           row.Kind.String(),
			Number:         row.Number,
			IssueDate:      row.IssueDate,
			Voided:         row.Voided,
			TotalAmount:    row.TotalAmount.String(),
			Allocated:      row.Allocated.String(),
			Remaining:      row.Remaining.String(),
			SignedEffect:   row.SignedEffect.String(),
			RunningBalance: row.RunningBalance.String(),
		})
	}
	return resp
}

// GetStatement builds a party's account statement with optional date range
// and voided document visibility
func (h *StatementHandler) GetStatement(c *gin.Context) {
	partyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid party ID format")
		return
	}

	var req StatementRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var query settlementapp.StatementQuery
	query.IncludeVoided = req.IncludeVoided
	if req.FromDate != "" {
		from, err := parseDateTime(req.FromDate)
		if err != nil {
			h.BadRequest(c, "Invalid from date format")
			return
		}
		query.FromDate = &from
	}
	if req.ToDate != "" {
		to, err := parseDateTime(req.ToDate)
		if err != nil {
			h.BadRequest(c, "Invalid to date format")
			return
		}
		query.ToDate = &to
	}

	statement, err := h.statementService.Statement(c.Request.Context(), partyID, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toStatementResponse(statement))
}

// GetPending lists a party's open debt documents oldest first, for
// building imputation pick lists
func (h *StatementHandler) GetPending(c *gin.Context) {
	partyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid party ID format")
		return
	}

	balances, err := h.statementService.Pending(c.Request.Context(), partyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]PendingDebtResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, PendingDebtResponse{
			Document:  toDocumentResponse(b.Document),
			Allocated: b.Allocated.String(),
			Remaining: b.Remaining.String(),
		})
	}

	h.Success(c, out)
}
