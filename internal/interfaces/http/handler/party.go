package handler

import (
	"time"

	settlementapp "github.com/gestion/backend/internal/application/settlement"
	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PartyHandler handles party (customer/supplier) API endpoints
type PartyHandler struct {
	BaseHandler
	partyService *settlementapp.PartyService
}

// NewPartyHandler creates a new PartyHandler
func NewPartyHandler(partyService *settlementapp.PartyService) *PartyHandler {
	return &PartyHandler{partyService: partyService}
}

// PartyResponse represents a party in API responses
type PartyResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatePartyRequest is the request body for registering a party
type CreatePartyRequest struct {
	Kind string `json:"kind" binding:"required,oneof=CUSTOMER SUPPLIER"`
	Code string `json:"code" binding:"required,min=1,max=50"`
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// ListPartiesRequest is the query for the party listing
type ListPartiesRequest struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=CUSTOMER SUPPLIER"`
	Search   string `form:"search" binding:"omitempty,max=200"`
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

func toPartyResponse(p *settlement.Party) PartyResponse {
	return PartyResponse{
		ID:        p.ID.String(),
		Kind:      p.Kind.String(),
		Code:      p.Code,
		Name:      p.Name,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPartyResponses(parties []settlement.Party) []PartyResponse {
	out := make([]PartyResponse, 0, len(parties))
	for i := range parties {
		out = append(out, toPartyResponse(&parties[i]))
	}
	return out
}

// CreateParty registers a new customer or supplier
func (h *PartyHandler) CreateParty(c *gin.Context) {
	var req CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	party, err := h.partyService.CreateParty(c.Request.Context(), settlementapp.CreatePartyRequest{
		Kind: settlement.PartyKind(req.Kind),
		Code: req.Code,
		Name: req.Name,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPartyResponse(party))
}

// GetParty retrieves a party by ID
func (h *PartyHandler) GetParty(c *gin.Context) {
	partyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid party ID format")
		return
	}

	party, err := h.partyService.GetParty(c.Request.Context(), partyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPartyResponse(party))
}

// ListParties retrieves a paginated list of parties with optional kind filter
func (h *PartyHandler) ListParties(c *gin.Context) {
	var req ListPartiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var kind *settlement.PartyKind
	if req.Kind != "" {
		k := settlement.PartyKind(req.Kind)
		kind = &k
	}

	filter := shared.DefaultFilter()
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.Search = req.Search

	result, err := h.partyService.ListParties(c.Request.Context(), kind, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toPartyResponses(result.Items), result.Total, filter.Page, filter.PageSize)
}
