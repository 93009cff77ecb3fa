package settlement

import (
	"context"
	"fmt"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// PartyService handles the party registry: the customers and suppliers
// documents belong to
type PartyService struct {
	partyRepo settlement.PartyRepository
}

// NewPartyService creates a new PartyService
func NewPartyService(partyRepo settlement.PartyRepository) *PartyService {
	return &PartyService{partyRepo: partyRepo}
}

// CreatePartyRequest represents a request to register a party
type CreatePartyRequest struct {
	Kind settlement.PartyKind
	Code string
	Name string
}

// CreateParty registers a new customer or supplier
func (s *PartyService) CreateParty(ctx context.Context, req CreatePartyRequest) (*settlement.Party, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "party", "create_party")
	defer span.End()

	exists, err := s.partyRepo.ExistsByCode(ctx, req.Code)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check party code: %w", err)
	}
	if exists {
		err := shared.NewConflictError("DUPLICATE_PARTY_CODE",
			fmt.Sprintf("Party with code %s already exists", req.Code))
		telemetry.RecordError(span, err)
		return nil, err
	}

	party, err := settlement.NewParty(req.Kind, req.Code, req.Name)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.partyRepo.Save(ctx, party); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save party: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPartyID, party.ID.String())
	telemetry.SetOK(span)
	return party, nil
}

// GetParty returns a party by ID
func (s *PartyService) GetParty(ctx context.Context, id uuid.UUID) (*settlement.Party, error) {
	party, err := s.partyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	if party == nil {
		return nil, shared.NewNotFoundError("PARTY_NOT_FOUND", "Party not found")
	}
	return party, nil
}

// ListParties returns parties with optional kind filtering and pagination
func (s *PartyService) ListParties(ctx context.Context, kind *settlement.PartyKind, filter shared.Filter) (*shared.Paginated[settlement.Party], error) {
	if kind != nil && !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_PARTY_KIND", "Party kind must be CUSTOMER or SUPPLIER")
	}
	result, err := s.partyRepo.FindAll(ctx, kind, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	return result, nil
}
