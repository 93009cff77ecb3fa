package settlement

import (
	"github.com/gestion/backend/internal/domain/shared"
)

// PartyKind distinguishes customers from suppliers
type PartyKind string

const (
	PartyKindCustomer PartyKind = "CUSTOMER"
	PartyKindSupplier PartyKind = "SUPPLIER"
)

// IsValid checks if the party kind is valid
func (k PartyKind) IsValid() bool {
	return k == PartyKindCustomer || k == PartyKindSupplier
}

// String returns the string representation of PartyKind
func (k PartyKind) String() string {
	return string(k)
}

// Party represents a customer or supplier that owns documents and carries
// a running balance derived from them.
type Party struct {
	shared.BaseAggregateRoot
	Kind   PartyKind `json:"kind"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

// NewParty creates a new party
func NewParty(kind PartyKind, code, name string) (*Party, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_PARTY_KIND", "Party kind must be CUSTOMER or SUPPLIER")
	}
	if code == "" {
		return nil, shared.NewValidationError("INVALID_PARTY_CODE", "Party code cannot be empty")
	}
	if len(code) > 30 {
		return nil, shared.NewValidationError("INVALID_PARTY_CODE", "Party code cannot exceed 30 characters")
	}
	if name == "" {
		return nil, shared.NewValidationError("INVALID_PARTY_NAME", "Party name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_PARTY_NAME", "Party name cannot exceed 200 characters")
	}

	return &Party{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		Code:              code,
		Name:              name,
		Active:            true,
	}, nil
}

// Deactivate marks the party as inactive; its documents remain readable
func (p *Party) Deactivate() {
	p.Active = false
	p.Touch()
	p.IncrementVersion()
}

// IsCustomer returns true for customer parties
func (p *Party) IsCustomer() bool {
	return p.Kind == PartyKindCustomer
}

// IsSupplier returns true for supplier parties
func (p *Party) IsSupplier() bool {
	return p.Kind == PartyKindSupplier
}
