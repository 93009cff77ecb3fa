package settlement

import (
	"fmt"
	"time"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation links one payment-side source document to one debt-side
// target document for a specific amount. It is the only entity the engine
// mutates repeatedly; zero-amount allocations are deleted, never stored.
type Allocation struct {
	shared.BaseEntity
	SourceID    uuid.UUID       `json:"source_id"`
	TargetID    uuid.UUID       `json:"target_id"`
	Amount      decimal.Decimal `json:"amount"`
	AllocatedAt time.Time       `json:"allocated_at"`
	Observation string          `json:"observation,omitempty"`
}

// NewAllocation creates an allocation between a source and a target
// document, enforcing the structural rules that do not depend on ledger
// sums: role compatibility, same party, positive amount, live documents.
// Capacity checks against the ledger belong to the engine.
func NewAllocation(source, target *Document, amount valueobject.Money, observation string) (*Allocation, error) {
	if source == nil || target == nil {
		return nil, shared.NewValidationError("INVALID_ALLOCATION", "Source and target documents are required")
	}
	if !source.Kind.IsPaymentSide() {
		return nil, shared.NewValidationError("INVALID_SOURCE_KIND",
			fmt.Sprintf("Document %s cannot act as allocation source", source.Kind))
	}
	if !target.Kind.IsDebtSide() {
		return nil, shared.NewValidationError("INVALID_TARGET_KIND",
			fmt.Sprintf("Document %s cannot act as allocation target", target.Kind))
	}
	if !source.CanBeAllocated() {
		return nil, shared.NewConflictError("SOURCE_VOIDED",
			fmt.Sprintf("Document %s is voided and cannot gain allocations", source.Number))
	}
	if !target.CanBeAllocated() {
		return nil, shared.NewConflictError("TARGET_VOIDED",
			fmt.Sprintf("Document %s is voided and cannot gain allocations", target.Number))
	}
	if source.PartyID != target.PartyID {
		// Documents of different parties can never settle each other. This
		// indicates corrupted data or a programming error upstream.
		return nil, shared.NewIntegrityError("CROSS_PARTY_ALLOCATION",
			fmt.Sprintf("Documents %s and %s belong to different parties", source.Number, target.Number))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	return &Allocation{
		BaseEntity:  shared.NewBaseEntity(),
		SourceID:    source.ID,
		TargetID:    target.ID,
		Amount:      amount.Amount(),
		AllocatedAt: time.Now(),
		Observation: observation,
	}, nil
}

// SetAmount changes the allocated amount. A zero amount is not stored;
// callers delete the row instead.
func (a *Allocation) SetAmount(amount valueobject.Money) error {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	a.Amount = amount.Amount()
	a.Touch()
	return nil
}

// Touches returns true if the allocation references the given document on
// either side
func (a *Allocation) Touches(documentID uuid.UUID) bool {
	return a.SourceID == documentID || a.TargetID == documentID
}

// GetAmountMoney returns the amount as Money
func (a *Allocation) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(a.Amount)
}
