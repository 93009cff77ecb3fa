package settlement

import (
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRecordedEvent is raised when capacity from a payment document
// is applied against a debt document
type AllocationRecordedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID       `json:"allocation_id"`
	SourceID     uuid.UUID       `json:"source_id"`
	TargetID     uuid.UUID       `json:"target_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *AllocationRecordedEvent) EventType() string {
	return "AllocationRecorded"
}

// NewAllocationRecordedEvent creates a new AllocationRecordedEvent
func NewAllocationRecordedEvent(a *Allocation) *AllocationRecordedEvent {
	return &AllocationRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationRecorded", a.SourceID, "Document"),
		AllocationID:    a.ID,
		SourceID:        a.SourceID,
		TargetID:        a.TargetID,
		Amount:          a.Amount,
	}
}

// AllocationAmendedEvent is raised when an existing allocation's amount changes
type AllocationAmendedEvent struct {
	shared.BaseDomainEvent
	AllocationID   uuid.UUID       `json:"allocation_id"`
	SourceID       uuid.UUID       `json:"source_id"`
	TargetID       uuid.UUID       `json:"target_id"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	Amount         decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *AllocationAmendedEvent) EventType() string {
	return "AllocationAmended"
}

// NewAllocationAmendedEvent creates a new AllocationAmendedEvent
func NewAllocationAmendedEvent(a *Allocation, previous decimal.Decimal) *AllocationAmendedEvent {
	return &AllocationAmendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationAmended", a.SourceID, "Document"),
		AllocationID:    a.ID,
		SourceID:        a.SourceID,
		TargetID:        a.TargetID,
		PreviousAmount:  previous,
		Amount:          a.Amount,
	}
}

// AllocationReversedEvent is raised when an allocation is removed and its
// capacity returned to the source document
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID       `json:"allocation_id"`
	SourceID     uuid.UUID       `json:"source_id"`
	TargetID     uuid.UUID       `json:"target_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *AllocationReversedEvent) EventType() string {
	return "AllocationReversed"
}

// NewAllocationReversedEvent creates a new AllocationReversedEvent
func NewAllocationReversedEvent(a *Allocation) *AllocationReversedEvent {
	return &AllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationReversed", a.SourceID, "Document"),
		AllocationID:    a.ID,
		SourceID:        a.SourceID,
		TargetID:        a.TargetID,
		Amount:          a.Amount,
	}
}
