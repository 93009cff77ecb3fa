package settlement

import (
	"time"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentRegisteredEvent is raised when a new document enters the ledger
type DocumentRegisteredEvent struct {
	shared.BaseDomainEvent
	DocumentID  uuid.UUID       `json:"document_id"`
	PartyID     uuid.UUID       `json:"party_id"`
	Kind        DocumentKind    `json:"kind"`
	Number      string          `json:"number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IssueDate   time.Time       `json:"issue_date"`
}

// EventType returns the event type name
func (e *DocumentRegisteredEvent) EventType() string {
	return "DocumentRegistered"
}

// NewDocumentRegisteredEvent creates a new DocumentRegisteredEvent
func NewDocumentRegisteredEvent(d *Document) *DocumentRegisteredEvent {
	return &DocumentRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("DocumentRegistered", d.ID, "Document"),
		DocumentID:      d.ID,
		PartyID:         d.PartyID,
		Kind:            d.Kind,
		Number:          d.Number,
		TotalAmount:     d.TotalAmount,
		IssueDate:       d.IssueDate,
	}
}

// DocumentVoidedEvent is raised when a document is voided
type DocumentVoidedEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID    `json:"document_id"`
	PartyID    uuid.UUID    `json:"party_id"`
	Kind       DocumentKind `json:"kind"`
	Number     string       `json:"number"`
	Reason     string       `json:"reason"`
	VoidedAt   time.Time    `json:"voided_at"`
}

// EventType returns the event type name
func (e *DocumentVoidedEvent) EventType() string {
	return "DocumentVoided"
}

// NewDocumentVoidedEvent creates a new DocumentVoidedEvent
func NewDocumentVoidedEvent(d *Document, reason string) *DocumentVoidedEvent {
	voidedAt := time.Now()
	if d.VoidedAt != nil {
		voidedAt = *d.VoidedAt
	}
	return &DocumentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("DocumentVoided", d.ID, "Document"),
		DocumentID:      d.ID,
		PartyID:         d.PartyID,
		Kind:            d.Kind,
		Number:          d.Number,
		Reason:          reason,
		VoidedAt:        voidedAt,
	}
}

// DocumentSettledEvent is raised when a debt document's remaining capacity
// reaches zero.
type DocumentSettledEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID    `json:"document_id"`
	PartyID    uuid.UUID    `json:"party_id"`
	Kind       DocumentKind `json:"kind"`
	Number     string       `json:"number"`
}

// EventType returns the event type name
func (e *DocumentSettledEvent) EventType() string {
	return "DocumentSettled"
}

// NewDocumentSettledEvent creates a new DocumentSettledEvent
func NewDocumentSettledEvent(d *Document) *DocumentSettledEvent {
	return &DocumentSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("DocumentSettled", d.ID, "Document"),
		DocumentID:      d.ID,
		PartyID:         d.PartyID,
		Kind:            d.Kind,
		Number:          d.Number,
	}
}
