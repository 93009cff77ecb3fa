package settlement

import (
	"fmt"
	"time"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind is the closed set of document types the ledger understands.
// Each kind has a fixed role (debt target or payment source) and a fixed
// effect polarity on the party balance.
type DocumentKind string

const (
	DocumentKindInvoice      DocumentKind = "INVOICE"       // customer debt
	DocumentKindPurchase     DocumentKind = "PURCHASE"      // supplier debt
	DocumentKindReceipt      DocumentKind = "RECEIPT"       // customer payment
	DocumentKindPaymentOrder DocumentKind = "PAYMENT_ORDER" // supplier payment
	DocumentKindDebitNote    DocumentKind = "DEBIT_NOTE"    // adjustment, behaves as debt
	DocumentKindCreditNote   DocumentKind = "CREDIT_NOTE"   // adjustment, behaves as payment
)

// IsValid checks if the kind is a valid DocumentKind
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindInvoice, DocumentKindPurchase, DocumentKindReceipt,
		DocumentKindPaymentOrder, DocumentKindDebitNote, DocumentKindCreditNote:
		return true
	}
	return false
}

// String returns the string representation of DocumentKind
func (k DocumentKind) String() string {
	return string(k)
}

// IsDebtSide returns true for kinds that receive allocations (targets)
func (k DocumentKind) IsDebtSide() bool {
	switch k {
	case DocumentKindInvoice, DocumentKindPurchase, DocumentKindDebitNote:
		return true
	}
	return false
}

// IsPaymentSide returns true for kinds whose amount is applied to debts (sources)
func (k DocumentKind) IsPaymentSide() bool {
	switch k {
	case DocumentKindReceipt, DocumentKindPaymentOrder, DocumentKindCreditNote:
		return true
	}
	return false
}

// IsPaymentDocument returns true for receipts and payment orders, which
// carry an instrument breakdown
func (k DocumentKind) IsPaymentDocument() bool {
	return k == DocumentKindReceipt || k == DocumentKindPaymentOrder
}

// IsAdjustment returns true for debit and credit notes
func (k DocumentKind) IsAdjustment() bool {
	return k == DocumentKindDebitNote || k == DocumentKindCreditNote
}

// Sign returns the effect polarity on the party balance: debt-side
// documents increase what is owed, payment-side documents decrease it.
func (k DocumentKind) Sign() int {
	if k.IsDebtSide() {
		return 1
	}
	return -1
}

// Document is the single aggregate for every ledger document. The kind tag
// selects the role; no open-ended subtyping is used because new kinds are
// rare and each has fixed polarity.
type Document struct {
	shared.BaseAggregateRoot
	PartyID     uuid.UUID       `json:"party_id"`
	Kind        DocumentKind    `json:"kind"`
	Number      string          `json:"number"`
	IssueDate   time.Time       `json:"issue_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Instruments Instruments     `json:"instruments,omitempty"` // payment documents only
	Observation string          `json:"observation,omitempty"`
	// Settled is a cached hint set when remaining capacity reaches zero.
	// It is advisory only: capacity is always recomputed from the ledger
	// before any allocation decision.
	Settled    bool       `json:"settled"`
	Voided     bool       `json:"voided"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason string     `json:"void_reason,omitempty"`
}

func newDocument(partyID uuid.UUID, kind DocumentKind, number string, issueDate time.Time, total valueobject.Money) (*Document, error) {
	if partyID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PARTY", "Party ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", "Document kind is not valid")
	}
	if number == "" {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot exceed 50 characters")
	}
	if issueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Total amount must be positive")
	}

	return &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PartyID:           partyID,
		Kind:              kind,
		Number:            number,
		IssueDate:         issueDate,
		TotalAmount:       total.Amount(),
		Instruments:       Instruments{},
	}, nil
}

// NewDebtDocument creates an invoice or purchase posted by the external
// invoicing workflow. The total is trusted as-is.
func NewDebtDocument(partyID uuid.UUID, kind DocumentKind, number string, issueDate time.Time, total valueobject.Money) (*Document, error) {
	if kind != DocumentKindInvoice && kind != DocumentKindPurchase {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", "Debt document kind must be INVOICE or PURCHASE")
	}
	d, err := newDocument(partyID, kind, number, issueDate, total)
	if err != nil {
		return nil, err
	}
	d.AddDomainEvent(NewDocumentRegisteredEvent(d))
	return d, nil
}

// NewPaymentDocument creates a receipt or payment order. The instrument
// breakdown must sum exactly to the document total.
func NewPaymentDocument(partyID uuid.UUID, kind DocumentKind, number string, issueDate time.Time, instruments Instruments) (*Document, error) {
	if kind != DocumentKindReceipt && kind != DocumentKindPaymentOrder {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", "Payment document kind must be RECEIPT or PAYMENT_ORDER")
	}
	if len(instruments) == 0 {
		return nil, shared.NewValidationError("MISSING_INSTRUMENTS", "Payment document requires at least one instrument")
	}
	for _, in := range instruments {
		if !in.Method.IsValid() {
			return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Instrument payment method is not valid")
		}
		if in.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewValidationError("INVALID_INSTRUMENT_AMOUNT", "Instrument amount must be positive")
		}
	}

	total := instruments.Total()
	d, err := newDocument(partyID, kind, number, issueDate, valueobject.NewMoneyARS(total))
	if err != nil {
		return nil, err
	}
	d.Instruments = instruments
	d.AddDomainEvent(NewDocumentRegisteredEvent(d))
	return d, nil
}

// NewAdjustmentDocument creates a debit or credit note. Like payment
// documents, adjustments may carry unallocated capacity indefinitely.
func NewAdjustmentDocument(partyID uuid.UUID, kind DocumentKind, number string, issueDate time.Time, amount valueobject.Money) (*Document, error) {
	if kind != DocumentKindDebitNote && kind != DocumentKindCreditNote {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", "Adjustment kind must be DEBIT_NOTE or CREDIT_NOTE")
	}
	d, err := newDocument(partyID, kind, number, issueDate, amount)
	if err != nil {
		return nil, err
	}
	d.AddDomainEvent(NewDocumentRegisteredEvent(d))
	return d, nil
}

// SignedEffect returns the document's contribution to the party balance.
// Voided documents contribute nothing.
func (d *Document) SignedEffect() decimal.Decimal {
	if d.Voided {
		return decimal.Zero
	}
	if d.Kind.Sign() < 0 {
		return d.TotalAmount.Neg()
	}
	return d.TotalAmount
}

// CanBeAllocated returns true if the document can gain new allocations
func (d *Document) CanBeAllocated() bool {
	return !d.Voided
}

// Void logically cancels the document. Documents are never physically
// deleted once posted, preserving audit history. Voiding twice is a
// conflict so reversal stays idempotent in effect.
func (d *Document) Void(reason string) error {
	if d.Voided {
		return shared.NewConflictError("ALREADY_VOIDED",
			fmt.Sprintf("Document %s is already voided", d.Number))
	}
	if reason == "" {
		return shared.NewValidationError("INVALID_REASON", "Void reason is required")
	}

	now := time.Now()
	d.Voided = true
	d.VoidedAt = &now
	d.VoidReason = reason
	d.Settled = false
	d.Touch()
	d.IncrementVersion()

	d.AddDomainEvent(NewDocumentVoidedEvent(d, reason))
	return nil
}

// MarkSettled caches the fully-allocated hint. Never authoritative.
func (d *Document) MarkSettled(settled bool) {
	if d.Settled == settled {
		return
	}
	d.Settled = settled
	d.Touch()

	if settled {
		d.AddDomainEvent(NewDocumentSettledEvent(d))
	}
}

// GetTotalAmountMoney returns the total as Money
func (d *Document) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(d.TotalAmount)
}
