package settlement

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentBalance pairs a document with its allocated and remaining
// amounts. Remaining is always derived from the allocation rows, never
// read from a stored column.
type DocumentBalance struct {
	Document  *Document       `json:"document"`
	Allocated decimal.Decimal `json:"allocated"`
	Remaining decimal.Decimal `json:"remaining"`
}

// IsSettled returns true when no allocatable capacity remains
func (b *DocumentBalance) IsSettled() bool {
	return b.Remaining.IsZero()
}

// StatementRow is one line of a party's account statement
type StatementRow struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	Kind           DocumentKind    `json:"kind"`
	Number         string          `json:"number"`
	IssueDate      time.Time       `json:"issue_date"`
	Voided         bool            `json:"voided"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Allocated      decimal.Decimal `json:"allocated"`
	Remaining      decimal.Decimal `json:"remaining"`
	SignedEffect   decimal.Decimal `json:"signed_effect"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Statement is a party's full account statement. Balance is the sum of
// signed effects of all non-voided documents: positive means the party
// owes the business (or the business owes the supplier), zero means the
// account is square.
type Statement struct {
	PartyID uuid.UUID       `json:"party_id"`
	Rows    []StatementRow  `json:"rows"`
	Balance decimal.Decimal `json:"balance"`
}

// AllocationIndex groups allocation rows by the documents they touch so
// balance math stays O(docs + allocations) instead of rescanning the
// slice per document.
type AllocationIndex struct {
	bySource map[uuid.UUID]decimal.Decimal
	byTarget map[uuid.UUID]decimal.Decimal
}

// NewAllocationIndex builds an index over the given allocation rows
func NewAllocationIndex(allocations []*Allocation) *AllocationIndex {
	idx := &AllocationIndex{
		bySource: make(map[uuid.UUID]decimal.Decimal, len(allocations)),
		byTarget: make(map[uuid.UUID]decimal.Decimal, len(allocations)),
	}
	for _, a := range allocations {
		idx.bySource[a.SourceID] = idx.bySource[a.SourceID].Add(a.Amount)
		idx.byTarget[a.TargetID] = idx.byTarget[a.TargetID].Add(a.Amount)
	}
	return idx
}

// AllocatedFor returns the total amount allocated against a document.
// Debt-side documents consume capacity as allocation targets; payment-side
// documents consume capacity as allocation sources.
func (idx *AllocationIndex) AllocatedFor(d *Document) decimal.Decimal {
	if d.Kind.IsDebtSide() {
		return idx.byTarget[d.ID]
	}
	return idx.bySource[d.ID]
}

// BalanceFor computes a document's allocated and remaining amounts.
// Voided documents carry no capacity regardless of allocation history.
func (idx *AllocationIndex) BalanceFor(d *Document) DocumentBalance {
	allocated := idx.AllocatedFor(d)
	remaining := d.TotalAmount.Sub(allocated)
	if d.Voided {
		remaining = decimal.Zero
	}
	return DocumentBalance{Document: d, Allocated: allocated, Remaining: remaining}
}

// sortDocuments orders documents by (issue date, id) ascending. The id
// tiebreak keeps statements and lock acquisition deterministic when
// several documents share a date.
func sortDocuments(documents []*Document) {
	sort.SliceStable(documents, func(i, j int) bool {
		if !documents[i].IssueDate.Equal(documents[j].IssueDate) {
			return documents[i].IssueDate.Before(documents[j].IssueDate)
		}
		return bytes.Compare(documents[i].ID[:], documents[j].ID[:]) < 0
	})
}

// BuildStatement assembles a party's statement from its documents and the
// allocation rows touching them. The same inputs always yield the same
// rows in the same order. Voided documents appear with a zero signed
// effect so the history stays visible without moving the balance.
func BuildStatement(partyID uuid.UUID, documents []*Document, allocations []*Allocation) *Statement {
	docs := make([]*Document, 0, len(documents))
	for _, d := range documents {
		if d.PartyID == partyID {
			docs = append(docs, d)
		}
	}
	sortDocuments(docs)

	idx := NewAllocationIndex(allocations)
	rows := make([]StatementRow, 0, len(docs))
	running := decimal.Zero

	for _, d := range docs {
		balance := idx.BalanceFor(d)
		effect := d.SignedEffect()
		running = running.Add(effect)
		rows = append(rows, StatementRow{
			DocumentID:     d.ID,
			Kind:           d.Kind,
			Number:         d.Number,
			IssueDate:      d.IssueDate,
			Voided:         d.Voided,
			TotalAmount:    d.TotalAmount,
			Allocated:      balance.Allocated,
			Remaining:      balance.Remaining,
			SignedEffect:   effect,
			RunningBalance: running,
		})
	}

	return &Statement{PartyID: partyID, Rows: rows, Balance: running}
}

// PendingDebts filters the debt-side documents that still have remaining
// capacity, oldest first. This is the candidate list an operator imputes
// payments against.
func PendingDebts(documents []*Document, allocations []*Allocation) []DocumentBalance {
	idx := NewAllocationIndex(allocations)
	docs := make([]*Document, 0, len(documents))
	for _, d := range documents {
		if d.Kind.IsDebtSide() && !d.Voided {
			docs = append(docs, d)
		}
	}
	sortDocuments(docs)

	pending := make([]DocumentBalance, 0, len(docs))
	for _, d := range docs {
		if balance := idx.BalanceFor(d); balance.Remaining.IsPositive() {
			pending = append(pending, balance)
		}
	}
	return pending
}

// AvailableCapacity returns how much of a payment-side document is still
// unallocated, given the allocation rows where it is the source.
func AvailableCapacity(d *Document, allocations []*Allocation) decimal.Decimal {
	return NewAllocationIndex(allocations).BalanceFor(d).Remaining
}
