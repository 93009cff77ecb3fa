package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/infrastructure/cache"
	"github.com/gestion/backend/internal/infrastructure/logger"
	"github.com/gestion/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatementService answers read-only balance questions. It takes no locks
// and may observe state slightly stale relative to an in-flight write,
// which is acceptable because nothing here makes allocation decisions.
type StatementService struct {
	partyRepo      settlement.PartyRepository
	documentRepo   settlement.DocumentRepository
	allocationRepo settlement.AllocationRepository
	cache          cache.StatementCache // optional, may be nil
	cacheTTL       time.Duration
}

// NewStatementService creates a new StatementService
func NewStatementService(
	partyRepo settlement.PartyRepository,
	documentRepo settlement.DocumentRepository,
	allocationRepo settlement.AllocationRepository,
	statementCache cache.StatementCache,
	cacheTTL time.Duration,
) *StatementService {
	return &StatementService{
		partyRepo:      partyRepo,
		documentRepo:   documentRepo,
		allocationRepo: allocationRepo,
		cache:          statementCache,
		cacheTTL:       cacheTTL,
	}
}

// StatementQuery filters a statement request
type StatementQuery struct {
	FromDate      *time.Time
	ToDate        *time.Time
	IncludeVoided bool
}

// isUnfiltered reports whether the query covers the party's full history,
// which is the only shape worth caching
func (q StatementQuery) isUnfiltered() bool {
	return q.FromDate == nil && q.ToDate == nil && !q.IncludeVoided
}

// AllocationLine is one allocation touching a document, annotated with its
// counter-party document
type AllocationLine struct {
	Allocation         *settlement.Allocation  `json:"allocation"`
	CounterpartyID     uuid.UUID               `json:"counterparty_id"`
	CounterpartyKind   settlement.DocumentKind `json:"counterparty_kind"`
	CounterpartyNumber string                  `json:"counterparty_number"`
}

// DocumentDetail is the full capacity picture of one document
type DocumentDetail struct {
	Document    *settlement.Document `json:"document"`
	Allocated   decimal.Decimal      `json:"allocated"`
	Remaining   decimal.Decimal      `json:"remaining"`
	Allocations []AllocationLine     `json:"allocations"`
}

// Statement builds a party's account statement: one row per document in
// range, ordered by (issue date, id), with signed effects and a running
// balance. Deterministic over unchanged data. The unfiltered statement is
// served from the snapshot cache when possible.
func (s *StatementService) Statement(ctx context.Context, partyID uuid.UUID, query StatementQuery) (*settlement.Statement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "statement")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrPartyID, partyID.String())

	if query.isUnfiltered() && s.cache != nil {
		cached, err := s.cache.Get(ctx, partyID)
		if err != nil {
			logger.FromContext(ctx).Warn("Statement cache read failed",
				zap.String("party_id", partyID.String()),
				zap.Error(err))
		} else if cached != nil {
			telemetry.SetOK(span)
			return cached, nil
		}
	}

	party, err := s.partyRepo.FindByID(ctx, partyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	if party == nil {
		err := shared.NewNotFoundError("PARTY_NOT_FOUND", "Party not found")
		telemetry.RecordError(span, err)
		return nil, err
	}

	documents, err := s.documentRepo.FindByParty(ctx, partyID, settlement.DocumentFilter{
		FromDate:      query.FromDate,
		ToDate:        query.ToDate,
		IncludeVoided: query.IncludeVoided,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	allocations, err := s.loadAllocations(ctx, documents)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	statement := settlement.BuildStatement(partyID, documents, allocations)

	if query.isUnfiltered() && s.cache != nil {
		if err := s.cache.Set(ctx, statement, s.cacheTTL); err != nil {
			logger.FromContext(ctx).Warn("Statement cache write failed",
				zap.String("party_id", partyID.String()),
				zap.Error(err))
		}
	}

	telemetry.SetOK(span)
	return statement, nil
}

// Detail reports a document's header, capacity figures and every
// allocation touching it with the counter-party document
func (s *StatementService) Detail(ctx context.Context, documentID uuid.UUID) (*DocumentDetail, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "detail")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID.String())

	doc, err := s.documentRepo.FindByID(ctx, documentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		err := shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document not found")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var rows []*settlement.Allocation
	if doc.Kind.IsDebtSide() {
		rows, err = s.allocationRepo.FindByTarget(ctx, documentID)
	} else {
		rows, err = s.allocationRepo.FindBySource(ctx, documentID)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	counterpartyIDs := make([]uuid.UUID, 0, len(rows))
	for _, a := range rows {
		id := a.SourceID
		if id == documentID {
			id = a.TargetID
		}
		counterpartyIDs = append(counterpartyIDs, id)
	}
	counterparties, err := s.documentRepo.FindByIDs(ctx, counterpartyIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load counterparty documents: %w", err)
	}
	byID := make(map[uuid.UUID]*settlement.Document, len(counterparties))
	for _, d := range counterparties {
		byID[d.ID] = d
	}

	allocated := decimal.Zero
	lines := make([]AllocationLine, 0, len(rows))
	for _, a := range rows {
		allocated = allocated.Add(a.Amount)
		counterpartyID := a.SourceID
		if counterpartyID == documentID {
			counterpartyID = a.TargetID
		}
		line := AllocationLine{Allocation: a, CounterpartyID: counterpartyID}
		if counterparty, ok := byID[counterpartyID]; ok {
			line.CounterpartyKind = counterparty.Kind
			line.CounterpartyNumber = counterparty.Number
		}
		lines = append(lines, line)
	}

	remaining := doc.TotalAmount.Sub(allocated)
	if doc.Voided {
		remaining = decimal.Zero
	}

	telemetry.SetOK(span)
	return &DocumentDetail{
		Document:    doc,
		Allocated:   allocated,
		Remaining:   remaining,
		Allocations: lines,
	}, nil
}

// Pending lists a party's debt documents that still have remaining
// capacity, oldest first. Capacity is recomputed from the ledger, never
// read from the settled flag.
func (s *StatementService) Pending(ctx context.Context, partyID uuid.UUID) ([]settlement.DocumentBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "pending")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrPartyID, partyID.String())

	party, err := s.partyRepo.FindByID(ctx, partyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	if party == nil {
		err := shared.NewNotFoundError("PARTY_NOT_FOUND", "Party not found")
		telemetry.RecordError(span, err)
		return nil, err
	}

	documents, err := s.documentRepo.FindByParty(ctx, partyID, settlement.DocumentFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	allocations, err := s.loadAllocations(ctx, documents)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	return settlement.PendingDebts(documents, allocations), nil
}

// loadAllocations fetches every allocation row touching the given documents
func (s *StatementService) loadAllocations(ctx context.Context, documents []*settlement.Document) ([]*settlement.Allocation, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(documents))
	for _, d := range documents {
		ids = append(ids, d.ID)
	}
	allocations, err := s.allocationRepo.FindByDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}
	return allocations, nil
}
