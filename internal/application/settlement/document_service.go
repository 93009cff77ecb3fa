package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/gestion/backend/internal/infrastructure/cache"
	"github.com/gestion/backend/internal/infrastructure/logger"
	"github.com/gestion/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DocumentService registers debt and adjustment documents posted by the
// invoicing workflow. Allocation-bearing operations live on
// AllocationService.
type DocumentService struct {
	partyRepo    settlement.PartyRepository
	documentRepo settlement.DocumentRepository
	uow          settlement.UnitOfWork
	cache        cache.StatementCache // optional, may be nil
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	partyRepo settlement.PartyRepository,
	documentRepo settlement.DocumentRepository,
	uow settlement.UnitOfWork,
	statementCache cache.StatementCache,
) *DocumentService {
	return &DocumentService{
		partyRepo:    partyRepo,
		documentRepo: documentRepo,
		uow:          uow,
		cache:        statementCache,
	}
}

// RegisterDebtRequest represents a request to post an invoice or purchase
type RegisterDebtRequest struct {
	PartyID     uuid.UUID
	Kind        settlement.DocumentKind
	Number      string
	IssueDate   time.Time
	TotalAmount decimal.Decimal
	Observation string
}

// RegisterDebt posts a debt document (invoice or purchase). The total is
// trusted as provided by the invoicing workflow.
func (s *DocumentService) RegisterDebt(ctx context.Context, req RegisterDebtRequest) (*settlement.Document, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "register_debt")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPartyID, req.PartyID.String(),
		telemetry.SpanAttrDocumentKind, string(req.Kind),
		telemetry.SpanAttrNumber, req.Number,
	)

	doc, err := s.register(ctx, req.PartyID, func() (*settlement.Document, error) {
		d, err := settlement.NewDebtDocument(req.PartyID, req.Kind, req.Number, req.IssueDate,
			valueobject.NewMoneyARS(req.TotalAmount))
		if err != nil {
			return nil, err
		}
		d.Observation = req.Observation
		return d, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, doc.ID.String())
	telemetry.SetOK(span)
	return doc, nil
}

// RegisterAdjustmentRequest represents a request to post a debit or credit note
type RegisterAdjustmentRequest struct {
	PartyID     uuid.UUID
	Kind        settlement.DocumentKind
	Number      string
	IssueDate   time.Time
	Amount      decimal.Decimal
	Observation string
}

// RegisterAdjustment posts a debit or credit note. Adjustments may carry
// unallocated capacity indefinitely, like payment documents in their
// advance state.
func (s *DocumentService) RegisterAdjustment(ctx context.Context, req RegisterAdjustmentRequest) (*settlement.Document, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "register_adjustment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPartyID, req.PartyID.String(),
		telemetry.SpanAttrDocumentKind, string(req.Kind),
		telemetry.SpanAttrNumber, req.Number,
	)

	doc, err := s.register(ctx, req.PartyID, func() (*settlement.Document, error) {
		d, err := settlement.NewAdjustmentDocument(req.PartyID, req.Kind, req.Number, req.IssueDate,
			valueobject.NewMoneyARS(req.Amount))
		if err != nil {
			return nil, err
		}
		d.Observation = req.Observation
		return d, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, doc.ID.String())
	telemetry.SetOK(span)
	return doc, nil
}

// GetDocument returns a document by ID
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*settlement.Document, error) {
	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return nil, shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document not found")
	}
	return doc, nil
}

// register runs the shared posting sequence: party must exist, (kind,
// number) must be unique, the document is persisted atomically and the
// party's cached statement is dropped.
func (s *DocumentService) register(ctx context.Context, partyID uuid.UUID, build func() (*settlement.Document, error)) (*settlement.Document, error) {
	doc, err := build()
	if err != nil {
		return nil, err
	}

	events := &eventCollector{}
	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		party, err := s.partyRepo.FindByID(ctx, partyID)
		if err != nil {
			return fmt.Errorf("failed to get party: %w", err)
		}
		if party == nil {
			return shared.NewNotFoundError("PARTY_NOT_FOUND", "Party not found")
		}

		exists, err := s.documentRepo.ExistsByNumber(ctx, doc.Kind, doc.Number)
		if err != nil {
			return fmt.Errorf("failed to check document number: %w", err)
		}
		if exists {
			return shared.NewConflictError("DUPLICATE_DOCUMENT_NUMBER",
				fmt.Sprintf("Document %s %s already exists", doc.Kind, doc.Number))
		}

		if err := s.documentRepo.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		events.collect(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, partyID)
	return doc, nil
}

// invalidateStatement drops the cached statement snapshot. Cache failures
// are logged, never surfaced: the cache is advisory.
func (s *DocumentService) invalidateStatement(ctx context.Context, partyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, partyID); err != nil {
		logger.FromContext(ctx).Warn("Failed to invalidate statement cache",
			zap.String("party_id", partyID.String()),
			zap.Error(err))
	}
}
