package settlement

import (
	"bytes"
	"context"
	"fmt"
	"sort"
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

// AllocationService is the allocation engine. Every operation runs inside
// one transaction, locks every document whose capacity it reads with
// FOR UPDATE in ascending id order, and either commits the whole batch or
// leaves the ledger untouched.
type AllocationService struct {
	partyRepo      settlement.PartyRepository
	documentRepo   settlement.DocumentRepository
	allocationRepo settlement.AllocationRepository
	uow            settlement.UnitOfWork
	cache          cache.StatementCache // optional, may be nil
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	partyRepo settlement.PartyRepository,
	documentRepo settlement.DocumentRepository,
	allocationRepo settlement.AllocationRepository,
	uow settlement.UnitOfWork,
	statementCache cache.StatementCache,
) *AllocationService {
	return &AllocationService{
		partyRepo:      partyRepo,
		documentRepo:   documentRepo,
		allocationRepo: allocationRepo,
		uow:            uow,
		cache:          statementCache,
	}
}

// AllocationRequest is one requested allocation line against a debt document
type AllocationRequest struct {
	TargetID    uuid.UUID
	Amount      decimal.Decimal
	Observation string
}

// CreateWithAllocationsRequest creates a payment document and applies it
// against debt documents in the same transaction
type CreateWithAllocationsRequest struct {
	PartyID     uuid.UUID
	Kind        settlement.DocumentKind // RECEIPT or PAYMENT_ORDER
	Number      string
	IssueDate   time.Time
	Instruments settlement.Instruments
	Allocations []AllocationRequest
	Observation string
}

// CreateWithAllocationsResult reports what the engine committed
type CreateWithAllocationsResult struct {
	Document           *settlement.Document     `json:"document"`
	Allocations        []*settlement.Allocation `json:"allocations"`
	AllocatedTotal     decimal.Decimal          `json:"allocated_total"`
	UnallocatedSurplus decimal.Decimal          `json:"unallocated_surplus"`
}

// AllocationChange amends one existing allocation row. A zero new amount
// deletes the row.
type AllocationChange struct {
	AllocationID uuid.UUID
	NewAmount    decimal.Decimal
}

// CreateWithAllocations persists a payment document and its requested
// allocations as one atomic batch. Any rejected line aborts everything.
// Unallocated surplus is a valid advance, not an error.
func (s *AllocationService) CreateWithAllocations(ctx context.Context, req CreateWithAllocationsRequest) (*CreateWithAllocationsResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "create_with_allocations")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPartyID, req.PartyID.String(),
		telemetry.SpanAttrDocumentKind, string(req.Kind),
		telemetry.SpanAttrNumber, req.Number,
	)

	doc, err := settlement.NewPaymentDocument(req.PartyID, req.Kind, req.Number, req.IssueDate, req.Instruments)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	doc.Observation = req.Observation

	events := &eventCollector{}
	var allocations []*settlement.Allocation
	var allocatedTotal decimal.Decimal

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		party, err := s.partyRepo.FindByID(ctx, req.PartyID)
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

		// The new document must exist before allocation rows reference it
		if err := s.documentRepo.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		targets, err := s.lockTargets(ctx, req.Allocations)
		if err != nil {
			return err
		}

		allocations, allocatedTotal, err = s.allocateBatch(ctx, doc, decimal.Zero, targets, req.Allocations, events)
		if err != nil {
			return err
		}

		events.collect(doc)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, req.PartyID)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, doc.ID.String(),
		telemetry.SpanAttrAmount, allocatedTotal.String(),
	)
	telemetry.SetOK(span)

	return &CreateWithAllocationsResult{
		Document:           doc,
		Allocations:        allocations,
		AllocatedTotal:     allocatedTotal,
		UnallocatedSurplus: doc.TotalAmount.Sub(allocatedTotal),
	}, nil
}

// ImputeExisting applies an already-persisted source document's spare
// capacity against debt documents. A source with zero prior allocations is
// the normal advance state.
func (s *AllocationService) ImputeExisting(ctx context.Context, sourceID uuid.UUID, requests []AllocationRequest) ([]*settlement.Allocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "impute_existing")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrSourceID, sourceID.String())

	if len(requests) == 0 {
		return nil, shared.NewValidationError("EMPTY_BATCH", "At least one allocation is required")
	}

	events := &eventCollector{}
	var result []*settlement.Allocation
	var partyID uuid.UUID

	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		ids := []uuid.UUID{sourceID}
		for _, r := range requests {
			ids = append(ids, r.TargetID)
		}
		locked, err := s.lockDocuments(ctx, ids)
		if err != nil {
			return err
		}

		source, ok := locked[sourceID]
		if !ok {
			return shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Source document not found")
		}
		partyID = source.PartyID

		allocated, err := s.allocationRepo.SumBySource(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to sum source allocations: %w", err)
		}

		if _, _, err := s.allocateBatch(ctx, source, allocated, locked, requests, events); err != nil {
			return err
		}

		result, err = s.allocationRepo.FindBySource(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to reload allocations: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, partyID)
	telemetry.SetOK(span)
	return result, nil
}

// ModifyAllocations amends a source document's existing allocation rows as
// one batch. Rows set to zero are deleted; the whole batch is rejected if
// any new amount would push its target past capacity counted against that
// target's other allocations, or the source past its own total.
func (s *AllocationService) ModifyAllocations(ctx context.Context, documentID uuid.UUID, changes []AllocationChange) ([]*settlement.Allocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "modify_allocations")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID.String())

	if len(changes) == 0 {
		return nil, shared.NewValidationError("EMPTY_BATCH", "At least one change is required")
	}
	for _, c := range changes {
		if c.NewAmount.IsNegative() {
			return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation amount cannot be negative")
		}
	}

	events := &eventCollector{}
	var result []*settlement.Allocation
	var partyID uuid.UUID

	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		// Discover the target set first, then lock everything in one
		// ascending-id pass so two batches can never deadlock each other.
		preRows, err := s.allocationRepo.FindBySource(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}

		ids := []uuid.UUID{documentID}
		for _, a := range preRows {
			ids = append(ids, a.TargetID)
		}
		locked, err := s.lockDocuments(ctx, ids)
		if err != nil {
			return err
		}

		source, ok := locked[documentID]
		if !ok {
			return shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document not found")
		}
		partyID = source.PartyID

		// Authoritative read now that the source is locked
		rows, err := s.allocationRepo.FindBySource(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		byID := make(map[uuid.UUID]*settlement.Allocation, len(rows))
		for _, a := range rows {
			byID[a.ID] = a
		}

		changed := make(map[uuid.UUID]decimal.Decimal, len(changes))
		targetDelta := make(map[uuid.UUID]decimal.Decimal)
		for _, c := range changes {
			row, ok := byID[c.AllocationID]
			if !ok {
				return shared.NewNotFoundError("ALLOCATION_NOT_FOUND",
					fmt.Sprintf("Allocation %s does not belong to document %s", c.AllocationID, source.Number))
			}
			if _, dup := changed[c.AllocationID]; dup {
				return shared.NewValidationError("DUPLICATE_CHANGE",
					fmt.Sprintf("Allocation %s appears more than once in the batch", c.AllocationID))
			}
			if _, ok := locked[row.TargetID]; !ok {
				// Row gained between discovery and lock; retryable
				return shared.NewConflictError("ALLOCATION_CONTENTION",
					"Allocations changed concurrently, retry the operation")
			}
			changed[c.AllocationID] = c.NewAmount
			targetDelta[row.TargetID] = targetDelta[row.TargetID].Add(c.NewAmount.Sub(row.Amount))
		}

		// Source capacity over the whole new state of its rows
		newSourceTotal := decimal.Zero
		for _, a := range rows {
			if amount, ok := changed[a.ID]; ok {
				newSourceTotal = newSourceTotal.Add(amount)
			} else {
				newSourceTotal = newSourceTotal.Add(a.Amount)
			}
		}
		if newSourceTotal.GreaterThan(source.TotalAmount) {
			return shared.NewValidationError("EXCEEDS_SOURCE_CAPACITY",
				fmt.Sprintf("Allocations %s exceed document %s total %s",
					newSourceTotal, source.Number, source.TotalAmount))
		}

		// Target capacity counted against each target's other allocations
		for targetID, delta := range targetDelta {
			target := locked[targetID]
			current, err := s.allocationRepo.SumByTarget(ctx, targetID)
			if err != nil {
				return fmt.Errorf("failed to sum target allocations: %w", err)
			}
			if current.Add(delta).GreaterThan(target.TotalAmount) {
				return shared.NewValidationError("EXCEEDS_TARGET_CAPACITY",
					fmt.Sprintf("Allocations against document %s would exceed its total %s",
						target.Number, target.TotalAmount))
			}
		}

		for _, a := range rows {
			amount, ok := changed[a.ID]
			if !ok {
				continue
			}
			if amount.IsZero() {
				if err := s.allocationRepo.Delete(ctx, a.ID); err != nil {
					return fmt.Errorf("failed to delete allocation: %w", err)
				}
				events.add(settlement.NewAllocationReversedEvent(a))
				continue
			}
			previous := a.Amount
			if err := a.SetAmount(valueobject.NewMoneyARS(amount)); err != nil {
				return err
			}
			if err := s.allocationRepo.UpdateAmount(ctx, a); err != nil {
				return fmt.Errorf("failed to update allocation: %w", err)
			}
			events.add(settlement.NewAllocationAmendedEvent(a, previous))
		}

		touched := []*settlement.Document{source}
		for targetID := range targetDelta {
			touched = append(touched, locked[targetID])
		}
		if err := s.refreshSettledHints(ctx, touched...); err != nil {
			return err
		}

		result, err = s.allocationRepo.FindBySource(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to reload allocations: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, partyID)
	telemetry.SetOK(span)
	return result, nil
}

// ReverseAllocation deletes one allocation row. Deletion only relaxes
// capacity so it is always legal while the source document is live.
func (s *AllocationService) ReverseAllocation(ctx context.Context, allocationID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "reverse_allocation")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrAllocationID, allocationID.String())

	events := &eventCollector{}
	var partyID uuid.UUID

	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		row, err := s.allocationRepo.FindByID(ctx, allocationID)
		if err != nil {
			return fmt.Errorf("failed to get allocation: %w", err)
		}
		if row == nil {
			return shared.NewNotFoundError("ALLOCATION_NOT_FOUND", "Allocation not found")
		}

		locked, err := s.lockDocuments(ctx, []uuid.UUID{row.SourceID, row.TargetID})
		if err != nil {
			return err
		}
		source, ok := locked[row.SourceID]
		if !ok {
			return shared.NewIntegrityError("MISSING_SOURCE", "Allocation references a missing source document")
		}
		if source.Voided {
			return shared.NewConflictError("SOURCE_VOIDED",
				fmt.Sprintf("Document %s is voided; its allocations are managed by reversal", source.Number))
		}
		partyID = source.PartyID

		if err := s.allocationRepo.Delete(ctx, row.ID); err != nil {
			return fmt.Errorf("failed to delete allocation: %w", err)
		}
		events.add(settlement.NewAllocationReversedEvent(row))

		touched := []*settlement.Document{source}
		if target, ok := locked[row.TargetID]; ok {
			touched = append(touched, target)
		}
		return s.refreshSettledHints(ctx, touched...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, partyID)
	telemetry.SetOK(span)
	return nil
}

// ReverseDocument voids a document and removes every allocation touching
// it, atomically. A second reversal is a conflict and changes nothing.
func (s *AllocationService) ReverseDocument(ctx context.Context, documentID uuid.UUID, reason string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "reverse_document")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, documentID.String())

	events := &eventCollector{}
	var partyID uuid.UUID

	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		// Discover counterparties before taking locks, then lock the whole
		// set in ascending id order
		preRows, err := s.allocationRepo.FindByDocuments(ctx, []uuid.UUID{documentID})
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		ids := []uuid.UUID{documentID}
		for _, a := range preRows {
			ids = append(ids, a.SourceID, a.TargetID)
		}
		locked, err := s.lockDocuments(ctx, ids)
		if err != nil {
			return err
		}

		doc, ok := locked[documentID]
		if !ok {
			return shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "Document not found")
		}
		partyID = doc.PartyID

		if err := doc.Void(reason); err != nil {
			return err
		}

		// Authoritative read under lock
		rows, err := s.allocationRepo.FindByDocuments(ctx, []uuid.UUID{documentID})
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}

		counterparties := make(map[uuid.UUID]*settlement.Document)
		for _, a := range rows {
			if err := s.allocationRepo.Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to delete allocation: %w", err)
			}
			events.add(settlement.NewAllocationReversedEvent(a))

			counterpartyID := a.SourceID
			if counterpartyID == documentID {
				counterpartyID = a.TargetID
			}
			counterparty, ok := locked[counterpartyID]
			if !ok {
				return shared.NewConflictError("ALLOCATION_CONTENTION",
					"Allocations changed concurrently, retry the operation")
			}
			counterparties[counterpartyID] = counterparty
		}

		if err := s.documentRepo.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		events.collect(doc)

		touched := make([]*settlement.Document, 0, len(counterparties))
		for _, d := range counterparties {
			touched = append(touched, d)
		}
		return s.refreshSettledHints(ctx, touched...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	events.publish(ctx)
	s.invalidateStatement(ctx, partyID)
	telemetry.SetOK(span)
	return nil
}

// allocateBatch validates and inserts allocation lines from one source,
// tracking capacity as the batch consumes it. targets must already be
// locked. Returns the inserted rows and their total.
func (s *AllocationService) allocateBatch(
	ctx context.Context,
	source *settlement.Document,
	sourceAllocated decimal.Decimal,
	targets map[uuid.UUID]*settlement.Document,
	requests []AllocationRequest,
	events *eventCollector,
) ([]*settlement.Allocation, decimal.Decimal, error) {
	running := sourceAllocated
	batchTotal := decimal.Zero
	targetUsed := make(map[uuid.UUID]decimal.Decimal)
	inserted := make([]*settlement.Allocation, 0, len(requests))

	for _, req := range requests {
		target, ok := targets[req.TargetID]
		if !ok {
			return nil, decimal.Zero, shared.NewNotFoundError("TARGET_NOT_FOUND",
				fmt.Sprintf("Target document %s not found", req.TargetID))
		}

		row, err := settlement.NewAllocation(source, target, valueobject.NewMoneyARS(req.Amount), req.Observation)
		if err != nil {
			return nil, decimal.Zero, err
		}

		used, ok := targetUsed[target.ID]
		if !ok {
			used, err = s.allocationRepo.SumByTarget(ctx, target.ID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("failed to sum target allocations: %w", err)
			}
		}
		if used.Add(req.Amount).GreaterThan(target.TotalAmount) {
			return nil, decimal.Zero, shared.NewValidationError("EXCEEDS_TARGET_CAPACITY",
				fmt.Sprintf("Allocation of %s exceeds remaining capacity %s of document %s",
					req.Amount, target.TotalAmount.Sub(used), target.Number))
		}

		running = running.Add(req.Amount)
		if running.GreaterThan(source.TotalAmount) {
			return nil, decimal.Zero, shared.NewValidationError("EXCEEDS_SOURCE_CAPACITY",
				fmt.Sprintf("Allocations exceed document %s total %s", source.Number, source.TotalAmount))
		}

		if err := s.allocationRepo.Insert(ctx, row); err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to insert allocation: %w", err)
		}
		targetUsed[target.ID] = used.Add(req.Amount)
		batchTotal = batchTotal.Add(req.Amount)
		inserted = append(inserted, row)
		events.add(settlement.NewAllocationRecordedEvent(row))
	}

	// Settled hints for everything the batch filled up
	source.MarkSettled(running.Equal(source.TotalAmount))
	if err := s.documentRepo.Save(ctx, source); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to save document: %w", err)
	}
	for targetID, used := range targetUsed {
		target := targets[targetID]
		target.MarkSettled(used.Equal(target.TotalAmount))
		if err := s.documentRepo.Save(ctx, target); err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to save document: %w", err)
		}
		events.collect(target)
	}
	events.collect(source)

	return inserted, batchTotal, nil
}

// refreshSettledHints recomputes the advisory settled flag for documents
// whose allocations changed and persists those that moved
func (s *AllocationService) refreshSettledHints(ctx context.Context, documents ...*settlement.Document) error {
	for _, d := range documents {
		var sum decimal.Decimal
		var err error
		if d.Kind.IsDebtSide() {
			sum, err = s.allocationRepo.SumByTarget(ctx, d.ID)
		} else {
			sum, err = s.allocationRepo.SumBySource(ctx, d.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to sum allocations: %w", err)
		}

		settled := !d.Voided && sum.Equal(d.TotalAmount)
		if settled == d.Settled {
			continue
		}
		d.MarkSettled(settled)
		if err := s.documentRepo.Save(ctx, d); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}
	return nil
}

// lockTargets locks the distinct target documents of a request batch
func (s *AllocationService) lockTargets(ctx context.Context, requests []AllocationRequest) (map[uuid.UUID]*settlement.Document, error) {
	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.TargetID)
	}
	return s.lockDocuments(ctx, ids)
}

// lockDocuments locks the given documents FOR UPDATE in ascending id order
// and returns them keyed by id. Missing ids are simply absent from the
// map; callers decide whether that is NotFound.
func (s *AllocationService) lockDocuments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*settlement.Document, error) {
	distinct := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	sort.Slice(distinct, func(i, j int) bool {
		return bytes.Compare(distinct[i][:], distinct[j][:]) < 0
	})

	docs, err := s.documentRepo.FindByIDsForUpdate(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("failed to lock documents: %w", err)
	}
	byID := make(map[uuid.UUID]*settlement.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	return byID, nil
}

// invalidateStatement drops the party's cached statement snapshot after a
// committed write. The cache is advisory; failures are only logged.
func (s *AllocationService) invalidateStatement(ctx context.Context, partyID uuid.UUID) {
	if s.cache == nil || partyID == uuid.Nil {
		return
	}
	if err := s.cache.Invalidate(ctx, partyID); err != nil {
		logger.FromContext(ctx).Warn("Failed to invalidate statement cache",
			zap.String("party_id", partyID.String()),
			zap.Error(err))
	}
}
