package settlement

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory ledger backing the engine tests. It implements
// the repository interfaces over plain maps and lets the fake unit of work
// snapshot and restore state so all-or-nothing semantics hold in tests.
type memStore struct {
	mu          sync.Mutex
	parties     map[uuid.UUID]settlement.Party
	documents   map[uuid.UUID]settlement.Document
	allocations map[uuid.UUID]settlement.Allocation
}

func newMemStore() *memStore {
	return &memStore{
		parties:     make(map[uuid.UUID]settlement.Party),
		documents:   make(map[uuid.UUID]settlement.Document),
		allocations: make(map[uuid.UUID]settlement.Allocation),
	}
}

type memSnapshot struct {
	parties     map[uuid.UUID]settlement.Party
	documents   map[uuid.UUID]settlement.Document
	allocations map[uuid.UUID]settlement.Allocation
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		parties:     make(map[uuid.UUID]settlement.Party, len(s.parties)),
		documents:   make(map[uuid.UUID]settlement.Document, len(s.documents)),
		allocations: make(map[uuid.UUID]settlement.Allocation, len(s.allocations)),
	}
	for k, v := range s.parties {
		snap.parties[k] = v
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	for k, v := range s.allocations {
		snap.allocations[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties = snap.parties
	s.documents = snap.documents
	s.allocations = snap.allocations
}

// fakeUnitOfWork rolls the store back to its pre-call state on error,
// mirroring a real transaction
type fakeUnitOfWork struct {
	store *memStore
}

func (u *fakeUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := u.store.snapshot()
	if err := fn(ctx); err != nil {
		u.store.restore(snap)
		return err
	}
	return nil
}

// --- PartyRepository ---

type memPartyRepo struct{ store *memStore }

func (r *memPartyRepo) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Party, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if p, ok := r.store.parties[id]; ok {
		copied := p
		return &copied, nil
	}
	return nil, nil
}

func (r *memPartyRepo) FindByCode(ctx context.Context, code string) (*settlement.Party, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.parties {
		if p.Code == code {
			copied := p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memPartyRepo) FindAll(ctx context.Context, kind *settlement.PartyKind, filter shared.Filter) (*shared.Paginated[settlement.Party], error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := make([]settlement.Party, 0, len(r.store.parties))
	for _, p := range r.store.parties {
		if kind != nil && p.Kind != *kind {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(p.Code), strings.ToLower(filter.Search)) {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	result := shared.NewPaginated(items, int64(len(items)), 1, max(len(items), 1))
	return &result, nil
}

func (r *memPartyRepo) Save(ctx context.Context, party *settlement.Party) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.parties[party.ID] = *party
	return nil
}

func (r *memPartyRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	p, _ := r.FindByCode(ctx, code)
	return p != nil, nil
}

// --- DocumentRepository ---

type memDocumentRepo struct{ store *memStore }

func (r *memDocumentRepo) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if d, ok := r.store.documents[id]; ok {
		copied := d
		return &copied, nil
	}
	return nil, nil
}

func (r *memDocumentRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*settlement.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	docs := make([]*settlement.Document, 0, len(ids))
	seen := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if d, ok := r.store.documents[id]; ok {
			copied := d
			docs = append(docs, &copied)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return bytes.Compare(docs[i].ID[:], docs[j].ID[:]) < 0
	})
	return docs, nil
}

func (r *memDocumentRepo) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*settlement.Document, error) {
	return r.FindByIDs(ctx, ids)
}

func (r *memDocumentRepo) FindByParty(ctx context.Context, partyID uuid.UUID, filter settlement.DocumentFilter) ([]*settlement.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	docs := make([]*settlement.Document, 0)
	for _, d := range r.store.documents {
		if d.PartyID != partyID {
			continue
		}
		if d.Voided && !filter.IncludeVoided {
			continue
		}
		if filter.Kind != nil && d.Kind != *filter.Kind {
			continue
		}
		if filter.FromDate != nil && d.IssueDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && d.IssueDate.After(*filter.ToDate) {
			continue
		}
		copied := d
		docs = append(docs, &copied)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].IssueDate.Equal(docs[j].IssueDate) {
			return docs[i].IssueDate.Before(docs[j].IssueDate)
		}
		return bytes.Compare(docs[i].ID[:], docs[j].ID[:]) < 0
	})
	return docs, nil
}

func (r *memDocumentRepo) FindByNumber(ctx context.Context, kind settlement.DocumentKind, number string) (*settlement.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, d := range r.store.documents {
		if d.Kind == kind && d.Number == number {
			copied := d
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) Save(ctx context.Context, document *settlement.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.documents[document.ID] = *document
	return nil
}

func (r *memDocumentRepo) ExistsByNumber(ctx context.Context, kind settlement.DocumentKind, number string) (bool, error) {
	d, _ := r.FindByNumber(ctx, kind, number)
	return d != nil, nil
}

// --- AllocationRepository ---

type memAllocationRepo struct{ store *memStore }

func (r *memAllocationRepo) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if a, ok := r.store.allocations[id]; ok {
		copied := a
		return &copied, nil
	}
	return nil, nil
}

func (r *memAllocationRepo) findWhere(pred func(settlement.Allocation) bool) []*settlement.Allocation {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows := make([]*settlement.Allocation, 0)
	for _, a := range r.store.allocations {
		if pred(a) {
			copied := a
			rows = append(rows, &copied)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].AllocatedAt.Equal(rows[j].AllocatedAt) {
			return rows[i].AllocatedAt.Before(rows[j].AllocatedAt)
		}
		return bytes.Compare(rows[i].ID[:], rows[j].ID[:]) < 0
	})
	return rows
}

func (r *memAllocationRepo) FindBySource(ctx context.Context, sourceID uuid.UUID) ([]*settlement.Allocation, error) {
	return r.findWhere(func(a settlement.Allocation) bool { return a.SourceID == sourceID }), nil
}

func (r *memAllocationRepo) FindByTarget(ctx context.Context, targetID uuid.UUID) ([]*settlement.Allocation, error) {
	return r.findWhere(func(a settlement.Allocation) bool { return a.TargetID == targetID }), nil
}

func (r *memAllocationRepo) FindByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]*settlement.Allocation, error) {
	ids := make(map[uuid.UUID]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		ids[id] = struct{}{}
	}
	return r.findWhere(func(a settlement.Allocation) bool {
		_, src := ids[a.SourceID]
		_, tgt := ids[a.TargetID]
		return src || tgt
	}), nil
}

func (r *memAllocationRepo) SumBySource(ctx context.Context, sourceID uuid.UUID) (decimal.Decimal, error) {
	rows, _ := r.FindBySource(ctx, sourceID)
	sum := decimal.Zero
	for _, a := range rows {
		sum = sum.Add(a.Amount)
	}
	return sum, nil
}

func (r *memAllocationRepo) SumByTarget(ctx context.Context, targetID uuid.UUID) (decimal.Decimal, error) {
	rows, _ := r.FindByTarget(ctx, targetID)
	sum := decimal.Zero
	for _, a := range rows {
		sum = sum.Add(a.Amount)
	}
	return sum, nil
}

func (r *memAllocationRepo) Insert(ctx context.Context, allocation *settlement.Allocation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.allocations[allocation.ID] = *allocation
	return nil
}

func (r *memAllocationRepo) UpdateAmount(ctx context.Context, allocation *settlement.Allocation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.allocations[allocation.ID]; !ok {
		return shared.NewNotFoundError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}
	r.store.allocations[allocation.ID] = *allocation
	return nil
}

func (r *memAllocationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.allocations[id]; !ok {
		return shared.NewNotFoundError("ALLOCATION_NOT_FOUND", "Allocation not found")
	}
	delete(r.store.allocations, id)
	return nil
}
