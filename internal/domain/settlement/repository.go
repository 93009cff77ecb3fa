package settlement

import (
	"context"
	"time"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	PartyID       *uuid.UUID    // Filter by party
	Kind          *DocumentKind // Filter by document kind
	FromDate      *time.Time    // Filter by issue date range start
	ToDate        *time.Time    // Filter by issue date range end
	IncludeVoided bool          // Include voided documents (default excludes them)
}

// PartyRepository defines the interface for party persistence
type PartyRepository interface {
	// FindByID finds a party by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Party, error)

	// FindByCode finds a party by its unique code
	FindByCode(ctx context.Context, code string) (*Party, error)

	// FindAll finds parties with filtering and pagination
	FindAll(ctx context.Context, kind *PartyKind, filter shared.Filter) (*shared.Paginated[Party], error)

	// Save creates or updates a party
	Save(ctx context.Context, party *Party) error

	// ExistsByCode checks whether a party with the given code exists
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// DocumentRepository defines the interface for document persistence
type DocumentRepository interface {
	// FindByID finds a document by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByIDs finds documents by their IDs, without locking
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Document, error)

	// FindByIDsForUpdate loads documents by ID under a row-level write
	// lock, acquiring locks in ascending ID order. Must run inside a
	// transaction started through UnitOfWork.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*Document, error)

	// FindByParty finds all documents of a party, ordered by (issue date, id)
	FindByParty(ctx context.Context, partyID uuid.UUID, filter DocumentFilter) ([]*Document, error)

	// FindByNumber finds a document by its kind and number
	FindByNumber(ctx context.Context, kind DocumentKind, number string) (*Document, error)

	// Save creates or updates a document
	Save(ctx context.Context, document *Document) error

	// ExistsByNumber checks whether a document with the given kind and number exists
	ExistsByNumber(ctx context.Context, kind DocumentKind, number string) (bool, error)
}

// AllocationRepository defines the interface for allocation row persistence
type AllocationRepository interface {
	// FindByID finds an allocation row by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindBySource finds all allocation rows consuming a payment document's capacity
	FindBySource(ctx context.Context, sourceID uuid.UUID) ([]*Allocation, error)

	// FindByTarget finds all allocation rows applied against a debt document
	FindByTarget(ctx context.Context, targetID uuid.UUID) ([]*Allocation, error)

	// FindByDocuments finds all allocation rows where any of the given
	// documents appears as source or target
	FindByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]*Allocation, error)

	// SumBySource returns the total amount already allocated out of a payment document
	SumBySource(ctx context.Context, sourceID uuid.UUID) (decimal.Decimal, error)

	// SumByTarget returns the total amount already applied against a debt document
	SumByTarget(ctx context.Context, targetID uuid.UUID) (decimal.Decimal, error)

	// Insert persists a new allocation row
	Insert(ctx context.Context, allocation *Allocation) error

	// UpdateAmount changes an existing allocation row's amount
	UpdateAmount(ctx context.Context, allocation *Allocation) error

	// Delete removes an allocation row, returning its capacity to the source
	Delete(ctx context.Context, id uuid.UUID) error
}

// UnitOfWork runs a function inside a database transaction. The function
// receives a context carrying the transaction; repositories called with
// that context join it. Any error rolls the whole transaction back.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
