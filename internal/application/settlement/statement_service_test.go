package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement_RunningBalanceAndOrdering(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	f.seedInvoice(t, party, "A-0100", 1000, 1)
	f.seedInvoice(t, party, "A-0101", 500, 2)

	req := receiptRequest(party, "R-0100", 600, nil)
	req.IssueDate = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	req.Instruments = cashInstruments(t, 600)
	_, err := f.allocation.CreateWithAllocations(ctx, req)
	require.NoError(t, err)

	statement, err := f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)
	require.Len(t, statement.Rows, 3)

	assert.Equal(t, "A-0100", statement.Rows[0].Number)
	assert.Equal(t, "A-0101", statement.Rows[1].Number)
	assert.Equal(t, "R-0100", statement.Rows[2].Number)

	assert.True(t, statement.Rows[0].RunningBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, statement.Rows[1].RunningBalance.Equal(decimal.NewFromInt(1500)))
	assert.True(t, statement.Rows[2].RunningBalance.Equal(decimal.NewFromInt(900)))
	assert.True(t, statement.Balance.Equal(decimal.NewFromInt(900)))
}

func TestStatement_DeterministicAcrossCalls(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	for i, n := range []string{"A-0110", "A-0111", "A-0112"} {
		f.seedInvoice(t, party, n, float64(100*(i+1)), 1) // same date, id tiebreak
	}

	first, err := f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)
	second, err := f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)

	require.Equal(t, len(first.Rows), len(second.Rows))
	for i := range first.Rows {
		assert.Equal(t, first.Rows[i].DocumentID, second.Rows[i].DocumentID)
		assert.True(t, first.Rows[i].RunningBalance.Equal(second.Rows[i].RunningBalance))
	}
}

func TestStatement_CacheInvalidatedByEngineWrites(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	invoice := f.seedInvoice(t, party, "A-0120", 1000, 1)

	// First call fills the cache
	statement, err := f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)
	assert.True(t, statement.Balance.Equal(decimal.NewFromInt(1000)))

	cached, err := f.cache.Get(ctx, party.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	// An engine write drops the snapshot and the next read sees fresh data
	req := receiptRequest(party, "R-0120", 600, []AllocationRequest{
		{TargetID: invoice.ID, Amount: decimal.NewFromInt(600)},
	})
	req.Instruments = cashInstruments(t, 600)
	_, err = f.allocation.CreateWithAllocations(ctx, req)
	require.NoError(t, err)

	cached, err = f.cache.Get(ctx, party.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	statement, err = f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)
	assert.True(t, statement.Balance.Equal(decimal.NewFromInt(400)))
}

func TestStatement_FilteredQueriesBypassCache(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	f.seedInvoice(t, party, "A-0130", 1000, 1)
	f.seedInvoice(t, party, "A-0131", 500, 20)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	statement, err := f.statement.Statement(ctx, party.ID, StatementQuery{FromDate: &from})
	require.NoError(t, err)
	require.Len(t, statement.Rows, 1)
	assert.Equal(t, "A-0131", statement.Rows[0].Number)

	// Filtered results must never be written to the snapshot cache
	cached, err := f.cache.Get(ctx, party.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestStatement_VoidedDocumentsVisibleOnRequest(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	invoice := f.seedInvoice(t, party, "A-0140", 1000, 1)
	f.seedInvoice(t, party, "A-0141", 500, 2)

	require.NoError(t, f.allocation.ReverseDocument(ctx, invoice.ID, "posted in error"))

	statement, err := f.statement.Statement(ctx, party.ID, StatementQuery{})
	require.NoError(t, err)
	require.Len(t, statement.Rows, 1)
	assert.True(t, statement.Balance.Equal(decimal.NewFromInt(500)))

	statement, err = f.statement.Statement(ctx, party.ID, StatementQuery{IncludeVoided: true})
	require.NoError(t, err)
	require.Len(t, statement.Rows, 2)
	assert.True(t, statement.Rows[0].Voided)
	assert.True(t, statement.Rows[0].SignedEffect.IsZero())
	assert.True(t, statement.Balance.Equal(decimal.NewFromInt(500)))
}

func TestStatement_UnknownParty(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.statement.Statement(context.Background(), uuid.New(), StatementQuery{})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestDetail_ListsCounterpartyAllocations(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	invoice := f.seedInvoice(t, party, "A-0150", 1000, 1)

	req := receiptRequest(party, "R-0150", 600, []AllocationRequest{
		{TargetID: invoice.ID, Amount: decimal.NewFromInt(600)},
	})
	req.Instruments = cashInstruments(t, 600)
	result, err := f.allocation.CreateWithAllocations(ctx, req)
	require.NoError(t, err)

	detail, err := f.statement.Detail(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, detail.Allocated.Equal(decimal.NewFromInt(600)))
	assert.True(t, detail.Remaining.Equal(decimal.NewFromInt(400)))
	require.Len(t, detail.Allocations, 1)
	assert.Equal(t, result.Document.ID, detail.Allocations[0].CounterpartyID)
	assert.Equal(t, settlement.DocumentKindReceipt, detail.Allocations[0].CounterpartyKind)
	assert.Equal(t, "R-0150", detail.Allocations[0].CounterpartyNumber)

	mirror, err := f.statement.Detail(ctx, result.Document.ID)
	require.NoError(t, err)
	require.Len(t, mirror.Allocations, 1)
	assert.Equal(t, invoice.ID, mirror.Allocations[0].CounterpartyID)
	assert.Equal(t, "A-0150", mirror.Allocations[0].CounterpartyNumber)
}

func TestDetail_UnknownDocument(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.statement.Detail(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestPending_ListsOpenDebtsOldestFirst(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	party := f.seedParty(t, settlement.PartyKindCustomer, "C001")
	older := f.seedInvoice(t, party, "A-0160", 1000, 1)
	newer := f.seedInvoice(t, party, "A-0161", 500, 5)

	// Settle the older one completely
	req := receiptRequest(party, "R-0160", 1000, []AllocationRequest{
		{TargetID: older.ID, Amount: decimal.NewFromInt(1000)},
	})
	req.Instruments = cashInstruments(t, 1000)
	_, err := f.allocation.CreateWithAllocations(ctx, req)
	require.NoError(t, err)

	pending, err := f.statement.Pending(ctx, party.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.ID, pending[0].Document.ID)
	assert.True(t, pending[0].Remaining.Equal(decimal.NewFromInt(500)))
}
