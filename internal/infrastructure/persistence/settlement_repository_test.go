package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/gestion/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSettlementDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.PartyModel{}, &models.DocumentModel{}, &models.AllocationModel{})
	require.NoError(t, err)

	return db
}

func seedParty(t *testing.T, db *gorm.DB, kind settlement.PartyKind, code string) *settlement.Party {
	p, err := settlement.NewParty(kind, code, "Party "+code)
	require.NoError(t, err)
	require.NoError(t, NewGormPartyRepository(db).Save(context.Background(), p))
	return p
}

func seedInvoice(t *testing.T, db *gorm.DB, partyID uuid.UUID, number string, day time.Time, amount float64) *settlement.Document {
	d, err := settlement.NewDebtDocument(partyID, settlement.DocumentKindInvoice, number, day,
		valueobject.NewMoneyARSFromFloat(amount))
	require.NoError(t, err)
	require.NoError(t, NewGormDocumentRepository(db).Save(context.Background(), d))
	return d
}

func seedReceipt(t *testing.T, db *gorm.DB, partyID uuid.UUID, number string, day time.Time, amount float64) *settlement.Document {
	in, err := settlement.NewInstrument(settlement.PaymentMethodCash, valueobject.NewMoneyARSFromFloat(amount), "")
	require.NoError(t, err)
	d, err := settlement.NewPaymentDocument(partyID, settlement.DocumentKindReceipt, number, day,
		settlement.Instruments{*in})
	require.NoError(t, err)
	require.NoError(t, NewGormDocumentRepository(db).Save(context.Background(), d))
	return d
}

func TestGormPartyRepository(t *testing.T) {
	db := setupSettlementDB(t)
	repo := NewGormPartyRepository(db)
	ctx := context.Background()

	t.Run("save and find by id", func(t *testing.T) {
		p := seedParty(t, db, settlement.PartyKindCustomer, "CUST-001")

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "CUST-001", found.Code)
		assert.Equal(t, settlement.PartyKindCustomer, found.Kind)
		assert.True(t, found.Active)
	})

	t.Run("find by code", func(t *testing.T) {
		seedParty(t, db, settlement.PartyKindSupplier, "SUP-001")

		found, err := repo.FindByCode(ctx, "SUP-001")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.IsSupplier())
	})

	t.Run("missing party returns nil without error", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("exists by code", func(t *testing.T) {
		exists, err := repo.ExistsByCode(ctx, "CUST-001")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("find all filters by kind and paginates", func(t *testing.T) {
		result, err := repo.FindAll(ctx, kindPtr(settlement.PartyKindCustomer), shared.Filter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, int64(1), result.Total)
		assert.Equal(t, "CUST-001", result.Items[0].Code)
	})
}

func kindPtr(k settlement.PartyKind) *settlement.PartyKind { return &k }

func TestGormDocumentRepository(t *testing.T) {
	db := setupSettlementDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	party := seedParty(t, db, settlement.PartyKindCustomer, "CUST-100")
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("save round trips the document", func(t *testing.T) {
		d := seedReceipt(t, db, party.ID, "RC-0001-00000001", day, 750)

		found, err := repo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, settlement.DocumentKindReceipt, found.Kind)
		assert.True(t, found.TotalAmount.Equal(decimal.NewFromInt(750)))
		require.Len(t, found.Instruments, 1)
		assert.Equal(t, settlement.PaymentMethodCash, found.Instruments[0].Method)
	})

	t.Run("find by number", func(t *testing.T) {
		seedInvoice(t, db, party.ID, "FC-0001-00000001", day, 1200)

		found, err := repo.FindByNumber(ctx, settlement.DocumentKindInvoice, "FC-0001-00000001")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.TotalAmount.Equal(decimal.NewFromInt(1200)))

		missing, err := repo.FindByNumber(ctx, settlement.DocumentKindInvoice, "FC-9999")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("exists by number is kind scoped", func(t *testing.T) {
		exists, err := repo.ExistsByNumber(ctx, settlement.DocumentKindInvoice, "FC-0001-00000001")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByNumber(ctx, settlement.DocumentKindPurchase, "FC-0001-00000001")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("find by party orders by issue date and excludes voided", func(t *testing.T) {
		older := seedInvoice(t, db, party.ID, "FC-0001-00000002", day.AddDate(0, 0, -10), 100)
		voided := seedInvoice(t, db, party.ID, "FC-0001-00000003", day, 200)
		require.NoError(t, voided.Void("entry error"))
		require.NoError(t, repo.Save(ctx, voided))

		docs, err := repo.FindByParty(ctx, party.ID, settlement.DocumentFilter{})
		require.NoError(t, err)
		require.NotEmpty(t, docs)
		assert.Equal(t, older.ID, docs[0].ID)
		for _, d := range docs {
			assert.False(t, d.Voided)
		}

		all, err := repo.FindByParty(ctx, party.ID, settlement.DocumentFilter{IncludeVoided: true})
		require.NoError(t, err)
		assert.Greater(t, len(all), len(docs))
	})

	t.Run("find by ids", func(t *testing.T) {
		a := seedInvoice(t, db, party.ID, "FC-0001-00000004", day, 10)
		b := seedInvoice(t, db, party.ID, "FC-0001-00000005", day, 20)

		docs, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, b.ID})
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		none, err := repo.FindByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("find by party honors whitelisted sort overrides", func(t *testing.T) {
		other := seedParty(t, db, settlement.PartyKindCustomer, "CUST-101")
		small := seedInvoice(t, db, other.ID, "FC-0009-00000001", day, 100)
		big := seedInvoice(t, db, other.ID, "FC-0009-00000002", day.AddDate(0, 0, 1), 900)

		docs, err := repo.FindByParty(ctx, other.ID, settlement.DocumentFilter{
			Filter: shared.Filter{OrderBy: "total_amount", OrderDir: "desc"},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, big.ID, docs[0].ID)
		assert.Equal(t, small.ID, docs[1].ID)

		// A field outside the whitelist falls back to the issue date default.
		docs, err = repo.FindByParty(ctx, other.ID, settlement.DocumentFilter{
			Filter: shared.Filter{OrderBy: "number; DROP TABLE documents", OrderDir: "DESC"},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, big.ID, docs[0].ID)
	})

	t.Run("voided state persists", func(t *testing.T) {
		d := seedInvoice(t, db, party.ID, "FC-0001-00000006", day, 50)
		require.NoError(t, d.Void("duplicate"))
		require.NoError(t, repo.Save(ctx, d))

		found, err := repo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, found.Voided)
		assert.Equal(t, "duplicate", found.VoidReason)
		assert.NotNil(t, found.VoidedAt)
	})
}

func TestGormAllocationRepository(t *testing.T) {
	db := setupSettlementDB(t)
	repo := NewGormAllocationRepository(db)
	ctx := context.Background()

	party := seedParty(t, db, settlement.PartyKindCustomer, "CUST-200")
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, party.ID, "FC-0002-00000001", day, 1000)
	receipt := seedReceipt(t, db, party.ID, "RC-0002-00000001", day, 600)

	newAllocation := func(t *testing.T, amount float64) *settlement.Allocation {
		a, err := settlement.NewAllocation(receipt, invoice, valueobject.NewMoneyARSFromFloat(amount), "")
		require.NoError(t, err)
		return a
	}

	t.Run("insert and find", func(t *testing.T) {
		a := newAllocation(t, 250)
		require.NoError(t, repo.Insert(ctx, a))

		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, receipt.ID, found.SourceID)
		assert.Equal(t, invoice.ID, found.TargetID)
		assert.True(t, found.Amount.Equal(decimal.NewFromInt(250)))
	})

	t.Run("sums by source and target", func(t *testing.T) {
		a := newAllocation(t, 100)
		require.NoError(t, repo.Insert(ctx, a))

		bySource, err := repo.SumBySource(ctx, receipt.ID)
		require.NoError(t, err)
		assert.True(t, bySource.Equal(decimal.NewFromInt(350)))

		byTarget, err := repo.SumByTarget(ctx, invoice.ID)
		require.NoError(t, err)
		assert.True(t, byTarget.Equal(decimal.NewFromInt(350)))

		empty, err := repo.SumBySource(ctx, uuid.New())
		require.NoError(t, err)
		assert.True(t, empty.IsZero())
	})

	t.Run("find by documents covers both sides", func(t *testing.T) {
		rows, err := repo.FindByDocuments(ctx, []uuid.UUID{invoice.ID})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		rows, err = repo.FindByDocuments(ctx, []uuid.UUID{receipt.ID})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("update amount", func(t *testing.T) {
		a := newAllocation(t, 50)
		require.NoError(t, repo.Insert(ctx, a))

		require.NoError(t, a.SetAmount(valueobject.NewMoneyARSFromFloat(75)))
		require.NoError(t, repo.UpdateAmount(ctx, a))

		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, found.Amount.Equal(decimal.NewFromInt(75)))
	})

	t.Run("update missing row reports not found", func(t *testing.T) {
		ghost := newAllocation(t, 10)
		err := repo.UpdateAmount(ctx, ghost)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		a := newAllocation(t, 30)
		require.NoError(t, repo.Insert(ctx, a))
		require.NoError(t, repo.Delete(ctx, a.ID))

		found, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		assert.ErrorIs(t, repo.Delete(ctx, a.ID), gorm.ErrRecordNotFound)
	})
}

func TestGormUnitOfWork(t *testing.T) {
	db := setupSettlementDB(t)
	uow := NewGormUnitOfWork(db, 0)
	ctx := context.Background()

	party := seedParty(t, db, settlement.PartyKindCustomer, "CUST-300")
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("commits on success", func(t *testing.T) {
		docRepo := NewGormDocumentRepository(db)

		d, err := settlement.NewDebtDocument(party.ID, settlement.DocumentKindInvoice,
			"FC-0003-00000001", day, valueobject.NewMoneyARSFromFloat(500))
		require.NoError(t, err)

		err = uow.Execute(ctx, func(txCtx context.Context) error {
			return docRepo.Save(txCtx, d)
		})
		require.NoError(t, err)

		found, err := docRepo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		docRepo := NewGormDocumentRepository(db)

		d, err := settlement.NewDebtDocument(party.ID, settlement.DocumentKindInvoice,
			"FC-0003-00000002", day, valueobject.NewMoneyARSFromFloat(500))
		require.NoError(t, err)

		err = uow.Execute(ctx, func(txCtx context.Context) error {
			if err := docRepo.Save(txCtx, d); err != nil {
				return err
			}
			return assert.AnError
		})
		require.Error(t, err)

		found, err := docRepo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("nested execute joins the ambient transaction", func(t *testing.T) {
		var outer, inner context.Context
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			outer = txCtx
			return uow.Execute(txCtx, func(innerCtx context.Context) error {
				inner = innerCtx
				return nil
			})
		})
		require.NoError(t, err)

		outerTx, ok := TxFromContext(outer)
		require.True(t, ok)
		innerTx, ok := TxFromContext(inner)
		require.True(t, ok)
		assert.Equal(t, outerTx, innerTx)
	})
}

func TestMapTxError(t *testing.T) {
	t.Run("lock timeout becomes retryable conflict", func(t *testing.T) {
		err := mapTxError(assert.AnError)
		assert.Equal(t, assert.AnError, err)

		err = mapTxError(errLockTimeout{})
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		orig := shared.NewNotFoundError("DOCUMENT_NOT_FOUND", "gone")
		assert.Equal(t, orig, mapTxError(orig))
	})

	t.Run("concurrent duplicate number becomes conflict", func(t *testing.T) {
		// Two transactions can both pass the ExistsByNumber pre-check; the
		// unique index rejects the loser and the error must stay a 409.
		err := mapTxError(errDuplicateKey(`ERROR: duplicate key value violates unique constraint "idx_documents_kind_number" (SQLSTATE 23505)`))
		require.True(t, shared.IsConflict(err))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "DUPLICATE_DOCUMENT_NUMBER", domainErr.Code)
	})

	t.Run("concurrent duplicate party code becomes conflict", func(t *testing.T) {
		err := mapTxError(errDuplicateKey(`ERROR: duplicate key value violates unique constraint "idx_parties_code" (SQLSTATE 23505)`))
		require.True(t, shared.IsConflict(err))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "DUPLICATE_PARTY_CODE", domainErr.Code)
	})

	t.Run("unknown unique violation still maps to conflict", func(t *testing.T) {
		err := mapTxError(errDuplicateKey(`ERROR: duplicate key value violates unique constraint "allocations_pkey" (SQLSTATE 23505)`))
		assert.True(t, shared.IsConflict(err))
	})
}

type errLockTimeout struct{}

func (errLockTimeout) Error() string {
	return "ERROR: canceling statement due to lock timeout (SQLSTATE 55P03)"
}

type errDuplicateKey string

func (e errDuplicateKey) Error() string { return string(e) }
