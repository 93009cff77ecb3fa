package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gestion/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx returns a context carrying the given transaction.
// Repositories created over the base connection will join it.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by the context, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// GormUnitOfWork runs functions inside serializable database transactions
// with a bounded row lock wait. It implements settlement.UnitOfWork.
type GormUnitOfWork struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormUnitOfWork creates a unit of work over the given connection.
// lockTimeout bounds how long a transaction waits on row locks; zero
// disables the bound.
func NewGormUnitOfWork(db *gorm.DB, lockTimeout time.Duration) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, lockTimeout: lockTimeout}
}

// Execute runs fn inside a transaction. The context passed to fn carries
// the transaction; any error rolls everything back. Lock wait timeouts
// and serialization failures surface as retryable conflict errors.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the ambient transaction instead of opening a new one.
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			// SET LOCAL scopes the timeout to this transaction only.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(ContextWithTx(ctx, tx))
	})
	if err != nil {
		return mapTxError(err)
	}
	return nil
}

// mapTxError translates database-level failures into domain conflict
// errors. Contention becomes a retryable conflict; unique violations are
// the backstop for the unlocked existence pre-checks, so a concurrent
// duplicate surfaces as the same conflict the pre-check would have
// reported. Other errors pass through.
func mapTxError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "lock timeout"),
		strings.Contains(msg, "canceling statement due to lock timeout"),
		strings.Contains(msg, "deadlock detected"),
		strings.Contains(msg, "could not serialize access"):
		return shared.NewConflictError("ALLOCATION_CONTENTION",
			"The documents are being modified by another operation, retry the request")
	case strings.Contains(msg, `unique constraint "idx_documents_kind_number"`):
		return shared.NewConflictError("DUPLICATE_DOCUMENT_NUMBER",
			"A document with this kind and number already exists")
	case strings.Contains(msg, `unique constraint "idx_parties_code"`):
		return shared.NewConflictError("DUPLICATE_PARTY_CODE",
			"A party with this code already exists")
	case strings.Contains(msg, "duplicate key value"):
		return shared.NewConflictError("DUPLICATE_KEY",
			"The record conflicts with an existing one")
	}
	return err
}
