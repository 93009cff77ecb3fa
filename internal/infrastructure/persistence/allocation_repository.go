package persistence

import (
	"context"
	"errors"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAllocationRepository implements settlement.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

func (r *GormAllocationRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// FindByID finds an allocation row by ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	var model models.AllocationModel
	if err := r.conn(ctx).WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySource finds all allocation rows consuming a payment document's capacity
func (r *GormAllocationRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) ([]*settlement.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.conn(ctx).WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("allocated_at ASC, id ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return models.ToDomainAllocations(allocationModels), nil
}

// FindByTarget finds all allocation rows applied against a debt document
func (r *GormAllocationRepository) FindByTarget(ctx context.Context, targetID uuid.UUID) ([]*settlement.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.conn(ctx).WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("allocated_at ASC, id ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return models.ToDomainAllocations(allocationModels), nil
}

// FindByDocuments finds all allocation rows where any of the given documents
// appears as source or target
func (r *GormAllocationRepository) FindByDocuments(ctx context.Context, documentIDs []uuid.UUID) ([]*settlement.Allocation, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var allocationModels []models.AllocationModel
	if err := r.conn(ctx).WithContext(ctx).
		Where("source_id IN ? OR target_id IN ?", documentIDs, documentIDs).
		Order("allocated_at ASC, id ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return models.ToDomainAllocations(allocationModels), nil
}

// SumBySource returns the total amount already allocated out of a payment document
func (r *GormAllocationRepository) SumBySource(ctx context.Context, sourceID uuid.UUID) (decimal.Decimal, error) {
	return r.sumWhere(ctx, "source_id = ?", sourceID)
}

// SumByTarget returns the total amount already applied against a debt document
func (r *GormAllocationRepository) SumByTarget(ctx context.Context, targetID uuid.UUID) (decimal.Decimal, error) {
	return r.sumWhere(ctx, "target_id = ?", targetID)
}

func (r *GormAllocationRepository) sumWhere(ctx context.Context, cond string, id uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.conn(ctx).WithContext(ctx).
		Model(&models.AllocationModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where(cond, id).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// Insert persists a new allocation row
func (r *GormAllocationRepository) Insert(ctx context.Context, allocation *settlement.Allocation) error {
	model := models.AllocationModelFromDomain(allocation)
	return r.conn(ctx).WithContext(ctx).Create(model).Error
}

// UpdateAmount changes an existing allocation row's amount
func (r *GormAllocationRepository) UpdateAmount(ctx context.Context, allocation *settlement.Allocation) error {
	result := r.conn(ctx).WithContext(ctx).
		Model(&models.AllocationModel{}).
		Where("id = ?", allocation.ID).
		Updates(map[string]interface{}{
			"amount":      allocation.Amount,
			"observation": allocation.Observation,
			"updated_at":  allocation.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an allocation row, returning its capacity to the source
func (r *GormAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn(ctx).WithContext(ctx).
		Delete(&models.AllocationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
