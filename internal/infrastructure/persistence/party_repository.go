package persistence

import (
	"context"
	"errors"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPartyRepository implements settlement.PartyRepository using GORM
type GormPartyRepository struct {
	db *gorm.DB
}

// NewGormPartyRepository creates a new GormPartyRepository
func NewGormPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

func (r *GormPartyRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// FindByID finds a party by ID
func (r *GormPartyRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Party, error) {
	var model models.PartyModel
	if err := r.conn(ctx).WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a party by its unique code
func (r *GormPartyRepository) FindByCode(ctx context.Context, code string) (*settlement.Party, error) {
	var model models.PartyModel
	if err := r.conn(ctx).WithContext(ctx).
		First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds parties with filtering and pagination
func (r *GormPartyRepository) FindAll(ctx context.Context, kind *settlement.PartyKind, filter shared.Filter) (*shared.Paginated[settlement.Party], error) {
	query := r.conn(ctx).WithContext(ctx).Model(&models.PartyModel{})

	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR code ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	filter = filter.Normalize()

	sortField := "code"
	sortOrder := "ASC"
	if filter.OrderBy != "" {
		sortField = ValidateSortField(filter.OrderBy, PartySortFields, "code")
		sortOrder = ValidateSortOrder(filter.OrderDir)
	}

	var partyModels []models.PartyModel
	if err := query.
		Order(sortField + " " + sortOrder).
		Limit(filter.PageSize).
		Offset(filter.Offset()).
		Find(&partyModels).Error; err != nil {
		return nil, err
	}

	parties := make([]settlement.Party, len(partyModels))
	for i := range partyModels {
		parties[i] = *partyModels[i].ToDomain()
	}
	result := shared.NewPaginated(parties, total, filter.Page, filter.PageSize)
	return &result, nil
}

// Save creates or updates a party
func (r *GormPartyRepository) Save(ctx context.Context, party *settlement.Party) error {
	model := models.PartyModelFromDomain(party)
	return r.conn(ctx).WithContext(ctx).Save(model).Error
}

// ExistsByCode checks whether a party with the given code exists
func (r *GormPartyRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.conn(ctx).WithContext(ctx).
		Model(&models.PartyModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
