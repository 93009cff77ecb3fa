package persistence

import (
	"context"
	"errors"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/gestion/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements settlement.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// FindByID finds a document by ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Document, error) {
	var model models.DocumentModel
	if err := r.conn(ctx).WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds documents by their IDs, without locking
func (r *GormDocumentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*settlement.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var documentModels []models.DocumentModel
	if err := r.conn(ctx).WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&documentModels).Error; err != nil {
		return nil, err
	}
	return toDomainDocuments(documentModels), nil
}

// FindByIDsForUpdate loads documents under a row-level write lock.
// Rows are locked in ascending ID order so concurrent transactions that
// touch overlapping document sets acquire locks in the same sequence.
func (r *GormDocumentRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*settlement.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var documentModels []models.DocumentModel
	if err := r.conn(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&documentModels).Error; err != nil {
		return nil, err
	}
	return toDomainDocuments(documentModels), nil
}

// FindByParty finds all documents of a party, ordered by (issue date, id)
func (r *GormDocumentRepository) FindByParty(ctx context.Context, partyID uuid.UUID, filter settlement.DocumentFilter) ([]*settlement.Document, error) {
	query := r.conn(ctx).WithContext(ctx).Where("party_id = ?", partyID)

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.FromDate != nil {
		query = query.Where("issue_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("issue_date <= ?", *filter.ToDate)
	}
	if !filter.IncludeVoided {
		query = query.Where("voided = ?", false)
	}
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	// Statement rows depend on the (issue_date, id) default; callers may
	// override the primary sort but id stays as the deterministic tiebreak.
	order := "issue_date ASC, id ASC"
	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, DocumentSortFields, "issue_date")
		order = field + " " + ValidateSortOrder(filter.OrderDir) + ", id ASC"
	}

	var documentModels []models.DocumentModel
	if err := query.
		Order(order).
		Find(&documentModels).Error; err != nil {
		return nil, err
	}
	return toDomainDocuments(documentModels), nil
}

// FindByNumber finds a document by its kind and number
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, kind settlement.DocumentKind, number string) (*settlement.Document, error) {
	var model models.DocumentModel
	if err := r.conn(ctx).WithContext(ctx).
		First(&model, "kind = ? AND number = ?", kind, number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a document
func (r *GormDocumentRepository) Save(ctx context.Context, document *settlement.Document) error {
	model := models.DocumentModelFromDomain(document)
	return r.conn(ctx).WithContext(ctx).Save(model).Error
}

// ExistsByNumber checks whether a document with the given kind and number exists
func (r *GormDocumentRepository) ExistsByNumber(ctx context.Context, kind settlement.DocumentKind, number string) (bool, error) {
	var count int64
	if err := r.conn(ctx).WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("kind = ? AND number = ?", kind, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func toDomainDocuments(documentModels []models.DocumentModel) []*settlement.Document {
	documents := make([]*settlement.Document, len(documentModels))
	for i := range documentModels {
		documents[i] = documentModels[i].ToDomain()
	}
	return documents
}
