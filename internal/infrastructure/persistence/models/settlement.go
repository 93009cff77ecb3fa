package models

import (
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyModel is the persistence model for parties
type PartyModel struct {
	AggregateModel
	Kind   settlement.PartyKind `gorm:"type:varchar(20);not null;index"`
	Code   string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name   string               `gorm:"type:varchar(200);not null"`
	Active bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (PartyModel) TableName() string {
	return "parties"
}

// ToDomain converts the persistence model to a domain Party
func (m *PartyModel) ToDomain() *settlement.Party {
	return &settlement.Party{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Kind:              m.Kind,
		Code:              m.Code,
		Name:              m.Name,
		Active:            m.Active,
	}
}

// PartyModelFromDomain converts a domain Party to its persistence model
func PartyModelFromDomain(p *settlement.Party) *PartyModel {
	m := &PartyModel{
		Kind:   p.Kind,
		Code:   p.Code,
		Name:   p.Name,
		Active: p.Active,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// DocumentModel is the persistence model for ledger documents.
// One table holds every kind; the kind column selects polarity.
type DocumentModel struct {
	AggregateModel
	PartyID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_documents_party_date,priority:1"`
	Kind        settlement.DocumentKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_documents_kind_number,priority:1;index"`
	Number      string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_kind_number,priority:2"`
	IssueDate   time.Time               `gorm:"not null;index:idx_documents_party_date,priority:2"`
	TotalAmount decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Instruments settlement.Instruments  `gorm:"type:jsonb"`
	Observation string                  `gorm:"type:text"`
	Settled     bool                    `gorm:"not null;default:false;index"`
	Voided      bool                    `gorm:"not null;default:false;index"`
	VoidedAt    *time.Time
	VoidReason  string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *DocumentModel) ToDomain() *settlement.Document {
	return &settlement.Document{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PartyID:           m.PartyID,
		Kind:              m.Kind,
		Number:            m.Number,
		IssueDate:         m.IssueDate,
		TotalAmount:       m.TotalAmount,
		Instruments:       m.Instruments,
		Observation:       m.Observation,
		Settled:           m.Settled,
		Voided:            m.Voided,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// DocumentModelFromDomain converts a domain Document to its persistence model
func DocumentModelFromDomain(d *settlement.Document) *DocumentModel {
	m := &DocumentModel{
		PartyID:     d.PartyID,
		Kind:        d.Kind,
		Number:      d.Number,
		IssueDate:   d.IssueDate,
		TotalAmount: d.TotalAmount,
		Instruments: d.Instruments,
		Observation: d.Observation,
		Settled:     d.Settled,
		Voided:      d.Voided,
		VoidedAt:    d.VoidedAt,
		VoidReason:  d.VoidReason,
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	return m
}

// AllocationModel is the persistence model for allocation rows.
// Source and target carry restrict constraints so documents with ledger
// history cannot be physically deleted out from under their rows.
type AllocationModel struct {
	BaseModel
	SourceID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AllocatedAt time.Time       `gorm:"not null"`
	Observation string          `gorm:"type:varchar(500)"`
	Source      *DocumentModel  `gorm:"foreignKey:SourceID;constraint:OnDelete:RESTRICT"`
	Target      *DocumentModel  `gorm:"foreignKey:TargetID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() *settlement.Allocation {
	return &settlement.Allocation{
		BaseEntity:  m.BaseModel.ToDomain(),
		SourceID:    m.SourceID,
		TargetID:    m.TargetID,
		Amount:      m.Amount,
		AllocatedAt: m.AllocatedAt,
		Observation: m.Observation,
	}
}

// AllocationModelFromDomain converts a domain Allocation to its persistence model
func AllocationModelFromDomain(a *settlement.Allocation) *AllocationModel {
	m := &AllocationModel{
		SourceID:    a.SourceID,
		TargetID:    a.TargetID,
		Amount:      a.Amount,
		AllocatedAt: a.AllocatedAt,
		Observation: a.Observation,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}

// ToDomainAllocations maps a slice of models to domain allocations
func ToDomainAllocations(ms []AllocationModel) []*settlement.Allocation {
	out := make([]*settlement.Allocation, len(ms))
	for i := range ms {
		out[i] = ms[i].ToDomain()
	}
	return out
}
