package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
)

type Proposal struct {
	ID                uuid.UUID
	Title             string
	Description       string
	Duration          int
	PaymentTerms      string
	Status            valueobject.ProposalStatus
	ClientID          uuid.UUID
	ServiceProviderID uuid.UUID
	CreatedByID       uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProposalPatch содержит частичное обновление; nil означает "не менять".
type ProposalPatch struct {
	Title        *string
	Description  *string
	Duration     *int
	PaymentTerms *string
	Status       *valueobject.ProposalStatus
}

func (p ProposalPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Duration == nil &&
		p.PaymentTerms == nil && p.Status == nil
}

// Parties возвращает участников предложения без дублей.
func (p *Proposal) Parties() []uuid.UUID {
	if p.ClientID == p.ServiceProviderID {
		return []uuid.UUID{p.ClientID}
	}
	return []uuid.UUID{p.ClientID, p.ServiceProviderID}
}

func (p *Proposal) IsCreatedBy(userID uuid.UUID) bool {
	return p.CreatedByID == userID
}

// User - сторона предложения (клиент или исполнитель).
type User struct {
	ID    uuid.UUID
	Email string
	Role  valueobject.UserRole
}
