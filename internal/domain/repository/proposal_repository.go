package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
)

// ProposalRepository - хранилище предложений. Промах по id возвращает apperror.ErrProposalNotFound.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *entity.Proposal) error
	FindByCreator(ctx context.Context, createdByID uuid.UUID) ([]*entity.Proposal, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.ProposalPatch) (*entity.Proposal, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository ищет стороны предложения. Промах возвращает apperror.ErrUserNotFound.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}
