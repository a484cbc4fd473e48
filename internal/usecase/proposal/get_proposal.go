package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
)

func (s *Service) GetAll(ctx context.Context, actorID uuid.UUID) (*ListResult, error) {
	log := s.log.WithField("actor_id", actorID)
	log.Info("proposal: получение предложений пользователя")

	if actorID == uuid.Nil {
		log.Warn("proposal: не указан пользователь для выборки предложений")
		return nil, apperror.ErrIdentityRequired
	}

	proposals, err := s.proposals.FindByCreator(ctx, actorID)
	if err != nil {
		log.WithError(err).Error("proposal: ошибка получения предложений")
		return nil, apperror.Internal(err, "не удалось получить предложения")
	}

	if proposals == nil {
		proposals = []*entity.Proposal{}
	}

	log.WithField("count", len(proposals)).Info("proposal: предложения получены")
	return &ListResult{Proposals: proposals, Count: len(proposals)}, nil
}

// GetByID возвращает NOT_FOUND напрямую, без перекодирования во внутреннюю ошибку,
// в отличие от остальных операций.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	log := s.log.WithField("proposal_id", id)
	log.Info("proposal: получение предложения")

	proposal, err := s.proposals.FindByID(ctx, id)
	if err == nil && proposal == nil {
		err = apperror.ErrProposalNotFound
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			log.Warn("proposal: предложение не найдено")
			return nil, apperror.NotFound(fmt.Sprintf("предложение с ID %s не найдено", id))
		}
		log.WithError(err).Error("proposal: ошибка получения предложения")
		return nil, apperror.Internal(err, "не удалось получить предложение")
	}

	log.Info("proposal: предложение получено")
	return proposal, nil
}
