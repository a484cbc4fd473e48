package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
)

// Update передаёт patch в хранилище как есть, без проверки полей.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch entity.ProposalPatch) (*UpdateResult, error) {
	log := s.log.WithField("proposal_id", id)
	log.Info("proposal: обновление предложения")

	if id == uuid.Nil {
		log.Warn("proposal: не указан ID предложения для обновления")
		return nil, apperror.ErrIdentityRequired
	}

	updated, err := s.proposals.Update(ctx, id, patch)
	if err != nil {
		log.WithError(err).Error("proposal: ошибка обновления предложения")
		return nil, apperror.Internal(err, "не удалось обновить предложение")
	}

	log.Info("proposal: предложение обновлено")
	return &UpdateResult{
		Message:  fmt.Sprintf("предложение с ID %s обновлено", id),
		Proposal: updated,
	}, nil
}
