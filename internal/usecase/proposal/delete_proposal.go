package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
)

// Delete не идемпотентен: повторное удаление завершается внутренней ошибкой.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	log := s.log.WithField("proposal_id", id)
	log.Info("proposal: удаление предложения")

	if id == uuid.Nil {
		log.Warn("proposal: не указан ID предложения для удаления")
		return nil, apperror.ErrIdentityRequired
	}

	if err := s.proposals.Delete(ctx, id); err != nil {
		log.WithError(err).Error("proposal: ошибка удаления предложения")
		return nil, apperror.Internal(err, "не удалось удалить предложение")
	}

	log.Info("proposal: предложение удалено")
	return &DeleteResult{Message: fmt.Sprintf("предложение с ID %s удалено", id)}, nil
}
