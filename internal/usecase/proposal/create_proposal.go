package proposal

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
)

type CreateInput struct {
	Title                string
	Description          string
	Duration             int
	PaymentTerms         string
	Status               valueobject.ProposalStatus
	ClientEmail          string
	ServiceProviderEmail string
}

func (s *Service) Create(ctx context.Context, input CreateInput, actorID uuid.UUID) (*entity.Proposal, error) {
	log := s.log.WithField("actor_id", actorID)
	log.Info("proposal: создание предложения")

	if actorID == uuid.Nil {
		log.Warn("proposal: не указан пользователь, создающий предложение")
		return nil, apperror.ErrIdentityRequired
	}

	created, err := s.create(ctx, input, actorID)
	if err != nil {
		log.WithError(err).Error("proposal: ошибка создания предложения")
		return nil, apperror.Internal(err, "не удалось создать предложение")
	}

	log.WithField("proposal_id", created.ID).Info("proposal: предложение создано")
	return created, nil
}

// create выполняет два чтения и одну запись без транзакции.
func (s *Service) create(ctx context.Context, input CreateInput, actorID uuid.UUID) (*entity.Proposal, error) {
	client, err := s.findParty(ctx, input.ClientEmail)
	if err != nil {
		return nil, err
	}

	provider, err := s.findParty(ctx, input.ServiceProviderEmail)
	if err != nil {
		return nil, err
	}

	if client == nil || provider == nil {
		return nil, apperror.NotFound("клиент или исполнитель не найден")
	}

	proposal := &entity.Proposal{
		Title:             input.Title,
		Description:       input.Description,
		Duration:          input.Duration,
		PaymentTerms:      input.PaymentTerms,
		Status:            input.Status,
		ClientID:          client.ID,
		ServiceProviderID: provider.ID,
		CreatedByID:       actorID,
	}

	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, err
	}

	return proposal, nil
}

// findParty возвращает nil без ошибки, если пользователь с таким email не существует.
func (s *Service) findParty(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
