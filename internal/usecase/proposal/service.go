// Package proposal содержит жизненный цикл предложений: создание, чтение, обновление и удаление.
//
// Каждая операция логирует свои шаги и сводит любую ошибку хранилища к одной
// внутренней ошибке. Проверка обязательных идентификаторов выполняется до обращения
// к хранилищу и возвращается как NOT_FOUND без перекодирования.
package proposal

import (
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/domain/repository"
)

type Service struct {
	proposals repository.ProposalRepository
	users     repository.UserRepository
	log       logrus.FieldLogger
}

func NewService(proposals repository.ProposalRepository, users repository.UserRepository, log logrus.FieldLogger) *Service {
	return &Service{
		proposals: proposals,
		users:     users,
		log:       log.WithField("component", "proposal_service"),
	}
}

type ListResult struct {
	Proposals []*entity.Proposal
	Count     int
}

type UpdateResult struct {
	Message  string
	Proposal *entity.Proposal
}

type DeleteResult struct {
	Message string
}
