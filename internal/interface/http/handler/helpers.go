package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-backend/internal/http/middleware"
)

func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDValue, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, errors.New("user_id не найден в контексте")
	}

	userID, ok := userIDValue.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("некорректный формат user_id")
	}

	return userID, nil
}

// getPathID берёт UUID, уже разобранный UUIDValidator, либо разбирает параметр сам.
func getPathID(c *gin.Context, name string) (uuid.UUID, error) {
	if v, ok := c.Get(middleware.ContextParamPrefix + name); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id, nil
		}
	}
	return uuid.Parse(c.Param(name))
}

// bindingMessage превращает ошибку привязки в сообщение для клиента.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "некорректные данные запроса"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("поле %s обязательно", field))
		case "email":
			parts = append(parts, fmt.Sprintf("поле %s должно быть корректным email", field))
		case "gt":
			parts = append(parts, fmt.Sprintf("поле %s должно быть больше %s", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("поле %s превышает максимальную длину %s", field, fe.Param()))
		case "proposal_status":
			parts = append(parts, fmt.Sprintf("поле %s содержит недопустимый статус (допустимы: %s)", field, statusList()))
		default:
			parts = append(parts, fmt.Sprintf("поле %s некорректно", field))
		}
	}
	return strings.Join(parts, "; ")
}

func statusList() string {
	names := make([]string, 0, len(valueobject.ProposalStatuses))
	for _, s := range valueobject.ProposalStatuses {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}
