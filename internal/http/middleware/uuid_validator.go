package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
)

// ContextParamPrefix - префикс ключа, под которым сохраняется разобранный UUID параметра.
const ContextParamPrefix = "param:"

// UUIDValidator проверяет, что параметр пути является UUID, и кладёт его в контекст.
// Использование: router.GET("/proposals/:id", UUIDValidator("id"), handler.GetByID)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			return
		}

		c.Set(ContextParamPrefix+paramName, id)
		c.Next()
	}
}
