package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-backend/internal/logger"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
)

const internalMessage = "внутренняя ошибка сервера"

// ErrorBody - единый формат ответа с ошибкой.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Message    string `json:"message"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error переводит ошибку в HTTP ответ. AppError отдаёт свой статус и сообщение,
// любая другая ошибка маскируется под 500.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := internalMessage

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus
		message = appErr.Message
	}

	entry := logger.Get().WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("http: запрос завершился ошибкой")
	} else {
		entry.Warn("http: запрос отклонён")
	}

	Abort(c, status, message)
}

// Abort пишет ошибку в едином формате и прерывает цепочку обработчиков.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       c.Request.URL.Path,
		Message:    message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Abort(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Abort(c, http.StatusNotFound, message)
}

func Unauthorized(c *gin.Context, message string) {
	Abort(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Abort(c, http.StatusForbidden, message)
}

func Internal(c *gin.Context) {
	Abort(c, http.StatusInternalServerError, internalMessage)
}
