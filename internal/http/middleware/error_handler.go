package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
)

// ErrorHandler восстанавливается после паник и переводит ошибки из c.Errors
// в единый формат ответа, если обработчик сам ничего не записал.
func ErrorHandler(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					"panic":  rec,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"stack":  string(debug.Stack()),
				}).Error("http: паника при обработке запроса")
				if !c.Writer.Written() {
					response.Internal(c)
				}
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// NoRoute отвечает 404 в едином формате.
func NoRoute(c *gin.Context) {
	response.Abort(c, http.StatusNotFound, "маршрут "+c.Request.Method+" "+c.Request.URL.Path+" не найден")
}
