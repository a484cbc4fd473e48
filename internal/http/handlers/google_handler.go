package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/ignatzorin/proposal-backend/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
	"github.com/ignatzorin/proposal-backend/internal/service"
)

const (
	googleStateCookie    = "google_oauth_state"
	googleVerifierCookie = "google_oauth_verifier"
	googleCookiePath     = "/api/auth/google"
	googleCookieMaxAge   = 600
)

// GoogleProvider проводит обмен кода авторизации Google.
type GoogleProvider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*service.GoogleProfile, error)
}

// GoogleAuthenticator выдаёт сессию по профилю Google.
type GoogleAuthenticator interface {
	LoginWithGoogle(ctx context.Context, profile *service.GoogleProfile, meta service.SessionMeta) (*service.AuthResult, error)
}

// GoogleHandler реализует вход через Google.
type GoogleHandler struct {
	provider     GoogleProvider
	auth         GoogleAuthenticator
	secureCookie bool
	log          logrus.FieldLogger
}

// NewGoogleHandler создаёт хэндлер. secureCookie включается в production.
func NewGoogleHandler(provider GoogleProvider, auth GoogleAuthenticator, secureCookie bool, log logrus.FieldLogger) *GoogleHandler {
	return &GoogleHandler{
		provider:     provider,
		auth:         auth,
		secureCookie: secureCookie,
		log:          log.WithField("component", "google_handler"),
	}
}

// Start обрабатывает GET /api/auth/google: редирект на страницу согласия.
func (h *GoogleHandler) Start(c *gin.Context) {
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(googleStateCookie, state, googleCookieMaxAge, googleCookiePath, "", h.secureCookie, true)
	c.SetCookie(googleVerifierCookie, verifier, googleCookieMaxAge, googleCookiePath, "", h.secureCookie, true)

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, verifier))
}

// Callback обрабатывает GET /api/auth/google/callback?code&state.
func (h *GoogleHandler) Callback(c *gin.Context) {
	expectedState, stateErr := c.Cookie(googleStateCookie)
	verifier, verifierErr := c.Cookie(googleVerifierCookie)

	// cookie одноразовые
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(googleStateCookie, "", -1, googleCookiePath, "", h.secureCookie, true)
	c.SetCookie(googleVerifierCookie, "", -1, googleCookiePath, "", h.secureCookie, true)

	if errParam := c.Query("error"); errParam != "" {
		response.Unauthorized(c, "вход через Google отменён: "+errParam)
		return
	}

	state := c.Query("state")
	if stateErr != nil || verifierErr != nil || state == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		h.log.WithField("ip", c.ClientIP()).Warn("google: state не совпадает")
		response.BadRequest(c, "некорректный параметр state")
		return
	}

	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "параметр code обязателен")
		return
	}

	profile, err := h.provider.Exchange(c.Request.Context(), code, verifier)
	if err != nil {
		h.log.WithError(err).Warn("google: не удалось обменять код")
		response.Unauthorized(c, "не удалось выполнить вход через Google")
		return
	}

	result, err := h.auth.LoginWithGoogle(c.Request.Context(), profile, common.SessionMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   result.User,
		"tokens": result.TokenPair,
	})
}
