package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-backend/internal/http/middleware"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
	"github.com/ignatzorin/proposal-backend/internal/models"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-backend/internal/service"
	"github.com/ignatzorin/proposal-backend/internal/validation"
	"github.com/ignatzorin/proposal-backend/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterBindings(); err != nil {
		panic(err)
	}
}

func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

// --- auth ---

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Register(ctx context.Context, in service.RegisterInput, meta service.SessionMeta) (*service.AuthResult, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAuthenticator) Login(ctx context.Context, in service.LoginInput, meta service.SessionMeta) (*service.AuthResult, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *mockAuthenticator) Refresh(ctx context.Context, oldToken string, meta service.SessionMeta) (*service.TokenPair, error) {
	args := m.Called(oldToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenPair), args.Error(1)
}

func (m *mockAuthenticator) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(refreshToken).Error(0)
}

func (m *mockAuthenticator) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthenticator) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	args := m.Called(userID)
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *mockAuthenticator) DeleteSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	return m.Called(sessionID, userID).Error(0)
}

func authRouter(auth Authenticator, userID uuid.UUID) *gin.Engine {
	h := NewAuthHandler(auth)
	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/refresh", h.Refresh)
	r.POST("/api/auth/logout", h.Logout)
	protected := r.Group("/api/auth", withUser(userID))
	protected.GET("/me", h.Me)
	protected.GET("/sessions", h.ListSessions)
	protected.DELETE("/sessions/:id", middleware.UUIDValidator("id"), h.DeleteSession)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	auth := new(mockAuthenticator)
	user := &models.User{ID: uuid.New(), Email: "p@example.com", Role: models.RoleServiceProvider}
	auth.On("Register", service.RegisterInput{Email: "p@example.com", Password: "Secret123", Role: "service_provider"}).
		Return(&service.AuthResult{User: user, TokenPair: &service.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}}, nil)

	w := postJSON(authRouter(auth, uuid.Nil), "/api/auth/register", map[string]string{
		"email": "p@example.com", "password": "Secret123", "role": "service_provider",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		User   models.User       `json:"user"`
		Tokens service.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, user.ID, body.User.ID)
	assert.Equal(t, "a", body.Tokens.AccessToken)
	auth.AssertExpectations(t)
}

func TestAuthHandler_Register_AdminRoleRejected(t *testing.T) {
	auth := new(mockAuthenticator)

	w := postJSON(authRouter(auth, uuid.Nil), "/api/auth/register", map[string]string{
		"email": "x@example.com", "password": "Secret123", "role": "admin",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "роль может быть только client или service_provider", errorMessage(t, w))
	auth.AssertNotCalled(t, "Register", mock.Anything)
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Register", mock.Anything).Return(nil, apperror.New(apperror.ErrCodeConflict, "пользователь с таким email уже существует"))

	w := postJSON(authRouter(auth, uuid.Nil), "/api/auth/register", map[string]string{
		"email": "dup@example.com", "password": "Secret123",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "пользователь с таким email уже существует", errorMessage(t, w))
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Login", service.LoginInput{Email: "c@example.com", Password: "wrong"}).Return(nil, apperror.ErrInvalidCredentials)

	w := postJSON(authRouter(auth, uuid.Nil), "/api/auth/login", map[string]string{"email": "c@example.com", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "неверные учетные данные", errorMessage(t, w))
}

func TestAuthHandler_RefreshAndLogout(t *testing.T) {
	auth := new(mockAuthenticator)
	auth.On("Refresh", "old").Return(&service.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil)
	auth.On("Logout", "r2").Return(nil)
	r := authRouter(auth, uuid.Nil)

	w := postJSON(r, "/api/auth/refresh", map[string]string{"refresh_token": "old"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a2")

	w = postJSON(r, "/api/auth/refresh", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/auth/logout", map[string]string{"refresh_token": "r2"})
	assert.Equal(t, http.StatusOK, w.Code)
	auth.AssertExpectations(t)
}

func TestAuthHandler_Sessions(t *testing.T) {
	auth := new(mockAuthenticator)
	userID := uuid.New()
	sessionID := uuid.New()
	auth.On("Me", userID).Return(&models.User{ID: userID, Email: "me@example.com"}, nil)
	auth.On("ListSessions", userID).Return([]models.Session{}, nil)
	auth.On("DeleteSession", sessionID, userID).Return(nil)
	r := authRouter(auth, userID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "me@example.com")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/auth/sessions/"+sessionID.String(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	auth.AssertExpectations(t)
}

// --- google ---

type stubGoogleProvider struct {
	profile      *service.GoogleProfile
	err          error
	gotCode      string
	gotVerifier  string
	lastState    string
	lastVerifier string
}

func (p *stubGoogleProvider) AuthCodeURL(state, verifier string) string {
	p.lastState, p.lastVerifier = state, verifier
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (p *stubGoogleProvider) Exchange(ctx context.Context, code, verifier string) (*service.GoogleProfile, error) {
	p.gotCode, p.gotVerifier = code, verifier
	return p.profile, p.err
}

type stubGoogleAuth struct {
	result *service.AuthResult
	calls  int
}

func (a *stubGoogleAuth) LoginWithGoogle(ctx context.Context, profile *service.GoogleProfile, meta service.SessionMeta) (*service.AuthResult, error) {
	a.calls++
	return a.result, nil
}

func googleRouter(p GoogleProvider, a GoogleAuthenticator) *gin.Engine {
	log, _ := logrustest.NewNullLogger()
	h := NewGoogleHandler(p, a, false, log)
	r := gin.New()
	r.GET("/api/auth/google", h.Start)
	r.GET("/api/auth/google/callback", h.Callback)
	return r
}

func TestGoogleHandler_StartAndCallback(t *testing.T) {
	provider := &stubGoogleProvider{profile: &service.GoogleProfile{Email: "g@example.com", EmailVerified: true}}
	auth := &stubGoogleAuth{result: &service.AuthResult{
		User:      &models.User{ID: uuid.New(), Email: "g@example.com"},
		TokenPair: &service.TokenPair{AccessToken: "ga"},
	}}
	r := googleRouter(provider, auth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://accounts.example/auth"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, ck := range cookies {
		assert.True(t, ck.HttpOnly)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state="+url.QueryEscape(provider.lastState), nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "abc", provider.gotCode)
	assert.Equal(t, provider.lastVerifier, provider.gotVerifier)
	assert.Equal(t, 1, auth.calls)
	assert.Contains(t, w.Body.String(), "ga")
}

func TestGoogleHandler_Callback_StateMismatch(t *testing.T) {
	provider := &stubGoogleProvider{}
	auth := &stubGoogleAuth{}
	r := googleRouter(provider, auth)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: googleStateCookie, Value: "expected"})
	req.AddCookie(&http.Cookie{Name: googleVerifierCookie, Value: "v"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, provider.gotCode)
	assert.Zero(t, auth.calls)
}

func TestGoogleHandler_Callback_ExchangeFails(t *testing.T) {
	provider := &stubGoogleProvider{err: errors.New("invalid_grant")}
	auth := &stubGoogleAuth{}
	r := googleRouter(provider, auth)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state=s", nil)
	req.AddCookie(&http.Cookie{Name: googleStateCookie, Value: "s"})
	req.AddCookie(&http.Cookie{Name: googleVerifierCookie, Value: "v"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, auth.calls)
}

// --- attachments ---

type mockAttachmentManager struct {
	mock.Mock
	uploaded []byte
}

func (m *mockAttachmentManager) Upload(ctx context.Context, in service.UploadInput) (*models.Attachment, error) {
	m.uploaded, _ = io.ReadAll(in.Content)
	args := m.Called(in.ProposalID, in.UploaderID, in.FileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

func (m *mockAttachmentManager) List(ctx context.Context, proposalID, userID uuid.UUID) ([]models.Attachment, error) {
	args := m.Called(proposalID, userID)
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *mockAttachmentManager) Open(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) (*models.Attachment, string, error) {
	args := m.Called(proposalID, attachmentID, userID)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.Attachment), args.String(1), args.Error(2)
}

func (m *mockAttachmentManager) Delete(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) error {
	return m.Called(proposalID, attachmentID, userID).Error(0)
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAttachmentHandler_Upload(t *testing.T) {
	manager := new(mockAttachmentManager)
	userID := uuid.New()
	proposalID := uuid.New()
	manager.On("Upload", proposalID, userID, "spec.pdf").
		Return(&models.Attachment{ID: uuid.New(), ProposalID: proposalID, FileName: "spec.pdf", FileType: "application/pdf"}, nil)

	h := NewAttachmentHandler(manager, 1<<20)
	r := gin.New()
	r.POST("/api/proposals/:id/attachments", withUser(userID), middleware.UUIDValidator("id"), h.Upload)

	body, contentType := multipartBody(t, "file", "spec.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/proposals/"+proposalID.String()+"/attachments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "%PDF-1.4", string(manager.uploaded))
	assert.Contains(t, w.Body.String(), "application/pdf")
	manager.AssertExpectations(t)
}

func TestAttachmentHandler_Upload_MissingFile(t *testing.T) {
	manager := new(mockAttachmentManager)
	h := NewAttachmentHandler(manager, 1<<20)
	r := gin.New()
	r.POST("/api/proposals/:id/attachments", withUser(uuid.New()), h.Upload)

	body, contentType := multipartBody(t, "other", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/proposals/"+uuid.NewString()+"/attachments", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "поле file обязательно", errorMessage(t, w))
}

func TestAttachmentHandler_List_Forbidden(t *testing.T) {
	manager := new(mockAttachmentManager)
	userID := uuid.New()
	proposalID := uuid.New()
	manager.On("List", proposalID, userID).Return([]models.Attachment(nil), apperror.ErrForbidden)

	h := NewAttachmentHandler(manager, 1<<20)
	r := gin.New()
	r.GET("/api/proposals/:id/attachments", withUser(userID), h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proposals/"+proposalID.String()+"/attachments", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAttachmentHandler_Download(t *testing.T) {
	manager := new(mockAttachmentManager)
	userID := uuid.New()
	outsider := uuid.New()
	proposalID := uuid.New()
	attachmentID := uuid.New()

	path := filepath.Join(t.TempDir(), "stored.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 договор"), 0o600))
	manager.On("Open", proposalID, attachmentID, userID).
		Return(&models.Attachment{ID: attachmentID, ProposalID: proposalID, FileName: "Договор.pdf", FileType: "application/pdf"}, path, nil)
	manager.On("Open", proposalID, attachmentID, outsider).Return(nil, "", apperror.ErrForbidden)

	h := NewAttachmentHandler(manager, 1<<20)
	target := "/api/proposals/" + proposalID.String() + "/attachments/" + attachmentID.String() + "/file"
	route := "/api/proposals/:id/attachments/:attachmentId/file"

	t.Run("без пользователя", func(t *testing.T) {
		r := gin.New()
		r.GET(route, h.Download)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("чужое предложение", func(t *testing.T) {
		r := gin.New()
		r.GET(route, withUser(outsider), h.Download)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("участник", func(t *testing.T) {
		r := gin.New()
		r.GET(route, withUser(userID), middleware.UUIDValidator("id"), middleware.UUIDValidator("attachmentId"), h.Download)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "%PDF-1.4 договор", w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	})

	manager.AssertNotCalled(t, "Open", proposalID, attachmentID, uuid.Nil)
}

// --- health ---

func TestHealthHandler(t *testing.T) {
	raw, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	r := gin.New()
	r.GET("/health", NewHealthHandler(db).Health)

	dbMock.ExpectPing()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])

	dbMock.ExpectPing().WillReturnError(driver.ErrBadConn)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// --- websocket ---

func TestWSHandler(t *testing.T) {
	log, _ := logrustest.NewNullLogger()
	hub := ws.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	tokens := service.NewTokenManager("access", "refresh", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Email: "ws@example.com", Role: models.RoleClient}
	pair, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/ws", NewWSHandler(hub, tokens, nil, log).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws?token="+pair.RefreshToken, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + url.QueryEscape(pair.AccessToken)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Online(user.ID) == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify("proposal.created", map[string]string{"id": "p1"}, user.ID)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev ws.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "proposal.created", ev.Type)
}
