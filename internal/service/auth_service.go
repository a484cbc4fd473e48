package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/proposal-backend/internal/models"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-backend/internal/repository"
	"github.com/ignatzorin/proposal-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateSession(ctx context.Context, session *models.Session) error
	RotateSession(ctx context.Context, oldRefreshToken string, session *models.Session) error
	DeleteSession(ctx context.Context, refreshToken string) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo   AuthRepository
	tokens *TokenManager
	log    logrus.FieldLogger
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email    string
	Password string
	Username string
	Role     string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// SessionMeta описывает клиента, открывшего сессию.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokens *TokenManager, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		repo:   repo,
		tokens: tokens,
		log:    log.WithField("component", "auth_service"),
	}
}

// Register создаёт нового пользователя с локальным паролем.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta SessionMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	role := in.Role
	if role == "" {
		role = models.RoleClient
	}
	if role != models.RoleClient && role != models.RoleServiceProvider {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимая роль для регистрации")
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = deriveUsername(email)
	} else if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось захешировать пароль")
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(passHash),
		Role:         role,
		AuthProvider: models.AuthProviderLocal,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "email уже зарегистрирован")
		}
		return nil, apperror.Internal(err, "не удалось создать пользователя")
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("auth: пользователь зарегистрирован")
	return s.issueSession(ctx, user, meta)
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta SessionMeta) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Internal(err, "не удалось выполнить вход")
	}

	// Пользователи Google не имеют локального пароля
	if user.PasswordHash == "" {
		return nil, apperror.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	s.touchLastLogin(ctx, user.ID)
	return s.issueSession(ctx, user, meta)
}

// LoginWithGoogle находит пользователя по подтверждённому email Google либо создаёт нового.
func (s *AuthService) LoginWithGoogle(ctx context.Context, profile *GoogleProfile, meta SessionMeta) (*AuthResult, error) {
	if profile == nil || profile.Email == "" {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "Google не вернул email")
	}
	if !profile.EmailVerified {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "email Google не подтверждён")
	}

	email := strings.ToLower(profile.Email)
	user, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user = &models.User{
			Email:        email,
			Username:     deriveUsername(email),
			Role:         models.RoleClient,
			AuthProvider: models.AuthProviderGoogle,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, apperror.Internal(err, "не удалось создать пользователя")
		}
		s.log.WithField("user_id", user.ID).Info("auth: создан пользователь через Google")
	case err != nil:
		return nil, apperror.Internal(err, "не удалось выполнить вход через Google")
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	s.touchLastLogin(ctx, user.ID)
	return s.issueSession(ctx, user, meta)
}

// Refresh выпускает новую пару токенов. Повторно использованный refresh токен отклоняется.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta SessionMeta) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(oldToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, apperror.Internal(err, "не удалось обновить токены")
	}

	pair, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось выпустить токены")
	}

	if err := s.repo.RotateSession(ctx, oldToken, newSession(user.ID, pair.RefreshToken, refreshExp, meta)); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			s.log.WithField("user_id", user.ID).Warn("auth: попытка повторного использования refresh токена")
			return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "сессия не найдена")
		}
		return nil, apperror.Internal(err, "не удалось обновить сессию")
	}

	return pair, nil
}

// Logout завершает сессию, связанную с refresh токеном.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return apperror.Internal(err, "не удалось завершить сессию")
	}
	return nil
}

// Me возвращает текущего пользователя.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Internal(err, "не удалось получить пользователя")
	}
	return user, nil
}

// ListSessions возвращает список активных сессий пользователя.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось получить сессии")
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, nil
}

// DeleteSession удаляет сессию по идентификатору.
func (s *AuthService) DeleteSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	if err := s.repo.DeleteSessionByID(ctx, sessionID, userID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperror.Wrap(err, apperror.ErrCodeNotFound, "сессия не найдена")
		}
		return apperror.Internal(err, "не удалось удалить сессию")
	}
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, meta SessionMeta) (*AuthResult, error) {
	pair, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось выпустить токены")
	}
	if err := s.repo.CreateSession(ctx, newSession(user.ID, pair.RefreshToken, refreshExp, meta)); err != nil {
		return nil, apperror.Internal(err, "не удалось сохранить сессию")
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// touchLastLogin не прерывает вход при ошибке обновления.
func (s *AuthService) touchLastLogin(ctx context.Context, userID uuid.UUID) {
	if err := s.repo.UpdateLastLoginAt(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("auth: не удалось обновить last_login_at")
	}
}
