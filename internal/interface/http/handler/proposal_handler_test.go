package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-backend/internal/http/middleware"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/dto"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-backend/internal/usecase/proposal"
	"github.com/ignatzorin/proposal-backend/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterBindings(); err != nil {
		panic(err)
	}
}

type mockProposalService struct {
	mock.Mock
}

func (m *mockProposalService) Create(ctx context.Context, input proposal.CreateInput, actorID uuid.UUID) (*entity.Proposal, error) {
	args := m.Called(input, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Proposal), args.Error(1)
}

func (m *mockProposalService) GetAll(ctx context.Context, actorID uuid.UUID) (*proposal.ListResult, error) {
	args := m.Called(actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proposal.ListResult), args.Error(1)
}

func (m *mockProposalService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Proposal), args.Error(1)
}

func (m *mockProposalService) Update(ctx context.Context, id uuid.UUID, patch entity.ProposalPatch) (*proposal.UpdateResult, error) {
	args := m.Called(id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proposal.UpdateResult), args.Error(1)
}

func (m *mockProposalService) Delete(ctx context.Context, id uuid.UUID) (*proposal.DeleteResult, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proposal.DeleteResult), args.Error(1)
}

type sentEvent struct {
	event   string
	userIDs []uuid.UUID
}

type recordingNotifier struct {
	events []sentEvent
}

func (n *recordingNotifier) Notify(event string, data any, userIDs ...uuid.UUID) {
	n.events = append(n.events, sentEvent{event: event, userIDs: userIDs})
}

func newTestRouter(h *ProposalHandler, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		c.Next()
	})
	r.POST("/api/proposals", h.CreateProposal)
	r.GET("/api/proposals", h.ListProposals)
	r.GET("/api/proposals/:id", middleware.UUIDValidator("id"), h.GetProposal)
	r.PATCH("/api/proposals/:id", middleware.UUIDValidator("id"), h.UpdateProposal)
	r.DELETE("/api/proposals/:id", middleware.UUIDValidator("id"), h.DeleteProposal)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleProposal() *entity.Proposal {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.Proposal{
		ID:                uuid.New(),
		Title:             "Лендинг",
		Description:       "Одностраничный сайт",
		Duration:          14,
		PaymentTerms:      "100% по завершении",
		Status:            valueobject.ProposalStatusPending,
		ClientID:          uuid.New(),
		ServiceProviderID: uuid.New(),
		CreatedByID:       uuid.New(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestProposalHandler_Create(t *testing.T) {
	svc := new(mockProposalService)
	notifier := &recordingNotifier{}
	actor := uuid.New()
	created := sampleProposal()

	svc.On("Create", proposal.CreateInput{
		Title:                "Лендинг",
		Description:          "Одностраничный сайт",
		Duration:             14,
		PaymentTerms:         "100% по завершении",
		Status:               valueobject.ProposalStatusPending,
		ClientEmail:          "client@example.com",
		ServiceProviderEmail: "provider@example.com",
	}, actor).Return(created, nil)

	w := doJSON(newTestRouter(NewProposalHandler(svc, notifier, nil), actor), http.MethodPost, "/api/proposals", map[string]any{
		"title":           "Лендинг",
		"description":     "Одностраничный сайт",
		"duration":        14,
		"paymentTerms":    "100% по завершении",
		"status":          "PENDING",
		"client":          "client@example.com",
		"serviceProvider": "provider@example.com",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body dto.ProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, created.ID, body.ID)
	assert.Equal(t, "PENDING", body.Status)
	assert.Equal(t, created.ClientID, body.ClientID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventProposalCreated, notifier.events[0].event)
	assert.ElementsMatch(t, created.Parties(), notifier.events[0].userIDs)
	svc.AssertExpectations(t)
}

func TestProposalHandler_Create_InvalidPayload(t *testing.T) {
	svc := new(mockProposalService)
	r := newTestRouter(NewProposalHandler(svc, nil, nil), uuid.New())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"пустое тело", map[string]any{}},
		{"неизвестный статус", map[string]any{
			"title": "t", "description": "d", "duration": 1, "paymentTerms": "p",
			"status": "DRAFT", "client": "c@example.com", "serviceProvider": "s@example.com",
		}},
		{"нулевая длительность", map[string]any{
			"title": "t", "description": "d", "duration": 0, "paymentTerms": "p",
			"status": "PENDING", "client": "c@example.com", "serviceProvider": "s@example.com",
		}},
		{"некорректный email", map[string]any{
			"title": "t", "description": "d", "duration": 1, "paymentTerms": "p",
			"status": "PENDING", "client": "not-an-email", "serviceProvider": "s@example.com",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/proposals", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body response.ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "/api/proposals", body.Path)
			assert.NotEmpty(t, body.Message)
		})
	}
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalHandler_Create_InternalError(t *testing.T) {
	svc := new(mockProposalService)
	notifier := &recordingNotifier{}
	actor := uuid.New()
	svc.On("Create", mock.Anything, actor).Return(nil, apperror.Internal(errors.New("db"), "не удалось создать предложение"))

	w := doJSON(newTestRouter(NewProposalHandler(svc, notifier, nil), actor), http.MethodPost, "/api/proposals", map[string]any{
		"title": "t", "description": "d", "duration": 1, "paymentTerms": "p",
		"status": "PENDING", "client": "c@example.com", "serviceProvider": "s@example.com",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "не удалось создать предложение", body.Message)
	assert.Empty(t, notifier.events)
}

func TestProposalHandler_List_WithoutUserPassesNil(t *testing.T) {
	svc := new(mockProposalService)
	svc.On("GetAll", uuid.Nil).Return(nil, apperror.ErrIdentityRequired)

	w := doJSON(newTestRouter(NewProposalHandler(svc, nil, nil), uuid.Nil), http.MethodGet, "/api/proposals", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestProposalHandler_List_Empty(t *testing.T) {
	svc := new(mockProposalService)
	actor := uuid.New()
	svc.On("GetAll", actor).Return(&proposal.ListResult{Proposals: []*entity.Proposal{}, Count: 0}, nil)

	w := doJSON(newTestRouter(NewProposalHandler(svc, nil, nil), actor), http.MethodGet, "/api/proposals", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"proposals":[],"count":0}`, w.Body.String())
}

func TestProposalHandler_Get(t *testing.T) {
	svc := new(mockProposalService)
	p := sampleProposal()
	missing := uuid.New()
	svc.On("GetByID", p.ID).Return(p, nil)
	svc.On("GetByID", missing).Return(nil, apperror.NotFound("предложение с ID "+missing.String()+" не найдено"))
	r := newTestRouter(NewProposalHandler(svc, nil, nil), uuid.New())

	w := doJSON(r, http.MethodGet, "/api/proposals/"+p.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body dto.ProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, p.Title, body.Title)

	w = doJSON(r, http.MethodGet, "/api/proposals/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), missing.String())

	w = doJSON(r, http.MethodGet, "/api/proposals/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandler_Update(t *testing.T) {
	svc := new(mockProposalService)
	notifier := &recordingNotifier{}
	p := sampleProposal()
	p.Status = valueobject.ProposalStatusAccepted
	status := valueobject.ProposalStatusAccepted
	duration := 30

	svc.On("Update", p.ID, entity.ProposalPatch{Duration: &duration, Status: &status}).
		Return(&proposal.UpdateResult{Message: "предложение с ID " + p.ID.String() + " обновлено", Proposal: p}, nil)

	w := doJSON(newTestRouter(NewProposalHandler(svc, notifier, nil), uuid.New()), http.MethodPatch, "/api/proposals/"+p.ID.String(),
		map[string]any{"duration": 30, "status": "ACCEPTED"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body dto.UpdateProposalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Message, p.ID.String())
	assert.Equal(t, "ACCEPTED", body.Proposal.Status)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventProposalUpdated, notifier.events[0].event)
	svc.AssertExpectations(t)
}

func TestProposalHandler_Update_InvalidStatus(t *testing.T) {
	svc := new(mockProposalService)
	w := doJSON(newTestRouter(NewProposalHandler(svc, nil, nil), uuid.New()), http.MethodPatch, "/api/proposals/"+uuid.NewString(),
		map[string]any{"status": "archived"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "PENDING, ACCEPTED, REJECTED, COMPLETED")
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

type recordingPurger struct {
	purged []uuid.UUID
}

func (p *recordingPurger) PurgeProposal(ctx context.Context, proposalID uuid.UUID) {
	p.purged = append(p.purged, proposalID)
}

func TestProposalHandler_Delete(t *testing.T) {
	svc := new(mockProposalService)
	purger := &recordingPurger{}
	id := uuid.New()
	svc.On("Delete", id).Return(&proposal.DeleteResult{Message: "предложение с ID " + id.String() + " удалено"}, nil).Once()
	svc.On("Delete", id).Return(nil, apperror.Internal(errors.New("not found"), "не удалось удалить предложение")).Once()
	r := newTestRouter(NewProposalHandler(svc, nil, purger), uuid.New())

	w := doJSON(r, http.MethodDelete, "/api/proposals/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"предложение с ID `+id.String()+` удалено"}`, w.Body.String())
	assert.Equal(t, []uuid.UUID{id}, purger.purged)

	// файлы не трогаем, если предложение не удалено
	w = doJSON(r, http.MethodDelete, "/api/proposals/"+id.String(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, purger.purged, 1)
	svc.AssertNumberOfCalls(t, "Delete", 2)
}

func TestProposalHandler_Update_EmptyPatch(t *testing.T) {
	svc := new(mockProposalService)
	w := doJSON(newTestRouter(NewProposalHandler(svc, nil, nil), uuid.New()), http.MethodPatch, "/api/proposals/"+uuid.NewString(),
		map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "нет полей для обновления", body.Message)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestBindingMessage_NonValidationError(t *testing.T) {
	assert.Equal(t, "некорректные данные запроса", bindingMessage(errors.New("EOF")))
}
