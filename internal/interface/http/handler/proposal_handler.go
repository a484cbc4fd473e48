package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/dto"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
	"github.com/ignatzorin/proposal-backend/internal/usecase/proposal"
)

// События, которые рассылаются сторонам предложения.
const (
	EventProposalCreated = "proposal.created"
	EventProposalUpdated = "proposal.updated"
)

// ProposalService - операции жизненного цикла предложения.
type ProposalService interface {
	Create(ctx context.Context, input proposal.CreateInput, actorID uuid.UUID) (*entity.Proposal, error)
	GetAll(ctx context.Context, actorID uuid.UUID) (*proposal.ListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.ProposalPatch) (*proposal.UpdateResult, error)
	Delete(ctx context.Context, id uuid.UUID) (*proposal.DeleteResult, error)
}

// ProposalNotifier доставляет события пользователям онлайн.
type ProposalNotifier interface {
	Notify(event string, data any, userIDs ...uuid.UUID)
}

// AttachmentPurger удаляет файлы вложений удалённого предложения.
type AttachmentPurger interface {
	PurgeProposal(ctx context.Context, proposalID uuid.UUID)
}

type ProposalHandler struct {
	proposals   ProposalService
	notifier    ProposalNotifier
	attachments AttachmentPurger
}

// NewProposalHandler создаёт хэндлер. notifier и attachments могут быть nil.
func NewProposalHandler(proposals ProposalService, notifier ProposalNotifier, attachments AttachmentPurger) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, notifier: notifier, attachments: attachments}
}

// CreateProposal обрабатывает POST /api/proposals.
// Отсутствие пользователя в контексте передаётся сервису как uuid.Nil.
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	userID, _ := getUserID(c)

	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	created, err := h.proposals.Create(c.Request.Context(), req.ToInput(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := dto.ToProposalResponse(created)
	h.notify(EventProposalCreated, body, created)
	response.Created(c, body)
}

// ListProposals обрабатывает GET /api/proposals: предложения, созданные пользователем.
func (h *ProposalHandler) ListProposals(c *gin.Context) {
	userID, _ := getUserID(c)

	result, err := h.proposals.GetAll(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToProposalListResponse(result))
}

func (h *ProposalHandler) GetProposal(c *gin.Context) {
	proposalID, err := getPathID(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	p, err := h.proposals.GetByID(c.Request.Context(), proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToProposalResponse(p))
}

func (h *ProposalHandler) UpdateProposal(c *gin.Context) {
	proposalID, err := getPathID(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	var req dto.UpdateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	patch := req.ToPatch()
	if patch.IsEmpty() {
		response.BadRequest(c, "нет полей для обновления")
		return
	}

	result, err := h.proposals.Update(c.Request.Context(), proposalID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := dto.UpdateProposalResponse{
		Message:  result.Message,
		Proposal: dto.ToProposalResponse(result.Proposal),
	}
	h.notify(EventProposalUpdated, body.Proposal, result.Proposal)
	response.OK(c, body)
}

func (h *ProposalHandler) DeleteProposal(c *gin.Context) {
	proposalID, err := getPathID(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	result, err := h.proposals.Delete(c.Request.Context(), proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.attachments != nil {
		h.attachments.PurgeProposal(c.Request.Context(), proposalID)
	}

	response.OK(c, dto.MessageResponse{Message: result.Message})
}

func (h *ProposalHandler) notify(event string, body dto.ProposalResponse, p *entity.Proposal) {
	if h.notifier == nil || p == nil {
		return
	}
	h.notifier.Notify(event, body, p.Parties()...)
}
