package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-backend/internal/usecase/proposal"
)

type CreateProposalRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Description     string `json:"description" binding:"required"`
	Duration        int    `json:"duration" binding:"required,gt=0"`
	PaymentTerms    string `json:"paymentTerms" binding:"required"`
	Status          string `json:"status" binding:"required,proposal_status"`
	Client          string `json:"client" binding:"required,email"`
	ServiceProvider string `json:"serviceProvider" binding:"required,email"`
}

// UpdateProposalRequest - частичное обновление, отсутствующие поля не меняются.
type UpdateProposalRequest struct {
	Title        *string `json:"title" binding:"omitempty,max=200"`
	Description  *string `json:"description"`
	Duration     *int    `json:"duration" binding:"omitempty,gt=0"`
	PaymentTerms *string `json:"paymentTerms"`
	Status       *string `json:"status" binding:"omitempty,proposal_status"`
}

type ProposalResponse struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Duration          int       `json:"duration"`
	PaymentTerms      string    `json:"paymentTerms"`
	Status            string    `json:"status"`
	ClientID          uuid.UUID `json:"clientId"`
	ServiceProviderID uuid.UUID `json:"serviceProviderId"`
	CreatedByID       uuid.UUID `json:"createdById"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type ProposalListResponse struct {
	Proposals []ProposalResponse `json:"proposals"`
	Count     int                `json:"count"`
}

type UpdateProposalResponse struct {
	Message  string           `json:"message"`
	Proposal ProposalResponse `json:"proposal"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (r CreateProposalRequest) ToInput() proposal.CreateInput {
	return proposal.CreateInput{
		Title:                r.Title,
		Description:          r.Description,
		Duration:             r.Duration,
		PaymentTerms:         r.PaymentTerms,
		Status:               valueobject.ProposalStatus(r.Status),
		ClientEmail:          r.Client,
		ServiceProviderEmail: r.ServiceProvider,
	}
}

func (r UpdateProposalRequest) ToPatch() entity.ProposalPatch {
	patch := entity.ProposalPatch{
		Title:        r.Title,
		Description:  r.Description,
		Duration:     r.Duration,
		PaymentTerms: r.PaymentTerms,
	}
	if r.Status != nil {
		status := valueobject.ProposalStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

func ToProposalResponse(p *entity.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:                p.ID,
		Title:             p.Title,
		Description:       p.Description,
		Duration:          p.Duration,
		PaymentTerms:      p.PaymentTerms,
		Status:            string(p.Status),
		ClientID:          p.ClientID,
		ServiceProviderID: p.ServiceProviderID,
		CreatedByID:       p.CreatedByID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func ToProposalResponses(proposals []*entity.Proposal) []ProposalResponse {
	responses := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		responses = append(responses, ToProposalResponse(p))
	}
	return responses
}

func ToProposalListResponse(result *proposal.ListResult) ProposalListResponse {
	return ProposalListResponse{
		Proposals: ToProposalResponses(result.Proposals),
		Count:     result.Count,
	}
}
