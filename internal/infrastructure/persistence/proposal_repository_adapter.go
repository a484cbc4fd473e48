package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
	"github.com/jmoiron/sqlx"
)

const proposalColumns = `id, title, description, duration, payment_terms, status,
		client_id, service_provider_id, created_by_id, created_at, updated_at`

type ProposalRepositoryAdapter struct {
	db *sqlx.DB
}

func NewProposalRepositoryAdapter(db *sqlx.DB) *ProposalRepositoryAdapter {
	return &ProposalRepositoryAdapter{db: db}
}

func (r *ProposalRepositoryAdapter) Create(ctx context.Context, proposal *entity.Proposal) error {
	query := `
		INSERT INTO proposals (title, description, duration, payment_terms, status, client_id, service_provider_id, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		proposal.Title, proposal.Description, proposal.Duration, proposal.PaymentTerms,
		string(proposal.Status), proposal.ClientID, proposal.ServiceProviderID, proposal.CreatedByID,
	).Scan(&proposal.ID, &proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать предложение")
	}
	return nil
}

func (r *ProposalRepositoryAdapter) FindByCreator(ctx context.Context, createdByID uuid.UUID) ([]*entity.Proposal, error) {
	var rows []proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE created_by_id = $1`
	if err := r.db.SelectContext(ctx, &rows, query, createdByID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложения")
	}
	return toProposalEntities(rows), nil
}

func (r *ProposalRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	var p proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложение")
	}
	return p.toEntity(), nil
}

// Update применяет только заданные поля патча: NULL-параметр оставляет колонку без изменений.
func (r *ProposalRepositoryAdapter) Update(ctx context.Context, id uuid.UUID, patch entity.ProposalPatch) (*entity.Proposal, error) {
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	var p proposalRow
	query := `
		UPDATE proposals SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			duration = COALESCE($4, duration),
			payment_terms = COALESCE($5, payment_terms),
			status = COALESCE($6, status),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + proposalColumns
	err := r.db.QueryRowxContext(ctx, query,
		id, patch.Title, patch.Description, patch.Duration, patch.PaymentTerms, status,
	).StructScan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить предложение")
	}
	return p.toEntity(), nil
}

func (r *ProposalRepositoryAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить предложение")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить предложение")
	}
	if affected == 0 {
		return apperror.ErrProposalNotFound
	}
	return nil
}

type proposalRow struct {
	ID                uuid.UUID `db:"id"`
	Title             string    `db:"title"`
	Description       string    `db:"description"`
	Duration          int       `db:"duration"`
	PaymentTerms      string    `db:"payment_terms"`
	Status            string    `db:"status"`
	ClientID          uuid.UUID `db:"client_id"`
	ServiceProviderID uuid.UUID `db:"service_provider_id"`
	CreatedByID       uuid.UUID `db:"created_by_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (p *proposalRow) toEntity() *entity.Proposal {
	return &entity.Proposal{
		ID:                p.ID,
		Title:             p.Title,
		Description:       p.Description,
		Duration:          p.Duration,
		PaymentTerms:      p.PaymentTerms,
		Status:            valueobject.ProposalStatus(p.Status),
		ClientID:          p.ClientID,
		ServiceProviderID: p.ServiceProviderID,
		CreatedByID:       p.CreatedByID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toProposalEntities(rows []proposalRow) []*entity.Proposal {
	result := make([]*entity.Proposal, len(rows))
	for i, row := range rows {
		result[i] = row.toEntity()
	}
	return result
}
