package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-backend/internal/models"
	"github.com/ignatzorin/proposal-backend/internal/repository/common"
)

// ErrAttachmentNotFound сигнализирует об отсутствии вложения.
var ErrAttachmentNotFound = fmt.Errorf("attachment: %w", common.ErrNotFound)

// AttachmentRepository работает с таблицей proposal_attachments.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository создаёт экземпляр.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create сохраняет запись о файле.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO proposal_attachments (proposal_id, uploaded_by_id, file_path, file_name, file_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		a.ProposalID,
		a.UploadedByID,
		a.FilePath,
		a.FileName,
		a.FileType,
		a.FileSize,
	).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("attachment repository: create %w", err)
	}

	return nil
}

// GetByID возвращает запись о файле.
func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	return common.GetByID[models.Attachment](ctx, r.db, "proposal_attachments", id, ErrAttachmentNotFound)
}

// ListByProposal возвращает вложения предложения в порядке загрузки.
func (r *AttachmentRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.Attachment, error) {
	query := `
		SELECT id, proposal_id, uploaded_by_id, file_path, file_name, file_type, file_size, created_at
		FROM proposal_attachments
		WHERE proposal_id = $1
		ORDER BY created_at ASC
	`
	attachments := []models.Attachment{}
	if err := r.db.SelectContext(ctx, &attachments, query, proposalID); err != nil {
		return nil, fmt.Errorf("attachment repository: list %w", err)
	}
	return attachments, nil
}

// Delete удаляет запись о файле.
func (r *AttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proposal_attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("attachment repository: delete %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attachment repository: delete rows %w", err)
	}
	if rows == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
