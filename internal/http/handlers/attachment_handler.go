package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-backend/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/response"
	"github.com/ignatzorin/proposal-backend/internal/models"
	"github.com/ignatzorin/proposal-backend/internal/service"
)

// AttachmentManager - операции над вложениями предложений.
type AttachmentManager interface {
	Upload(ctx context.Context, in service.UploadInput) (*models.Attachment, error)
	List(ctx context.Context, proposalID, userID uuid.UUID) ([]models.Attachment, error)
	Open(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) (*models.Attachment, string, error)
	Delete(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) error
}

// AttachmentHandler управляет файлами, приложенными к предложениям.
type AttachmentHandler struct {
	attachments AttachmentManager
	maxBytes    int64
}

// NewAttachmentHandler создаёт хэндлер. maxBytes ограничивает тело multipart запроса.
func NewAttachmentHandler(attachments AttachmentManager, maxBytes int64) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, maxBytes: maxBytes}
}

// Upload обрабатывает POST /api/proposals/:id/attachments.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	// запас на заголовки multipart
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		response.BadRequest(c, "файл не может быть пустым")
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	attachment, err := h.attachments.Upload(c.Request.Context(), service.UploadInput{
		ProposalID: proposalID,
		UploaderID: userID,
		FileName:   file.Filename,
		Content:    src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

// List обрабатывает GET /api/proposals/:id/attachments.
func (h *AttachmentHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	attachments, err := h.attachments.List(c.Request.Context(), proposalID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachments": attachments, "count": len(attachments)})
}

// Download обрабатывает GET /api/proposals/:id/attachments/:attachmentId/file.
func (h *AttachmentHandler) Download(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}
	attachmentID, err := common.ParseUUIDParam(c, "attachmentId")
	if err != nil {
		response.BadRequest(c, "некорректный ID вложения")
		return
	}

	attachment, path, err := h.attachments.Open(c.Request.Context(), proposalID, attachmentID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", attachment.FileType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.FileAttachment(path, attachment.FileName)
}

// Delete обрабатывает DELETE /api/proposals/:id/attachments/:attachmentId.
func (h *AttachmentHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}
	attachmentID, err := common.ParseUUIDParam(c, "attachmentId")
	if err != nil {
		response.BadRequest(c, "некорректный ID вложения")
		return
	}

	if err := h.attachments.Delete(c.Request.Context(), proposalID, attachmentID, userID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
