package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-backend/internal/domain/entity"
	"github.com/ignatzorin/proposal-backend/internal/models"
	"github.com/ignatzorin/proposal-backend/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-backend/internal/repository"
	"github.com/ignatzorin/proposal-backend/internal/storage"
)

// sniffLen - сколько байт читаем для определения типа файла.
const sniffLen = 8192

// Разрешённые типы вложений (расширения по версии filetype).
var allowedAttachmentKinds = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"gif":  true,
	"webp": true,
	"docx": true,
	"xlsx": true,
	"zip":  true,
}

// ProposalFinder возвращает предложение по ID либо NOT_FOUND.
type ProposalFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
}

// AttachmentStore описывает хранилище записей о вложениях.
type AttachmentStore interface {
	Create(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FileStorage описывает файловое хранилище.
type FileStorage interface {
	Save(ctx context.Context, proposalID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
	Delete(ctx context.Context, relativePath string) error
	DeleteProposalDir(ctx context.Context, proposalID uuid.UUID) error
	Path(relativePath string) string
}

// AttachmentService управляет файлами, приложенными к предложениям.
type AttachmentService struct {
	proposals ProposalFinder
	repo      AttachmentStore
	files     FileStorage
	log       logrus.FieldLogger
}

// UploadInput описывает загружаемый файл.
type UploadInput struct {
	ProposalID uuid.UUID
	UploaderID uuid.UUID
	FileName   string
	Content    io.Reader
}

// NewAttachmentService создаёт сервис вложений.
func NewAttachmentService(proposals ProposalFinder, repo AttachmentStore, files FileStorage, log logrus.FieldLogger) *AttachmentService {
	return &AttachmentService{
		proposals: proposals,
		repo:      repo,
		files:     files,
		log:       log.WithField("component", "attachment_service"),
	}
}

// Upload проверяет доступ и тип файла, сохраняет его и создаёт запись.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (*models.Attachment, error) {
	log := s.log.WithFields(logrus.Fields{"proposal_id": in.ProposalID, "user_id": in.UploaderID})

	if _, err := s.accessibleProposal(ctx, in.ProposalID, in.UploaderID); err != nil {
		return nil, err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	header = header[:n]
	if n == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "файл не может быть пустым")
	}

	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown || !allowedAttachmentKinds[kind.Extension] {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неподдерживаемый тип файла. Разрешены: %s", strings.Join(AllowedAttachmentKinds(), ", ")))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.FileName)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext != kind.Extension {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("расширение файла (.%s) не соответствует реальному типу (.%s)", ext, kind.Extension))
	}

	relativePath, size, err := s.files.Save(ctx, in.ProposalID, in.FileName, io.MultiReader(bytes.NewReader(header), in.Content))
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "файл превышает допустимый размер")
		}
		log.WithError(err).Error("attachment: ошибка сохранения файла")
		return nil, apperror.Internal(err, "не удалось сохранить файл")
	}

	attachment := &models.Attachment{
		ProposalID:   in.ProposalID,
		UploadedByID: in.UploaderID,
		FilePath:     relativePath,
		FileName:     filepath.Base(strings.ReplaceAll(in.FileName, "\\", "/")),
		FileType:     kind.MIME.Value,
		FileSize:     size,
	}
	if err := s.repo.Create(ctx, attachment); err != nil {
		if delErr := s.files.Delete(ctx, relativePath); delErr != nil {
			log.WithError(delErr).Warn("attachment: не удалось удалить файл после ошибки записи")
		}
		log.WithError(err).Error("attachment: ошибка создания записи")
		return nil, apperror.Internal(err, "не удалось сохранить вложение")
	}

	log.WithField("attachment_id", attachment.ID).Info("attachment: файл загружен")
	return attachment, nil
}

// List возвращает вложения предложения, доступного пользователю.
func (s *AttachmentService) List(ctx context.Context, proposalID, userID uuid.UUID) ([]models.Attachment, error) {
	if _, err := s.accessibleProposal(ctx, proposalID, userID); err != nil {
		return nil, err
	}

	attachments, err := s.repo.ListByProposal(ctx, proposalID)
	if err != nil {
		s.log.WithError(err).WithField("proposal_id", proposalID).Error("attachment: ошибка получения вложений")
		return nil, apperror.Internal(err, "не удалось получить вложения")
	}
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	return attachments, nil
}

// Open возвращает вложение и путь к его файлу для скачивания участником предложения.
func (s *AttachmentService) Open(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) (*models.Attachment, string, error) {
	if _, err := s.accessibleProposal(ctx, proposalID, userID); err != nil {
		return nil, "", err
	}

	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return nil, "", apperror.NotFound("вложение не найдено")
		}
		s.log.WithError(err).WithField("attachment_id", attachmentID).Error("attachment: ошибка получения вложения")
		return nil, "", apperror.Internal(err, "не удалось получить вложение")
	}
	if attachment.ProposalID != proposalID {
		return nil, "", apperror.NotFound("вложение не найдено")
	}

	path := s.files.Path(attachment.FilePath)
	if _, err := os.Stat(path); err != nil {
		s.log.WithError(err).WithField("attachment_id", attachmentID).Warn("attachment: файл отсутствует на диске")
		return nil, "", apperror.NotFound("файл вложения не найден")
	}
	return attachment, path, nil
}

// PurgeProposal удаляет файлы уже удалённого предложения. Записи удаляются каскадом в БД.
func (s *AttachmentService) PurgeProposal(ctx context.Context, proposalID uuid.UUID) {
	if err := s.files.DeleteProposalDir(ctx, proposalID); err != nil {
		s.log.WithError(err).WithField("proposal_id", proposalID).Warn("attachment: не удалось удалить файлы предложения")
	}
}

// Delete удаляет вложение. Удалить может загрузивший файл или автор предложения.
func (s *AttachmentService) Delete(ctx context.Context, proposalID, attachmentID, userID uuid.UUID) error {
	log := s.log.WithFields(logrus.Fields{"proposal_id": proposalID, "attachment_id": attachmentID, "user_id": userID})

	proposal, err := s.accessibleProposal(ctx, proposalID, userID)
	if err != nil {
		return err
	}

	attachment, err := s.repo.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return apperror.NotFound("вложение не найдено")
		}
		log.WithError(err).Error("attachment: ошибка получения вложения")
		return apperror.Internal(err, "не удалось получить вложение")
	}
	if attachment.ProposalID != proposalID {
		return apperror.NotFound("вложение не найдено")
	}
	if attachment.UploadedByID != userID && !proposal.IsCreatedBy(userID) {
		return apperror.ErrForbidden
	}

	if err := s.repo.Delete(ctx, attachmentID); err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return apperror.NotFound("вложение не найдено")
		}
		log.WithError(err).Error("attachment: ошибка удаления записи")
		return apperror.Internal(err, "не удалось удалить вложение")
	}
	if err := s.files.Delete(ctx, attachment.FilePath); err != nil {
		log.WithError(err).Warn("attachment: запись удалена, но файл остался на диске")
	}

	log.Info("attachment: вложение удалено")
	return nil
}

func (s *AttachmentService) accessibleProposal(ctx context.Context, proposalID, userID uuid.UUID) (*entity.Proposal, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if proposal.IsCreatedBy(userID) {
		return proposal, nil
	}
	for _, party := range proposal.Parties() {
		if party == userID {
			return proposal, nil
		}
	}
	return nil, apperror.ErrForbidden
}

// AllowedAttachmentKinds возвращает отсортированный список разрешённых расширений.
func AllowedAttachmentKinds() []string {
	kinds := make([]string, 0, len(allowedAttachmentKinds))
	for k := range allowedAttachmentKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
