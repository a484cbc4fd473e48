package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge возвращается, если файл превышает лимит загрузки.
var ErrTooLarge = errors.New("storage: файл превышает допустимый размер")

// rename подменяется в тестах.
var rename = os.Rename

// AttachmentStorage хранит вложения предложений на диске: {root}/{proposalID}/{file}.
type AttachmentStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewAttachmentStorage создаёт файловое хранилище.
func NewAttachmentStorage(rootPath string, maxUploadMB int64) (*AttachmentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &AttachmentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Path возвращает абсолютный путь файла по относительному пути из записи вложения.
func (s *AttachmentStorage) Path(relativePath string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(sanitizeRelative(relativePath)))
}

// MaxBytes возвращает лимит размера одного файла.
func (s *AttachmentStorage) MaxBytes() int64 {
	return s.maxUploadBytes
}

// Save сохраняет файл и возвращает относительный путь со слэшами и размер.
func (s *AttachmentStorage) Save(ctx context.Context, proposalID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalName)))
	fileName := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)

	dir := filepath.Join(s.rootPath, proposalID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать каталог предложения: %w", err)
	}

	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, &io.LimitedReader{R: r, N: s.maxUploadBytes + 1})
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, ErrTooLarge
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return proposalID.String() + "/" + fileName, written, nil
}

// Delete удаляет файл из хранилища. Отсутствующий файл не считается ошибкой.
func (s *AttachmentStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.Path(relativePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// DeleteProposalDir удаляет каталог со всеми файлами предложения.
func (s *AttachmentStorage) DeleteProposalDir(ctx context.Context, proposalID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if proposalID == uuid.Nil {
		return fmt.Errorf("storage: пустой ID предложения")
	}

	if err := os.RemoveAll(s.Path(proposalID.String())); err != nil {
		return fmt.Errorf("storage: не удалось удалить каталог предложения: %w", err)
	}
	return nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}
	return name
}

func sanitizeRelative(p string) string {
	return strings.TrimPrefix(filepath.Clean("/"+p), "/")
}
