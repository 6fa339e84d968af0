package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // регистрация декодера
	_ "image/jpeg" // сервис отдает JPEG
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ErrDecode - полученные данные не являются base64 или валидным изображением.
var ErrDecode = errors.New("storage: invalid image payload")

// FileStore сохраняет изображения датасета в PNG внутри каталога сессии.
type FileStore struct {
	dir string
}

// NewFileStore создает каталог (вместе с родителями), если его нет.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure output directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir возвращает каталог, в который пишутся файлы.
func (s *FileStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Decode декодирует base64 полезную нагрузку в изображение.
func (s *FileStore) Decode(payload string) (image.Image, error) {
	return Decode(payload)
}

// Decode декодирует base64 строку (стандартный или URL алфавит, с паддингом или без) в изображение.
func Decode(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	// Иногда встречается data URI
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func decodeBase64(payload string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(payload)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Save пишет изображение в PNG под именем name (расширение .png добавляется при необходимости)
// и возвращает полный путь.
func (s *FileStore) Save(ctx context.Context, name string, img image.Image) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil {
		return "", errors.New("storage: image is nil")
	}
	fileName, err := sanitizeName(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("storage: encode png: %w", err)
	}

	fullPath := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(fullPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return fullPath, nil
}

// sanitizeName не дает выйти за пределы каталога сессии: разделители пути заменяются на '_'.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid file name %q", name)
	}
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}
	return name, nil
}
