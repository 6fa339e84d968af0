package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrInvalidArgument - некорректные параметры сборки датасета.
	ErrInvalidArgument = errors.New("dataset: invalid argument")
	// ErrGenerationIncomplete - опрос задачи закончился без DONE (таймаут или сетевой сбой).
	ErrGenerationIncomplete = errors.New("dataset: generation did not complete")
)

// sessionLayout - формат имени сессии по умолчанию: каталог даты и подкаталог времени.
const sessionLayout = "01-02-2006/15-04-05"

// Session - один прогон сборки датасета. ID и время старта передаются явно,
// от них зависит только каталог вывода.
type Session struct {
	ID        string
	StartedAt time.Time
	OutputDir string
}

// NewSession вычисляет каталог вывода как baseDir/ID.
func NewSession(id string, startedAt time.Time, baseDir string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, fmt.Errorf("%w: session id is empty", ErrInvalidArgument)
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return Session{}, fmt.Errorf("%w: session id %q escapes output directory", ErrInvalidArgument, id)
	}
	return Session{
		ID:        id,
		StartedAt: startedAt,
		OutputDir: filepath.Join(baseDir, clean),
	}, nil
}

// DefaultSessionID строит имя сессии из времени старта.
func DefaultSessionID(t time.Time) string {
	return t.Format(sessionLayout)
}
