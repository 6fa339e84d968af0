package messaging

import (
	"context"
	"time"
)

// EventType - тип события прогона.
type EventType string

const (
	EventImageSaved      EventType = "image_saved"
	EventSessionFinished EventType = "session_finished"
)

// Publisher публикует события прогона. correlationID - идентификатор прогона.
type Publisher interface {
	Publish(ctx context.Context, payload interface{}, correlationID string) error
	Close() error
}

// ImageSavedEvent - изображение сгенерировано и записано на диск.
type ImageSavedEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Label     string    `json:"label"`
	Class     string    `json:"class"`
	JobID     string    `json:"jobId"`
	Path      string    `json:"path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Censored  bool      `json:"censored,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

// SessionFinishedEvent - итог прогона. Error пустой при успешном завершении.
type SessionFinishedEvent struct {
	Type       EventType           `json:"type"`
	SessionID  string              `json:"sessionId"`
	OutputDir  string              `json:"outputDir"`
	Generated  int                 `json:"generated"`
	Limit      int                 `json:"limit"`
	Jobs       map[string][]string `json:"jobs"` // label -> job ids в порядке отправки
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Error      string              `json:"error,omitempty"`
}

// NopPublisher используется, когда RabbitMQ не настроен.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, interface{}, string) error { return nil }

func (NopPublisher) Close() error { return nil }
