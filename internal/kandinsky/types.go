package kandinsky

import (
	"fmt"
	"strings"
	"time"
)

// PipelineID - идентификатор пайплайна генерации, выдается сервисом.
type PipelineID string

// JobID - непрозрачный идентификатор задачи генерации (uuid на стороне сервиса).
type JobID string

// Status - статус задачи. Множество значений открытое: клиент знает только DONE как успешное завершение.
type Status string

const (
	StatusInitial    Status = "INITIAL"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusFail       Status = "FAIL"
)

// Done сообщает, что задача завершилась успешно и результат можно забирать.
func (s Status) Done() bool {
	return s == StatusDone
}

// GenerationResult - разобранный ответ эндпоинта статуса.
type GenerationResult struct {
	JobID            JobID
	Status           Status
	Files            []string // base64, порядок как в ответе сервиса
	Censored         bool
	ErrorDescription string
}

// SubmitRequest - параметры одной задачи генерации.
type SubmitRequest struct {
	Prompt   string
	Pipeline PipelineID
	Images   int
	Width    int
	Height   int
}

func (r SubmitRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Prompt) == "":
		return fmt.Errorf("%w: prompt is empty", ErrInvalidArgument)
	case r.Pipeline == "":
		return fmt.Errorf("%w: pipeline id is empty", ErrInvalidArgument)
	case r.Images < 1:
		return fmt.Errorf("%w: images must be at least 1, got %d", ErrInvalidArgument, r.Images)
	case r.Width < 1 || r.Height < 1:
		return fmt.Errorf("%w: invalid resolution %dx%d", ErrInvalidArgument, r.Width, r.Height)
	}
	return nil
}

// Outcome - чем закончился опрос задачи.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeTimedOut         Outcome = "timed_out"
	OutcomeTransportFailure Outcome = "transport_failure"
)

// PollOptions ограничивает опрос: не больше MaxAttempts проверок с паузой Delay между ними.
type PollOptions struct {
	MaxAttempts int
	Delay       time.Duration
}

func (o PollOptions) validate() error {
	if o.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidArgument, o.MaxAttempts)
	}
	if o.Delay < 0 {
		return fmt.Errorf("%w: negative poll delay %s", ErrInvalidArgument, o.Delay)
	}
	return nil
}

// PollResult - итог опроса. Result всегда содержит последний полученный статус
// (при TransportFailure он может быть пустым, если ни одна проверка не удалась).
type PollResult struct {
	Outcome  Outcome
	Result   GenerationResult
	Attempts int   // сколько проверок статуса было отправлено
	Cause    error // причина для OutcomeTransportFailure
}

// Completed - сокращение для Outcome == OutcomeCompleted.
func (r PollResult) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// --- Схемы ответов API ---

type pipelineInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version any    `json:"version,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
}

type generateParams struct {
	Type           string `json:"type"`
	NumImages      int    `json:"numImages"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	GenerateParams struct {
		Query string `json:"query"`
	} `json:"generateParams"`
}

type runResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

type statusResponse struct {
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	ErrorDescription string `json:"errorDescription"`
	Result           *struct {
		Files    []string `json:"files"`
		Censored bool     `json:"censored"`
	} `json:"result"`
}

// toResult проверяет ответ статуса и переводит его в GenerationResult.
func (r statusResponse) toResult(id JobID) (GenerationResult, error) {
	if r.Status == "" {
		return GenerationResult{}, fmt.Errorf("%w: status response for %s has no status", ErrProtocol, id)
	}
	res := GenerationResult{
		JobID:            id,
		Status:           Status(r.Status),
		ErrorDescription: r.ErrorDescription,
	}
	if r.Result != nil {
		res.Files = r.Result.Files
		res.Censored = r.Result.Censored
	}
	if res.Status.Done() && len(res.Files) == 0 {
		return GenerationResult{}, fmt.Errorf("%w: job %s is DONE but result.files is empty", ErrProtocol, id)
	}
	return res, nil
}
