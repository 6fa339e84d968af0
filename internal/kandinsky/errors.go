package kandinsky

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuth - сервис отклонил ключи (401/403). Не ретраится.
	ErrAuth = errors.New("kandinsky: credentials rejected")
	// ErrProtocol - ответ не соответствует ожидаемой схеме (нет поля, пустой список, неизвестный код).
	ErrProtocol = errors.New("kandinsky: unexpected response")
	// ErrInvalidArgument - некорректные параметры вызова, запрос в сеть не отправлялся.
	ErrInvalidArgument = errors.New("kandinsky: invalid argument")
	// ErrTransport - сетевая ошибка или 5xx/429 со стороны сервиса.
	ErrTransport = errors.New("kandinsky: transport failure")
)

// maxErrorBody ограничивает размер тела ответа, попадающего в текст ошибки.
const maxErrorBody = 512

// APIError описывает неуспешный HTTP ответ. Unwrap возвращает одну из sentinel-ошибок пакета.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: %s returned http %d: %s", e.kind, e.Endpoint, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// checkStatus переводит HTTP статус в ошибку таксономии пакета. Для 2xx возвращает nil.
func checkStatus(endpoint string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	var kind error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrAuth
	case code == http.StatusTooManyRequests || code >= 500:
		kind = ErrTransport
	default:
		kind = ErrProtocol
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &APIError{Endpoint: endpoint, StatusCode: code, Body: text, kind: kind}
}
