package kandinsky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dataset-generator/internal/metrics"
)

// DefaultBaseURL - публичный адрес FusionBrain API.
const DefaultBaseURL = "https://api-key.fusionbrain.ai/"

const (
	pipelinesPath = "key/api/v1/pipelines"
	runPath       = "key/api/v1/pipeline/run"
	statusPath    = "key/api/v1/pipeline/status/"

	defaultTimeout = 60 * time.Second
	// Ответ статуса содержит изображения в base64, поэтому лимит с запасом.
	maxResponseBody = 64 << 20
)

// Options - параметры клиента. Обязательны только ключи.
type Options struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
	Timeout    time.Duration
	// Sleeper задает ожидание между проверками статуса (по умолчанию таймер с учетом ctx).
	Sleeper Sleeper
	// SubmitLimiter ограничивает частоту отправки задач. nil - без ограничения.
	SubmitLimiter *rate.Limiter
	// Metrics - куда писать метрики запросов. nil - metrics.Default().
	Metrics *metrics.Collectors
	Logger  *zap.Logger
}

// Client работает с одним API генерации: поиск пайплайна, отправка задачи, опрос статуса.
// Кроме настроек соединения и ключей состояния не хранит.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secretKey  string
	sleeper    Sleeper
	limiter    *rate.Limiter
	metrics    *metrics.Collectors
	logger     *zap.Logger
}

// NewClient создает клиент. Пустые ключи - ошибка конфигурации.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	secretKey := strings.TrimSpace(opts.SecretKey)
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("%w: api key and secret key are required", ErrInvalidArgument)
	}

	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("%w: invalid base url %q: %v", ErrInvalidArgument, base, err)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = timerSleeper{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collectors := opts.Metrics
	if collectors == nil {
		collectors = metrics.Default()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     apiKey,
		secretKey:  secretKey,
		sleeper:    sleeper,
		limiter:    opts.SubmitLimiter,
		metrics:    collectors,
		logger:     logger.Named("kandinsky"),
	}, nil
}

// DiscoverPipeline возвращает идентификатор первого пайплайна из списка.
func (c *Client) DiscoverPipeline(ctx context.Context) (PipelineID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pipelinesPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create pipelines request: %w", err)
	}

	var pipelines []pipelineInfo
	if err := c.do(req, "pipelines", &pipelines); err != nil {
		return "", err
	}
	if len(pipelines) == 0 {
		return "", fmt.Errorf("%w: pipelines list is empty", ErrProtocol)
	}
	if pipelines[0].ID == "" {
		return "", fmt.Errorf("%w: first pipeline has no id", ErrProtocol)
	}

	c.logger.Debug("Pipeline discovered",
		zap.String("pipeline_id", pipelines[0].ID),
		zap.String("pipeline_name", pipelines[0].Name),
		zap.Int("pipelines", len(pipelines)),
	)
	return PipelineID(pipelines[0].ID), nil
}

// Submit отправляет задачу генерации и возвращает ее идентификатор.
// Локальное состояние не меняется.
func (c *Client) Submit(ctx context.Context, r SubmitRequest) (JobID, error) {
	if err := r.validate(); err != nil {
		return "", err
	}

	params := generateParams{
		Type:      "GENERATE",
		NumImages: r.Images,
		Width:     r.Width,
		Height:    r.Height,
	}
	params.GenerateParams.Query = r.Prompt

	body, contentType, err := encodeRunForm(r.Pipeline, params)
	if err != nil {
		return "", err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runPath, body)
	if err != nil {
		return "", fmt.Errorf("failed to create run request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out runResponse
	if err := c.do(req, "run", &out); err != nil {
		return "", err
	}
	if out.UUID == "" {
		return "", fmt.Errorf("%w: run response has no uuid", ErrProtocol)
	}

	c.metrics.JobSubmitted()
	c.logger.Debug("Generation job submitted",
		zap.String("job_id", out.UUID),
		zap.String("status", out.Status),
		zap.Int("width", r.Width),
		zap.Int("height", r.Height),
	)
	return JobID(out.UUID), nil
}

// Status выполняет одну проверку статуса задачи.
func (c *Client) Status(ctx context.Context, id JobID) (GenerationResult, error) {
	if id == "" {
		return GenerationResult{}, fmt.Errorf("%w: job id is empty", ErrInvalidArgument)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath+url.PathEscape(string(id)), nil)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("failed to create status request: %w", err)
	}

	var out statusResponse
	if err := c.do(req, "status", &out); err != nil {
		return GenerationResult{}, err
	}
	return out.toResult(id)
}

// Poll опрашивает статус задачи не более opts.MaxAttempts раз, делая паузу opts.Delay
// только между проверками. Первый DONE возвращается сразу (OutcomeCompleted).
// Исчерпание попыток ошибкой не считается: возвращается OutcomeTimedOut с последним статусом,
// решение за вызывающим. Сетевой сбой на любой проверке завершает опрос с
// OutcomeTransportFailure. ErrAuth, ErrProtocol и отмена ctx возвращаются как ошибки.
func (c *Client) Poll(ctx context.Context, id JobID, opts PollOptions) (PollResult, error) {
	if err := opts.validate(); err != nil {
		return PollResult{}, err
	}
	if id == "" {
		return PollResult{}, fmt.Errorf("%w: job id is empty", ErrInvalidArgument)
	}

	log := c.logger.With(zap.String("job_id", string(id)))
	result := PollResult{Result: GenerationResult{JobID: id}}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleeper.Sleep(ctx, opts.Delay); err != nil {
				return result, err
			}
		}

		res, err := c.Status(ctx, id)
		result.Attempts = attempt
		if err != nil {
			// Отмена ctx во время проверки - не сетевой сбой
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			if errors.Is(err, ErrTransport) {
				log.Warn("Status check failed, giving up", zap.Int("attempt", attempt), zap.Error(err))
				result.Outcome = OutcomeTransportFailure
				result.Cause = err
				return result, nil
			}
			return result, err
		}

		result.Result = res
		if res.Status.Done() {
			result.Outcome = OutcomeCompleted
			log.Debug("Generation done", zap.Int("attempt", attempt), zap.Int("files", len(res.Files)))
			return result, nil
		}
		log.Info("Request status",
			zap.String("status", string(res.Status)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.MaxAttempts),
		)
	}

	result.Outcome = OutcomeTimedOut
	log.Warn("Poll attempts exhausted",
		zap.String("last_status", string(result.Result.Status)),
		zap.Int("attempts", result.Attempts),
	)
	return result, nil
}

// Generate - Submit и Poll подряд.
func (c *Client) Generate(ctx context.Context, r SubmitRequest, opts PollOptions) (JobID, PollResult, error) {
	if err := opts.validate(); err != nil {
		return "", PollResult{}, err
	}
	id, err := c.Submit(ctx, r)
	if err != nil {
		return "", PollResult{}, err
	}
	res, err := c.Poll(ctx, id, opts)
	return id, res, err
}

// do отправляет запрос с заголовками авторизации и декодирует JSON ответ в out.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	req.Header.Set("X-Key", "Key "+c.apiKey)
	req.Header.Set("X-Secret", "Secret "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		c.metrics.ObserveAPIRequest(endpoint, -1)
		return fmt.Errorf("%w: %s request: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveAPIRequest(endpoint, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: failed to read %s response body: %v", ErrTransport, endpoint, err)
	}

	if err := checkStatus(endpoint, resp.StatusCode, body); err != nil {
		c.logger.Error("API returned non-OK status",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
		)
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrProtocol, endpoint, err)
	}
	return nil
}

// encodeRunForm собирает multipart форму: поле pipeline_id и часть params с JSON.
func encodeRunForm(pipeline PipelineID, params generateParams) (io.Reader, string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal generation params: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("pipeline_id", string(pipeline)); err != nil {
		return nil, "", fmt.Errorf("failed to write pipeline_id field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="params"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create params part: %w", err)
	}
	if _, err := part.Write(paramsJSON); err != nil {
		return nil, "", fmt.Errorf("failed to write params part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
