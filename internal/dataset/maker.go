package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dataset-generator/internal/kandinsky"
	"dataset-generator/internal/messaging"
	"dataset-generator/internal/metrics"
	"dataset-generator/internal/storage"
)

// JobClient - операции API генерации, нужные сборщику. Реализуется *kandinsky.Client.
type JobClient interface {
	DiscoverPipeline(ctx context.Context) (kandinsky.PipelineID, error)
	Submit(ctx context.Context, r kandinsky.SubmitRequest) (kandinsky.JobID, error)
	Poll(ctx context.Context, id kandinsky.JobID, opts kandinsky.PollOptions) (kandinsky.PollResult, error)
}

// ImageStore декодирует полезную нагрузку и сохраняет изображения. Реализуется *storage.FileStore.
type ImageStore interface {
	Decode(payload string) (image.Image, error)
	Save(ctx context.Context, name string, img image.Image) (string, error)
	Dir() string
}

// Entry - одна метка датасета и имя класса для промпта.
type Entry struct {
	Label string
	Class string
}

// Options - настройки сборщика.
type Options struct {
	ShortPrompt bool
	Poll        kandinsky.PollOptions
	// Pipeline задает пайплайн явно; пустой - определяется через API один раз за сессию.
	Pipeline kandinsky.PipelineID
	// RunID - correlation id для событий; пустой - генерируется.
	RunID string
	Rand  *rand.Rand
	Now   func() time.Time
	// Metrics - nil означает metrics.Default().
	Metrics *metrics.Collectors
}

// IncompleteError - задача не дошла до DONE. Сборка датасета на этом прерывается.
type IncompleteError struct {
	JobID      kandinsky.JobID
	Label      string
	Outcome    kandinsky.Outcome
	LastStatus kandinsky.Status
	Attempts   int
	Cause      error
}

func (e *IncompleteError) Error() string {
	msg := fmt.Sprintf("%v: job %s for label %q: %s after %d checks (last status %q)",
		ErrGenerationIncomplete, e.JobID, e.Label, e.Outcome, e.Attempts, e.LastStatus)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *IncompleteError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrGenerationIncomplete, e.Cause}
	}
	return []error{ErrGenerationIncomplete}
}

// Maker собирает датасет: для каждой метки отправляет задачу, ждет результат,
// декодирует и сохраняет изображение. Работает последовательно.
type Maker struct {
	client    JobClient
	store     ImageStore
	session   Session
	opts      Options
	logger    *zap.Logger
	publisher messaging.Publisher

	ledger    *Ledger
	pipeline  kandinsky.PipelineID
	generated int
}

func NewMaker(client JobClient, store ImageStore, session Session, opts Options, logger *zap.Logger, publisher messaging.Publisher) (*Maker, error) {
	if client == nil || store == nil {
		return nil, fmt.Errorf("%w: job client and image store are required", ErrInvalidArgument)
	}
	if opts.Poll.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: poll attempts must be at least 1, got %d", ErrInvalidArgument, opts.Poll.MaxAttempts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	return &Maker{
		client:    client,
		store:     store,
		session:   session,
		opts:      opts,
		logger:    logger.Named("DatasetMaker").With(zap.String("session", session.ID), zap.String("run_id", opts.RunID)),
		publisher: publisher,
		ledger:    NewLedger(),
		pipeline:  opts.Pipeline,
	}, nil
}

// Ledger возвращает журнал отправленных задач.
func (m *Maker) Ledger() *Ledger {
	return m.ledger
}

// Generated - сколько изображений сохранено за сессию.
func (m *Maker) Generated() int {
	return m.generated
}

// MakeImage генерирует и сохраняет одно изображение в <OutputDir>/<label>_<index>.png.
// Ошибки клиента API возвращаются без изменений.
func (m *Maker) MakeImage(ctx context.Context, entry Entry, res Resolution) (img image.Image, path string, err error) {
	start := m.opts.Now()
	log := m.logger.With(zap.String("label", entry.Label), zap.String("class", entry.Class))
	defer func() {
		if err != nil {
			m.opts.Metrics.RunError(errorKind(err))
		}
	}()

	pipeline, err := m.resolvePipeline(ctx)
	if err != nil {
		return nil, "", err
	}

	prompt := BuildPrompt(entry.Class, m.opts.ShortPrompt)
	log.Info("Sending generation request", zap.Stringer("resolution", res))
	jobID, err := m.client.Submit(ctx, kandinsky.SubmitRequest{
		Prompt:   prompt,
		Pipeline: pipeline,
		Images:   1,
		Width:    res.Width,
		Height:   res.Height,
	})
	if err != nil {
		return nil, "", err
	}
	m.ledger.Record(GenerationJob{ID: jobID, Label: entry.Label, Class: entry.Class, SubmittedAt: m.opts.Now()})

	log = log.With(zap.String("job_id", string(jobID)))
	log.Info("Request sent, waiting for result",
		zap.Int("max_attempts", m.opts.Poll.MaxAttempts),
		zap.Duration("delay", m.opts.Poll.Delay),
	)

	result, err := m.client.Poll(ctx, jobID, m.opts.Poll)
	if err != nil {
		return nil, "", err
	}
	m.opts.Metrics.ObservePoll(string(result.Outcome), result.Attempts)
	if !result.Completed() {
		return nil, "", &IncompleteError{
			JobID:      jobID,
			Label:      entry.Label,
			Outcome:    result.Outcome,
			LastStatus: result.Result.Status,
			Attempts:   result.Attempts,
			Cause:      result.Cause,
		}
	}
	log.Info("Result is ready", zap.String("status", string(result.Result.Status)), zap.Int("attempts", result.Attempts))
	if result.Result.Censored {
		log.Warn("Service marked the image as censored")
	}

	img, err = m.store.Decode(result.Result.Files[0])
	if err != nil {
		return nil, "", err
	}

	name := fmt.Sprintf("%s_%d", entry.Label, m.generated)
	path, err = m.store.Save(ctx, name, img)
	if err != nil {
		return nil, "", err
	}
	m.generated++

	elapsed := m.opts.Now().Sub(start)
	m.opts.Metrics.ImageSaved()
	m.opts.Metrics.ObserveJobDuration(elapsed)
	log.Info("Image saved", zap.String("path", path), zap.Duration("elapsed", elapsed))

	event := messaging.ImageSavedEvent{
		Type:      messaging.EventImageSaved,
		SessionID: m.session.ID,
		Label:     entry.Label,
		Class:     entry.Class,
		JobID:     string(jobID),
		Path:      path,
		Width:     res.Width,
		Height:    res.Height,
		Censored:  result.Result.Censored,
		SavedAt:   m.opts.Now(),
	}
	if pubErr := m.publisher.Publish(ctx, event, m.opts.RunID); pubErr != nil {
		// Событие - телеметрия; файл уже на диске
		log.Error("Failed to publish image event", zap.Error(pubErr))
	}
	return img, path, nil
}

// Collect обходит метки в случайном порядке и генерирует по изображению на метку,
// пока не наберется limit изображений или метки не закончатся.
// Первая ошибка прерывает сборку; уже сохраненные файлы остаются.
func (m *Maker) Collect(ctx context.Context, entries []Entry, limit int, policy ResolutionPolicy) (err error) {
	if limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidArgument, limit)
	}
	if policy == nil {
		return fmt.Errorf("%w: resolution policy is required", ErrInvalidArgument)
	}

	start := m.opts.Now()
	m.logger.Info("Starting images collection", zap.Int("labels", len(entries)), zap.Int("limit", limit))
	defer func() {
		m.finish(ctx, start, limit, err)
	}()

	for _, entry := range Shuffle(entries, m.opts.Rand) {
		if m.generated >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, err := m.MakeImage(ctx, entry, policy.Next()); err != nil {
			return fmt.Errorf("label %q: %w", entry.Label, err)
		}
	}
	return nil
}

func (m *Maker) finish(ctx context.Context, start time.Time, limit int, runErr error) {
	finished := m.opts.Now()
	event := messaging.SessionFinishedEvent{
		Type:       messaging.EventSessionFinished,
		SessionID:  m.session.ID,
		OutputDir:  m.session.OutputDir,
		Generated:  m.generated,
		Limit:      limit,
		Jobs:       m.ledger.JobIDs(),
		StartedAt:  start,
		FinishedAt: finished,
	}
	if runErr != nil {
		event.Error = runErr.Error()
		m.logger.Error("Images collection aborted",
			zap.Int("generated", m.generated),
			zap.Duration("elapsed", finished.Sub(start)),
			zap.Error(runErr),
		)
	} else {
		m.logger.Info("Images collection finished",
			zap.Int("generated", m.generated),
			zap.Int("labels_submitted", m.ledger.Len()),
			zap.Duration("elapsed", finished.Sub(start)),
		)
	}

	// ctx может быть уже отменен, событие итога все равно отправляем
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.publisher.Publish(pubCtx, event, m.opts.RunID); err != nil {
		m.logger.Error("Failed to publish session event", zap.Error(err))
	}
}

func (m *Maker) resolvePipeline(ctx context.Context) (kandinsky.PipelineID, error) {
	if m.pipeline != "" {
		return m.pipeline, nil
	}
	id, err := m.client.DiscoverPipeline(ctx)
	if err != nil {
		return "", err
	}
	m.logger.Info("Using pipeline", zap.String("pipeline_id", string(id)))
	m.pipeline = id
	return id, nil
}

// EntriesFromClasses строит записи из label -> имена класса (для промпта берется первое имя).
// Записи сортируются по метке, чтобы порядок после Shuffle зависел только от генератора.
func EntriesFromClasses(classes map[string][]string) ([]Entry, error) {
	entries := make([]Entry, 0, len(classes))
	for label, names := range classes {
		if len(names) == 0 || names[0] == "" {
			return nil, fmt.Errorf("%w: label %q has no class name", ErrInvalidArgument, label)
		}
		entries = append(entries, Entry{Label: label, Class: names[0]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return entries, nil
}

// Shuffle возвращает перемешанную копию entries.
func Shuffle(entries []Entry, rng *rand.Rand) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, kandinsky.ErrAuth):
		return "auth"
	case errors.Is(err, kandinsky.ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrGenerationIncomplete):
		return "incomplete"
	case errors.Is(err, kandinsky.ErrTransport):
		return "transport"
	case errors.Is(err, storage.ErrDecode):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
