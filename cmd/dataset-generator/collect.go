package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dataset-generator/internal/classlist"
	"dataset-generator/internal/dataset"
	"dataset-generator/internal/kandinsky"
	"dataset-generator/internal/metrics"
	"dataset-generator/internal/storage"
)

type collectFlags struct {
	classList   string
	resolution  string
	limit       int
	shortPrompt bool
	session     string
	outputDir   string
	seed        uint64
}

func collectCmd() *cobra.Command {
	var f collectFlags
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Generate one image per label until the limit is reached",
		Example: "  dataset-generator collect --class-list goldfish_12 --resolution 320x320\n" +
			"  dataset-generator collect --class-list imagenet_1000 --limit 100",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.classList, "class-list", "goldfish_1",
		"class list name in the data dir, path to a .json/.txt list, or <class>_<count> e.g. goldfish_12")
	flags.StringVar(&f.resolution, "resolution", "random", "random or WxH e.g. 320x320")
	flags.IntVar(&f.limit, "limit", 0, "images to generate (0 = one per label of the class list)")
	flags.BoolVar(&f.shortPrompt, "short-prompt", false, "omit the scene suffix from prompts (overrides DATASET_SHORT_PROMPT)")
	flags.StringVar(&f.session, "session", "", "session id, output goes to <output-dir>/<session> (default: start time as MM-DD-YYYY/HH-MM-SS)")
	flags.StringVar(&f.outputDir, "output-dir", "", "base output directory (overrides DATASET_OUTPUT_DIR)")
	flags.Uint64Var(&f.seed, "seed", 0, "seed for label order and random resolutions (default: random)")
	return cmd
}

func runCollect(cmd *cobra.Command, f collectFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	cfg := a.cfg

	if cmd.Flags().Changed("short-prompt") {
		cfg.Dataset.ShortPrompt = f.shortPrompt
	}
	if f.outputDir != "" {
		cfg.Dataset.OutputDir = f.outputDir
	}
	if f.limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", dataset.ErrInvalidArgument)
	}

	// --- Классы и параметры генерации ---
	list, err := classlist.Load(f.classList, cfg.Dataset.DataDir)
	if err != nil {
		return err
	}
	entries, err := dataset.EntriesFromClasses(list.Classes)
	if err != nil {
		return err
	}
	limit := f.limit
	if limit == 0 {
		limit = list.Limit
	}

	rng := newRand(cmd.Flags().Changed("seed"), f.seed)
	policy, err := dataset.ParseResolution(f.resolution, rng)
	if err != nil {
		return err
	}

	// --- Сессия и хранилище ---
	startedAt := time.Now()
	sessionID := f.session
	if sessionID == "" {
		sessionID = dataset.DefaultSessionID(startedAt)
	}
	session, err := dataset.NewSession(sessionID, startedAt, cfg.Dataset.OutputDir)
	if err != nil {
		return err
	}
	store, err := storage.NewFileStore(session.OutputDir)
	if err != nil {
		return err
	}

	// --- Клиент API, события и метрики ---
	client, err := a.newClient()
	if err != nil {
		return err
	}
	publisher, err := a.connectPublisher(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()
	pusher := metrics.NewPusher(cfg.PushGatewayURL, a.logger)

	runID := uuid.NewString()
	maker, err := dataset.NewMaker(client, store, session, dataset.Options{
		ShortPrompt: cfg.Dataset.ShortPrompt,
		Poll: kandinsky.PollOptions{
			MaxAttempts: cfg.Kandinsky.PollAttempts,
			Delay:       cfg.Kandinsky.PollDelay,
		},
		Pipeline: kandinsky.PipelineID(cfg.Kandinsky.PipelineID),
		RunID:    runID,
		Rand:     rng,
		Metrics:  metrics.Default(),
	}, a.logger, publisher)
	if err != nil {
		return err
	}

	a.logger.Info("Collecting dataset",
		zap.String("class_list", list.Source),
		zap.Int("labels", len(entries)),
		zap.Int("limit", limit),
		zap.String("resolution", f.resolution),
		zap.String("output_dir", session.OutputDir),
		zap.String("run_id", runID),
	)
	collectErr := maker.Collect(ctx, entries, limit, policy)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_ = pusher.Push(pushCtx) // ошибка уже залогирована

	if collectErr != nil {
		return collectErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d images saved to %s\n", maker.Generated(), session.OutputDir)
	return nil
}

func newRand(seeded bool, seed uint64) *rand.Rand {
	if !seeded {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed))
}
