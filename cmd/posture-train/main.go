// Command posture-train fits the posture classifier on the samples stored by
// the service and saves the model under the configured key.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/config"
	"github.com/ayusman/posturecheck/internal/store"
)

const barTemplate = `{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{ string . "loss" }} {{etime . "%s elapsed"}}`

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default "+config.DefaultConfigFile+" if present)")
		epochs     = flag.Int("epochs", 0, "Training epochs (overrides config)")
		seed       = flag.Uint64("seed", 0, "Random seed (overrides config, 0 keeps it)")
		dryRun     = flag.Bool("dry-run", false, "Train and report without saving the model")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "posture-train: %v\n", err)
		os.Exit(1)
	}
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}
	if *seed != 0 {
		cfg.Training.Seed = *seed
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dryRun, logger); err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) error {
	dbPath, err := cfg.Store.ResolvePath()
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	ds, err := st.Samples().Load(ctx)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	minSamples := cfg.Recorder.Collector().MinSamples
	if len(ds.Good) < minSamples || len(ds.NotGood) < minSamples {
		return fmt.Errorf("need %d samples per class, have %d good and %d bad",
			minSamples, len(ds.Good), len(ds.NotGood))
	}
	examples := classifier.BuildExamples(ds.Good, ds.NotGood)
	logger.Info("training", "examples", len(examples), "good", len(ds.Good), "bad", len(ds.NotGood))

	train := cfg.Training.Train()
	bar := pb.ProgressBarTemplate(barTemplate).Start(train.Epochs)
	bar.Set("prefix", "epochs")
	train.Progress = func(s classifier.EpochStats) {
		bar.Set("loss", fmt.Sprintf("loss %.4f", s.Loss))
		bar.Increment()
	}

	record := &store.TrainingRun{
		ModelName:   cfg.Model.Key,
		GoodSamples: len(ds.Good),
		BadSamples:  len(ds.NotGood),
		StartedAt:   time.Now(),
	}
	model, result, err := classifier.Train(ctx, nil, examples, train)
	bar.Finish()
	record.FinishedAt = time.Now()
	if err != nil {
		record.Status = store.RunFailed
		record.Error = err.Error()
		if rerr := st.Runs().Create(context.WithoutCancel(ctx), record); rerr != nil {
			logger.Warn("record training run", "error", rerr)
		}
		return err
	}

	record.Status = store.RunSucceeded
	record.Epochs = result.Epochs
	record.Loss = result.Loss
	record.Accuracy = result.Accuracy
	if err := st.Runs().Create(ctx, record); err != nil {
		logger.Warn("record training run", "error", err)
	}

	fmt.Printf("trained on %d examples in %s: loss %.4f, accuracy %.1f%%\n",
		result.Examples, result.Duration.Round(time.Millisecond), result.Loss, result.Accuracy*100)

	if dryRun {
		return nil
	}

	data, err := model.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := st.Models().Save(ctx, &store.Model{
		Name:         cfg.Model.Key,
		Architecture: classifier.Architecture,
		Data:         data,
	}); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	fmt.Printf("saved model %q to %s\n", cfg.Model.Key, dbPath)
	return nil
}
