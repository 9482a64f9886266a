package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"drivesync/internal/backoff"
	"drivesync/internal/config"
	"drivesync/internal/conflict"
	"drivesync/internal/googleauth"
	"drivesync/internal/inventory"
	"drivesync/internal/logging"
	"drivesync/internal/media"
	"drivesync/internal/notify"
	"drivesync/internal/report"
	"drivesync/internal/session"
	"drivesync/internal/store/drive"
	"drivesync/internal/store/photos"
	"drivesync/internal/transfer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var policyFlag string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass between Drive and Photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runSync(cmd, cfg, dryRun, policyFlag)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan transfers without copying anything")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Conflict policy: ask, same, or different (overrides config)")
	return cmd
}

func runSync(cmd *cobra.Command, cfg *config.Config, dryRun bool, policyFlag string) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another sync holds the lock at %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	decisions, err := decisionSource(cfg, policyFlag)
	if err != nil {
		return err
	}

	client, err := googleauth.Client(runCtx, cfg.Paths.CredentialsFile, cfg.Paths.TokenFile)
	if err != nil {
		return err
	}

	driveAdapter, err := drive.New(runCtx, client, drive.WithUploadFolder(cfg.Drive.UploadFolderID))
	if err != nil {
		return fmt.Errorf("initialize drive adapter: %w", err)
	}
	photosAdapter := photos.New(client)

	retryOpts := []backoff.Option{
		backoff.WithMaxAttempts(cfg.Retry.MaxAttempts),
		backoff.WithDelays(
			time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond,
			time.Duration(cfg.Retry.MaxDelayMS)*time.Millisecond,
		),
	}
	driveBudget := backoff.NewBudget(media.StoreDrive, retryOpts...)
	photosBudget := backoff.NewBudget(media.StorePhotos, retryOpts...)

	orchestrator := transfer.NewOrchestrator(
		transfer.StoreLane{
			Adapter:   driveAdapter,
			Budget:    driveBudget,
			Workers:   cfg.Drive.Workers,
			RateLimit: rate.Limit(cfg.Drive.RateLimitPerSec),
		},
		transfer.StoreLane{
			Adapter:   photosAdapter,
			Budget:    photosBudget,
			Workers:   cfg.Photos.Workers,
			RateLimit: rate.Limit(cfg.Photos.RateLimitPerSec),
		},
		cfg.Paths.SpoolDir,
		logger,
	)

	recorder := &taskRecorder{}
	coordinator := session.NewCoordinator(
		inventory.NewCollector(driveAdapter, driveBudget, logger),
		inventory.NewCollector(photosAdapter, photosBudget, logger),
		cfg.Drive.RootFolderID,
		orchestrator,
		decisions,
		logger,
		session.WithDryRun(dryRun),
		session.WithNotifier(notify.NewService(cfg)),
		session.WithSinks(progressSink(cmd), recorder),
	)

	rep, runErr := coordinator.Run(runCtx)

	if !dryRun {
		if store, openErr := report.Open(cfg); openErr != nil {
			logger.Warn("report archive unavailable", logging.Error(openErr))
		} else {
			if saveErr := store.Save(context.Background(), rep, recorder.tasks()); saveErr != nil {
				logger.Warn("archive session report", logging.Error(saveErr))
			}
			_ = store.Close()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderReportTable(rep))
	if dryRun {
		fmt.Fprintln(out, "Dry run: no transfers were performed.")
	}

	if runErr != nil {
		if errors.Is(runErr, errSyncAborted) {
			return fmt.Errorf("sync cancelled at operator request")
		}
		return runErr
	}
	return nil
}

// decisionSource maps the configured policy onto a conflict decider. "ask"
// requires a terminal; scripted runs must pick same or different.
func decisionSource(cfg *config.Config, policyFlag string) (conflict.DecisionSource, error) {
	policy := strings.TrimSpace(policyFlag)
	if policy == "" {
		policy = cfg.Conflicts.Policy
	}
	switch policy {
	case "same":
		return conflict.PolicySame(), nil
	case "different":
		return conflict.PolicyDifferent(), nil
	case "ask", "":
		if !stdinIsTerminal() {
			return nil, fmt.Errorf("conflict policy %q needs a terminal; pass --policy same or --policy different", "ask")
		}
		return newPromptDecisionSource(os.Stdin, os.Stderr), nil
	default:
		return nil, fmt.Errorf("unknown conflict policy %q", policy)
	}
}

// taskRecorder collects terminal task outcomes for the report archive.
type taskRecorder struct {
	mu   sync.Mutex
	done []*transfer.Task
}

func (r *taskRecorder) Publish(event session.Event) {
	if event.Kind != session.EventTask || event.Task == nil {
		return
	}
	r.mu.Lock()
	r.done = append(r.done, event.Task)
	r.mu.Unlock()
}

func (r *taskRecorder) tasks() []*transfer.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*transfer.Task(nil), r.done...)
}

func progressSink(cmd *cobra.Command) session.Sink {
	out := cmd.OutOrStdout()
	return session.SinkFunc(func(event session.Event) {
		if event.Kind != session.EventTask || event.Task == nil {
			return
		}
		task := event.Task
		switch task.Status {
		case transfer.StatusDone:
			fmt.Fprintf(out, "copied %s to %s\n", task.Source.Name, task.Direction.Destination())
		case transfer.StatusFailed:
			fmt.Fprintf(out, "failed %s to %s: %v\n", task.Source.Name, task.Direction.Destination(), task.Err)
		}
	})
}

func renderReportTable(rep session.Report) string {
	rows := [][]string{
		{"Final phase", string(rep.FinalPhase)},
		{"Drive items", strconv.Itoa(rep.DriveItems)},
		{"Photos items", strconv.Itoa(rep.PhotosItems)},
		{"Matched", strconv.Itoa(rep.Matched)},
		{"Copied to Photos", strconv.Itoa(rep.TransferredToPhotos)},
		{"Copied to Drive", strconv.Itoa(rep.TransferredToDrive)},
		{"Failed transfers", strconv.Itoa(rep.FailedTransfers)},
		{"Resolved same", strconv.Itoa(rep.ResolvedSame)},
		{"Resolved different", strconv.Itoa(rep.ResolvedDifferent)},
		{"Unresolved", strconv.Itoa(rep.UnresolvedAbandoned)},
		{"Listing failures", strconv.Itoa(rep.ListingFailures)},
	}
	if rep.Err != "" {
		rows = append(rows, []string{"Error", rep.Err})
	}
	return renderTable(
		[]column{textColumn("Metric"), numericColumn("Value")},
		rows,
	)
}
