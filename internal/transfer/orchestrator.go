package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/time/rate"

	"drivesync/internal/backoff"
	"drivesync/internal/logging"
	"drivesync/internal/media"
	"drivesync/internal/store"
)

const defaultWorkersPerStore = 3

// StoreLane bundles everything the orchestrator needs to talk to one store.
type StoreLane struct {
	Adapter store.Adapter
	Budget  *backoff.Budget
	// Workers caps concurrent remote calls against this store. Zero means
	// the default.
	Workers int
	// RateLimit caps remote call starts per second. Zero means unlimited.
	RateLimit rate.Limit
}

type lane struct {
	adapter store.Adapter
	budget  *backoff.Budget
	slots   chan struct{}
	limiter *rate.Limiter
}

// Orchestrator runs transfer tasks concurrently within per-store ceilings.
type Orchestrator struct {
	lanes    map[media.Store]*lane
	logger   *slog.Logger
	spoolDir string
}

// NewOrchestrator wires the two store lanes. spoolDir receives the transient
// per-task spool files; empty means the system temp directory.
func NewOrchestrator(drive, photos StoreLane, spoolDir string, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		lanes:    make(map[media.Store]*lane, 2),
		logger:   logging.NewComponentLogger(logger, "transfer"),
		spoolDir: spoolDir,
	}
	o.lanes[media.StoreDrive] = newLane(drive)
	o.lanes[media.StorePhotos] = newLane(photos)
	return o
}

func newLane(cfg StoreLane) *lane {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkersPerStore
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	return &lane{
		adapter: cfg.Adapter,
		budget:  cfg.Budget,
		slots:   make(chan struct{}, workers),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run executes every task and blocks until all dispatched work drains.
// Cancellation of ctx stops admission immediately: tasks still waiting for
// a lane slot stay pending, while transfers that already hold one finish or
// fail naturally so no partial remote state is left behind. onDone, when
// non-nil, is invoked for every task that reached a terminal status.
func (o *Orchestrator) Run(ctx context.Context, tasks []*Task, onDone func(*Task)) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			o.Execute(ctx, task)
			if onDone != nil && task.Terminal() {
				onDone(task)
			}
		}(task)
	}
	wg.Wait()
}

// Execute runs one task. Lane slots are acquired under ctx; once a slot is
// held the remote call runs to completion regardless of cancellation. A task
// cancelled while still queued is left pending, since nothing remote
// happened for it.
func (o *Orchestrator) Execute(ctx context.Context, task *Task) error {
	source, destination := o.endpoints(task.Direction)

	newID, err := o.copyItem(ctx, source, destination, task)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			task.Status = StatusPending
			return err
		}
		task.Status = StatusFailed
		task.Err = err
		o.logger.Warn("transfer failed",
			logging.String(logging.FieldTask, task.ID),
			logging.String("name", task.Source.Name),
			logging.String("direction", string(task.Direction)),
			logging.Int("attempts", task.Attempts),
			logging.Error(err),
		)
		return err
	}

	task.Status = StatusDone
	task.NewRemoteID = newID
	o.logger.Info("transfer complete",
		logging.String(logging.FieldTask, task.ID),
		logging.String("name", task.Source.Name),
		logging.String("direction", string(task.Direction)),
		logging.String("new_id", newID),
	)
	return nil
}

func (o *Orchestrator) endpoints(direction Direction) (*lane, *lane) {
	if direction == DriveToPhotos {
		return o.lanes[media.StoreDrive], o.lanes[media.StorePhotos]
	}
	return o.lanes[media.StorePhotos], o.lanes[media.StoreDrive]
}

// copyItem spools the source stream to a transient local file, then streams
// it into the destination. The spool is removed as soon as the task ends,
// success or not.
func (o *Orchestrator) copyItem(ctx context.Context, source, destination *lane, task *Task) (string, error) {
	spool, err := os.CreateTemp(o.spoolDir, "drivesync-spool-*")
	if err != nil {
		return "", fmt.Errorf("create spool: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	if err := o.download(ctx, source, task, spool); err != nil {
		return "", err
	}

	return o.upload(ctx, destination, task, spool)
}

func (o *Orchestrator) download(ctx context.Context, source *lane, task *Task, spool *os.File) error {
	if err := o.acquire(ctx, source); err != nil {
		return err
	}
	defer o.release(source)
	task.Status = StatusInProgress

	// The slot is held; the stream must not be severed mid-copy.
	ctx = context.WithoutCancel(ctx)
	return source.budget.Do(ctx, "download "+task.Source.Name, func(ctx context.Context) error {
		task.Attempts++
		if err := spool.Truncate(0); err != nil {
			return fmt.Errorf("reset spool: %w", err)
		}
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("reset spool: %w", err)
		}
		reader, err := source.adapter.Download(ctx, task.Source.ID)
		if err != nil {
			return err
		}
		defer reader.Close()
		if _, err := io.Copy(spool, reader); err != nil {
			return store.Wrap(store.ErrTransient, source.adapter.Store().String(), "stream download", err)
		}
		return nil
	})
}

func (o *Orchestrator) upload(ctx context.Context, destination *lane, task *Task, spool *os.File) (string, error) {
	if err := o.acquire(ctx, destination); err != nil {
		return "", err
	}
	defer o.release(destination)

	ctx = context.WithoutCancel(ctx)
	var newID string
	err := destination.budget.Do(ctx, "upload "+task.Source.Name, func(ctx context.Context) error {
		task.Attempts++
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind spool: %w", err)
		}
		id, err := destination.adapter.Upload(ctx, spool, task.Source.Name, task.Source.CreatedAt)
		if err != nil {
			return err
		}
		newID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	if newID == "" {
		return "", errors.New("upload returned no item id")
	}
	return newID, nil
}

func (o *Orchestrator) acquire(ctx context.Context, l *lane) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	// The select can win a freed slot and a cancelled context at once;
	// cancellation takes precedence.
	if err := ctx.Err(); err != nil {
		o.release(l)
		return err
	}
	return nil
}

func (o *Orchestrator) release(l *lane) {
	<-l.slots
}
