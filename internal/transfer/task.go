package transfer

import (
	"github.com/google/uuid"

	"drivesync/internal/media"
)

// Direction names which way a task copies.
type Direction string

const (
	DriveToPhotos Direction = "drive_to_photos"
	PhotosToDrive Direction = "photos_to_drive"
)

// Destination returns the store the task copies into.
func (d Direction) Destination() media.Store {
	if d == DriveToPhotos {
		return media.StorePhotos
	}
	return media.StoreDrive
}

// Status is the lifecycle of one task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Task is one planned single-direction copy. Created only by the dedup
// planner; consumed and terminated by the orchestrator.
type Task struct {
	ID        string
	Direction Direction
	Source    media.Item
	Attempts  int
	Status    Status
	// NewRemoteID is the destination store's ID for the copy, set on
	// success for session bookkeeping.
	NewRemoteID string
	Err         error
}

// NewTask builds a pending task for one source item.
func NewTask(direction Direction, source media.Item) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Direction: direction,
		Source:    source,
		Status:    StatusPending,
	}
}

// Terminal reports whether the task has finished, either way.
func (t *Task) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusFailed
}
