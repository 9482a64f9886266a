package session

import (
	"time"

	"github.com/google/uuid"

	"drivesync/internal/conflict"
	"drivesync/internal/inventory"
	"drivesync/internal/match"
	"drivesync/internal/media"
	"drivesync/internal/transfer"
)

// Phase is the coordinator's state machine position.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseCollecting        Phase = "collecting"
	PhaseMatching          Phase = "matching"
	PhaseAwaitingConflicts Phase = "awaiting_conflicts"
	PhasePlanning          Phase = "planning"
	PhaseTransferring      Phase = "transferring"
	PhaseComplete          Phase = "complete"
	PhaseCancelled         Phase = "cancelled"
)

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseCancelled
}

// Session is the state of one run: both inventories, the match
// classification, the conflict ledger, and the planned tasks. Owned
// exclusively by the coordinator and discarded (or archived as a report)
// when the run ends.
type Session struct {
	ID        string
	StartedAt time.Time

	DriveItems  []media.Item
	PhotosItems []media.Item
	Failures    []inventory.ListingFailure

	Matches match.Result
	Ledger  *conflict.Ledger
	Tasks   []*transfer.Task
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Report is the final accounting for one run. Always fully populated, even
// after partial failure or cancellation; a run never drops its counts.
type Report struct {
	SessionID  string
	StartedAt  time.Time
	FinishedAt time.Time
	FinalPhase Phase

	DriveItems  int
	PhotosItems int

	Matched    int
	DriveOnly  int
	PhotosOnly int
	Ambiguous  int

	TransferredToPhotos int
	TransferredToDrive  int
	FailedTransfers     int
	SkippedTransfers    int

	ResolvedSame      int
	ResolvedDifferent int
	// UnresolvedAbandoned counts conflicts still open when a run was
	// cancelled.
	UnresolvedAbandoned int

	ListingFailures int

	Err string
}

func buildReport(s *Session, finalPhase Phase, runErr error) Report {
	report := Report{
		SessionID:       s.ID,
		StartedAt:       s.StartedAt,
		FinishedAt:      time.Now().UTC(),
		FinalPhase:      finalPhase,
		DriveItems:      len(s.DriveItems),
		PhotosItems:     len(s.PhotosItems),
		Matched:         len(s.Matches.Matched),
		DriveOnly:       len(s.Matches.DriveOnly),
		PhotosOnly:      len(s.Matches.PhotosOnly),
		Ambiguous:       len(s.Matches.Ambiguous),
		ListingFailures: len(s.Failures),
	}
	if runErr != nil {
		report.Err = runErr.Error()
	}
	if s.Ledger != nil {
		for _, record := range s.Ledger.Records() {
			switch record.Resolution {
			case conflict.Same:
				report.ResolvedSame++
			case conflict.Different:
				report.ResolvedDifferent++
			default:
				report.UnresolvedAbandoned++
			}
		}
	}
	for _, task := range s.Tasks {
		switch task.Status {
		case transfer.StatusDone:
			if task.Direction == transfer.DriveToPhotos {
				report.TransferredToPhotos++
			} else {
				report.TransferredToDrive++
			}
		case transfer.StatusFailed:
			report.FailedTransfers++
		default:
			report.SkippedTransfers++
		}
	}
	return report
}
