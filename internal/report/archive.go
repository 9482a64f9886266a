package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"drivesync/internal/session"
	"drivesync/internal/transfer"
)

// TaskRecord is one archived transfer outcome.
type TaskRecord struct {
	ID          string
	Direction   string
	Status      string
	ItemName    string
	ItemStore   string
	Attempts    int
	NewRemoteID string
	Err         string
}

const sessionColumns = `id, started_at, finished_at, final_phase,
    drive_items, photos_items, matched, drive_only, photos_only, ambiguous,
    transferred_to_photos, transferred_to_drive, failed_transfers, skipped_transfers,
    resolved_same, resolved_different, unresolved_abandoned, listing_failures, error`

// Save archives a finished run and its task outcomes in one transaction.
func (s *Store) Save(ctx context.Context, rep session.Report, tasks []*transfer.Task) error {
	return withBusyRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (`+sessionColumns+`)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.SessionID,
			rep.StartedAt.UTC().Format(time.RFC3339Nano),
			rep.FinishedAt.UTC().Format(time.RFC3339Nano),
			string(rep.FinalPhase),
			rep.DriveItems, rep.PhotosItems,
			rep.Matched, rep.DriveOnly, rep.PhotosOnly, rep.Ambiguous,
			rep.TransferredToPhotos, rep.TransferredToDrive,
			rep.FailedTransfers, rep.SkippedTransfers,
			rep.ResolvedSame, rep.ResolvedDifferent, rep.UnresolvedAbandoned,
			rep.ListingFailures,
			rep.Err,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, task := range tasks {
			taskErr := ""
			if task.Err != nil {
				taskErr = task.Err.Error()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO session_tasks (id, session_id, direction, status,
                    item_name, item_store, attempts, new_remote_id, error)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				task.ID,
				rep.SessionID,
				string(task.Direction),
				string(task.Status),
				task.Source.Name,
				string(task.Source.Source),
				task.Attempts,
				task.NewRemoteID,
				taskErr,
			)
			if err != nil {
				return fmt.Errorf("insert task %s: %w", task.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save: %w", err)
		}
		return nil
	})
}

// List returns archived reports, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]session.Report, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var reports []session.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return reports, nil
}

// Get returns one archived report and its task outcomes.
func (s *Store) Get(ctx context.Context, sessionID string) (session.Report, []TaskRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	rep, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Report{}, nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return session.Report{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, direction, status, item_name, item_store, attempts, new_remote_id, error
         FROM session_tasks WHERE session_id = ? ORDER BY item_name, id`, sessionID)
	if err != nil {
		return session.Report{}, nil, fmt.Errorf("list session tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.ID, &t.Direction, &t.Status, &t.ItemName,
			&t.ItemStore, &t.Attempts, &t.NewRemoteID, &t.Err); err != nil {
			return session.Report{}, nil, fmt.Errorf("scan session task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return session.Report{}, nil, fmt.Errorf("iterate session tasks: %w", err)
	}
	return rep, tasks, nil
}

// Prune deletes all but the newest keep sessions and returns how many were
// removed. Task rows follow their session via the foreign key cascade.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
            SELECT id FROM sessions ORDER BY started_at DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return int(removed), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (session.Report, error) {
	var (
		rep        session.Report
		startedAt  string
		finishedAt string
		finalPhase string
	)
	err := row.Scan(
		&rep.SessionID, &startedAt, &finishedAt, &finalPhase,
		&rep.DriveItems, &rep.PhotosItems,
		&rep.Matched, &rep.DriveOnly, &rep.PhotosOnly, &rep.Ambiguous,
		&rep.TransferredToPhotos, &rep.TransferredToDrive,
		&rep.FailedTransfers, &rep.SkippedTransfers,
		&rep.ResolvedSame, &rep.ResolvedDifferent, &rep.UnresolvedAbandoned,
		&rep.ListingFailures,
		&rep.Err,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Report{}, err
		}
		return session.Report{}, fmt.Errorf("scan session: %w", err)
	}
	rep.FinalPhase = session.Phase(finalPhase)
	if rep.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return session.Report{}, fmt.Errorf("parse started_at: %w", err)
	}
	if rep.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return session.Report{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return rep, nil
}
