package plan

import (
	"drivesync/internal/conflict"
	"drivesync/internal/match"
	"drivesync/internal/transfer"
)

// Build emits exactly one task per one-sided pair and two per conflict
// resolved as distinct media (one each direction). Matched pairs and
// same-resolved conflicts produce nothing. Pure function of the resolved
// state: len(tasks) == driveOnly + photosOnly + 2×different.
func Build(result match.Result, records []conflict.Record) []*transfer.Task {
	tasks := make([]*transfer.Task, 0, len(result.DriveOnly)+len(result.PhotosOnly)+2*len(records))
	for _, pair := range result.DriveOnly {
		tasks = append(tasks, transfer.NewTask(transfer.DriveToPhotos, *pair.Drive))
	}
	for _, pair := range result.PhotosOnly {
		tasks = append(tasks, transfer.NewTask(transfer.PhotosToDrive, *pair.Photos))
	}
	for _, record := range records {
		if record.Resolution != conflict.Different {
			continue
		}
		tasks = append(tasks, transfer.NewTask(transfer.DriveToPhotos, record.Drive))
		tasks = append(tasks, transfer.NewTask(transfer.PhotosToDrive, record.Photos))
	}
	return tasks
}
