package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"drivesync/internal/conflict"
	"drivesync/internal/media"
)

// errSyncAborted is returned when the operator cancels at a conflict prompt.
var errSyncAborted = errors.New("sync aborted at conflict prompt")

// promptDecisionSource asks the operator about each ambiguous pair on the
// terminal. Answers: s(ame), d(ifferent), or c(ancel) to abort the run.
type promptDecisionSource struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptDecisionSource(in io.Reader, out io.Writer) *promptDecisionSource {
	return &promptDecisionSource{in: bufio.NewReader(in), out: out}
}

func (p *promptDecisionSource) Decide(ctx context.Context, record conflict.Record) (conflict.Decision, error) {
	fmt.Fprintf(p.out, "\nPossible duplicate (created %s apart):\n", record.Distance.Round(time.Minute))
	fmt.Fprintf(p.out, "  Drive:  %s\n", describeItem(record.Drive))
	fmt.Fprintf(p.out, "  Photos: %s\n", describeItem(record.Photos))

	for {
		if err := ctx.Err(); err != nil {
			return conflict.Unresolved, err
		}
		fmt.Fprint(p.out, "Same file, different files, or cancel? [s/d/c]: ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return conflict.Unresolved, errSyncAborted
			}
			return conflict.Unresolved, fmt.Errorf("read conflict answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "s", "same":
			return conflict.Same, nil
		case "d", "different":
			return conflict.Different, nil
		case "c", "cancel":
			return conflict.Unresolved, errSyncAborted
		}
		fmt.Fprintln(p.out, "Please answer s, d, or c.")
	}
}

func describeItem(item media.Item) string {
	return fmt.Sprintf("%s (%s, %s, %s)",
		item.Name, item.Kind, item.CreatedAt.Format(time.RFC3339), formatSize(item.SizeBytes))
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
