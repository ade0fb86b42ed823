package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

type reconciler struct {
	pdfs    repository.PDFRepository
	history repository.QueryHistoryRepository
	files   *storage.Local
	logger  *slog.Logger
	minAge  time.Duration
	now     func() time.Time
}

type report struct {
	OrphanFiles   []string
	RemovedFiles  int
	OrphanHistory int64
}

func (r *reconciler) run(ctx context.Context, fix bool) (*report, error) {
	rep := &report{}

	names, err := r.files.List()
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	for _, name := range names {
		path := r.files.PathOf(name)
		info, err := os.Stat(path)
		if err != nil {
			r.logger.WarnContext(ctx, "stat upload", "file", name, "error", err)
			continue
		}
		if r.now().Sub(info.ModTime()) < r.minAge {
			continue
		}

		exists, err := r.pdfs.ExistsByFilename(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", name, err)
		}
		if exists {
			continue
		}
		rep.OrphanFiles = append(rep.OrphanFiles, name)

		if !fix {
			continue
		}
		if err := r.files.Remove(path); err != nil {
			r.logger.WarnContext(ctx, "remove orphan upload", "file", name, "error", err)
			continue
		}
		rep.RemovedFiles++
	}

	if fix {
		rep.OrphanHistory, err = r.history.DeleteOrphans(ctx)
	} else {
		rep.OrphanHistory, err = r.history.CountOrphans(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("orphan history: %w", err)
	}

	r.logger.InfoContext(ctx, "reconcile finished",
		"orphan_files", len(rep.OrphanFiles),
		"removed_files", rep.RemovedFiles,
		"orphan_history", rep.OrphanHistory,
		"fix", fix,
	)
	return rep, nil
}

func (rep *report) print(w io.Writer, fix bool) {
	for _, name := range rep.OrphanFiles {
		fmt.Fprintf(w, "orphan upload: %s\n", name)
	}
	if fix {
		fmt.Fprintf(w, "removed %d of %d orphan uploads\n", rep.RemovedFiles, len(rep.OrphanFiles))
		fmt.Fprintf(w, "deleted %d orphan history entries\n", rep.OrphanHistory)
		return
	}
	fmt.Fprintf(w, "%d orphan uploads, %d orphan history entries (run with --fix to remove)\n", len(rep.OrphanFiles), rep.OrphanHistory)
}
