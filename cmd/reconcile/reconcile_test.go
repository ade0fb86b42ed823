package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/db/dbtest"
	"pdfqa/internal/logging"
	"pdfqa/internal/model"
	"pdfqa/internal/repository"
	"pdfqa/internal/storage"
)

type env struct {
	r     *reconciler
	files *storage.Local
	pdfs  repository.PDFRepository
	hist  repository.QueryHistoryRepository
	owner *model.User
}

func newEnv(t *testing.T) *env {
	gormDB := dbtest.New(t)
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	owner := &model.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "h"}
	require.NoError(t, repository.NewUserRepository(gormDB).Create(context.Background(), owner))

	e := &env{
		files: files,
		pdfs:  repository.NewPDFRepository(gormDB),
		hist:  repository.NewQueryHistoryRepository(gormDB),
		owner: owner,
	}
	e.r = &reconciler{
		pdfs:    e.pdfs,
		history: e.hist,
		files:   files,
		logger:  logging.Discard(),
		minAge:  time.Hour,
		// Everything on disk looks old enough.
		now: func() time.Time { return time.Now().Add(2 * time.Hour) },
	}
	return e
}

func (e *env) store(t *testing.T, registered bool) (*storage.StoredFile, *model.PDF) {
	t.Helper()
	f, err := e.files.Save(strings.NewReader("%PDF"))
	require.NoError(t, err)
	if !registered {
		return f, nil
	}
	p := &model.PDF{Filename: f.Filename, OriginalName: "a.pdf", Path: f.Path, UserID: e.owner.ID}
	require.NoError(t, e.pdfs.Create(context.Background(), p))
	return f, p
}

func TestReconcile_ReportOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store(t, true)
	orphan, _ := e.store(t, false)
	_, gone := e.store(t, true)
	require.NoError(t, e.hist.Create(ctx, &model.QueryHistory{Question: "q", Answer: "a", UserID: e.owner.ID, PDFID: gone.ID}))
	require.NoError(t, e.pdfs.Delete(ctx, gone.ID))

	rep, err := e.r.run(ctx, false)
	require.NoError(t, err)

	// The soft-deleted record's file counts as orphaned too.
	assert.Len(t, rep.OrphanFiles, 2)
	assert.Contains(t, rep.OrphanFiles, orphan.Filename)
	assert.Equal(t, 0, rep.RemovedFiles)
	assert.Equal(t, int64(1), rep.OrphanHistory)
	assert.FileExists(t, orphan.Path)

	var out bytes.Buffer
	rep.print(&out, false)
	assert.Contains(t, out.String(), "2 orphan uploads, 1 orphan history entries")
}

func TestReconcile_Fix(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	kept, _ := e.store(t, true)
	orphan, _ := e.store(t, false)

	rep, err := e.r.run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{orphan.Filename}, rep.OrphanFiles)
	assert.Equal(t, 1, rep.RemovedFiles)

	_, statErr := os.Stat(orphan.Path)
	assert.True(t, os.IsNotExist(statErr))
	assert.FileExists(t, kept.Path)
}

func TestReconcile_SkipsFreshUploads(t *testing.T) {
	e := newEnv(t)
	e.r.now = time.Now
	e.store(t, false)

	rep, err := e.r.run(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, rep.OrphanFiles)
}
