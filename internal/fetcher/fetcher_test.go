package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/lussekatt/internal/github"
	"github.com/shrimpsizemoose/lussekatt/internal/models"
	"github.com/shrimpsizemoose/lussekatt/internal/notify"
	"github.com/shrimpsizemoose/lussekatt/internal/store/sqlite"
)

// runDate is "just after midnight" the day after the deadline.
var runDate = time.Date(2021, 9, 11, 0, 5, 0, 0, time.UTC)

type staticCreds struct{}

func (staticCreds) CourseCredentials(ctx context.Context, courseID string) (string, string, error) {
	return "coursebot", "ghp_secret", nil
}

// fakeCloner mimics a successful git clone by materializing the target
// directory with a repository-ish payload.
type fakeCloner struct {
	calls int
	fail  bool
}

func (f *fakeCloner) Clone(ctx context.Context, url, target string) error {
	f.calls++
	if f.fail {
		return fmt.Errorf("fatal: unable to access '%s': transfer failed", url)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(target, "READY.txt"), []byte("done"), 0o644)
}

func setupStore(t *testing.T) *sqlite.SQLiteStore {
	s, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations("../../migrations"))
	t.Cleanup(func() { s.Close() })

	_, err = s.DB.Exec(`
		INSERT INTO courses (course_id, code, name, email, opens, closes) VALUES
		('DTEK0068', 'DTEK0068', 'Embedded Systems', 'dtek0068@utu.fi', ?, ?)`,
		time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 12, 20, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	_, err = s.DB.Exec(`
		INSERT INTO assignments (course_id, assignment_id, name, handler, deadline) VALUES
		('DTEK0068', 'E01', 'Exercise 1', 'HUBBOT', ?)`,
		time.Date(2021, 9, 10, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	_, err = s.DB.Exec(`
		INSERT INTO enrollees (course_id, uid, lastname, firstname, email, status, notifications, github_account, github_repository) VALUES
		('DTEK0068', 'jasata', 'Tammi', 'Jani', 'jasata@utu.fi', 'active', 'enabled', 'jasata', 'ready-repo'),
		('DTEK0068', 'tumipo', 'Polvinen', 'Tuisku', 'tumipo@utu.fi', 'active', 'disabled', 'tumipo', 'empty-repo'),
		('DTEK0068', 'duplum', 'Dup', 'Licate', 'duplum@utu.fi', 'active', 'enabled', 'duplum', 'dup-repo'),
		('DTEK0068', 'nayttaa', 'Ghost', 'Gone', 'nayttaa@utu.fi', 'active', 'enabled', 'nayttaa', 'missing-repo')`)
	require.NoError(t, err)

	return s
}

func newGithubStub(t *testing.T) *httptest.Server {
	listing := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/jasata/ready-repo/contents/", func(w http.ResponseWriter, r *http.Request) {
		listing(w, `[
			{"name": "READY.txt", "path": "READY.txt", "type": "file", "size": 4},
			{"name": "main.c", "path": "main.c", "type": "file", "size": 120}
		]`)
	})
	mux.HandleFunc("GET /repos/tumipo/empty-repo/contents/", func(w http.ResponseWriter, r *http.Request) {
		listing(w, `[{"name": "notes.md", "path": "notes.md", "type": "file", "size": 9}]`)
	})
	mux.HandleFunc("GET /repos/duplum/dup-repo/contents/", func(w http.ResponseWriter, r *http.Request) {
		listing(w, `[
			{"name": "READY.txt", "path": "READY.txt", "type": "file", "size": 4},
			{"name": "READY.md", "path": "READY.md", "type": "file", "size": 8}
		]`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestWorker(t *testing.T, s *sqlite.SQLiteStore, cloner Cloner) (*Worker, string) {
	srv := newGithubStub(t)
	dir := t.TempDir()
	w := New(
		s,
		notify.New(s),
		staticCreds{},
		dir,
		WithCloner(cloner),
		WithClock(func() time.Time { return runDate }),
		WithGithubOptions(github.WithAPIBaseURL(srv.URL)),
	)
	return w, dir
}

func countMessages(t *testing.T, s *sqlite.SQLiteStore, uid string) int {
	var n int
	err := s.DB.Get(&n, "SELECT COUNT(*) FROM messages WHERE uid = ?", uid)
	require.NoError(t, err)
	return n
}

func TestWorker_SuccessfulFetch(t *testing.T) {
	s := setupStore(t)
	cloner := &fakeCloner{}
	w, dir := newTestWorker(t, s, cloner)

	outcome, err := w.Run(context.Background(), "DTEK0068", "E01", "jasata")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, 0, outcome.ExitCode())
	assert.Equal(t, 1, cloner.calls)

	t.Run("dated clone directory exists", func(t *testing.T) {
		dated := filepath.Join(dir, "DTEK0068", "jasata", "E01", "2021-09-11")
		info, err := os.Stat(dated)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("draft submission is backdated to end of yesterday", func(t *testing.T) {
		history, err := s.ListSubmissions("DTEK0068", "E01", "jasata")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.SubmissionDraft, history[0].State)

		submitted := history[0].Submitted.UTC()
		assert.Equal(t, "2021-09-10", submitted.Format("2006-01-02"))
		assert.Equal(t, "23:59:59", submitted.Format("15:04:05"))
	})

	t.Run("accepted marker points at the matched entry", func(t *testing.T) {
		link := filepath.Join(dir, "DTEK0068", "jasata", "E01", "accepted")
		target, err := os.Readlink(link)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "DTEK0068", "jasata", "E01", "2021-09-11", "READY.txt"), target)
	})

	t.Run("success notification queued", func(t *testing.T) {
		assert.Equal(t, 1, countMessages(t, s, "jasata"))
	})
}

func TestWorker_NotTriggered(t *testing.T) {
	s := setupStore(t)
	cloner := &fakeCloner{}
	w, dir := newTestWorker(t, s, cloner)

	outcome, err := w.Run(context.Background(), "DTEK0068", "E01", "tumipo")
	require.NoError(t, err)
	assert.Equal(t, NotTriggered, outcome)
	assert.Equal(t, 1, outcome.ExitCode())
	assert.Equal(t, 0, cloner.calls)

	history, err := s.ListSubmissions("DTEK0068", "E01", "tumipo")
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = os.Stat(filepath.Join(dir, "DTEK0068", "tumipo"))
	assert.True(t, os.IsNotExist(err))

	// tumipo opted out of notifications: NotSent, nothing queued, outcome
	// unchanged.
	assert.Equal(t, 0, countMessages(t, s, "tumipo"))
}

func TestWorker_RepositoryNotFound(t *testing.T) {
	s := setupStore(t)
	w, _ := newTestWorker(t, s, &fakeCloner{})

	outcome, err := w.Run(context.Background(), "DTEK0068", "E01", "nayttaa")
	require.NoError(t, err)
	assert.Equal(t, RepositoryNotFound, outcome)
	assert.Equal(t, 1, outcome.ExitCode())

	t.Run("failure notification queued", func(t *testing.T) {
		assert.Equal(t, 1, countMessages(t, s, "nayttaa"))
	})
}

func TestWorker_AmbiguousMatchWithholdsMarker(t *testing.T) {
	s := setupStore(t)
	cloner := &fakeCloner{}
	w, dir := newTestWorker(t, s, cloner)

	outcome, err := w.Run(context.Background(), "DTEK0068", "E01", "duplum")
	require.NoError(t, err)

	// The clone still happens: partial success beats data loss.
	assert.Equal(t, Success, outcome)
	assert.Equal(t, 1, cloner.calls)

	history, err := s.ListSubmissions("DTEK0068", "E01", "duplum")
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = os.Lstat(filepath.Join(dir, "DTEK0068", "duplum", "E01", "accepted"))
	assert.True(t, os.IsNotExist(err), "accepted marker must be withheld on ambiguity")
}

func TestWorker_CloneFailure(t *testing.T) {
	s := setupStore(t)
	w, _ := newTestWorker(t, s, &fakeCloner{fail: true})

	outcome, err := w.Run(context.Background(), "DTEK0068", "E01", "jasata")
	require.Error(t, err)
	assert.Equal(t, Failed, outcome)
	assert.Equal(t, -1, outcome.ExitCode())

	t.Run("token never leaks into the error", func(t *testing.T) {
		assert.NotContains(t, err.Error(), "ghp_secret")
	})

	t.Run("no submission registered", func(t *testing.T) {
		history, err := s.ListSubmissions("DTEK0068", "E01", "jasata")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestWorker_SameDayRerun(t *testing.T) {
	s := setupStore(t)
	cloner := &fakeCloner{}
	w, dir := newTestWorker(t, s, cloner)
	ctx := context.Background()

	outcome, err := w.Run(ctx, "DTEK0068", "E01", "jasata")
	require.NoError(t, err)
	require.Equal(t, Success, outcome)

	t.Run("rerun with pending draft replaces the clone but not the row", func(t *testing.T) {
		outcome, err := w.Run(ctx, "DTEK0068", "E01", "jasata")
		require.Error(t, err)
		assert.Equal(t, Failed, outcome)

		history, err := s.ListSubmissions("DTEK0068", "E01", "jasata")
		require.NoError(t, err)
		assert.Len(t, history, 1, "second draft must never be created")
	})

	t.Run("rerun after evaluation registers a fresh draft", func(t *testing.T) {
		_, err := s.DB.Exec(`UPDATE submissions SET state = 'accepted' WHERE uid = 'jasata'`)
		require.NoError(t, err)

		outcome, err := w.Run(ctx, "DTEK0068", "E01", "jasata")
		require.NoError(t, err)
		assert.Equal(t, Success, outcome)

		history, err := s.ListSubmissions("DTEK0068", "E01", "jasata")
		require.NoError(t, err)
		assert.Len(t, history, 2)

		entries, err := os.ReadDir(filepath.Join(dir, "DTEK0068", "jasata", "E01"))
		require.NoError(t, err)
		var dated int
		for _, e := range entries {
			if e.IsDir() {
				dated++
			}
		}
		assert.Equal(t, 1, dated, "same-day reruns replace the dated directory")
	})
}
