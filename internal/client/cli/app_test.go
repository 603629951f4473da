package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/client/config"
	"github.com/01011010/notesum-hybrid/internal/client/remote"
	"github.com/01011010/notesum-hybrid/internal/client/scheduler"
	"github.com/01011010/notesum-hybrid/internal/client/storage"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

type stubRemote struct {
	mu         sync.Mutex
	pages      map[string]models.RemotePage
	tombstones []string
	token      string
	pingErr    error
	exportURL  string
	closed     bool
}

func newStubRemote() *stubRemote {
	return &stubRemote{pages: make(map[string]models.RemotePage)}
}

func (s *stubRemote) QueryPages(context.Context, time.Time, string, int) ([]models.RemotePage, string, error) {
	return nil, "", nil
}

func (s *stubRemote) QueryTombstones(context.Context, time.Time, string, int) ([]models.Tombstone, string, error) {
	return nil, "", nil
}

func (s *stubRemote) GetPage(_ context.Context, id string) (*models.RemotePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (s *stubRemote) BatchWrite(_ context.Context, upserts []models.RemotePage, deletes []string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range upserts {
		s.pages[p.ID] = p
	}
	for _, id := range deletes {
		delete(s.pages, id)
	}
	return time.Now().UTC(), nil
}

func (s *stubRemote) PutTombstone(_ context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones = append(s.tombstones, pageID)
	return nil
}

func (s *stubRemote) Ping(context.Context) error { return s.pingErr }

func (s *stubRemote) SetToken(token string) { s.token = token }

func (s *stubRemote) ExportSnapshot(context.Context) (*rpc.ExportSnapshotResponse, error) {
	url := s.exportURL
	if url == "" {
		url = "https://snapshots.local/u1.json"
	}
	return &rpc.ExportSnapshotResponse{URL: url, Key: "u1/snapshot.json", Pages: len(s.pages), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubRemote) Close() error {
	s.closed = true
	return nil
}

func signedToken(t *testing.T, uid string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": uid,
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// newTestApp builds an App over a temporary database with the parse worker
// running. input feeds interactive prompts such as confirmations.
func newTestApp(t *testing.T, input string) (*App, *stubRemote) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Timezone = "UTC"
	cfg.LocalSaveDelay = time.Hour
	cfg.CloudSyncDelay = time.Hour
	cfg.MaxSyncDelay = time.Hour
	cfg.RecoveryInterval = time.Hour

	rs := newStubRemote()
	a := newApp(cfg, logging.Discard(), db, rs, strings.NewReader(input), io.Discard)

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.worker.Run(wctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		a.engine.Close()
	})

	orig := getPassword
	getPassword = func(io.Writer, string) ([]byte, error) { return []byte("correct horse"), nil }
	t.Cleanup(func() { getPassword = orig })

	return a, rs
}

func TestApp_EditAndEvaluate(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.New(ctx, "Budget"))
	require.NoError(t, a.Append(ctx, "x: 5"))
	require.NoError(t, a.Append(ctx, "x * 2"))

	p := a.currentPage()
	require.NotNil(t, p.results[2])
	assert.Equal(t, "10", p.results[2].Value)

	*out = nil
	require.NoError(t, a.Set(ctx, 1, "x: 7"))
	assert.Equal(t, "14", p.results[2].Value)
	require.Len(t, *out, 2)
	assert.Contains(t, (*out)[1], "=> 14")

	require.NoError(t, a.Append(ctx, "y: 1"))
	require.NoError(t, a.Remove(ctx, 1))
	assert.Equal(t, []string{"x * 2", "y: 1"}, p.lines)
	assert.Equal(t, "1", p.results[2].Value)

	vars, err := a.worker.Variables(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"y": 1}, vars)

	assert.ErrorIs(t, a.Set(ctx, 9, "nope"), common.ErrValidation)
	assert.Equal(t, "x * 2\ny: 1", p.content())
}

func TestApp_EventsFollowLineEdits(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.New(ctx, "Plans"))
	require.NoError(t, a.Append(ctx, "Lunch with Sarah tomorrow at 1pm"))
	require.NoError(t, a.Append(ctx, "budget: 40"))
	require.NoError(t, a.Append(ctx, "Lunch with Sarah tomorrow at 1pm"))
	assert.Equal(t, 1, a.calendar.Len())

	require.NoError(t, a.Set(ctx, 1, "Dinner with Sarah tomorrow at 7pm"))
	assert.Equal(t, 2, a.calendar.Len())
	require.NoError(t, a.Set(ctx, 3, "budget * 2"))
	evs := a.calendar.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "Dinner", evs[0].Title)

	*out = nil
	require.NoError(t, a.Events(ctx))
	require.Len(t, *out, 2)
	assert.True(t, strings.HasPrefix((*out)[0], "== "))
	assert.Contains(t, (*out)[1], "Dinner")

	require.NoError(t, a.Remove(ctx, 1))
	assert.Zero(t, a.calendar.Len())
	*out = nil
	require.NoError(t, a.Events(ctx))
	assert.Equal(t, []string{"No events."}, *out)

	// reopening re-reads the page without duplicating its events
	require.NoError(t, a.Append(ctx, "Dentist friday"))
	require.NoError(t, a.Open(ctx, "plans"))
	evs = a.calendar.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "Dentist", evs[0].Title)
}

func TestApp_OpenFlushesPreviousPage(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.New(ctx, "First"))
	first := a.currentPage().id
	require.NoError(t, a.Append(ctx, "groceries"))

	require.NoError(t, a.New(ctx, "Second"))
	assert.Equal(t, "Second", a.currentPage().name)

	stored, err := a.notes.GetPage(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "groceries", stored.Content)

	require.NoError(t, a.Open(ctx, "first"))
	assert.Equal(t, first, a.currentPage().id)
	assert.Equal(t, []string{"groceries"}, a.currentPage().lines)

	assert.ErrorIs(t, a.Open(ctx, "missing"), common.ErrNotFound)
}

func TestApp_SyncRequiresTokenAndUnlockedVault(t *testing.T) {
	out := captureOutput(t)
	a, rs := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.New(ctx, "Notes"))
	require.NoError(t, a.Append(ctx, "secret plans"))
	a.closePage(ctx)

	*out = nil
	require.NoError(t, a.Sync(ctx))
	assert.Equal(t, []string{"Not signed in. Use 'token <jwt>' first."}, *out)

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	assert.NotEmpty(t, rs.token)

	*out = nil
	require.NoError(t, a.Sync(ctx))
	assert.Equal(t, []string{"Vault is locked. Use 'unlock' first."}, *out)

	require.NoError(t, a.Unlock(ctx))
	require.True(t, a.vault.IsUnlocked())

	*out = nil
	require.NoError(t, a.Sync(ctx))
	require.Len(t, *out, 1)
	assert.True(t, strings.HasPrefix((*out)[0], "Sync complete"), (*out)[0])

	require.Len(t, rs.pages, 1)
	for _, p := range rs.pages {
		assert.True(t, p.IsEncrypted)
		assert.NotContains(t, p.Content, "secret plans")
		assert.Equal(t, "Notes", p.Name)
	}

	pending, err := a.notes.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApp_DeletePushesTombstone(t *testing.T) {
	captureOutput(t)
	a, rs := newTestApp(t, "y\n")
	ctx := context.Background()

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, a.New(ctx, "Scratch"))
	id := a.currentPage().id
	require.NoError(t, a.Sync(ctx))
	require.Contains(t, rs.pages, id)

	require.NoError(t, a.Delete(ctx, "scratch"))
	assert.Nil(t, a.currentPage())
	assert.Equal(t, []string{id}, rs.tombstones)
	assert.NotContains(t, rs.pages, id)

	_, err := a.notes.GetPage(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestApp_DeleteDeclined(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, "n\n")
	ctx := context.Background()

	require.NoError(t, a.New(ctx, "Keep"))
	require.NoError(t, a.Delete(ctx, "Keep"))

	list, err := a.notes.ListPages(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApp_UnlockWithWrongPassphrase(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, a.Lock(ctx))
	assert.False(t, a.vault.IsUnlocked())

	getPassword = func(io.Writer, string) ([]byte, error) { return []byte("wrong"), nil }
	assert.Error(t, a.Unlock(ctx))
	assert.False(t, a.vault.IsUnlocked())
}

func TestApp_NewPassphraseMismatch(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, "")

	answers := [][]byte{[]byte("one"), []byte("two")}
	getPassword = func(io.Writer, string) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
	assert.ErrorIs(t, a.Unlock(context.Background()), common.ErrValidation)
	assert.False(t, a.vault.IsUnlocked())
}

func TestApp_TokenValidation(t *testing.T) {
	captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	assert.ErrorIs(t, a.Token(ctx, "garbage"), common.ErrInvalidToken)
	assert.ErrorIs(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(-time.Hour))), common.ErrInvalidToken)

	_, ok := a.userID()
	assert.False(t, ok)
}

func TestApp_CheckOnlineModes(t *testing.T) {
	captureOutput(t)
	a, rs := newTestApp(t, "")
	ctx := context.Background()

	rs.pingErr = remote.ErrUnavailable
	a.checkOnline(ctx)
	assert.Equal(t, ModeOffline, a.Mode())

	rs.pingErr = nil
	a.checkOnline(ctx)
	assert.Equal(t, ModeDisabled, a.Mode())

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	a.checkOnline(ctx)
	assert.Equal(t, ModeOnline, a.Mode())
	assert.Equal(t, "(online locked)", a.status())
}

func TestApp_StatusErrorsExport(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Status(ctx))
	assert.Contains(t, *out, "Last sync: never")

	*out = nil
	require.NoError(t, a.Errors(ctx))
	assert.Equal(t, []string{"No sync errors."}, *out)

	*out = nil
	require.NoError(t, a.Export(ctx, ""))
	assert.Equal(t, []string{"Not signed in. Use 'token <jwt>' first."}, *out)

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	*out = nil
	require.NoError(t, a.Export(ctx, ""))
	require.Len(t, *out, 2)
	assert.Contains(t, (*out)[0], "https://snapshots.local/u1.json")
}

func TestApp_ExportDownloadsSnapshot(t *testing.T) {
	out := captureOutput(t)
	a, rs := newTestApp(t, "")
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pages":[]}`))
	}))
	defer srv.Close()
	rs.exportURL = srv.URL + "/snap"

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	path := filepath.Join(t.TempDir(), "exports", "snap.json")

	*out = nil
	require.NoError(t, a.Export(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"pages":[]}`, string(data))
	assert.Equal(t, "Saved 12 bytes to "+path, (*out)[len(*out)-1])
}

func TestApp_SyncAllAndClose(t *testing.T) {
	out := captureOutput(t)
	a, rs := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Token(ctx, signedToken(t, "u1", time.Now().Add(time.Hour))))
	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, a.New(ctx, "One"))
	require.NoError(t, a.New(ctx, "Two"))
	two := a.currentPage().id
	require.NoError(t, a.Append(ctx, "draft"))

	*out = nil
	require.NoError(t, a.SyncAll(ctx, scheduler.SyncAllOptions{}))
	assert.Equal(t, "Pages: 2, synced: 1, failed: 0, skipped: 1", (*out)[0])
	assert.Len(t, rs.pages, 2)

	require.NoError(t, a.Append(ctx, "more"))
	a.Close(ctx)
	assert.True(t, rs.closed)
	assert.False(t, a.vault.IsUnlocked())

	stored, err := a.notes.GetPage(ctx, two)
	require.NoError(t, err)
	assert.Equal(t, "draft\nmore", stored.Content)

	pending, err := a.notes.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApp_AbortWhenIdle(t *testing.T) {
	out := captureOutput(t)
	a, _ := newTestApp(t, "")

	require.NoError(t, a.Abort(context.Background()))
	assert.Equal(t, []string{"No sync is running."}, *out)
}
