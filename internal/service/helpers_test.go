package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository/sqlite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store    *sqlite.Store
	clock    *fakeClock
	recorder *metrics.InMemoryRecorder
	notes    *NoteService
	public   *PublicService
	accounts *AccountService
	revoker  *fakeRevoker
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (f *fakeRevoker) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := newFakeClock()
	recorder := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService("service-test-secret-32-bytes-long!!", "notesd", 15*time.Minute, 7*24*time.Hour)
	hasher := &auth.PasswordHasher{Time: 1, Memory: 1024, Threads: 1}
	revoker := &fakeRevoker{revoked: map[string]time.Duration{}}

	return &testEnv{
		store:    store,
		clock:    clock,
		recorder: recorder,
		notes:    NewNoteService(store, "https://notes.example.com/", recorder, logger).WithClock(clock.Now),
		public:   NewPublicService(store, recorder).WithClock(clock.Now),
		accounts: NewAccountService(store, hasher, tokens, revoker, recorder, logger),
		revoker:  revoker,
	}
}

func (e *testEnv) user(t *testing.T, email string) *model.User {
	t.Helper()
	user, _, err := e.accounts.Register(context.Background(), email, "correct horse battery")
	require.NoError(t, err)
	return user
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
