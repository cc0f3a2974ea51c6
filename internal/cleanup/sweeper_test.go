package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/review"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
	storemem "github.com/LaazAlae/alaeautomates-backend/internal/store/memory"
)

type fakePruner struct {
	cutoffs []time.Time
	removed []string
}

func (f *fakePruner) DeleteExpiredSessions(_ context.Context, olderThan time.Time) ([]string, error) {
	f.cutoffs = append(f.cutoffs, olderThan)
	return f.removed, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func TestSweepPrunesSessions(t *testing.T) {
	t.Parallel()

	pruner := &fakePruner{removed: []string{"a", "b", "c"}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := New(pruner, nil, fixedClock{now: now}, Config{MaxAge: 24 * time.Hour}, zap.NewNop())

	sweeper.Sweep(context.Background())

	require.Len(t, pruner.cutoffs, 1)
	require.Equal(t, now.Add(-24*time.Hour), pruner.cutoffs[0])
}

func TestSweepDropsReviewStateForPrunedSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storemem.NewSessionStore(fixedClock{now: t0})
	reviews := review.NewRegistry()

	require.NoError(t, store.CreateSession(ctx, statements.Session{
		ID:        "s1",
		Status:    statements.StatusPending,
		Submitted: t0,
	}))
	count := reviews.Register("s1", []statements.ClassifiedStatement{{
		Record: statements.StatementRecord{CompanyName: "Acme Corp", Pages: 1},
		Classification: statements.Classification{
			AskQuestion: true,
			SimilarTo:   "Acme Corporation",
		},
	}})
	require.Equal(t, 1, count)
	require.NoError(t, store.UpdateSessionStatus(ctx, "s1", statements.StatusCompleted, ""))

	sweeper := New(store, reviews, fixedClock{now: t0.Add(48 * time.Hour)}, Config{
		MaxAge: 24 * time.Hour,
	}, zap.NewNop())
	sweeper.Sweep(ctx)

	_, err := store.GetSession(ctx, "s1")
	require.ErrorIs(t, err, statements.ErrNotFound)
	_, err = reviews.State("s1")
	require.ErrorIs(t, err, review.ErrUnknownSession)
}

func TestSweepRemovesStaleArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "old.zip")
	fresh := filepath.Join(dir, "new.zip")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o600))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	sweeper := New(nil, nil, fixedClock{now: time.Now()}, Config{
		MaxAge:     24 * time.Hour,
		ArchiveDir: dir,
	}, zap.NewNop())

	sweeper.Sweep(context.Background())

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	sweeper := New(&fakePruner{}, nil, fixedClock{now: time.Now()}, Config{
		MaxAge:   time.Hour,
		Interval: 10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
