// Package cleanup prunes expired sessions and stale result archives on a
// fixed interval.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// SessionPruner deletes finished sessions older than a cutoff and reports
// which session IDs were removed.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, olderThan time.Time) ([]string, error)
}

// ReviewDropper releases pending review state for a session. Pruned sessions
// must be dropped here too, otherwise an abandoned session with open
// questions keeps its question set alive forever.
type ReviewDropper interface {
	Drop(sessionID string)
}

// Config controls retention behavior.
type Config struct {
	// MaxAge is how long finished sessions and archives are kept.
	MaxAge time.Duration
	// Interval is how often the sweeper runs.
	Interval time.Duration
	// ArchiveDir optionally points at a local archive directory to prune.
	ArchiveDir string
}

// Sweeper periodically removes expired sessions and local archive files.
type Sweeper struct {
	store   SessionPruner
	reviews ReviewDropper
	clock   statements.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Sweeper.
func New(
	store SessionPruner,
	reviews ReviewDropper,
	clock statements.Clock,
	cfg Config,
	logger *zap.Logger,
) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, reviews: reviews, clock: clock, cfg: cfg, logger: logger}
}

// Run blocks, sweeping on the configured interval until the context finishes.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one retention pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.MaxAge)

	if s.store != nil {
		removed, err := s.store.DeleteExpiredSessions(ctx, cutoff)
		if err != nil {
			s.logger.Error("session retention sweep failed", zap.Error(err))
		} else if len(removed) > 0 {
			if s.reviews != nil {
				for _, id := range removed {
					s.reviews.Drop(id)
				}
			}
			s.logger.Info("expired sessions removed", zap.Int("count", len(removed)))
		}
	}

	if s.cfg.ArchiveDir != "" {
		s.sweepArchives(cutoff)
	}
}

func (s *Sweeper) sweepArchives(cutoff time.Time) {
	removed := 0
	err := filepath.Walk(s.cfg.ArchiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("remove stale archive failed", zap.String("path", path), zap.Error(rmErr))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		s.logger.Error("archive retention sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("stale archives removed", zap.Int("count", removed))
	}
}
