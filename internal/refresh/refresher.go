// Package refresh recomputes derived views when the study store changes.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/study-analytics-engine/internal/domain"
)

// Func is called with the newest store version once per refresh.
type Func func(ctx context.Context, version uint64) error

// Refresher subscribes to store changes and calls a refresh function at most
// once per MinInterval, always with the newest version seen. Bursts of writes
// collapse into a single refresh.
type Refresher struct {
	notifier  domain.ChangeNotifier
	fn        Func
	rateLimit *rate.Limiter
	logger    *logrus.Logger
}

// NewRefresher creates a refresher. A zero interval disables throttling.
func NewRefresher(notifier domain.ChangeNotifier, cfg domain.WatchConfig, fn Func, logger *logrus.Logger) (*Refresher, error) {
	if notifier == nil {
		return nil, fmt.Errorf("change notifier is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("refresh function is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Refresher{
		notifier:  notifier,
		fn:        fn,
		rateLimit: rate.NewLimiter(limit, burst),
		logger:    logger,
	}, nil
}

// Run blocks until ctx is done. The current version is refreshed once on
// start. A failed refresh is logged and the loop continues.
func (r *Refresher) Run(ctx context.Context) error {
	updates, cancel := r.notifier.Subscribe()
	defer cancel()

	var last uint64
	refresh := func(version uint64) error {
		if err := r.rateLimit.Wait(ctx); err != nil {
			return err
		}
		// more writes may have landed while throttled
		version = latest(updates, version)
		if version == last && last != 0 {
			return nil
		}
		start := time.Now()
		if err := r.fn(ctx, version); err != nil {
			r.logger.WithError(err).WithField("snapshot_version", version).Warn("Refresh failed")
			return nil
		}
		last = version
		r.logger.WithFields(logrus.Fields{
			"snapshot_version": version,
			"duration":         time.Since(start),
		}).Debug("Refresh completed")
		return nil
	}

	if err := refresh(r.notifier.Version()); err != nil {
		return ignoreCancel(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case version, ok := <-updates:
			if !ok {
				return nil
			}
			if err := refresh(version); err != nil {
				return ignoreCancel(ctx, err)
			}
		}
	}
}

// latest drains any pending notification and returns the newest version.
func latest(updates <-chan uint64, version uint64) uint64 {
	for {
		select {
		case v, ok := <-updates:
			if !ok {
				return version
			}
			if v > version {
				version = v
			}
		default:
			return version
		}
	}
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
