package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grrywlsn/radioplex/reconcile"
)

type updateFunc func(context.Context) (reconcile.RunRecord, error)

// runWatch runs update immediately and then on every tick until ctx is done.
// A tick that arrives while a run still holds the run lock is skipped.
func runWatch(ctx context.Context, interval time.Duration, update updateFunc, logger *slog.Logger, out io.Writer) error {
	if interval <= 0 {
		return errors.New("update interval must be positive")
	}

	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)
	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()

			rec, err := update(ctx)
			switch {
			case errors.Is(err, reconcile.ErrRunInProgress):
				logger.Info("previous update still running, skipping this one")
				return
			case err != nil:
				logger.Error("scheduled update failed", "error", err)
			}
			if rec.SongsScraped > 0 || rec.Error != "" {
				outMu.Lock()
				displayRunSummary(out, rec)
				outMu.Unlock()
			}
		}()
	}

	trigger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping scheduled updates")
			wg.Wait()
			return nil
		case <-ticker.C:
			trigger()
		}
	}
}
