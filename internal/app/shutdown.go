package app

import (
	"context"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Shutdown stops all components in reverse dependency order: retention
// sweeper first, then the runner (which cancels in-flight jobs and shuts
// down the engine), the metrics server, and finally the store.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	var firstErr error
	if a.runner != nil {
		if err := a.runner.Shutdown(ctx); err != nil {
			a.logger.Error("runner shutdown failed", err)
			firstErr = err
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown failed", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("store close failed", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.logger.Info("shutdown complete")
	return firstErr
}
