package app

import (
	"context"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Shutdown performs graceful shutdown of all components.
// It stops the application in the following order:
//  1. Stops the cycle scheduler, waiting for running cycles
//  2. Saves the final state
//  3. Cancels the application context
//  4. Stops the metrics endpoint
//  5. Closes the state store and releases the PID file
//
// The method is thread-safe and can be called from multiple goroutines.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.shutdownInternal()
}

// shutdownInternal performs shutdown without holding the mutex.
func (a *App) shutdownInternal() error {
	// If not started, nothing to do
	if !a.started {
		return nil
	}

	// Scheduler.Stop fails only when Start was never called.
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err == nil {
			a.logger.Info("Cycle scheduler stopped")
		}
		a.scheduler.Exclusive(func() {
			a.saveState(a.ctx, "shutdown")
		})
	}

	// Cancel context to stop all background operations
	a.cancel()

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to stop metrics server", err)
		}
	}

	a.closeStore()
	a.releasePID()

	// Mark application as stopped
	a.started = false

	a.logger.Info("Application shutdown complete")
	return nil
}
