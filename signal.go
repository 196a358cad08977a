package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// signalContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. SIGHUP asks for a reload through reload
// without blocking; a pending request absorbs later ones.
func signalContext(parent context.Context, logger *slog.Logger, reload chan<- struct{}) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)

		stopping := false

		for {
			select {
			case sig := <-sigCh:
				switch {
				case sig == syscall.SIGHUP:
					logger.Info("received SIGHUP, reloading")
					requestReload(reload)
				case stopping:
					logger.Warn("received second signal, forcing exit",
						slog.String("signal", sig.String()),
					)
					os.Exit(1)
				default:
					logger.Info("received signal, shutting down",
						slog.String("signal", sig.String()),
					)
					stopping = true
					cancel()
				}
			case <-ctx.Done():
				if !stopping {
					return
				}

				// keep listening for a second signal until the parent ends
				select {
				case sig := <-sigCh:
					if sig != syscall.SIGHUP {
						logger.Warn("received second signal, forcing exit",
							slog.String("signal", sig.String()),
						)
						os.Exit(1)
					}
				case <-parent.Done():
					return
				}
			}
		}
	}()

	return ctx
}

func requestReload(ch chan<- struct{}) {
	if ch == nil {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}
