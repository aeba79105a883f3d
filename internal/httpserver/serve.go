package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
)

type (
	Config struct {
		Bind            string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		IdleTimeout     time.Duration
		ShutdownTimeout time.Duration
	}
)

func DefaultConfig(bind string) Config {
	return Config{
		Bind:            bind,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		IdleTimeout:     time.Minute * 2,
		ShutdownTimeout: time.Second * 15,
	}
}

// Serve blocks until ctx is done or the listener fails. In-flight requests
// get ShutdownTimeout to finish once ctx is cancelled.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	lst, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, cfg, lst, handler)
}

func ServeListener(ctx context.Context, cfg Config, lst net.Listener, handler http.Handler) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lst.Addr().String()).Logger()
	server := http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return logutil.WithLogger(context.Background(), log) },
	}
	firstErr := make(chan error, 1)
	go func() {
		defer close(firstErr)
		log.Info().Msg("Starting HTTP server")
		err := server.Serve(lst)
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			return
		}
		firstErr <- err
	}()
	select {
	case err := <-firstErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown did not complete cleanly")
		return err
	}
	log.Info().Msg("Shutdown completed")
	return <-firstErr
}
