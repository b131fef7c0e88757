// Package api exposes one episode.Controller as an HTTP control plane:
// POST /reset starts a fresh episode, POST /step applies one defender
// action, GET /state returns the episode's bookkeeping snapshot.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/opensec-sim/irsim/src/episode"
)

// Server wraps a single episode.Controller. The simulator runs one
// episode at a time, so mu serializes /reset and /step against each
// other and against concurrent reads of /state.
type Server struct {
	controller *episode.Controller
	router     *mux.Router
	httpServer *http.Server

	mu sync.Mutex

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewServer builds a Server listening on addr, bound to controller.
func NewServer(addr string, controller *episode.Controller) *Server {
	s := &Server{
		controller: controller,
		shutdown:   make(chan struct{}),
	}
	s.router = newRouter(s)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the process receives SIGINT/SIGTERM,
// at which point it shuts down gracefully and returns nil.
func (s *Server) Start() error {
	s.setupGracefulShutdown()

	log.Info().Str("addr", s.httpServer.Addr).Msg("starting irsim-serve")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down within timeout.
func (s *Server) Stop(timeout time.Duration) error {
	log.Info().Msg("stopping irsim-serve")
	close(s.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown did not complete cleanly")
		return err
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("timed out waiting for background workers")
	}

	log.Info().Msg("irsim-serve stopped")
	return nil
}

func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		if err := s.Stop(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			os.Exit(1)
		}
		os.Exit(0)
	}()
}
