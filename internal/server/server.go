// Package server exposes the assembly pipeline over HTTP. Each assemble
// request runs its pipeline to completion synchronously in the handler;
// there is no job queue and no status polling.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clipsmith/internal"
	"clipsmith/internal/archive"
	"clipsmith/internal/logging"
	"clipsmith/internal/pipeline"
	"clipsmith/internal/workspace"
)

type Server struct {
	cfg      internal.Config
	log      *logging.Logger
	wsm      *workspace.Manager
	orch     *pipeline.Orchestrator
	archiver *archive.Archiver
	ttsReady bool

	httpSrv *http.Server
}

func New(cfg internal.Config, wsm *workspace.Manager, orch *pipeline.Orchestrator, archiver *archive.Archiver, ttsReady bool, log *logging.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		wsm:      wsm,
		orch:     orch,
		archiver: archiver,
		ttsReady: ttsReady,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/cleanup", s.handleCleanup)
	mux.HandleFunc("/assemble", s.handleAssemble)
	mux.HandleFunc("/assemble-upload", s.handleAssembleUpload)

	s.httpSrv = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		// A full pipeline run happens inside the request, so the write
		// timeout must cover downloads plus every transcode stage.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("server: listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }
