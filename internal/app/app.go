package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/roombook/roombook/internal/config"
	"github.com/roombook/roombook/pkg/interval"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}
	return newApplication(ctx, cfg)
}

func newApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	loc, err := interval.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	log.Infof("Using timezone %s", loc)

	r := mux.NewRouter()

	// Build dependencies (provider, ledger, facade, handlers...)
	deps, err := BuildDependencies(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}

	// Middleware chain
	SetupMiddleware(r, deps, cfg)

	// Routes
	RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Listen,
		WriteTimeout: cfg.Aggregation.RequestTimeout + 5*time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, router: r, srv: srv}, nil
}

// Run starts the HTTP server and blocks until ctx is done, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		errs <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	}
}
