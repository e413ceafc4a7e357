package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/ens"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/observability"
	"github.com/danmuck/namegate/internal/provider"
	"github.com/danmuck/namegate/internal/reconcile"
	"github.com/danmuck/namegate/internal/routes"
	"github.com/danmuck/namegate/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Deps overrides the collaborators NewService would otherwise build from config.
type Deps struct {
	Detector      network.Detector
	Factory       client.Factory
	Setup         reconcile.LocalSetup
	InitialClient *client.Client
	Store         *storage.Store
}

// Service is one namegate process.
type Service struct {
	cfg ServiceConfig

	store      *storage.Store
	ownsStore  bool
	labels     *storage.Labels
	state      *network.State
	holder     *provider.Holder
	setup      *ens.Setup
	reconciler *reconcile.Reconciler
	dispatcher *routes.Dispatcher
	router     *gin.Engine

	appeared time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	return NewServiceWithDeps(cfg, Deps{})
}

func NewServiceWithDeps(cfg ServiceConfig, deps Deps) (*Service, error) {
	cfg = cfg.withDefaults()

	var err error
	s := &Service{cfg: cfg, store: deps.Store, appeared: time.Now()}
	if s.store == nil {
		if s.store, err = openStore(cfg.StoragePath); err != nil {
			return nil, err
		}
		s.ownsStore = true
	}
	s.labels = storage.NewLabels(s.store)
	s.state = network.NewState(network.None())

	factory := deps.Factory
	if factory == nil {
		factory = &client.RPCFactory{
			Endpoints:   cfg.Endpoints,
			Default:     cfg.ProviderURL,
			Registry:    cfg.Registry,
			Labels:      s.labels,
			DialTimeout: 10 * time.Second,
		}
	}
	detector := deps.Detector
	if detector == nil {
		detector = network.NewRPCDetector(cfg.ProviderURL)
	}

	s.holder = provider.NewHolder(s.initialClient(factory, deps.InitialClient))

	var setup reconcile.LocalSetup = deps.Setup
	if setup == nil {
		s.setup = &ens.Setup{
			Labels:       s.labels,
			PollInterval: cfg.AccountsPollInterval,
		}
		setup = s.setup
	}

	s.reconciler = reconcile.New(reconcile.Config{
		InitialNetwork: cfg.InitialNetwork,
		Env:            cfg.Env,
		LocalProvider:  cfg.LocalProviderURL,
	}, reconcile.Deps{
		State:    s.state,
		Setup:    setup,
		Detector: detector,
		Factory:  factory,
		Holder:   s.holder,
		Labels:   s.labels,
	})
	if s.setup != nil {
		s.setup.OnAccountsChanged = s.reconciler.Trigger
	}

	s.dispatcher = routes.NewDispatcher(routes.DefaultTable(), routes.ModeFor(cfg.Env.IPFS))
	s.router = s.newRouter()
	s.registerRoutes()
	return s, nil
}

// initialClient binds the startup client to the initial network. When that fails
// the process starts on a fallback client carrying the failure.
func (s *Service) initialClient(factory client.Factory, supplied *client.Client) *client.Client {
	if supplied != nil {
		return supplied
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := factory.Create(ctx, network.Some(s.cfg.InitialNetwork))
	if err == nil && c != nil {
		return c
	}
	if err == nil {
		err = errors.New("factory returned no client")
	}
	log.Warn().Err(err).Str("network", s.cfg.InitialNetwork.String()).Msg("initial_client_failed")
	fb := client.NewFallback(s.labels)
	_, _ = fb.Mutate(ctx, client.Request{
		Operation: client.SetError,
		Variables: map[string]any{"message": err.Error()},
	})
	return fb
}

func openStore(path string) (*storage.Store, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("app: storage dir: %w", err)
		}
	}
	return storage.Open(path)
}

func (s *Service) Router() *gin.Engine {
	return s.router
}

func (s *Service) Holder() *provider.Holder {
	return s.holder
}

func (s *Service) State() *network.State {
	return s.state
}

func (s *Service) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// Start runs one-time process initialisation and the reconciler until ctx ends.
// The returned channel closes once the reconciler stopped.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	observability.SetupAnalytics()
	observability.StartReporter(s.cfg.Reporter)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.reconciler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("reconciler_stopped")
		}
	}()
	return done
}

// Run serves HTTP and reconciles until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer s.Close()

	reconciled := s.Start(ctx)

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.Warn().
		Str("id", s.cfg.ID).
		Str("addr", s.cfg.ListenAddr).
		Str("routing", routes.ModeFor(s.cfg.Env.IPFS).String()).
		Str("stage", string(s.cfg.Env.Stage)).
		Msg("namegate_listening")

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
		stop()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	<-reconciled
	return runErr
}

// Close stops the accounts watcher and releases storage owned by the service.
func (s *Service) Close() error {
	if s.setup != nil {
		s.setup.Stop()
	}
	if s.ownsStore {
		return s.store.Close()
	}
	return nil
}
