package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/ens"
	"github.com/danmuck/namegate/internal/env"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrLocalSetup = errors.New("reconcile: local network setup failed")
	ErrDetection  = errors.New("reconcile: network detection failed")
	ErrCreate     = errors.New("reconcile: client creation failed")
)

type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeInstalled Outcome = "installed"
	OutcomeFallback  Outcome = "fallback"
	OutcomeStale     Outcome = "stale"
)

const defaultPassTimeout = 30 * time.Second

// LocalSetup prepares a local development network before detection.
type LocalSetup interface {
	Run(ctx context.Context, opts ens.SetupOptions, overrides map[string]string) error
}

// Installer is the client slot written by the reconciler.
type Installer interface {
	Install(c *client.Client) error
}

type Config struct {
	// InitialNetwork is the baseline compared against while no override is set.
	InitialNetwork network.ID
	// Env.Labels is parsed by each local setup run; a malformed value fails that pass.
	Env env.Environment
	// LocalProvider is the custom provider used by local setup.
	LocalProvider string
	PassTimeout   time.Duration
}

// Deps are the collaborators of a Reconciler. Holder is required.
type Deps struct {
	State    *network.State
	Setup    LocalSetup
	Detector network.Detector
	Factory  client.Factory
	Holder   Installer
	// Labels backs the last-resort fallback client.
	Labels client.LabelSource
}

// Result describes one finished pass.
type Result struct {
	Seq       uint64
	Requested network.Optional
	Live      network.Optional
	Outcome   Outcome
	ClientID  string
	Err       error
}

// Status summarises reconciler progress.
type Status struct {
	LastSeq         uint64    `json:"lastSeq"`
	Completed       uint64    `json:"completed"`
	LastOutcome     Outcome   `json:"lastOutcome,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
	LastCompletedAt time.Time `json:"lastCompletedAt,omitempty"`
}

type Reconciler struct {
	cfg  Config
	deps Deps

	seq       atomic.Uint64
	installMu sync.Mutex
	wg        sync.WaitGroup

	runMu   sync.RWMutex
	runCtx  context.Context
	stopped bool

	mu     sync.RWMutex
	status Status
}

func New(cfg Config, deps Deps) *Reconciler {
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = defaultPassTimeout
	}
	if deps.State == nil {
		deps.State = network.NewState(network.None())
	}
	return &Reconciler{cfg: cfg, deps: deps, runCtx: context.Background()}
}

// Run performs the mount pass, then one pass per current-network change until ctx
// ends. In-flight passes are awaited before Run returns.
func (r *Reconciler) Run(ctx context.Context) error {
	r.runMu.Lock()
	r.runCtx = ctx
	r.stopped = false
	r.runMu.Unlock()

	changes, cancel := r.deps.State.Subscribe(8)
	defer func() {
		cancel()
		r.runMu.Lock()
		r.stopped = true
		r.runMu.Unlock()
		r.wg.Wait()
	}()

	r.spawn(ctx, r.deps.State.Current())
	for {
		select {
		case <-ctx.Done():
			return nil
		case current, ok := <-changes:
			if !ok {
				return nil
			}
			r.spawn(ctx, current)
		}
	}
}

// Trigger starts a pass for the current network outside the change stream. It does
// nothing once Run has returned.
func (r *Reconciler) Trigger() {
	r.runMu.RLock()
	defer r.runMu.RUnlock()
	if r.stopped || r.runCtx.Err() != nil {
		return
	}
	r.spawn(r.runCtx, r.deps.State.Current())
}

// Wait blocks until every spawned pass finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Ready reports whether at least one pass completed.
func (r *Reconciler) Ready() bool {
	return r.Status().Completed > 0
}

func (r *Reconciler) spawn(ctx context.Context, current network.Optional) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Pass(ctx, current)
	}()
}

// Pass runs one reconciliation pass for current.
func (r *Reconciler) Pass(ctx context.Context, current network.Optional) Result {
	seq := r.seq.Add(1)
	start := time.Now()

	passCtx, cancel := context.WithTimeout(ctx, r.cfg.PassTimeout)
	defer cancel()

	res := r.pass(passCtx, seq, current)
	r.record(res)
	observability.RecordReconcilePass(string(res.Outcome), time.Since(start))

	event := log.Info()
	if res.Err != nil {
		event = log.Warn().Err(res.Err)
	}
	event.
		Uint64("seq", res.Seq).
		Str("requested", res.Requested.String()).
		Str("live", res.Live.String()).
		Str("outcome", string(res.Outcome)).
		Str("client", res.ClientID).
		Dur("duration", time.Since(start)).
		Msg("reconcile_pass")
	return res
}

func (r *Reconciler) pass(ctx context.Context, seq uint64, current network.Optional) Result {
	res := Result{Seq: seq, Requested: current}

	next, live, err := r.provision(ctx, current)
	res.Live = live
	if err == nil {
		if next == nil {
			res.Outcome = OutcomeUnchanged
			return res
		}
		res.Outcome = r.install(seq, next, OutcomeInstalled)
		res.ClientID = next.ID()
		return res
	}

	res.Err = err
	observability.ReportError("reconcile", err)
	fallback := r.fallback(ctx, err)
	res.Outcome = r.install(seq, fallback, OutcomeFallback)
	res.ClientID = fallback.ID()
	return res
}

// provision returns a new client, or nil when the live network already matches.
func (r *Reconciler) provision(ctx context.Context, current network.Optional) (*client.Client, network.Optional, error) {
	if r.cfg.Env.LocalSetupEnabled(current) && r.deps.Setup != nil {
		overrides, err := ens.ParseLabels(r.cfg.Env.Labels)
		if err != nil {
			return nil, network.None(), fmt.Errorf("%w: %w", ErrLocalSetup, err)
		}
		err = r.deps.Setup.Run(ctx, ens.SetupOptions{
			ReloadOnAccountsChange: true,
			CustomProvider:         r.cfg.LocalProvider,
			ENSAddress:             r.cfg.Env.ENSAddress,
		}, overrides)
		if err != nil {
			return nil, network.None(), fmt.Errorf("%w: %w", ErrLocalSetup, err)
		}
	}

	if r.deps.Detector == nil {
		return nil, network.None(), fmt.Errorf("%w: no detector", ErrDetection)
	}
	detected, err := r.deps.Detector.Detect(ctx)
	if err != nil {
		return nil, network.None(), fmt.Errorf("%w: %w", ErrDetection, err)
	}
	live := network.Some(detected)
	if detected == current.Or(r.cfg.InitialNetwork) {
		return nil, live, nil
	}

	if r.deps.Factory == nil {
		return nil, live, fmt.Errorf("%w: no factory", ErrCreate)
	}
	next, err := r.deps.Factory.Create(ctx, network.Some(current.Or(detected)))
	if err != nil {
		return nil, live, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if next == nil {
		return nil, live, fmt.Errorf("%w: factory returned no client", ErrCreate)
	}
	return next, live, nil
}

// fallback builds an unbound client carrying cause as its error record. It always
// returns a client; a failing factory degrades to a bare fallback.
func (r *Reconciler) fallback(ctx context.Context, cause error) *client.Client {
	var fb *client.Client
	if r.deps.Factory != nil {
		c, err := r.deps.Factory.Create(ctx, network.None())
		if err != nil {
			log.Error().Err(err).Msg("reconcile_fallback_create_failed")
		}
		fb = c
	}
	if fb == nil {
		fb = client.NewFallback(r.deps.Labels)
	}
	_, err := fb.Mutate(ctx, client.Request{
		Operation: client.SetError,
		Variables: map[string]any{"message": cause.Error()},
	})
	if err != nil {
		log.Error().Err(err).Str("client", fb.ID()).Msg("reconcile_error_record_failed")
	}
	return fb
}

func (r *Reconciler) install(seq uint64, c *client.Client, outcome Outcome) Outcome {
	r.installMu.Lock()
	defer r.installMu.Unlock()
	if latest := r.seq.Load(); seq != latest {
		log.Debug().Uint64("seq", seq).Uint64("latest", latest).Str("client", c.ID()).Msg("reconcile_discard_stale")
		c.Close()
		return OutcomeStale
	}
	if err := r.deps.Holder.Install(c); err != nil {
		log.Error().Err(err).Msg("reconcile_install_failed")
		return OutcomeStale
	}
	return outcome
}

func (r *Reconciler) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Completed++
	// a pass finishing after a newer one keeps the newer outcome
	if res.Seq < r.status.LastSeq {
		return
	}
	r.status.LastSeq = res.Seq
	r.status.LastOutcome = res.Outcome
	r.status.LastError = ""
	if res.Err != nil {
		r.status.LastError = res.Err.Error()
	}
	r.status.LastCompletedAt = time.Now()
}
