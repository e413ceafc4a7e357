package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/ens"
	"github.com/danmuck/namegate/internal/env"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/provider"
	"github.com/danmuck/namegate/internal/testutil/testlog"
)

const registryAddr = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

type fakeDetector struct {
	mu    sync.Mutex
	id    network.ID
	err   error
	calls int
}

func (d *fakeDetector) Detect(context.Context) (network.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.id, d.err
}

type fakeFactory struct {
	mu          sync.Mutex
	requests    []network.Optional
	created     []*client.Client
	boundErr    error
	fallbackErr error
	gates       map[network.ID]chan struct{}
	entered     chan network.ID
}

func (f *fakeFactory) Create(ctx context.Context, n network.Optional) (*client.Client, error) {
	f.mu.Lock()
	f.requests = append(f.requests, n)
	gate := f.gates[n.ID]
	entered := f.entered
	f.mu.Unlock()

	if n.Set && gate != nil {
		if entered != nil {
			entered <- n.ID
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n.Set && f.boundErr != nil {
		return nil, f.boundErr
	}
	if !n.Set && f.fallbackErr != nil {
		return nil, f.fallbackErr
	}
	c := client.New(client.Options{Network: n})
	f.mu.Lock()
	f.created = append(f.created, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) Requests() []network.Optional {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]network.Optional(nil), f.requests...)
}

type fakeSetup struct {
	calls     int
	opts      ens.SetupOptions
	overrides map[string]string
	err       error
}

func (s *fakeSetup) Run(_ context.Context, opts ens.SetupOptions, overrides map[string]string) error {
	s.calls++
	s.opts = opts
	s.overrides = overrides
	return s.err
}

type fixture struct {
	detector *fakeDetector
	factory  *fakeFactory
	setup    *fakeSetup
	holder   *provider.Holder
	initial  *client.Client
	rec      *Reconciler
}

func newFixture(t *testing.T, cfg Config, live network.ID) *fixture {
	t.Helper()
	f := &fixture{
		detector: &fakeDetector{id: live},
		factory:  &fakeFactory{},
		setup:    &fakeSetup{},
		initial:  client.New(client.Options{Network: network.Some(cfg.InitialNetwork)}),
	}
	f.holder = provider.NewHolder(f.initial)
	f.rec = New(cfg, Deps{
		State:    network.NewState(network.None()),
		Setup:    f.setup,
		Detector: f.detector,
		Factory:  f.factory,
		Holder:   f.holder,
	})
	return f
}

func TestPassNoopWhenLiveMatchesBaseline(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Goerli}, network.Goerli)
	res := f.rec.Pass(context.Background(), network.None())
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %q (%v)", res.Outcome, res.Err)
	}
	if f.holder.Installs() != 0 || f.holder.Current() != f.initial {
		t.Fatalf("expected no install")
	}
	if len(f.factory.Requests()) != 0 {
		t.Fatalf("expected no client requests, got %v", f.factory.Requests())
	}
	if _, ok := f.holder.Current().ErrorRecord(); ok {
		t.Fatalf("expected no error record")
	}

	res = f.rec.Pass(context.Background(), network.Some(network.Goerli))
	if res.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged for explicit matching network, got %q", res.Outcome)
	}
}

func TestPassInstallsClientForRequestedNetwork(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Mainnet)
	res := f.rec.Pass(context.Background(), network.Some(network.Goerli))
	if res.Outcome != OutcomeInstalled {
		t.Fatalf("expected installed, got %q (%v)", res.Outcome, res.Err)
	}
	reqs := f.factory.Requests()
	if len(reqs) != 1 || reqs[0] != network.Some(network.Goerli) {
		t.Fatalf("expected one goerli request, got %v", reqs)
	}
	id, ok := f.holder.Current().Network()
	if !ok || id != network.Goerli {
		t.Fatalf("expected goerli client installed, got %v %v", id, ok)
	}
	if f.holder.Installs() != 1 {
		t.Fatalf("expected exactly one install, got %d", f.holder.Installs())
	}
}

func TestMountPassFollowsLiveNetworkWhenUnset(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Rinkeby)
	res := f.rec.Pass(context.Background(), network.None())
	if res.Outcome != OutcomeInstalled {
		t.Fatalf("expected installed, got %q (%v)", res.Outcome, res.Err)
	}
	if id, _ := f.holder.Current().Network(); id != network.Rinkeby {
		t.Fatalf("expected client bound to live network, got %v", id)
	}
	if res.Live != network.Some(network.Rinkeby) {
		t.Fatalf("unexpected live network: %v", res.Live)
	}
}

func TestEveryFailingStepInstallsFallbackWithErrorRecord(t *testing.T) {
	localEnv := env.Environment{Stage: env.StageLocal, ENSAddress: registryAddr}
	cases := []struct {
		name    string
		prepare func(f *fixture)
		cfg     Config
		want    error
		message string
	}{
		{
			name:    "local setup",
			cfg:     Config{InitialNetwork: network.Mainnet, Env: localEnv},
			prepare: func(f *fixture) { f.setup.err = errors.New("no provider at 8545") },
			want:    ErrLocalSetup,
			message: "no provider at 8545",
		},
		{
			name:    "detection",
			cfg:     Config{InitialNetwork: network.Mainnet},
			prepare: func(f *fixture) { f.detector.err = errors.New("rpc down") },
			want:    ErrDetection,
			message: "rpc down",
		},
		{
			name:    "creation",
			cfg:     Config{InitialNetwork: network.Mainnet},
			prepare: func(f *fixture) { f.factory.boundErr = client.ErrUnknownNetwork },
			want:    ErrCreate,
			message: "no endpoint for network",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testlog.Start(t)

			f := newFixture(t, tc.cfg, network.Mainnet)
			tc.prepare(f)
			res := f.rec.Pass(context.Background(), network.Some(network.Goerli))
			if res.Outcome != OutcomeFallback {
				t.Fatalf("expected fallback, got %q", res.Outcome)
			}
			if !errors.Is(res.Err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, res.Err)
			}
			if f.holder.Installs() != 1 {
				t.Fatalf("expected exactly one install, got %d", f.holder.Installs())
			}
			active := f.holder.Current()
			if !active.Fallback() {
				t.Fatalf("expected fallback client active")
			}
			record, ok := active.ErrorRecord()
			if !ok || !strings.Contains(record.Message, tc.message) {
				t.Fatalf("expected error record containing %q, got %+v", tc.message, record)
			}
			if st := f.rec.Status(); st.LastOutcome != OutcomeFallback || st.LastError == "" {
				t.Fatalf("unexpected status: %+v", st)
			}
		})
	}
}

func TestFallbackSurvivesFailingFactory(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Mainnet)
	f.detector.err = errors.New("rpc down")
	f.factory.fallbackErr = errors.New("factory broken")

	res := f.rec.Pass(context.Background(), network.None())
	if res.Outcome != OutcomeFallback {
		t.Fatalf("expected fallback, got %q", res.Outcome)
	}
	active := f.holder.Current()
	if active == nil || active == f.initial || !active.Fallback() {
		t.Fatalf("expected a bare fallback client installed")
	}
	if record, ok := active.ErrorRecord(); !ok || !strings.Contains(record.Message, "rpc down") {
		t.Fatalf("unexpected error record: %+v", record)
	}
}

func TestLocalSetupGuard(t *testing.T) {
	testlog.Start(t)

	cfg := Config{
		InitialNetwork: network.Local,
		Env:            env.Environment{Stage: env.StageLocal, ENSAddress: registryAddr, Labels: `{"b":"2"}`},
		LocalProvider:  "http://127.0.0.1:8545",
	}
	f := newFixture(t, cfg, network.Local)

	f.rec.Pass(context.Background(), network.None())
	if f.setup.calls != 1 {
		t.Fatalf("expected setup to run, got %d calls", f.setup.calls)
	}
	if !f.setup.opts.ReloadOnAccountsChange || f.setup.opts.ENSAddress != registryAddr || f.setup.opts.CustomProvider != "http://127.0.0.1:8545" {
		t.Fatalf("unexpected setup options: %+v", f.setup.opts)
	}
	if f.setup.overrides["b"] != "2" {
		t.Fatalf("expected label overrides passed to setup, got %v", f.setup.overrides)
	}

	f.rec.Pass(context.Background(), network.Some(network.Mainnet))
	if f.setup.calls != 1 {
		t.Fatalf("expected read-only network to skip setup, got %d calls", f.setup.calls)
	}
}

func TestStalePassNeverInstalls(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Mainnet)
	gate := make(chan struct{})
	f.factory.gates = map[network.ID]chan struct{}{network.Ropsten: gate}
	f.factory.entered = make(chan network.ID, 1)

	slow := make(chan Result, 1)
	go func() {
		slow <- f.rec.Pass(context.Background(), network.Some(network.Ropsten))
	}()
	select {
	case <-f.factory.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow pass never reached the factory")
	}

	fast := f.rec.Pass(context.Background(), network.Some(network.Goerli))
	if fast.Outcome != OutcomeInstalled {
		t.Fatalf("expected newer pass installed, got %q", fast.Outcome)
	}
	close(gate)

	res := <-slow
	if res.Outcome != OutcomeStale {
		t.Fatalf("expected stale outcome, got %q", res.Outcome)
	}
	if id, _ := f.holder.Current().Network(); id != network.Goerli {
		t.Fatalf("expected newer client to remain active, got %v", id)
	}
	if f.holder.Installs() != 1 {
		t.Fatalf("expected one install, got %d", f.holder.Installs())
	}
	if st := f.rec.Status(); st.LastOutcome != OutcomeInstalled || st.LastSeq != fast.Seq || st.Completed != 2 {
		t.Fatalf("expected late stale pass to keep newer status, got %+v", st)
	}
	f.factory.mu.Lock()
	defer f.factory.mu.Unlock()
	for _, c := range f.factory.created {
		if id, _ := c.Network(); id == network.Ropsten && !c.Closed() {
			t.Fatalf("expected discarded client closed")
		}
	}
}

func TestRunReconcilesOnMountAndOnChange(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Mainnet)
	state := f.rec.deps.State
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()

	waitFor(t, func() bool { return f.rec.Status().Completed >= 1 })
	if !f.rec.Ready() {
		t.Fatalf("expected ready after mount pass")
	}
	if f.holder.Installs() != 0 {
		t.Fatalf("expected mount pass to be a no-op")
	}

	state.Switch(network.Goerli)
	waitFor(t, func() bool { return f.holder.Installs() == 1 })
	if id, _ := f.holder.Current().Network(); id != network.Goerli {
		t.Fatalf("expected goerli after switch, got %v", id)
	}

	f.rec.Trigger()
	waitFor(t, func() bool { return f.rec.Status().Completed >= 3 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if f.detector.calls < 3 {
		t.Fatalf("expected a detection per pass, got %d", f.detector.calls)
	}
}

func TestMalformedLabelOverridesFailLocalSetupPass(t *testing.T) {
	testlog.Start(t)

	cfg := Config{
		InitialNetwork: network.Local,
		Env:            env.Environment{Stage: env.StageLocal, ENSAddress: registryAddr, Labels: "{broken"},
	}
	f := newFixture(t, cfg, network.Local)
	res := f.rec.Pass(context.Background(), network.None())
	if res.Outcome != OutcomeFallback {
		t.Fatalf("expected fallback, got %q", res.Outcome)
	}
	if !errors.Is(res.Err, ErrLocalSetup) || !errors.Is(res.Err, ens.ErrInvalidLabels) {
		t.Fatalf("expected local setup label error, got %v", res.Err)
	}
	if f.setup.calls != 0 {
		t.Fatalf("expected setup skipped on malformed labels, got %d calls", f.setup.calls)
	}
	record, ok := f.holder.Current().ErrorRecord()
	if !ok || !strings.Contains(record.Message, "invalid labels") {
		t.Fatalf("expected label error recorded, got %+v", record)
	}
}

func TestMalformedLabelOverridesIgnoredOutsideLocalStage(t *testing.T) {
	testlog.Start(t)

	cfg := Config{
		InitialNetwork: network.Mainnet,
		Env:            env.Environment{Stage: env.StageProd, ENSAddress: registryAddr, Labels: "{broken"},
	}
	f := newFixture(t, cfg, network.Mainnet)
	res := f.rec.Pass(context.Background(), network.None())
	if res.Outcome != OutcomeUnchanged || res.Err != nil {
		t.Fatalf("expected unchanged pass, got %q (%v)", res.Outcome, res.Err)
	}
}

func TestTriggerAfterRunReturnsIsIgnored(t *testing.T) {
	testlog.Start(t)

	f := newFixture(t, Config{InitialNetwork: network.Mainnet}, network.Mainnet)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()
	waitFor(t, f.rec.Ready)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	completed := f.rec.Status().Completed
	f.rec.Trigger()
	f.rec.Wait()
	if got := f.rec.Status().Completed; got != completed {
		t.Fatalf("expected no pass after run returned, got %d completed (was %d)", got, completed)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
