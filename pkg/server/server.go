package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
	"k8s.io/kubernetes/pkg/util/async"
	"k8s.io/utils/exec"

	netwrappers "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/net"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/compiler"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/config"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
	cmdlinedriver "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/driver/cmdline"
	netlinkdriver "github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/driver/netlink"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
)

const burstSyncs = 2

// Server structure defines data for server
type Server struct {
	Options *Options

	format     config.Format
	compiler   compiler.Compiler
	reconciler *tc.Reconciler
	registry   *prometheus.Registry
	syncRunner *async.BoundedFrequencyRunner

	netlinkProvider netwrappers.NetlinkProvider
	tcFactory       tc.Factory

	mu sync.Mutex // protects the following fields
	// runCtx is the context of Run, syncs requested before Run use context.Background
	runCtx  context.Context
	lastErr error
}

// NewServer creates a new *Server instance
func NewServer(o *Options) (*Server, error) {
	format, err := o.Validate()
	if err != nil {
		return nil, err
	}
	defaultSpeed, err := o.defaultSpeed()
	if err != nil {
		return nil, err
	}

	if o.StateDir != "" && o.stateStore == nil {
		// create state directory if it does not exist
		if err := os.MkdirAll(o.StateDir, 0700); err != nil {
			return nil, errors.Wrapf(err, "failed to create state directory %s", o.StateDir)
		}
		o.stateStore = tc.NewActuatorFileWriterImpl(o.StateDir, klog.NewKlogr().WithName("actuator-file-writer"))
	}

	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Options:         o,
		format:          format,
		registry:        registry,
		netlinkProvider: netwrappers.NewNetlinkProviderImpl(),
		tcFactory:       o.tcFactory,
		runCtx:          context.Background(),
	}
	if s.tcFactory == nil {
		// use builtin method if unspecified
		s.tcFactory = s.createTC
	}
	if o.ifIndexFn == nil {
		o.ifIndexFn = s.ifIndex
	}
	if o.linkSpeedFn == nil {
		o.linkSpeedFn = netwrappers.NewEthtoolLinkSpeedProvider().LinkSpeed
	}

	s.compiler = compiler.NewCompilerImpl(generator.NewSimpleTCGenerator(o.ifIndexFn), o.linkSpeedFn,
		defaultSpeed, klog.NewKlogr().WithName("compiler"))
	s.reconciler = tc.NewReconciler(
		tc.NewActuatorTCImpl(s.tcFactory, klog.NewKlogr().WithName("tc-actuator")),
		o.stateStore, klog.NewKlogr().WithName("reconciler"))
	s.syncRunner = async.NewBoundedFrequencyRunner(
		"sync-runner", s.syncQoS, o.MinSyncPeriod, o.ResyncPeriod, burstSyncs)

	return s, nil
}

// Registry returns the metrics registry of the server
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Compile loads the configuration file and compiles it
func (s *Server) Compile() (*compiler.Result, error) {
	cfg, err := config.LoadFile(s.Options.ConfigPath, s.format)
	if err != nil {
		return nil, err
	}
	return s.compiler.Compile(cfg)
}

// SyncOnce compiles the configuration file and reconciles the tc state of all its bindings.
// The tc state is left untouched if the configuration does not compile.
func (s *Server) SyncOnce(ctx context.Context) (err error) {
	now := time.Now()
	result := "ok"
	defer func() {
		SyncDuration.Observe(time.Since(now).Seconds())
		SyncsTotal.WithLabelValues(result).Inc()
		klog.V(4).InfoS("syncQoS", "execution time", time.Since(now), "result", result)
	}()

	res, err := s.Compile()
	if err != nil {
		result = "config_error"
		return err
	}
	Bindings.Set(float64(len(res.Objects)))
	klog.InfoS("configuration compiled", "pass", res.Pass, "bindings", len(res.Objects),
		"warnings", len(res.Warnings))

	if err := s.reconciler.Reconcile(ctx, res.Objects); err != nil {
		result = "apply_error"
		return err
	}
	return nil
}

// LastError returns the error of the last sync requested through Sync, nil if it succeeded
func (s *Server) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Sync requests to Run syncRunner
func (s *Server) Sync() {
	klog.V(5).Infof("Sync Requested")
	s.syncRunner.Run()
}

// syncQoS is run by syncRunner
func (s *Server) syncQoS() {
	klog.Infof("syncQoS")
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	err := s.SyncOnce(ctx)
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				klog.ErrorS(fe, "invalid configuration, keeping the current tc state")
			}
		} else {
			klog.ErrorS(err, "sync failed")
		}
	}

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Run starts Server, runs until provided context is done
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	defer watcher.Close()
	// watch the directory, editors and config management replace the file
	if err := watcher.Add(filepath.Dir(s.Options.ConfigPath)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", s.Options.ConfigPath)
	}
	go s.watchConfig(ctx, watcher)

	if s.Options.MetricsAddress != "" {
		go s.serveMetrics(ctx)
	}

	klog.Infof("Started qos-policy-tc")
	s.Sync()
	s.syncRunner.Loop(ctx.Done())
	return nil
}

// watchConfig requests a sync on every change of the configuration file until ctx is done
func (s *Server) watchConfig(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.Options.ConfigPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op == fsnotify.Chmod {
				continue
			}
			klog.V(4).InfoS("configuration file changed", "path", event.Name, "op", event.Op.String())
			s.Sync()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			klog.ErrorS(err, "config watcher error")
		}
	}
}

func (s *Server) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	srv := &http.Server{
		Addr:              s.Options.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	klog.InfoS("serving metrics", "address", s.Options.MetricsAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		klog.ErrorS(err, "metrics server failed")
	}
}

// ifIndex returns the index of the link named name
func (s *Server) ifIndex(name string) (int, error) {
	lnk, err := s.netlinkProvider.LinkByName(name)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get link %s", name)
	}
	return lnk.Attrs().Index, nil
}

// createTC creates a new tc.TC for netDev given the tc driver type
func (s *Server) createTC(netDev string) (tc.TC, error) {
	switch s.Options.TCDriver {
	case TCDriverNetlink:
		lnk, err := s.netlinkProvider.LinkByName(netDev)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get link %s", netDev)
		}
		return netlinkdriver.NewTcNetlinkImpl(
			lnk, klog.NewKlogr().WithName("tc-netlink-driver"), s.netlinkProvider), nil
	case TCDriverCmdline:
		return cmdlinedriver.NewTcCmdLineImpl(
			netDev, klog.NewKlogr().WithName("tc-cmdline-driver"), exec.New()), nil
	default:
		return nil, fmt.Errorf("unknown TC driver: %s", s.Options.TCDriver)
	}
}
