// Package daemon runs the route sync loop: it accepts the routing stack
// over FPM, writes routes to APPL_DB, drives warm-restart reconciliation,
// and acknowledges offloaded routes.
package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/newtron-network/fpmsyncd/pkg/config"
	"github.com/newtron-network/fpmsyncd/pkg/fpm"
	"github.com/newtron-network/fpmsyncd/pkg/metrics"
	"github.com/newtron-network/fpmsyncd/pkg/routesync"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
	"github.com/newtron-network/fpmsyncd/pkg/warmstart"
)

// reconcileRetry is the delay before retrying a failed reconciliation.
const reconcileRetry = 5 * time.Second

// Daemon owns every long-lived component. All route processing, response
// handling and reconciliation happen on the Run goroutine.
type Daemon struct {
	cfg   *config.Config
	names routesync.NameResolver

	appl      *sonic.ApplDBClient
	configDB  *sonic.ConfigDBClient
	stateDB   *sonic.StateDBClient
	applState *sonic.ApplStateDBClient

	server  *fpm.Server
	metrics *metrics.Metrics

	coord  *warmstart.Coordinator
	syncer *routesync.Syncer
	ack    *routesync.Acknowledger

	reconcileReq chan struct{}
}

// New creates the daemon and opens the FPM listener.
func New(cfg *config.Config, names routesync.NameResolver) (*Daemon, error) {
	server, err := fpm.Listen(cfg.FPM.Listen)
	if err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:          cfg,
		names:        names,
		appl:         sonic.NewApplDBClient(cfg.Redis.Addr, cfg.Redis.ApplDB),
		configDB:     sonic.NewConfigDBClient(cfg.Redis.Addr, cfg.Redis.ConfigDB),
		stateDB:      sonic.NewStateDBClient(cfg.Redis.Addr, cfg.Redis.StateDB),
		applState:    sonic.NewApplStateDBClient(cfg.Redis.Addr, cfg.Redis.ApplStateDB),
		server:       server,
		metrics:      metrics.New(),
		reconcileReq: make(chan struct{}, 1),
	}, nil
}

// Addr returns the FPM listening address.
func (d *Daemon) Addr() net.Addr {
	return d.server.Addr()
}

// Metrics returns the daemon's collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// RequestReconcile asks Run to end the warm-restart cycle now. It never
// blocks; requests made while one is pending are merged.
func (d *Daemon) RequestReconcile() {
	select {
	case d.reconcileReq <- struct{}{}:
	default:
	}
}

// Run serves until ctx is cancelled or the FPM listener fails.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	for _, c := range []interface{ Connect(context.Context) error }{d.appl, d.configDB, d.stateDB, d.applState} {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", d.cfg.Redis.Addr, err)
		}
	}

	var store sonic.Store = d.appl
	reconcileTimer, err := d.startWarmRestart(ctx)
	if err != nil {
		return err
	}
	if d.coord != nil {
		store = d.coord
	}

	d.syncer = routesync.NewSyncer(d.names, store)
	d.syncer.SetObserver(d.metrics)
	d.ack = routesync.NewAcknowledger(d.server, d.names, d.appl)
	d.ack.SetObserver(d.metrics)
	d.syncer.SetAcknowledger(d.ack)
	d.pollSuppression(ctx)

	var responses <-chan *sonic.Response
	stream, err := d.applState.SubscribeResponses(ctx, sonic.RouteResponseChannel)
	if err != nil {
		util.Logger.Warnf("route responses unavailable, deferred acknowledgments disabled: %v", err)
	} else {
		defer stream.Close()
		responses = stream.Responses()
	}

	var poll <-chan time.Time
	if d.cfg.Offload.PollInterval > 0 {
		ticker := time.NewTicker(d.cfg.Offload.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	if d.cfg.Metrics.Listen != "" {
		go func() {
			if err := d.metrics.Serve(ctx, d.cfg.Metrics.Listen); err != nil {
				util.Logger.Errorf("metrics endpoint: %v", err)
			}
		}()
	}

	d.server.OnConnect(d.metrics.SetPeerConnected)
	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.Serve(ctx) }()
	util.WithField("addr", d.server.Addr().String()).Info("waiting for the routing stack")

	var reconcileC <-chan time.Time
	if reconcileTimer != nil {
		defer reconcileTimer.Stop()
		reconcileC = reconcileTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case buf, ok := <-d.server.Messages():
			if !ok {
				return <-serveErr
			}
			d.syncer.HandleBuffer(ctx, buf)

		case r, ok := <-responses:
			if !ok {
				util.Logger.Warn("route response channel closed")
				responses = nil
				continue
			}
			if err := d.ack.OnResponse(r); err != nil {
				util.WithRoute(r.Key).Errorf("offload ack: %v", err)
			}

		case <-poll:
			d.pollSuppression(ctx)

		case <-reconcileC:
			if !d.reconcile(ctx) {
				reconcileTimer.Reset(reconcileRetry)
			}

		case <-d.reconcileReq:
			if d.coord == nil || !d.coord.InProgress() {
				util.Logger.Info("no warm restart in progress, reconcile request ignored")
				continue
			}
			if d.reconcile(ctx) {
				reconcileTimer.Stop()
			} else {
				reconcileTimer.Reset(reconcileRetry)
			}
		}
	}
}

// startWarmRestart begins a restart cycle when enabled in the config file
// or STATE_DB. The returned timer fires at the reconcile deadline.
func (d *Daemon) startWarmRestart(ctx context.Context) (*time.Timer, error) {
	app := d.cfg.WarmRestart.App
	enabled := d.cfg.WarmRestart.Enabled
	if !enabled {
		on, err := d.stateDB.WarmRestartEnabled(ctx, app)
		if err != nil {
			util.WithField("app", app).Warnf("reading warm restart flag: %v", err)
		}
		enabled = on
	}
	if !enabled {
		d.metrics.SetWarmState(warmstart.Idle)
		return nil, nil
	}

	timeout := d.cfg.WarmRestart.Timer
	if t, err := d.configDB.WarmRestartTimer(ctx, app); err != nil {
		util.WithField("app", app).Warnf("reading warm restart timer: %v", err)
	} else if t > 0 {
		timeout = t
	}

	d.coord = warmstart.NewCoordinator(d.appl, app, sonic.Tables...)
	d.coord.SetRecorder(d.stateDB)
	d.coord.OnStateChange(d.metrics.SetWarmState)
	if err := d.coord.Begin(ctx); err != nil {
		return nil, fmt.Errorf("starting warm restart: %w", err)
	}
	util.WithFields(map[string]interface{}{"app": app, "timer": timeout}).Info("warm restart in progress")
	return time.NewTimer(timeout), nil
}

// reconcile ends the restart cycle and reports whether it completed.
func (d *Daemon) reconcile(ctx context.Context) bool {
	results, err := d.coord.Reconcile(ctx)
	for table, r := range results {
		d.metrics.Reconciled(table, r)
		util.WithTable(table).WithFields(map[string]interface{}{
			"added":     r.Added,
			"updated":   r.Updated,
			"deleted":   r.Deleted,
			"unchanged": r.Unchanged,
		}).Info("table reconciled")
	}
	if err != nil {
		util.Logger.Errorf("warm restart reconcile, retrying in %s: %v", reconcileRetry, err)
		return false
	}
	util.Logger.Info("warm restart reconciled")

	// Unchanged routes produce no programming response, so suppressed mode
	// would never acknowledge them.
	if d.ack.Suppressed() {
		if _, err := d.ack.Replay(ctx); err != nil {
			util.Logger.Errorf("%v", err)
		}
	}
	return true
}

// pollSuppression applies suppress-fib-pending. The config file setting
// forces suppression on; otherwise CONFIG_DB decides.
func (d *Daemon) pollSuppression(ctx context.Context) {
	on, err := d.configDB.SuppressFibPending(ctx)
	if err != nil {
		util.Logger.Warnf("reading suppress-fib-pending: %v", err)
		on = d.ack.Suppressed()
	}
	if err := d.ack.SetSuppressed(ctx, on || d.cfg.Offload.Suppress); err != nil {
		util.Logger.Errorf("%v", err)
	}
}

func (d *Daemon) close() {
	d.server.Close()
	for _, c := range []interface{ Close() error }{d.appl, d.configDB, d.stateDB, d.applState} {
		c.Close()
	}
}
