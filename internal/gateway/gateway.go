// Package gateway wires the ingress pipeline together: config in, ring
// producer, ingress queue, TCP listener, and FIX dispatcher, hosted on the
// scheduler and torn down on SIGINT/SIGTERM.
package gateway

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"ordergateway/internal/config"
	"ordergateway/internal/fixproto"
	"ordergateway/internal/ingress"
	"ordergateway/internal/ipc"
	"ordergateway/internal/monitor"
	"ordergateway/internal/queue"
	"ordergateway/internal/scheduler"
)

// monitorSinkSize bounds the buffered channel between the dispatcher and the
// monitor hub. It is sized generously since a full sink only ever drops
// observability events, never order flow itself.
const monitorSinkSize = 4096

// forceExitTimeout is the safety-net window after a shutdown signal before
// the process is killed outright, per spec §5's "hung shutdown cannot wedge
// the gateway" requirement.
const forceExitTimeout = 3 * time.Second

// Gateway owns the running ingress pipeline for one process lifetime.
type Gateway struct {
	cfg  *config.Gateway
	log  *slog.Logger
	prod *ipc.Producer

	q          *queue.Queue
	listener   *ingress.Listener
	dispatcher *fixproto.Dispatcher
	sched      *scheduler.Scheduler

	hub           *monitor.Hub
	pubsub        *monitor.PubSub
	monitorSrv    *monitor.Server
	monitorCancel context.CancelFunc

	stopping atomic.Bool
}

// New wires a Gateway from cfg. It creates the ring producer immediately —
// startup fails fast (RoleConflict) if another producer already owns it.
func New(cfg *config.Gateway, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	prod, err := ipc.NewProducer(cfg.Ipc.QueueName, ipc.DefaultCapacity, log)
	if err != nil {
		return nil, err
	}

	q := queue.New(cfg.BlockingQueue.Size)
	listener := ingress.New(ingress.Config{
		Port:       cfg.Port,
		MaxEvents:  cfg.Fix.MaxEventSize,
		Backlog:    cfg.Fix.BacklogSize,
		RatePerSec: cfg.Fix.RatePerSec,
		RateBurst:  cfg.Fix.RateBurst,
	}, q, log)
	dispatcher := fixproto.NewDispatcher(q, prod, log)

	sched := scheduler.New(log)
	if err := sched.Register("listener", func() {
		if err := listener.Run(); err != nil {
			log.Error("gateway: listener exited with error", "error", err)
		}
	}, listener.Stop); err != nil {
		_ = prod.Close()
		return nil, err
	}
	if err := sched.Register("dispatcher", dispatcher.Run, func() {}); err != nil {
		_ = prod.Close()
		return nil, err
	}

	gw := &Gateway{
		cfg:        cfg,
		log:        log,
		prod:       prod,
		q:          q,
		listener:   listener,
		dispatcher: dispatcher,
		sched:      sched,
	}

	if cfg.Monitor.Addr != "" {
		if err := gw.setupMonitor(); err != nil {
			_ = prod.Close()
			return nil, err
		}
	}

	return gw, nil
}

// setupMonitor wires the optional read-only order-flow feed: a hub fed
// directly by the dispatcher's monitor sink, mirrored onto redis so a
// second gateway process or external dashboard can observe the same order
// flow, and a websocket server exposing it to operators.
func (g *Gateway) setupMonitor() error {
	hub := monitor.NewHub(g.cfg.Monitor.HubShards, g.log)
	hub.Start()

	pubsub, err := monitor.NewPubSub(g.cfg.Monitor.RedisAddr, g.cfg.Ipc.QueueName, hub, g.log)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	pubsub.Start(ctx)

	srv := monitor.NewServer(hub, g.log)

	sink := make(chan fixproto.ForwardedOrder, monitorSinkSize)
	g.dispatcher.SetMonitorSink(sink)
	go g.forwardToMonitor(ctx, sink, hub, pubsub)

	if err := g.sched.Register("monitor", func() {
		if err := srv.Serve(g.cfg.Monitor.Addr, g.cfg.Monitor.MaxConns); err != nil {
			g.log.Error("gateway: monitor server exited with error", "error", err)
		}
	}, func() { _ = srv.Shutdown() }); err != nil {
		cancel()
		return err
	}

	g.hub = hub
	g.pubsub = pubsub
	g.monitorSrv = srv
	g.monitorCancel = cancel
	return nil
}

// forwardToMonitor translates every ForwardedOrder off the dispatcher's
// sink into an OrderFlowEvent, publishing it to the local hub and mirroring
// it onto redis. It exits when ctx is cancelled at shutdown.
func (g *Gateway) forwardToMonitor(ctx context.Context, sink <-chan fixproto.ForwardedOrder, hub *monitor.Hub, pubsub *monitor.PubSub) {
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-sink:
			if !ok {
				return
			}
			ev := monitor.OrderFlowEvent{
				OrderID:  order.OrderID,
				ClientID: int64(order.ClientID),
				Symbol:   order.Symbol,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: order.Quantity,
			}
			hub.Publish(ev)
			if err := pubsub.Publish(ctx, ev); err != nil {
				g.log.Warn("gateway: monitor redis publish failed", "error", err)
			}
		}
	}
}

// Run starts every worker and blocks until ctx is cancelled or a shutdown
// signal (SIGINT/SIGTERM) arrives, then tears the pipeline down.
func (g *Gateway) Run(ctx context.Context) error {
	g.sched.Start()
	g.log.Info("gateway started", "port", g.cfg.Port, "queue", g.cfg.Ipc.QueueName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		g.log.Info("gateway received shutdown signal", "signal", sig.String())
	}

	return g.Shutdown()
}

// Shutdown stops the listener and dispatcher, releases the ring producer,
// and enforces the safety-net force-exit timer: if graceful shutdown hasn't
// completed within forceExitTimeout, the process is killed outright rather
// than left wedged.
func (g *Gateway) Shutdown() error {
	if !g.stopping.CompareAndSwap(false, true) {
		return nil // already shutting down
	}

	done := make(chan struct{})
	go func() {
		g.sched.Shutdown()
		if g.monitorCancel != nil {
			g.monitorCancel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(forceExitTimeout):
		g.log.Error("gateway: shutdown exceeded safety-net timeout, forcing exit")
		os.Exit(1)
	}

	err := g.prod.Close()
	g.log.Info("gateway stopped")
	return err
}
