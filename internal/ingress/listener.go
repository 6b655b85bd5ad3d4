// Package ingress hosts C1, the epoll-driven TCP listener that accepts
// client connections and pushes raw reads into the ingress queue.
package ingress

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"ordergateway/internal/fixproto"
	"ordergateway/internal/gwerr"
	"ordergateway/internal/queue"
)

const (
	readBufSize  = 4096
	epollTimeout = 1000 // ms
)

// Listener is C1: it owns the listen socket and epoll instance, and pushes
// RawPacket{clientId, bytes} into an ingress queue for the dispatcher.
type Listener struct {
	port      int
	maxEvents int
	backlog   int
	out       *queue.Queue
	log       *slog.Logger
	limiters  *connLimiters
	framers   *connFramers

	serverFd int
	epollFd  int
	stop     atomic.Bool
}

// Config carries the subset of gateway configuration the listener needs.
type Config struct {
	Port       int
	MaxEvents  int
	Backlog    int
	RatePerSec float64 // per-connection read rate limit; 0 disables
	RateBurst  int
}

// New constructs a Listener bound to out but does not yet touch the network.
func New(cfg Config, out *queue.Queue, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 64
	}
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = 128
	}
	return &Listener{
		port:      cfg.Port,
		maxEvents: maxEvents,
		backlog:   backlog,
		out:       out,
		log:       log,
		limiters:  newConnLimiters(cfg.RatePerSec, cfg.RateBurst),
		framers:   newConnFramers(),
	}
}

// Stop requests the event loop exit at its next epoll_wait timeout.
func (l *Listener) Stop() { l.stop.Store(true) }

// Run performs setupServer, the event loop, and shutdown in sequence,
// mirroring the reference listener's run() (setupServer/eventLoop/shutdown).
// It blocks until Stop is called (or setup fails) and returns any setup
// error; the ingress queue is closed on the way out either way.
func (l *Listener) Run() error {
	if err := l.setupServer(); err != nil {
		l.out.Close()
		return err
	}
	l.eventLoop()
	l.shutdown()
	return nil
}

func (l *Listener) setupServer() error {
	// Non-blocking, so handleAccept's accept loop ends at EAGAIN instead of
	// blocking the event loop once the pending connections are taken.
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return gwerr.New(gwerr.BindFailed, "socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return gwerr.New(gwerr.BindFailed, "setsockopt", err)
	}

	addr := &unix.SockaddrInet4{Port: l.port}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return gwerr.New(gwerr.BindFailed, "bind", err)
	}
	if err := unix.Listen(fd, l.backlog); err != nil {
		_ = unix.Close(fd)
		return gwerr.New(gwerr.BindFailed, "listen", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		_ = unix.Close(fd)
		return gwerr.New(gwerr.BindFailed, "epoll_create1", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(fd)
		return gwerr.New(gwerr.BindFailed, "epoll_ctl add listener", err)
	}

	l.serverFd = fd
	l.epollFd = epfd
	l.log.Info("ingress listener bound", "port", l.port, "backlog", l.backlog)
	return nil
}

func (l *Listener) eventLoop() {
	events := make([]unix.EpollEvent, l.maxEvents)
	for !l.stop.Load() {
		n, err := unix.EpollWait(l.epollFd, events, epollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			l.log.Warn("ingress epoll_wait error", "error", err)
			continue
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == l.serverFd {
				l.handleAccept()
			} else {
				l.handleRead(fd)
			}
		}
	}
}

func (l *Listener) handleAccept() {
	for {
		clientFd, _, err := unix.Accept(l.serverFd)
		if err != nil {
			if err != unix.EAGAIN {
				l.log.Warn("ingress accept error", "error", err)
			}
			return
		}
		if err := unix.SetNonblock(clientFd, true); err != nil {
			l.log.Warn("ingress set nonblock failed", "error", err)
			_ = unix.Close(clientFd)
			continue
		}

		ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(clientFd)}
		if err := unix.EpollCtl(l.epollFd, unix.EPOLL_CTL_ADD, clientFd, &ev); err != nil {
			l.log.Warn("ingress epoll_ctl add client failed", "error", err)
			_ = unix.Close(clientFd)
			continue
		}
		l.limiters.onAccept(clientFd)
		l.log.Info("ingress client connected", "fd", clientFd)
	}
}

// handleRead drains the client socket to EAGAIN, since it is registered
// edge-triggered: a single read per readiness event would stall the
// connection the moment more than one read's worth of bytes has arrived.
func (l *Listener) handleRead(fd int) {
	buf := make([]byte, readBufSize)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			if !l.limiters.allow(fd) {
				l.log.Warn("ingress rate limit exceeded, closing connection", "fd", fd)
				l.closeClient(fd)
				return
			}
			msgs, ferr := l.framers.feed(fd, buf[:n])
			for _, m := range msgs {
				pkt := fixproto.RawPacket{ClientID: fd, Bytes: m}
				if pushErr := l.out.Push(pkt); pushErr != nil {
					return // queue closed underneath us during shutdown
				}
			}
			if ferr != nil {
				l.log.Warn("ingress frame buffer overflow, closing connection", "fd", fd, "error", ferr)
				l.closeClient(fd)
				return
			}
		}
		if err == unix.EAGAIN {
			return
		}
		if err != nil || n <= 0 {
			l.closeClient(fd)
			return
		}
	}
}

func (l *Listener) closeClient(fd int) {
	_ = unix.EpollCtl(l.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	_ = unix.Close(fd)
	l.limiters.onClose(fd)
	if tail := l.framers.onClose(fd); tail != nil {
		if pushErr := l.out.Push(fixproto.RawPacket{ClientID: fd, Bytes: tail}); pushErr != nil {
			l.log.Warn("ingress: dropped final buffered message, queue closed", "fd", fd)
		}
	}
	l.log.Info("ingress client disconnected", "fd", fd)
}

func (l *Listener) shutdown() {
	_ = unix.Close(l.epollFd)
	_ = unix.Close(l.serverFd)
	l.out.Close()
	l.log.Info("ingress listener stopped")
}
