package webx

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/valyala/tcplisten"
)

// Server is C9: the embeddable supervisor described in spec.md §4.9
// and §6 ("server.add/.before/.after/.exception_handler/.events/
// .start/.stop/.kill"). Adapted from the teacher's Server (server.go):
// same pooled-buffer/connection-counting/idle-list/date-updater
// machinery, rebound from fasthttp's RequestHandler to this engine's
// route tree + action tree + exception chain + resolver pipeline.
type Server struct {
	cfg Config

	routes     *RouteTree
	actions    *ActionTree
	exceptions *ExceptionChain
	events     *EventHub

	date dateUpdater
	pool workerPool

	readerPool sync.Pool
	writerPool sync.Pool

	perIPConns perIPConnCounter
	idle       *idleConnList

	// inflight counts exchanges currently executing inside handleConn's
	// run() call, so Stop can wait for them to finish instead of
	// returning as soon as the listener stops accepting (spec.md §4.9:
	// "waits up to D for them to complete, then forcibly closes
	// remaining channels").
	inflight sync.WaitGroup

	mu       sync.Mutex
	ln       net.Listener
	stopping bool
	doneCh   chan struct{}
}

// NewServer constructs a Server from cfg, wiring the route/action
// trees, exception chain, and event hub an embedder will register
// against before calling Start.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = NewDiscardLogger()
	}
	s := &Server{
		cfg:        cfg,
		routes:     NewRouteTree(),
		actions:    NewActionTree(),
		exceptions: NewExceptionChain(),
		events:     NewEventHub(),
		idle:       newIdleConnList(),
	}
	return s
}

// Add registers a route pattern, returning its *Route for handler
// registration (spec.md §6 "server.add(pattern, handler...)").
func (s *Server) Add(pattern string) (*Route, error) {
	return s.routes.Add(pattern)
}

// Before registers a before-action (spec.md §6 "server.before").
func (s *Server) Before(pattern string, fn BeforeAction) error {
	return s.actions.Before(pattern, fn)
}

// After registers an after-action (spec.md §6 "server.after").
func (s *Server) After(pattern string, fn AfterAction) error {
	return s.actions.After(pattern, fn)
}

// ExceptionHandler appends to the exception chain (spec.md §6
// "server.exception_handler").
func (s *Server) ExceptionHandler(h ExceptionHandler) {
	s.exceptions.Append(h)
}

// Events exposes the ResponseSent/RequestHeadParsed emitter (spec.md
// §6 "server.events()").
func (s *Server) Events() *EventHub { return s.events }

func (s *Server) logf(format string, args ...interface{}) {
	s.cfg.Logger.Printf(format, args...)
}

// Start binds addr (or a system-picked port if addr's port is ":0" or
// empty) and begins accepting connections, sampling Config into the
// frozen snapshot consulted by every exchange on this Server for the
// rest of its life (spec.md §5 "Configuration is a frozen snapshot
// sampled at exchange start" — sampled once here at the connection
// level, since per-exchange Config changes are not a registration-API
// feature this engine exposes).
func (s *Server) Start(addr string) (net.Addr, error) {
	cfg := tcplisten.Config{
		ReusePort:   true,
		DeferAccept: true,
		FastOpen:    true,
	}
	ln, err := cfg.NewListener("tcp4", addr)
	if err != nil {
		// tcplisten requires SO_REUSEPORT support; fall back to a plain
		// listener on platforms/environments where that is unavailable
		// (e.g. sandboxed test runners), matching the teacher's own
		// reuseport package being opt-in rather than mandatory.
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
	}
	return s.serveListener(ln)
}

// ServeListener begins accepting on an already-bound listener (e.g.
// one handed in by systemd socket activation), for embedders that
// manage binding themselves.
func (s *Server) ServeListener(ln net.Listener) (net.Addr, error) {
	return s.serveListener(ln)
}

func (s *Server) serveListener(ln net.Listener) (net.Addr, error) {
	s.mu.Lock()
	s.ln = ln
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	snap := s.cfg.snapshot()
	s.date.start()

	s.pool = workerPool{
		logger:                s.cfg.Logger,
		maxWorkersCount:       snap.Concurrency,
		maxIdleWorkerDuration: 10 * time.Second,
		workerFunc: func(c net.Conn) {
			s.handleConn(c, snap)
		},
	}
	s.pool.start()

	go s.acceptLoop(ln)
	return ln.Addr(), nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.doneCh)
	for {
		c, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return
			}
			s.logf("webx: accept: %v", err)
			continue
		}
		if s.cfg.MaxConnsPerIP > 0 {
			if ip, ok := connIPv4(c); ok {
				if n := s.perIPConns.register(ip); n > s.cfg.MaxConnsPerIP {
					s.perIPConns.unregister(ip)
					_ = c.Close()
					continue
				}
			}
		}
		if !s.pool.serve(c) {
			s.logf("webx: worker pool saturated, rejecting connection from %s", c.RemoteAddr())
			_ = c.Close()
		}
	}
}

// handleConn drives successive exchanges on c until the connection
// should close (spec.md §2: "Loop exits when Connection: close has
// been sent/received, a stream shutdown observed, the configured idle
// timeout elapses, or the supervisor is stopping").
func (s *Server) handleConn(c net.Conn, snap snapshot) {
	ec := newExchangeConn(s, c, snap)
	defer func() {
		s.idle.remove(ec)
		ec.forceClose()
		if ip, ok := connIPv4(c); ok && s.cfg.MaxConnsPerIP > 0 {
			s.perIPConns.unregister(ip)
		}
	}()

	for {
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			return
		}

		s.idle.add(ec)
		ec.setReadDeadline(snap.TimeoutIdleConnection)
		_, err := ec.reader().Peek(1)
		s.idle.remove(ec)
		if err != nil {
			if err == io.EOF {
				return
			}
			return
		}

		s.inflight.Add(1)
		ex := newExchange(s, ec, snap)
		keepAlive, err := ex.run()
		s.inflight.Done()
		if err != nil {
			s.logf("webx: exchange error on %s: %v", c.RemoteAddr(), err)
			return
		}
		if !keepAlive {
			ec.shutdownOutput()
			return
		}
	}
}

// Stop gracefully stops the supervisor (spec.md §4.9): stop accepting
// new connections, wait up to graceful for in-flight exchanges to
// finish on their own, then force-close the connections that are idle
// at that moment. A connection still inside an exchange is not closed
// here; its handleConn loop closes it once that exchange returns,
// since the server is then stopping. Waiting on doneCh alone (the accept loop's own
// exit signal) is not enough: acceptLoop returns as soon as ln.Close()
// makes Accept error out, which says nothing about exchanges already
// running inside handleConn, so the wait is on s.inflight instead.
func (s *Server) Stop(graceful time.Duration) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	ln := s.ln
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	s.pool.stop()
	s.date.stop()

	inflightDone := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(inflightDone)
	}()
	select {
	case <-inflightDone:
	case <-time.After(graceful):
	}

	s.idle.closeAll()
	return nil
}

// Kill is Stop with no grace period: it stops accepting and closes idle
// connections at once. A connection in the middle of an exchange is not
// closed; it closes when its current exchange returns.
func (s *Server) Kill() error {
	return s.Stop(0)
}

// acquireBufioReader sizes the reader from snap, not the live s.cfg:
// snap.ReadBufferSize has already been reconciled against
// snap.MaxRequestHeadSize by Config.snapshot so a request head up to
// the configured maximum always fits in one Peek (bufio.Reader's
// buffer size is fixed at construction and never grows).
func acquireBufioReader(s *Server, c net.Conn, snap snapshot) *bufio.Reader {
	if v := s.readerPool.Get(); v != nil {
		r := v.(*bufio.Reader)
		r.Reset(c)
		return r
	}
	return bufio.NewReaderSize(c, snap.ReadBufferSize)
}

func releaseBufioReader(s *Server, r *bufio.Reader) {
	s.readerPool.Put(r)
}

func acquireBufioWriter(s *Server, c net.Conn, snap snapshot) *bufio.Writer {
	if v := s.writerPool.Get(); v != nil {
		w := v.(*bufio.Writer)
		w.Reset(c)
		return w
	}
	return bufio.NewWriterSize(c, snap.WriteBufferSize)
}

func releaseBufioWriter(s *Server, w *bufio.Writer) {
	s.writerPool.Put(w)
}
