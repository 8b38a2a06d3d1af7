package webx

import (
	"net"
	"net/http"
	"testing"
	"time"
)

// startLiveServer binds cfg's Server to an ephemeral loopback port via
// ServeListener (the same path an embedder handing in a pre-bound
// listener takes), returning the Server and its base URL.
func startLiveServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	s := NewServer(cfg)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := s.ServeListener(ln)
	if err != nil {
		t.Fatalf("ServeListener: %v", err)
	}
	return s, "http://" + addr.String()
}

// TestServerStopWaitsForInFlightExchange locks in the Stop fix: before
// it, Stop returned as soon as the listener's accept loop exited,
// regardless of exchanges still running inside handleConn. A handler
// that blocks until told to proceed lets the test observe that Stop
// does not return until the handler actually finishes.
func TestServerStopWaitsForInFlightExchange(t *testing.T) {
	s := NewServer(Config{Logger: NewDiscardLogger()})
	route, err := s.Add("/slow")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	started := make(chan struct{})
	proceed := make(chan struct{})
	if err := route.AddHandler(&Handler{
		Method:   "GET",
		Consumes: nothingAndAll(),
		Produces: nothingAndAll(),
		Func: func(r *Request, c *Chain) (*Response, error) {
			close(started)
			<-proceed
			return Text("done").Build()
		},
	}); err != nil {
		t.Fatalf("AddHandler: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := s.ServeListener(ln)
	if err != nil {
		t.Fatalf("ServeListener: %v", err)
	}

	clientDone := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + addr.String() + "/slow")
		if err != nil {
			clientDone <- err
			return
		}
		defer resp.Body.Close()
		clientDone <- nil
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	// Let the handler keep running for a bit after Stop begins, so a
	// Stop that (incorrectly) returns immediately is distinguishable
	// from one that actually waits.
	go func() {
		time.Sleep(150 * time.Millisecond)
		close(proceed)
	}()

	stopStart := time.Now()
	if err := s.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	elapsed := time.Since(stopStart)

	if elapsed < 100*time.Millisecond {
		t.Fatalf("Stop returned after %v, before the in-flight handler finished (expected >=100ms)", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("Stop took %v, far longer than the handler actually needed", elapsed)
	}

	if err := <-clientDone; err != nil {
		t.Fatalf("client request failed: %v", err)
	}
}

// TestServerStopForceClosesIdleConnectionAfterGrace covers the other
// half of Stop's contract: a connection sitting idle between requests
// (not mid-exchange) must not make Stop block for the full graceful
// window — idleConnList.closeAll forces it shut once the in-flight
// wait is satisfied.
func TestServerStopForceClosesIdleConnectionAfterGrace(t *testing.T) {
	s, base := startLiveServer(t, Config{Logger: NewDiscardLogger()})
	addr := base[len("http://"):]

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// No request is ever written: the connection sits in handleConn's
	// Peek(1) wait, tracked by s.idle, with nothing in s.inflight.
	time.Sleep(20 * time.Millisecond)

	stopStart := time.Now()
	if err := s.Stop(50 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(stopStart); elapsed > time.Second {
		t.Fatalf("Stop took %v waiting on a connection with nothing in flight", elapsed)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the idle connection to be closed by Stop")
	}
}

// TestServerMaxConnsPerIPRejectsOverLimit covers C9's connlimit path
// (acceptLoop's perIPConns check), previously untested by any file in
// this module.
func TestServerMaxConnsPerIPRejectsOverLimit(t *testing.T) {
	s, base := startLiveServer(t, Config{Logger: NewDiscardLogger(), MaxConnsPerIP: 1})
	defer s.Kill()
	addr := base[len("http://"):]

	held, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial (held): %v", err)
	}
	defer held.Close()
	// Give acceptLoop a moment to register the held connection's IP
	// before the second dial races it.
	time.Sleep(20 * time.Millisecond)

	second, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial (second): %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err == nil {
		t.Fatal("expected the over-limit connection to be closed by the server")
	}
}

// TestServerKillReturnsImmediatelyWithNoGracePeriod covers Kill's
// Stop(0) contract: no waiting, even with an exchange in flight.
func TestServerKillReturnsImmediatelyWithNoGracePeriod(t *testing.T) {
	s := NewServer(Config{Logger: NewDiscardLogger()})
	route, err := s.Add("/slow")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := route.AddHandler(&Handler{
		Method:   "GET",
		Consumes: nothingAndAll(),
		Produces: nothingAndAll(),
		Func: func(r *Request, c *Chain) (*Response, error) {
			time.Sleep(2 * time.Second)
			return Text("done").Build()
		},
	}); err != nil {
		t.Fatalf("AddHandler: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := s.ServeListener(ln)
	if err != nil {
		t.Fatalf("ServeListener: %v", err)
	}

	go func() {
		resp, err := http.Get("http://" + addr.String() + "/slow")
		if err == nil {
			resp.Body.Close()
		}
	}()
	time.Sleep(50 * time.Millisecond)

	killStart := time.Now()
	if err := s.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if elapsed := time.Since(killStart); elapsed > 500*time.Millisecond {
		t.Fatalf("Kill took %v, expected to return with no grace period", elapsed)
	}
}
