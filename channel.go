package webx

import (
	"bufio"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// exchangeConn is C1: scoped ownership of one accepted socket, with
// half-close and idempotent close/shutdown, pooled bufio Reader/Writer,
// and timed reads (spec.md §4.1). Adapted from the teacher's
// server.go serveConn, which keeps the bufio Reader/Writer as local
// variables acquired from s.readerPool/writerPool around the accept
// loop's per-connection goroutine; here they are fields on a
// standalone value so the exchange state machine (C6) can hold one
// across multiple request/response cycles on the same connection.
type exchangeConn struct {
	c      net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	s      *Server

	mu           sync.Mutex
	inputOpen    bool
	outputOpen   bool
	closed       bool
}

func newExchangeConn(s *Server, c net.Conn, snap snapshot) *exchangeConn {
	ec := &exchangeConn{s: s, c: c, inputOpen: true, outputOpen: true}
	ec.br = acquireBufioReader(s, c, snap)
	ec.bw = acquireBufioWriter(s, c, snap)
	return ec
}

func (ec *exchangeConn) reader() *bufio.Reader { return ec.br }
func (ec *exchangeConn) writer() *bufio.Writer { return ec.bw }

func (ec *exchangeConn) inputOpenState() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.inputOpen
}

func (ec *exchangeConn) outputOpenState() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.outputOpen
}

func (ec *exchangeConn) isClosed() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.closed
}

// setReadDeadline/setWriteDeadline translate spec.md §4.1's "each
// operation takes a deadline" into the stdlib's absolute-time net.Conn
// deadlines.
func (ec *exchangeConn) setReadDeadline(d time.Duration) {
	if d <= 0 {
		_ = ec.c.SetReadDeadline(time.Time{})
		return
	}
	_ = ec.c.SetReadDeadline(time.Now().Add(d))
}

func (ec *exchangeConn) setWriteDeadline(d time.Duration) {
	if d <= 0 {
		_ = ec.c.SetWriteDeadline(time.Time{})
		return
	}
	_ = ec.c.SetWriteDeadline(time.Now().Add(d))
}

// shutdownInput half-closes the read side via shutdown(2) SHUT_RD,
// grounded on golang.org/x/sys/unix (kept from the teacher's go.mod,
// repurposed from its original proxy-dialer use to this engine's
// connection-lifecycle concern). Idempotent; any error other than
// "already closed" is logged at warning level (spec.md §4.1).
func (ec *exchangeConn) shutdownInput() {
	ec.mu.Lock()
	if !ec.inputOpen {
		ec.mu.Unlock()
		return
	}
	ec.inputOpen = false
	ec.mu.Unlock()

	if tc, ok := ec.c.(syscallConn); ok {
		raw, err := tc.SyscallConn()
		if err == nil {
			_ = raw.Control(func(fd uintptr) {
				if serr := unix.Shutdown(int(fd), unix.SHUT_RD); serr != nil && serr != unix.ENOTCONN {
					ec.s.logf("webx: shutdown(SHUT_RD) on %s: %v", ec.c.RemoteAddr(), serr)
				}
			})
		}
	}
}

// shutdownOutput half-closes the write side via shutdown(2) SHUT_WR.
func (ec *exchangeConn) shutdownOutput() {
	ec.mu.Lock()
	if !ec.outputOpen {
		ec.mu.Unlock()
		return
	}
	ec.outputOpen = false
	ec.mu.Unlock()

	if tc, ok := ec.c.(syscallConn); ok {
		raw, err := tc.SyscallConn()
		if err == nil {
			_ = raw.Control(func(fd uintptr) {
				if serr := unix.Shutdown(int(fd), unix.SHUT_WR); serr != nil && serr != unix.ENOTCONN {
					ec.s.logf("webx: shutdown(SHUT_WR) on %s: %v", ec.c.RemoteAddr(), serr)
				}
			})
		}
	}
}

type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// close idempotently releases the connection and its pooled
// reader/writer back to the Server.
func (ec *exchangeConn) close() error {
	ec.mu.Lock()
	if ec.closed {
		ec.mu.Unlock()
		return nil
	}
	ec.closed = true
	ec.inputOpen = false
	ec.outputOpen = false
	ec.mu.Unlock()

	releaseBufioReader(ec.s, ec.br)
	releaseBufioWriter(ec.s, ec.bw)
	err := ec.c.Close()
	if err != nil && !isAlreadyClosed(err) {
		ec.s.logf("webx: close %s: %v", ec.c.RemoteAddr(), err)
	}
	return nil
}

// forceClose is called by idleConnList.closeAll and the supervisor's
// kill() path: an immediate, no-grace close from outside the
// connection's own exchange-driving goroutine.
func (ec *exchangeConn) forceClose() {
	_ = ec.close()
}

func isAlreadyClosed(err error) bool {
	return err == net.ErrClosed
}

// readHeadUntil reads from br until the "\r\n\r\n" terminator or
// maxSize bytes have been buffered, whichever comes first, returning
// the raw head bytes including the terminator. Adapted from the
// teacher's header.go line-at-a-time scanning (readRawHeaders),
// generalized here into a single delimiter search since the head
// parser (C2) re-splits the result into lines itself.
func readHeadUntil(br *bufio.Reader, maxSize int) ([]byte, error) {
	want := 1
	for {
		b, err := br.Peek(want)
		if idx := indexHeaderEnd(b); idx >= 0 {
			out := make([]byte, idx+4)
			if _, rerr := readFull(br, out); rerr != nil {
				return nil, rerr
			}
			return out, nil
		}
		if err != nil {
			if len(b) > 0 {
				// peer closed mid-head: a partial, unterminated head.
				return nil, newProblem(KindUnexpectedEndOfStream, "connection closed before request head terminator")
			}
			return nil, err
		}
		if want >= maxSize {
			return nil, newProblem(KindHeadSizeExceeded, "request head exceeds configured maximum")
		}
		want++
	}
}

// indexHeaderEnd finds "\r\n\r\n" within b, or -1 if not present.
func indexHeaderEnd(b []byte) int {
	for i := 0; i+3 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' && b[i+2] == '\r' && b[i+3] == '\n' {
			return i
		}
	}
	return -1
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
