package webx

import (
	"strings"
)

// exchangeState is C6's state machine: RecvHead -> Resolving -> Running
// -> Writing -> Closing | Idle (spec.md §4.6).
type exchangeState int

const (
	stateRecvHead exchangeState = iota
	stateResolving
	stateRunning
	stateWriting
	stateClosing
	stateIdle
)

// Chain is the capability handed to before-actions and request
// handlers (spec.md §4.6): calling Proceed continues the chain of
// remaining executing entities; a before-action may instead return its
// own Response to short-circuit.
type Chain struct {
	ex    *exchange
	steps []func(*Request, *Chain) (*Response, error)
	pos   int
}

// Proceed invokes the next entity in the chain (remaining before-
// actions, then the resolved handler), returning whatever it produces.
func (c *Chain) Proceed(req *Request) (*Response, error) {
	if c.pos >= len(c.steps) {
		return nil, newProblem(KindAmbiguousHandler, "chain.proceed() called with no remaining entity")
	}
	step := c.steps[c.pos]
	c.pos++
	return step(req, c)
}

// WriteInterim writes a 1XX response directly on the channel before
// the chain's final response (spec.md §4.6 "Multiple responses").
func (c *Chain) WriteInterim(resp *Response) error {
	return c.ex.writeInterim(resp)
}

// exchange drives one request/response cycle over a connection's
// exchangeConn (spec.md §2 data flow, §4.6). Server.handleConn
// allocates a new *exchange for each request on the connection, unlike
// the teacher, which reuses one *RequestCtx across serveConn's request
// loop (server.go, around the main for-loop).
type exchange struct {
	srv   *Server
	conn  *exchangeConn
	snap  snapshot

	state           exchangeState
	writer          *responseWriter
	interimWritten  bool
	expect100Sent   bool
	bodyStarted     bool
	mustClose       bool
	recoveryCount   int
}

func newExchange(srv *Server, conn *exchangeConn, snap snapshot) *exchange {
	ex := &exchange{srv: srv, conn: conn, snap: snap}
	ex.writer = newResponseWriter(ex)
	return ex
}

// run parses and drives exactly one request/response cycle. The
// returned bool reports whether the connection should continue to the
// next exchange (false means the caller should close conn).
func (ex *exchange) run() (keepAlive bool, err error) {
	ex.state = stateRecvHead
	ex.conn.setReadDeadline(ex.snap.TimeoutRequestHead)

	ph, err := parseHead(ex.conn.reader(), ex.snap.MaxRequestHeadSize)
	if err != nil {
		return false, ex.handleEarlyFailure(err)
	}
	ex.srv.events.emitRequestHeadParsed(ph.method, ph.target)

	if ph.major == 1 && ph.minor == 0 && ex.snap.RejectClientsUsing1_0 {
		return false, ex.handleEarlyFailure(newProblem(KindHTTPVersionRejected, "HTTP/1.0 clients are rejected by configuration"))
	}
	if ph.major != 1 {
		return false, ex.handleEarlyFailure(newProblem(KindHTTPVersionNotSupported, "unsupported HTTP major version"))
	}

	ex.state = stateResolving
	req, err := ex.buildRequest(ph)
	if err != nil {
		return false, ex.handleEarlyFailure(err)
	}

	if ex.snap.AutoContinueExpect100 && req.header.hasToken(hdrExpect, "100-continue") {
		if werr := ex.writeInterim(NewResponse(StatusContinue).MustBuild()); werr != nil {
			ex.srv.logf("webx: writing auto 100-continue: %v", werr)
		}
		ex.expect100Sent = true
	}

	ex.state = stateRunning
	resp, runErr := ex.runChain(req)

	ex.state = stateWriting
	ex.conn.setWriteDeadline(ex.snap.TimeoutResponse)

	if runErr != nil {
		resp = ex.resolveException(runErr, req)
	}
	if resp == nil {
		// handler wrote its own response(s) directly and signaled
		// "already written" (spec.md §4.6); nothing more to do.
		ex.state = stateIdle
		return !ex.mustClose && !req.header.hasToken(hdrConnection, hdrClose), nil
	}

	if werr := ex.writeFinal(req, resp); werr != nil {
		ex.srv.logf("webx: writing final response: %v", werr)
		return false, werr
	}

	if discardErr := req.body.discard(); discardErr != nil {
		return false, discardErr
	}

	ex.state = stateIdle
	if req.header.hasToken(hdrConnection, hdrClose) {
		ex.mustClose = true
	}
	switch {
	case ex.mustClose:
		keepAlive = false
	case ph.minor >= 1:
		keepAlive = true // HTTP/1.1 defaults to persistent
	default:
		keepAlive = ph.header.hasToken(hdrConnection, "keep-alive") // HTTP/1.0 opts in
	}
	return keepAlive, nil
}

// buildRequest turns a parsedHead into a Request, wiring its Body to
// the connection's reader according to Content-Length (spec.md §9 open
// question: inbound chunked decoding is deferred; identity bodies
// only).
func (ex *exchange) buildRequest(ph *parsedHead) (*Request, error) {
	path, query := splitTargetPathQuery(ph.target)
	contentLength := 0
	if cl := ph.header.Get(hdrContentLength); cl != "" {
		n, err := parseContentLength(cl)
		if err != nil {
			return nil, newProblem(KindHeaderParse, "invalid Content-Length")
		}
		contentLength = n
	}

	req := &Request{
		method: ph.method,
		target: ph.target,
		path:   path,
		query:  query,
		major:  ph.major,
		minor:  ph.minor,
		header: ph.header,
	}
	ex.conn.setReadDeadline(ex.snap.TimeoutRequestBody)
	req.body = newBody(ex.conn.reader(), contentLength, func() error {
		return ex.maybeSendExpect100(req)
	})
	return req, nil
}

// maybeSendExpect100 implements the non-auto Expect:100-continue path
// (spec.md §4.6): the first body read triggers a 100 Continue unless
// one was already sent or the config asked for immediate-on-head
// behavior instead.
func (ex *exchange) maybeSendExpect100(req *Request) error {
	if ex.expect100Sent || ex.snap.AutoContinueExpect100 {
		return nil
	}
	if !req.header.hasToken(hdrExpect, "100-continue") {
		return nil
	}
	ex.expect100Sent = true
	return ex.writeInterim(NewResponse(StatusContinue).MustBuild())
}

// runChain resolves before-actions, the route handler, and after-
// actions, in the orders mandated by spec.md §4.5/§4.6.
func (ex *exchange) runChain(req *Request) (*Response, error) {
	segments := splitPathSegments(req.path)
	befores := ex.srv.actions.MatchBefores(segments)
	afters := ex.srv.actions.MatchAfters(segments)

	match, err := ex.srv.routes.Lookup(segments)
	if err != nil {
		return nil, err
	}
	req.bindParams(match.ParamNames, match.ParamValues)

	handler, herr := ResolveHandler(match.Route, req.method, req.ContentType(), req.Accept())
	if herr != nil {
		return nil, herr
	}

	steps := make([]func(*Request, *Chain) (*Response, error), 0, len(befores)+1)
	for _, b := range befores {
		b := b
		steps = append(steps, func(r *Request, c *Chain) (*Response, error) { return b(r, c) })
	}
	steps = append(steps, handler.Func)

	chain := &Chain{ex: ex, steps: steps}
	resp, err := chain.Proceed(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	for _, a := range afters {
		resp = a(req, resp)
		if resp == nil {
			panic(newProblem(KindIllegalResponseBody, "after-action returned nil response"))
		}
	}
	return resp, nil
}

// resolveException drives the exception chain (C8) for a failure
// raised anywhere above, per spec.md §4.8.
func (ex *exchange) resolveException(err error, req *Request) *Response {
	ex.recoveryCount++
	if ex.recoveryCount > ex.snap.MaxErrorRecoveryAttempts {
		ex.srv.logf("webx: exceeded max error recovery attempts, forcing 500")
		return NewResponse(StatusInternalServerError).MustBuild()
	}
	var r *Request
	if ex.state != stateRecvHead {
		r = req
	}
	return ex.srv.exceptions.Handle(err, r, ex.snap)
}

// handleEarlyFailure handles a Problem raised before a Request could
// be constructed (request argument is nil per spec.md §4.8).
func (ex *exchange) handleEarlyFailure(err error) error {
	resp := ex.resolveException(err, nil)
	ex.state = stateWriting
	ex.conn.setWriteDeadline(ex.snap.TimeoutResponse)
	return ex.writeFinal(nil, resp)
}

func (ex *exchange) writeInterim(resp *Response) error {
	if !resp.IsInterim() {
		return newProblem(KindIllegalResponseBody, "writeInterim called with a non-1XX response")
	}
	return ex.writer.writeInterim(resp)
}

func (ex *exchange) writeFinal(req *Request, resp *Response) error {
	if resp.MustClose() {
		ex.mustClose = true
	}
	major, minor := 1, 1
	versionKnown := req != nil
	if req != nil {
		major, minor = req.major, req.minor
	}
	headMethod := req != nil && req.method == "HEAD"
	n, err := ex.writer.writeFinal(resp, major, minor, versionKnown, headMethod)
	ex.srv.events.emitResponseSent(resp.StatusCode(), n)
	return err
}

func splitPathSegments(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
