package webx

// ExceptionHandler is one link in the exception chain (spec.md §4.8):
// it either returns a Response or calls chain.Proceed to delegate to
// the next handler. req is nil if the failure occurred before head
// parsing finished.
type ExceptionHandler func(err error, req *Request, chain *ExceptionChainCall) *Response

// ExceptionChainCall is the delegation capability handed to each
// ExceptionHandler, mirroring Chain's role in the main request chain
// (spec.md §4.6/§4.8 share one "chain.proceed()" idiom).
type ExceptionChainCall struct {
	handlers []ExceptionHandler
	pos      int
	err      error
	req      *Request
}

// Proceed invokes the next handler in the chain, ending at the base
// handler which never throws and always returns a Response.
func (c *ExceptionChainCall) Proceed() *Response {
	h := c.handlers[c.pos]
	c.pos++
	return h(c.err, c.req, c)
}

// ExceptionChain is the ordered, registration-order chain of
// ExceptionHandlers terminated by a base handler (spec.md §4.8).
// Grounded structurally on the action/before-action chain model
// (C5/C6), generalized here to a flat list since exception handlers
// are not pattern-bound.
type ExceptionChain struct {
	handlers []ExceptionHandler
}

func NewExceptionChain() *ExceptionChain {
	return &ExceptionChain{}
}

// Append adds h to the end of the chain, before the always-present
// base handler.
func (ec *ExceptionChain) Append(h ExceptionHandler) {
	ec.handlers = append(ec.handlers, h)
}

// Handle drives err through the chain for one exchange. Any handler
// that panics is treated as "a handler that throws" (spec.md §4.8):
// it triggers an internal 500 and is logged, rather than propagating
// further and crashing the connection's goroutine.
func (ec *ExceptionChain) Handle(err error, req *Request, snap snapshot) (resp *Response) {
	chain := &ExceptionChainCall{
		handlers: append(append([]ExceptionHandler{}, ec.handlers...), baseExceptionHandler(snap)),
		err:      err,
		req:      req,
	}
	defer func() {
		if rec := recover(); rec != nil {
			snap.Logger.Printf("webx: exception handler panicked, falling back to 500: %v", rec)
			resp = NewResponse(StatusInternalServerError).MustBuild()
		}
	}()
	return chain.Proceed()
}

// baseExceptionHandler is the always-present terminal described in
// spec.md §4.8: it never throws, honors an attached advisory response,
// implements implementMissingOptions, and otherwise falls back to 500.
func baseExceptionHandler(snap snapshot) ExceptionHandler {
	return func(err error, req *Request, _ *ExceptionChainCall) *Response {
		if p, ok := err.(*Problem); ok {
			if adv, ok := p.Advisory(); ok {
				status := adv.StatusCode()
				if status < 300 || status > 599 {
					snap.Logger.Printf("webx: advisory response had illegal status %d, substituting 418", status)
					return NewResponse(StatusImATeapot).MustBuild()
				}
				return adv
			}
			if snap.ImplementMissingOptions && p.Kind == KindMethodNotAllowed && req != nil && req.Method() == "OPTIONS" {
				b := NoContent()
				b.Header(hdrAllow, joinComma(append(p.Methods, "OPTIONS")))
				return b.MustBuild()
			}
			if p.Kind == KindMethodNotAllowed {
				b := NewResponse(p.Status())
				b.Header(hdrAllow, joinComma(p.Methods))
				return b.MustBuild()
			}
			return NewResponse(p.Status()).MustBuild()
		}
		snap.Logger.Printf("webx: unhandled non-Problem error, falling back to 500: %v", err)
		return NewResponse(StatusInternalServerError).MustBuild()
	}
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
