package webx

import "fmt"

// Kind identifies a category of failure raised while driving an
// exchange. Kinds map to the default status codes the base exception
// handler falls back to when nothing earlier in the chain produces a
// response; see Problem.DefaultStatus.
type Kind int

const (
	// KindRequestLineParse covers a malformed request line.
	KindRequestLineParse Kind = iota
	// KindHeaderParse covers a malformed header line or field value.
	KindHeaderParse
	// KindBadMediaType covers an unparsable Content-Type or Accept value.
	KindBadMediaType
	// KindHeadSizeExceeded is raised when the request line + headers
	// exceed Config.MaxRequestHeadSize.
	KindHeadSizeExceeded
	// KindTrailersSizeExceeded names response trailers exceeding
	// Config.MaxResponseTrailersSize. The response writer does not
	// check trailer size, so no code path raises it.
	KindTrailersSizeExceeded
	// KindNoRouteFound is raised when the route tree has no node
	// matching the request path.
	KindNoRouteFound
	// KindMethodNotAllowed is raised when a route exists but has no
	// handler for the request method.
	KindMethodNotAllowed
	// KindAmbiguousHandler is raised when two or more handlers tie for
	// best candidate under content negotiation, and when Chain.Proceed
	// is called after the chain's last entity has already run.
	KindAmbiguousHandler
	// KindNoHandlerResolved is raised when content negotiation
	// eliminates every candidate (no consumer, or no producer).
	KindNoHandlerResolved
	// KindHTTPVersionRejected is raised for an HTTP version below 1.0.
	KindHTTPVersionRejected
	// KindHTTPVersionNotSupported is raised for an HTTP major version
	// the engine does not implement.
	KindHTTPVersionNotSupported
	// KindRequestHeadTimeout names an elapsed deadline for reading a
	// request head.
	KindRequestHeadTimeout
	// KindRequestBodyTimeout names an elapsed deadline for reading a
	// request body.
	KindRequestBodyTimeout
	// KindResponseTimeout names an elapsed deadline for writing a
	// response.
	KindResponseTimeout
	// KindIdleConnectionTimeout names a connection sitting idle between
	// exchanges past its deadline.
	//
	// No code path raises these four timeout kinds: an elapsed deadline
	// surfaces as the network error returned by the read or write it
	// interrupted, and an idle connection whose deadline elapses is
	// closed.
	KindIdleConnectionTimeout
	// KindUnexpectedEndOfStream is raised when the peer closes the
	// connection before a well-formed head/body was fully read.
	KindUnexpectedEndOfStream
	// KindIllegalResponseBody is raised when a handler attaches a body
	// to a response kind that forbids one (1XX, or HEAD framing rules).
	KindIllegalResponseBody
	// KindResponseRejected is raised when the writer refuses to emit a
	// response because of protocol-version or exchange-state rules.
	KindResponseRejected
	// KindIllegalLockUpgrade is raised when a path-lock holder tries to
	// upgrade a read acquisition to a write acquisition.
	KindIllegalLockUpgrade
	// KindFileLockTimeout is raised when acquiring a path lock exceeds
	// its deadline.
	KindFileLockTimeout
	// KindRouteCollision is raised by registry Add when a pattern
	// collides with an existing route's hierarchical position or
	// identity.
	KindRouteCollision
	// KindActionNonUnique is raised when the same (pattern, action)
	// pair is registered twice.
	KindActionNonUnique
	// KindHandlerCollision is raised when a route already has a
	// handler with an equal (method, consumes, produces) tuple.
	KindHandlerCollision
	// KindPathParamUndeclared is raised when code accesses a path
	// parameter name the matched pattern never declared.
	KindPathParamUndeclared
)

func (k Kind) String() string {
	switch k {
	case KindRequestLineParse:
		return "RequestLineParse"
	case KindHeaderParse:
		return "HeaderParse"
	case KindBadMediaType:
		return "BadMediaType"
	case KindHeadSizeExceeded:
		return "HeadSizeExceeded"
	case KindTrailersSizeExceeded:
		return "TrailersSizeExceeded"
	case KindNoRouteFound:
		return "NoRouteFound"
	case KindMethodNotAllowed:
		return "MethodNotAllowed"
	case KindAmbiguousHandler:
		return "AmbiguousHandler"
	case KindNoHandlerResolved:
		return "NoHandlerResolved"
	case KindHTTPVersionRejected:
		return "HttpVersionRejected"
	case KindHTTPVersionNotSupported:
		return "HttpVersionNotSupported"
	case KindRequestHeadTimeout:
		return "RequestHeadTimeout"
	case KindRequestBodyTimeout:
		return "RequestBodyTimeout"
	case KindResponseTimeout:
		return "ResponseTimeout"
	case KindIdleConnectionTimeout:
		return "IdleConnectionTimeout"
	case KindUnexpectedEndOfStream:
		return "UnexpectedEndOfStream"
	case KindIllegalResponseBody:
		return "IllegalResponseBody"
	case KindResponseRejected:
		return "ResponseRejected"
	case KindIllegalLockUpgrade:
		return "IllegalLockUpgrade"
	case KindFileLockTimeout:
		return "FileLockTimeout"
	case KindRouteCollision:
		return "RouteCollision"
	case KindActionNonUnique:
		return "ActionNonUnique"
	case KindHandlerCollision:
		return "HandlerCollision"
	case KindPathParamUndeclared:
		return "PathParamUndeclared"
	default:
		return "Unknown"
	}
}

// DefaultStatus returns the status code the base exception handler
// falls back to for this kind, per spec.md §7.
func (k Kind) DefaultStatus() int {
	switch k {
	case KindRequestLineParse, KindHeaderParse, KindBadMediaType, KindUnexpectedEndOfStream:
		return StatusBadRequest
	case KindHeadSizeExceeded:
		return StatusRequestHeaderFieldsTooLarge
	case KindTrailersSizeExceeded:
		return StatusRequestHeaderFieldsTooLarge
	case KindNoRouteFound:
		return StatusNotFound
	case KindMethodNotAllowed:
		return StatusMethodNotAllowed
	case KindAmbiguousHandler:
		return StatusInternalServerError
	case KindNoHandlerResolved:
		return StatusNotAcceptable
	case KindHTTPVersionRejected:
		return StatusUpgradeRequired
	case KindHTTPVersionNotSupported:
		return StatusHTTPVersionNotSupported
	case KindRequestHeadTimeout, KindRequestBodyTimeout, KindResponseTimeout, KindIdleConnectionTimeout:
		return StatusRequestTimeout
	case KindIllegalResponseBody, KindResponseRejected:
		return StatusInternalServerError
	default:
		return StatusInternalServerError
	}
}

// Problem is the single error type raised by every executing entity in
// the processing chain (spec.md §7). It carries enough structure for
// the exception chain (C8) to act without type-switching on ad hoc
// error values.
type Problem struct {
	Kind Kind
	Msg  string
	Err  error

	// Methods is populated for KindMethodNotAllowed with the set of
	// methods declared on the matched route, so the base handler can
	// emit Allow.
	Methods []string

	// Candidates is populated for KindAmbiguousHandler and
	// KindNoHandlerResolved with the tied/rejected candidate set.
	Candidates []*Handler

	// UnsupportedMedia distinguishes the two KindNoHandlerResolved
	// causes (spec.md §7): true when every candidate was eliminated by
	// the consumes filter (-> 415), false when eliminated by the
	// produces filter (-> 406).
	UnsupportedMedia bool

	// advisory, if non-nil, is the capability described in spec.md §7:
	// "Each executing entity ... may throw; ... the engine maps
	// exceptions implementing the advisory response capability by
	// querying their fallback response once."
	advisory *Response
}

func (p *Problem) Error() string {
	if p.Err != nil {
		return fmt.Sprintf("webx: %s: %s: %v", p.Kind, p.Msg, p.Err)
	}
	return fmt.Sprintf("webx: %s: %s", p.Kind, p.Msg)
}

func (p *Problem) Unwrap() error { return p.Err }

// Status returns the status code the base exception handler falls
// back to for p, refining Kind.DefaultStatus for the one kind whose
// status depends on which filter produced it (spec.md §7).
func (p *Problem) Status() int {
	if p.Kind == KindNoHandlerResolved && p.UnsupportedMedia {
		return StatusUnsupportedMediaType
	}
	return p.Kind.DefaultStatus()
}

// Advisory returns the advisory response attached to this problem, if
// any, along with whether one was attached.
func (p *Problem) Advisory() (*Response, bool) {
	if p.advisory == nil {
		return nil, false
	}
	return p.advisory, true
}

// WithAdvisory attaches an advisory response capability to p and
// returns p for chaining. The base exception handler validates the
// status is 3XX/4XX/5XX before honoring it (spec.md §4.8).
func (p *Problem) WithAdvisory(resp *Response) *Problem {
	p.advisory = resp
	return p
}

func newProblem(kind Kind, msg string) *Problem {
	return &Problem{Kind: kind, Msg: msg}
}

func wrapProblem(kind Kind, msg string, err error) *Problem {
	return &Problem{Kind: kind, Msg: msg, Err: err}
}
