package webx

import (
	"strings"
)

// Request is the immutable, per-exchange singleton described in
// spec.md §3: parsed once by the head parser (C2) and shared,
// read-only, by every executing entity in the chain. Adapted from the
// teacher's Request (http.go), but the teacher's Request is a pooled,
// mutable, repeatedly-Reset object written directly by bufio reads;
// this one is built once per exchange by exchange.buildRequest from the
// head parser's output and never
// mutated afterward, matching spec.md's "immutable" requirement.
type Request struct {
	method  string
	target  string
	path    string
	query   string
	major   int
	minor   int
	header  Header
	body    *Body
	attrs   Attributes

	// paramNames/paramValues are set through bindParams once a route
	// matches; PathParam before that point always reports ok=false.
	paramNames  []string
	paramValues []string
}

func (r *Request) Method() string { return r.method }

// Target is the raw request-target exactly as it appeared on the wire.
func (r *Request) Target() string { return r.target }

// Path is the request-target's path component, still percent-encoded
// except where segment decoding has happened via PathParam.
func (r *Request) Path() string { return r.path }

func (r *Request) Query() string { return r.query }

// Version returns the (major, minor) pair parsed from the request
// line. major is always >= 1 for everything that reaches the running
// exchange: a 0.9-shaped request line (no version token) fails as a
// RequestLineParse problem and a major version below 1 as an
// HttpVersionRejected problem, before a Request is ever constructed.
func (r *Request) Version() (major, minor int) { return r.major, r.minor }

func (r *Request) IsHTTP11() bool { return r.major == 1 && r.minor >= 1 }

func (r *Request) Header() *Header { return &r.header }

func (r *Request) Body() *Body { return r.body }

func (r *Request) Attributes() *Attributes { return &r.attrs }

// ContentType parses the request's Content-Type header, returning the
// NOTHING sentinel when absent (spec.md §4.4.2).
func (r *Request) ContentType() mediaType {
	v := r.header.Get(hdrContentType)
	if v == "" {
		return nothing()
	}
	return parseMediaType(v)
}

// Accept parses every Accept header line present (spec.md allows
// repeats; they are concatenated as a comma-list per RFC 7230 §3.2.2).
func (r *Request) Accept() []acceptEntry {
	values := r.header.Values(hdrAccept)
	if len(values) == 0 {
		return parseAccept("")
	}
	return parseAccept(strings.Join(values, ","))
}

// PathParam returns the decoded value of a named path parameter, and
// whether name was declared by the matched route/action pattern.
// Accessing an undeclared name must fail precisely (spec.md §3); the
// zero-value "" with ok=false is that failure signal for callers that
// choose to check ok rather than call MustPathParam.
func (r *Request) PathParam(name string) (string, bool) {
	for i, n := range r.paramNames {
		if n == name {
			return percentDecode(r.paramValues[i]), true
		}
	}
	return "", false
}

// MustPathParam is PathParam but panics with a *Problem on an
// undeclared name, for handlers that would rather not thread an `ok`
// check through every access.
func (r *Request) MustPathParam(name string) string {
	v, ok := r.PathParam(name)
	if !ok {
		panic(newProblem(KindPathParamUndeclared, "path parameter not declared on matched pattern: "+name))
	}
	return v
}

func (r *Request) bindParams(names, values []string) {
	r.paramNames = names
	r.paramValues = values
}

// percentDecode decodes %XX escapes; malformed escapes pass through
// literally rather than erroring, matching how path segments are
// typically tolerant at the routing layer (strict validation happens,
// if at all, in application code).
func percentDecode(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok := hexVal(s[i+1]); ok {
				if lo, ok2 := hexVal(s[i+2]); ok2 {
					b.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

func splitTargetPathQuery(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}
