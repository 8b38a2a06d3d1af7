package webx

import (
	"bufio"
	"io"
)

// Body is the request body described in spec.md §3: "a restartable-
// once lazy sequence of byte chunks with an optional known length.
// Readable exactly once unless explicitly cached." Adapted from the
// teacher's Request.Read/readLimitBody (http.go), which eagerly slurps
// the whole body into a reused []byte; this version instead wraps the
// connection's bufio.Reader directly and only materializes bytes when
// Cache or Read is called, since the engine does not know in advance
// whether a handler wants streaming or whole-body access.
type Body struct {
	r             *bufio.Reader
	contentLength int // -1 if unknown (chunked-in is not implemented; see below)
	remaining     int
	started       bool
	exhausted     bool
	cached        []byte
	gotExpect100  bool
	onFirstRead   func() error
}

func newBody(r *bufio.Reader, contentLength int, onFirstRead func() error) *Body {
	return &Body{r: r, contentLength: contentLength, remaining: contentLength, onFirstRead: onFirstRead}
}

// Len returns the known Content-Length, or -1 if the body length is
// unknown (identity-framed with no length and no chunked decoding;
// spec.md's open question defers inbound dechunking).
func (b *Body) Len() int { return b.contentLength }

// Read implements io.Reader, consuming wire bytes directly. Per
// spec.md, a Body is readable exactly once unless Cache was called
// first; a second Read after exhaustion returns io.EOF immediately
// rather than re-reading, matching "restartable-once" (restart means
// Cache, not an implicit rewind).
func (b *Body) Read(p []byte) (int, error) {
	if b.cached != nil {
		if b.started && b.remaining <= 0 {
			return 0, io.EOF
		}
	}
	if !b.started {
		b.started = true
		if b.onFirstRead != nil {
			if err := b.onFirstRead(); err != nil {
				return 0, err
			}
		}
	}
	if b.contentLength < 0 {
		return b.r.Read(p)
	}
	if b.remaining <= 0 {
		b.exhausted = true
		return 0, io.EOF
	}
	if len(p) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= n
	if b.remaining <= 0 {
		b.exhausted = true
	}
	return n, err
}

// Cache reads the whole body into memory once, so subsequent Cache
// calls (e.g. from an after-action that wants to inspect what the
// handler consumed) return the same bytes instead of EOF.
func (b *Body) Cache() ([]byte, error) {
	if b.cached != nil {
		return b.cached, nil
	}
	if b.contentLength == 0 {
		b.cached = []byte{}
		return b.cached, nil
	}
	buf := make([]byte, 0, roundUpForSliceCap(maxInt(b.contentLength, 0)))
	tmp := make([]byte, 4096)
	for {
		n, err := b.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapProblem(KindUnexpectedEndOfStream, "reading request body", err)
		}
	}
	b.cached = buf
	return b.cached, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// discard drains any unread body bytes so the connection's byte
// stream is realigned before the next request head is parsed,
// mirroring the teacher's requirement that Request.Read fully consumes
// the body (http.go readLimitBody) before the buffered reader can be
// reused for the next message.
func (b *Body) discard() error {
	if b.contentLength <= 0 {
		return nil
	}
	if b.cached != nil || b.exhausted {
		return nil
	}
	var tmp [4096]byte
	for {
		_, err := b.Read(tmp[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
