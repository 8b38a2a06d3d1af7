package webx

import (
	"bufio"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// responseWriter is C7: serializes status line + headers + body,
// enforcing the ordering/framing invariants in spec.md §4.7 and
// emitting byte counts for ResponseSent events. Adapted from the
// teacher's Response.Write/writeBodyChunked/writeChunk (http.go);
// header-line assembly uses a pooled bytebufferpool.ByteBuffer instead
// of writing straight to the bufio.Writer field-by-field, kept from
// the teacher's go.mod (bytebufferpool backs RequestCtx's scratch
// buffers there) and reused here for the same "avoid a fresh
// allocation per response" purpose.
type responseWriter struct {
	ex          *exchange
	finalSent   bool
}

func newResponseWriter(ex *exchange) *responseWriter {
	return &responseWriter{ex: ex}
}

// writeInterim writes a 1XX response with an HTTP/1.1 status line. It
// is refused only once the final response has been sent; the client's
// HTTP version is not checked, so HTTP/1.0 clients receive it too.
func (w *responseWriter) writeInterim(resp *Response) error {
	if w.finalSent {
		return newProblem(KindResponseRejected, "cannot write a response after the final response")
	}
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	writeStatusLine(bb, 1, 1, resp.StatusCode(), resp.Reason())
	resp.Header().VisitAll(func(k, v string) {
		writeHeaderLine(bb, k, v)
	})
	bb.WriteString("\r\n")

	bw := w.ex.conn.writer()
	if _, err := bw.Write(bb.B); err != nil {
		return err
	}
	return bw.Flush()
}

// writeFinal writes the final response, applying the derived-header
// policy in spec.md §4.7 in order, then returns the total bytes
// written for the ResponseSent event.
func (w *responseWriter) writeFinal(resp *Response, reqMajor, reqMinor int, versionKnown, headMethod bool) (int64, error) {
	if w.finalSent {
		return 0, newProblem(KindResponseRejected, "cannot write a second final response on this exchange")
	}
	if resp.IsInterim() {
		return 0, newProblem(KindIllegalResponseBody, "final response must not be a 1XX status")
	}
	w.finalSent = true

	status := resp.StatusCode()
	body := resp.Body()

	// rule 2: 204/304 must not carry Content-Length.
	header := resp.Header().Clone()
	if status == StatusNoContent || status == StatusNotModified {
		header.Del(hdrContentLength)
		body = nil
	}

	useHTTP11 := reqMajor == 1 && reqMinor >= 1
	if !versionKnown {
		useHTTP11 = true // base-handler responses before a version is known render as 1.1
	}

	chunked := false
	if !header.Has(hdrTransferEncoding) && !header.Has(hdrContentLength) {
		if useHTTP11 {
			header.Set(hdrTransferEncoding, hdrChunked)
			chunked = true
		} else {
			header.Set(hdrConnection, hdrClose)
		}
	}
	if !header.Has(hdrContentLength) && !chunked && body != nil {
		header.Set(hdrContentLength, strconv.Itoa(len(body)))
	}
	if !header.Has(hdrDate) {
		header.Set(hdrDate, w.ex.srv.date.get())
	}
	if !header.Has(hdrServer) {
		header.Set("Server", w.ex.snap.Name)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	major, minor := 1, 1
	if versionKnown {
		major, minor = reqMajor, reqMinor
	}
	writeStatusLine(bb, major, minor, status, resp.Reason())
	header.VisitAll(func(k, v string) { writeHeaderLine(bb, k, v) })
	bb.WriteString("\r\n")

	bw := w.ex.conn.writer()
	n, err := bw.Write(bb.B)
	total := int64(n)
	if err != nil {
		return total, err
	}

	if !headMethod && len(body) > 0 {
		if chunked {
			if err := writeChunked(bw, body); err != nil {
				return total, err
			}
			total += int64(chunkedWireSize(len(body)))
		} else {
			m, werr := bw.Write(body)
			total += int64(m)
			if werr != nil {
				return total, werr
			}
		}
	} else if headMethod && chunked {
		// HEAD responses with chunked framing still terminate the
		// (empty) body with a zero-length final chunk (spec.md §4.7.3:
		// "framing headers are preserved as if the body were present").
		if err := writeChunked(bw, nil); err != nil {
			return total, err
		}
	}

	if resp.HasTrailer() {
		tb := bytebufferpool.Get()
		resp.Trailer().VisitAll(func(k, v string) { writeHeaderLine(tb, k, v) })
		tb.WriteString("\r\n")
		m, werr := bw.Write(tb.B)
		total += int64(m)
		bytebufferpool.Put(tb)
		if werr != nil {
			return total, werr
		}
	} else if chunked {
		m, werr := bw.Write(strFinalCRLF)
		total += int64(m)
		if werr != nil {
			return total, werr
		}
	}

	if err := bw.Flush(); err != nil {
		return total, err
	}
	return total, nil
}

var strFinalCRLF = []byte("\r\n")

func writeStatusLine(bb *bytebufferpool.ByteBuffer, major, minor, status int, reason string) {
	bb.WriteString("HTTP/")
	bb.WriteString(strconv.Itoa(major))
	bb.WriteByte('.')
	bb.WriteString(strconv.Itoa(minor))
	bb.WriteByte(' ')
	bb.WriteString(strconv.Itoa(status))
	bb.WriteByte(' ')
	if reason == "" {
		reason = StatusText(status)
	}
	bb.WriteString(reason)
	bb.WriteString("\r\n")
}

func writeHeaderLine(bb *bytebufferpool.ByteBuffer, name, value string) {
	bb.WriteString(name)
	bb.WriteString(": ")
	bb.WriteString(value)
	bb.WriteString("\r\n")
}

// writeChunked writes body as a single chunk followed by the
// zero-length terminating chunk, mirroring the teacher's writeChunk
// (http.go) applied once per call rather than per streaming read,
// since this engine's Response.Body is always already fully buffered
// (spec.md's body model is "ordered sequence of byte chunks", and
// handlers here hand the engine one fully-built []byte rather than a
// stream).
func writeChunked(bw *bufio.Writer, body []byte) error {
	if len(body) > 0 {
		if err := writeChunk(bw, body); err != nil {
			return err
		}
	}
	return writeChunk(bw, nil)
}

func writeChunk(bw *bufio.Writer, b []byte) error {
	hex := appendHexUint(nil, len(b))
	if _, err := bw.Write(hex); err != nil {
		return err
	}
	if _, err := bw.Write(strFinalCRLF); err != nil {
		return err
	}
	if len(b) == 0 {
		// terminating chunk: writeFinal writes the trailer fields (if
		// any) and the closing CRLF after it
		return nil
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	_, err := bw.Write(strFinalCRLF)
	return err
}

func chunkedWireSize(bodyLen int) int {
	hexLen := len(appendHexUint(nil, bodyLen))
	// one data chunk (hex + CRLF + body + CRLF) + terminating chunk ("0" + CRLF)
	return hexLen + 2 + bodyLen + 2 + 1 + 2
}
