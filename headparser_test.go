package webx

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func parseHeadString(t *testing.T, raw string, maxSize int) *parsedHead {
	t.Helper()
	br := bufio.NewReader(bytes.NewReader([]byte(raw)))
	ph, err := parseHead(br, maxSize)
	if err != nil {
		t.Fatalf("parseHead(%q): %v", raw, err)
	}
	return ph
}

func TestParseHeadBasic(t *testing.T) {
	ph := parseHeadString(t, "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n", 8192)
	if ph.method != "GET" || ph.target != "/hello" || ph.major != 1 || ph.minor != 1 {
		t.Fatalf("unexpected parsed head: %+v", ph)
	}
	if ph.header.Get("Host") != "x" {
		t.Fatalf("expected Host: x, got %q", ph.header.Get("Host"))
	}
}

func TestParseHeadPreservesHeaderCaseAndDuplicates(t *testing.T) {
	ph := parseHeadString(t, "GET /echo HTTP/1.1\r\nMy-Header: one\r\nMy-Header: two\r\n\r\n", 8192)
	values := ph.header.Values("my-header")
	if len(values) != 2 || values[0] != "one" || values[1] != "two" {
		t.Fatalf("unexpected values: %v", values)
	}
	var names []string
	ph.header.VisitAll(func(name, _ string) { names = append(names, name) })
	if names[0] != "My-Header" || names[1] != "My-Header" {
		t.Fatalf("expected original casing preserved, got %v", names)
	}
}

func TestParseHeadObsoleteLineFolding(t *testing.T) {
	ph := parseHeadString(t, "GET / HTTP/1.1\r\nX-Long: first\r\n continued\r\n\r\n", 8192)
	if ph.header.Get("X-Long") != "first continued" {
		t.Fatalf("expected folded header value, got %q", ph.header.Get("X-Long"))
	}
}

func TestParseHeadRejectsMissingVersion(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("GET /x\r\n\r\n")))
	_, err := parseHead(br, 8192)
	if err == nil {
		t.Fatal("expected RequestLineParse error for a missing HTTP version")
	}
}

func TestParseHeadRejectsSubOnePointOhVersion(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/0.9\r\n\r\n")))
	_, err := parseHead(br, 8192)
	if err == nil {
		t.Fatal("expected HttpVersionRejected for HTTP major 0")
	}
	p, ok := err.(*Problem)
	if !ok || p.Kind != KindHTTPVersionRejected {
		t.Fatalf("expected KindHTTPVersionRejected, got %v", err)
	}
}

func TestParseHeadRejectsMalformedHeaderLine(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\nNotAHeader\r\n\r\n")))
	_, err := parseHead(br, 8192)
	if err == nil {
		t.Fatal("expected HeaderParse error for a colon-less header line")
	}
	p, ok := err.(*Problem)
	if !ok || p.Kind != KindHeaderParse {
		t.Fatalf("expected KindHeaderParse, got %v", err)
	}
}

func TestParseHeadSizeExceeded(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("a", 1000) + "\r\n\r\n"
	br := bufio.NewReader(bytes.NewReader([]byte(raw)))
	_, err := parseHead(br, 32)
	if err == nil {
		t.Fatal("expected HeadSizeExceeded for an oversized head")
	}
	p, ok := err.(*Problem)
	if !ok || p.Kind != KindHeadSizeExceeded {
		t.Fatalf("expected KindHeadSizeExceeded, got %v", err)
	}
}

// TestParseHeadLargeHeadWithinDefaultMaxFitsDefaultBuffer locks in the
// fix to Config.snapshot reconciling ReadBufferSize against
// MaxRequestHeadSize: bufio.Reader's Peek ceiling is fixed at
// construction, so a head between defaultReadBufferSize (4096) and
// DefaultMaxRequestHeadSize (8192) used to overrun the reader's buffer
// before the head terminator was ever seen, misreporting a
// legitimately-sized head as KindUnexpectedEndOfStream instead of
// parsing it. The reader here is sized the way acquireBufioReader
// sizes a real connection's reader, from a snapshot of the zero-value
// (all-defaults) Config.
func TestParseHeadLargeHeadWithinDefaultMaxFitsDefaultBuffer(t *testing.T) {
	snap := Config{}.snapshot()
	pad := strings.Repeat("a", 5000)
	raw := "GET / HTTP/1.1\r\nHost: x\r\nX-Pad: " + pad + "\r\n\r\n"
	if len(raw) <= defaultReadBufferSize || len(raw) > snap.MaxRequestHeadSize {
		t.Fatalf("test head length %d must fall strictly between %d and %d to exercise the boundary", len(raw), defaultReadBufferSize, snap.MaxRequestHeadSize)
	}

	br := bufio.NewReaderSize(bytes.NewReader([]byte(raw)), snap.ReadBufferSize)
	ph, err := parseHead(br, snap.MaxRequestHeadSize)
	if err != nil {
		t.Fatalf("expected a %d-byte head within MaxRequestHeadSize to parse, got %v", len(raw), err)
	}
	if ph.header.Get("X-Pad") != pad {
		t.Fatal("expected the padded header value to round-trip intact")
	}
}

func TestParseHeadUnexpectedEndOfStream(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\nHost: x\r\n")))
	_, err := parseHead(br, 8192)
	if err == nil {
		t.Fatal("expected an error for a connection closed mid-head")
	}
}

func TestParseHeadLeavesBodyBytesForNextRead(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	br := bufio.NewReader(bytes.NewReader([]byte(raw)))
	ph, err := parseHead(br, 8192)
	if err != nil {
		t.Fatalf("parseHead: %v", err)
	}
	if ph.header.Get("Content-Length") != "5" {
		t.Fatalf("unexpected Content-Length: %q", ph.header.Get("Content-Length"))
	}
	rest := make([]byte, 5)
	n, err := br.Read(rest)
	if err != nil || n != 5 || string(rest) != "hello" {
		t.Fatalf("expected body bytes to remain in the reader, got n=%d err=%v rest=%q", n, err, rest)
	}
}
