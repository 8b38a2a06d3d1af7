package webx

import (
	"bufio"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// parsedHead is the raw output of parseHead (C2), before a Request is
// constructed: spec.md §4.2 — "method token (verbatim), raw target,
// (major,minor) version, ... the parsed header map."
type parsedHead struct {
	method  string
	target  string
	major   int
	minor   int
	header  Header
}

// parseHead reads and parses one request-line + headers block from br,
// bounded by maxSize bytes total (spec.md §4.1/§4.2). Adapted from the
// teacher's headerscanner.go line-at-a-time scanner; header field-name
// and field-value validation is delegated to
// golang.org/x/net/http/httpguts (ValidHeaderFieldName/ValidHeaderFieldValue),
// kept from the teacher's go.mod but repurposed here from its original
// client-proxy use to request-head validation — the teacher never
// validates inbound header bytes this strictly, leaning instead on
// the wire being trusted reverse-proxy traffic.
func parseHead(br *bufio.Reader, maxSize int) (*parsedHead, error) {
	raw, err := readHeadUntil(br, maxSize)
	if err != nil {
		return nil, err
	}
	// raw ends with "\r\n\r\n"; splitting the whole block yields a
	// trailing empty line for the blank-line terminator, which the
	// header loop below simply skips. b2s avoids copying raw since it
	// is a freshly read, never-mutated buffer owned solely by this call.
	lines := splitCRLFLines(b2s(raw))
	if len(lines) == 0 {
		return nil, newProblem(KindRequestLineParse, "empty request")
	}

	method, target, major, minor, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	ph := &parsedHead{method: method, target: target, major: major, minor: minor}
	var lastName string
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && lastName != "" {
			// obsolete line folding: fold into a single space onto the
			// previous field's value (spec.md §4.2).
			last := &ph.header.kv[len(ph.header.kv)-1]
			last.value += " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, newProblem(KindHeaderParse, "malformed header line: "+line)
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, newProblem(KindHeaderParse, "invalid header field name: "+name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, newProblem(KindHeaderParse, "invalid header field value for "+name)
		}
		ph.header.Add(name, value)
		lastName = name
	}
	return ph, nil
}

// splitCRLFLines splits s into lines on "\r\n"; a trailing CRLF yields a
// trailing empty line. A bare CR or LF is not a line break here and
// stays inside its line, where parseHead's field-name/field-value
// validation rejects it for header lines.
func splitCRLFLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '\r' && s[i+1] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 2
			i++
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// parseRequestLine parses "METHOD SP target SP HTTP/major.minor".
// Rejects a major version below 1 as KindHTTPVersionRejected (spec.md
// §4.2: "rejects major < 1 overall"). HTTP/0.9-shaped request lines,
// which have no version token at all, fail earlier as
// KindRequestLineParse.
func parseRequestLine(line string) (method, target string, major, minor int, err error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "malformed request line: "+line)
	}
	rest := line[sp1+1:]
	sp2 := strings.LastIndexByte(rest, ' ')
	if sp2 <= 0 {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "malformed request line: "+line)
	}
	method = line[:sp1]
	target = rest[:sp2]
	versionTok := rest[sp2+1:]

	if !strings.HasPrefix(versionTok, "HTTP/") {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "missing HTTP version: "+line)
	}
	versionTok = strings.TrimPrefix(versionTok, "HTTP/")
	dot := strings.IndexByte(versionTok, '.')
	if dot < 0 {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "malformed HTTP version: "+versionTok)
	}
	major, merr := parseContentLength(versionTok[:dot])
	minor, nerr := parseContentLength(versionTok[dot+1:])
	if merr != nil || nerr != nil {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "malformed HTTP version: "+versionTok)
	}
	if major < 1 {
		return "", "", 0, 0, newProblem(KindHTTPVersionRejected, "HTTP version below 1.0")
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return "", "", 0, 0, newProblem(KindRequestLineParse, "invalid method token: "+method)
	}
	return method, target, major, minor, nil
}
