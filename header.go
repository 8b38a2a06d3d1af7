package webx

import "strings"

// headerKV is one header field as it appeared on the wire: the
// original-case name (for echoing, see spec.md §3 "insertion-order
// preserved for echoing") and its value.
type headerKV struct {
	name  string
	value string
}

// Header is a case-insensitive, order-preserving, multi-value map. It
// backs both Request and Response headers (spec.md §3: "Headers: same
// shape as request headers"), generalizing the teacher's pair of
// RequestHeader/ResponseHeader field-storage slices
// (header.go's `h []argsKV`) into one reusable type.
type Header struct {
	kv []headerKV
}

// Add appends a value for name, preserving any existing values and
// insertion order.
func (h *Header) Add(name, value string) {
	h.kv = append(h.kv, headerKV{name: name, value: value})
}

// Set replaces all values for name with the single given value,
// keeping the position of the first existing occurrence if present.
func (h *Header) Set(name, value string) {
	for i := range h.kv {
		if strings.EqualFold(h.kv[i].name, name) {
			h.kv[i] = headerKV{name: name, value: value}
			h.removeFrom(i+1, name)
			return
		}
	}
	h.Add(name, value)
}

func (h *Header) removeFrom(start int, name string) {
	out := h.kv[:start]
	for _, kv := range h.kv[start:] {
		if !strings.EqualFold(kv.name, name) {
			out = append(out, kv)
		}
	}
	h.kv = out
}

// Del removes every value for name.
func (h *Header) Del(name string) {
	out := h.kv[:0]
	for _, kv := range h.kv {
		if !strings.EqualFold(kv.name, name) {
			out = append(out, kv)
		}
	}
	h.kv = out
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the first value for name, and whether it was present.
func (h *Header) Lookup(name string) (string, bool) {
	for _, kv := range h.kv {
		if strings.EqualFold(kv.name, name) {
			return kv.value, true
		}
	}
	return "", false
}

// Values returns every value for name, in insertion order.
func (h *Header) Values(name string) []string {
	var out []string
	for _, kv := range h.kv {
		if strings.EqualFold(kv.name, name) {
			out = append(out, kv.value)
		}
	}
	return out
}

// Has reports whether name was set at least once.
func (h *Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Len returns the number of header lines (not distinct names).
func (h *Header) Len() int { return len(h.kv) }

// VisitAll calls f for every header line in wire order, using the
// original casing of both name and value. This is what makes the
// round-trip property in spec.md §8 hold: "parsing a request head then
// re-emitting the same field lines preserves order and case of header
// names."
func (h *Header) VisitAll(f func(name, value string)) {
	for _, kv := range h.kv {
		f(kv.name, kv.value)
	}
}

// Clone returns an independent copy of h.
func (h *Header) Clone() *Header {
	out := &Header{kv: make([]headerKV, len(h.kv))}
	copy(out.kv, h.kv)
	return out
}

// hasToken reports whether name's value(s) contain token among their
// comma-separated, case-insensitively compared items. Used for
// Connection: close detection and similar list-valued headers.
func (h *Header) hasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, item := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(item), token) {
				return true
			}
		}
	}
	return false
}

const (
	hdrHost            = "Host"
	hdrContentType     = "Content-Type"
	hdrContentLength   = "Content-Length"
	hdrTransferEncoding = "Transfer-Encoding"
	hdrConnection      = "Connection"
	hdrAccept          = "Accept"
	hdrAllow           = "Allow"
	hdrExpect          = "Expect"
	hdrTrailer         = "Trailer"
	hdrDate            = "Date"
	hdrServer          = "Server"
	hdrChunked         = "chunked"
	hdrClose           = "close"
)
