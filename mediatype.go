package webx

import "strings"

// mediaType is a parsed `type/subtype;param=value` pair used by the
// handler resolver (C4) for both the Content-Type a handler consumes
// and each produces entry, plus inbound Accept/Content-Type headers.
// Grounded on the teacher's header.go Content-Type parsing
// (parseContentType-style splitting on ';'), generalized to also carry
// parameters since consumes-matching needs them (spec.md §4.4).
type mediaType struct {
	typ    string
	sub    string
	params []mtParam
}

type mtParam struct {
	name  string
	value string
}

// Sentinel consumes values with no ordinary type/subtype shape.
const (
	mtNothing        = "__nothing__"
	mtNothingAndAll  = "__nothing_and_all__"
	mtWildcard       = "*"
)

func nothing() mediaType       { return mediaType{typ: mtNothing} }
func nothingAndAll() mediaType { return mediaType{typ: mtNothingAndAll} }
func isNothing(m mediaType) bool       { return m.typ == mtNothing }
func isNothingAndAll(m mediaType) bool { return m.typ == mtNothingAndAll }

// Anything is the exported NOTHING_AND_ALL sentinel (spec.md §4.4.2):
// as a Handler.Consumes value it matches any request, with or without a
// Content-Type. As a Handler.Produces value it matches only an Accept
// media-range of */* (which is also what an absent Accept header
// means); an Accept range naming a concrete type or subtype excludes
// it. mediaType's fields are unexported, so a
// package outside webx registering a Handler (e.g. fsx.Handler.Serve)
// has no other way to populate those fields explicitly; leaving them
// at their Go zero value does not mean the same thing and fails every
// request with no Content-Type header.
func Anything() mediaType { return nothingAndAll() }

// parseMediaType parses a single `type/subtype;k=v;k2=v2` token. An
// empty string parses as the wildcard `*/*`.
func parseMediaType(s string) mediaType {
	s = strings.TrimSpace(s)
	if s == "" {
		return mediaType{typ: mtWildcard, sub: mtWildcard}
	}
	parts := strings.Split(s, ";")
	ts := strings.TrimSpace(parts[0])
	typ, sub := mtWildcard, mtWildcard
	if slash := strings.IndexByte(ts, '/'); slash >= 0 {
		typ = ts[:slash]
		sub = ts[slash+1:]
	} else if ts != "" {
		typ = ts
	}
	mt := mediaType{typ: typ, sub: sub}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		mt.params = append(mt.params, mtParam{
			name:  strings.ToLower(strings.TrimSpace(p[:eq])),
			value: strings.Trim(strings.TrimSpace(p[eq+1:]), `"`),
		})
	}
	return mt
}

func (m mediaType) param(name string) (string, bool) {
	for _, p := range m.params {
		if p.name == name {
			return p.value, true
		}
	}
	return "", false
}

// consumesCompatible reports whether a handler declaring `want` (its
// registered `consumes`) accepts an inbound request whose Content-Type
// parsed to `have`. spec.md §4.4: exact type/subtype or wildcard in
// either slot matches; every parameter declared on `want` must be
// present (and, for non-charset params, value-equal) on `have`;
// `charset` comparison is case-insensitive; params present only on
// `have` are ignored.
func consumesCompatible(want, have mediaType) bool {
	if isNothingAndAll(want) {
		return true
	}
	if isNothing(want) {
		return isNothing(have)
	}
	if want.typ != mtWildcard && have.typ != mtWildcard && !strings.EqualFold(want.typ, have.typ) {
		return false
	}
	if want.sub != mtWildcard && have.sub != mtWildcard && !strings.EqualFold(want.sub, have.sub) {
		return false
	}
	for _, wp := range want.params {
		hv, ok := have.param(wp.name)
		if !ok {
			return false
		}
		if wp.name == "charset" {
			if !strings.EqualFold(wp.value, hv) {
				return false
			}
		} else if wp.value != hv {
			return false
		}
	}
	return true
}

// producesCompatible reports whether a handler's `produces` entry
// satisfies one Accept media-range R (spec.md §4.4 step 3), ignoring R's
// q-value (callers extract that separately).
func producesCompatible(produces, r mediaType) bool {
	if r.typ != mtWildcard && produces.typ != mtWildcard && !strings.EqualFold(r.typ, produces.typ) {
		return false
	}
	if r.sub != mtWildcard && produces.sub != mtWildcard && !strings.EqualFold(r.sub, produces.sub) {
		return false
	}
	return true
}

// specificity ranks a media type per the GLOSSARY ordering: concrete
// type+subtype with more matching parameters > type/* > */* >
// nothing-and-all. Used only to break resolver ties (spec.md §4.4.4);
// higher is more specific.
func specificity(m mediaType) int {
	switch {
	case isNothingAndAll(m):
		return 0
	case m.typ == mtWildcard:
		return 1
	case m.sub == mtWildcard:
		return 2
	default:
		return 3 + len(m.params)
	}
}

// acceptEntry is one parsed Accept media-range with its q-value.
type acceptEntry struct {
	mt mediaType
	q  float64
}

// parseAccept parses a full `Accept:` header value into its
// media-ranges. An empty header behaves as a single `*/*` range with
// q=1, per spec.md §4.4 ("default */* if absent").
func parseAccept(header string) []acceptEntry {
	header = strings.TrimSpace(header)
	if header == "" {
		return []acceptEntry{{mt: mediaType{typ: mtWildcard, sub: mtWildcard}, q: 1}}
	}
	var out []acceptEntry
	for _, raw := range strings.Split(header, ",") {
		mt := parseMediaType(raw)
		q := 1.0
		if v, ok := mt.param("q"); ok {
			if f, err := parseQValue(v); err == nil {
				q = f
			}
		}
		out = append(out, acceptEntry{mt: mt, q: q})
	}
	return out
}

func parseQValue(s string) (float64, error) {
	// q-values are "0", "1", "0.xxx" or "1.000" per RFC 7231 §5.3.1;
	// a tiny hand-rolled parser avoids pulling in strconv.ParseFloat's
	// full generality for a 0.000-1.000 range.
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadInteger
	}
	whole, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		whole, frac = s[:dot], s[dot+1:]
	}
	w, err := parseContentLength(whole)
	if err != nil {
		return 0, ErrBadInteger
	}
	val := float64(w)
	mul := 0.1
	for i := 0; i < len(frac); i++ {
		d := frac[i]
		if d < '0' || d > '9' {
			return 0, ErrBadInteger
		}
		val += float64(d-'0') * mul
		mul /= 10
	}
	return val, nil
}
