package webx

import "testing"

func TestKindDefaultStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindRequestLineParse, StatusBadRequest},
		{KindHeaderParse, StatusBadRequest},
		{KindUnexpectedEndOfStream, StatusBadRequest},
		{KindHeadSizeExceeded, StatusRequestHeaderFieldsTooLarge},
		{KindNoRouteFound, StatusNotFound},
		{KindMethodNotAllowed, StatusMethodNotAllowed},
		{KindAmbiguousHandler, StatusInternalServerError},
		{KindNoHandlerResolved, StatusNotAcceptable},
		{KindHTTPVersionRejected, StatusUpgradeRequired},
		{KindHTTPVersionNotSupported, StatusHTTPVersionNotSupported},
		{KindRequestHeadTimeout, StatusRequestTimeout},
		{KindRequestBodyTimeout, StatusRequestTimeout},
		{KindResponseTimeout, StatusRequestTimeout},
		{KindIdleConnectionTimeout, StatusRequestTimeout},
	}
	for _, c := range cases {
		if got := c.kind.DefaultStatus(); got != c.want {
			t.Errorf("%s.DefaultStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestProblemStatusRefinesNoHandlerResolved(t *testing.T) {
	p := newProblem(KindNoHandlerResolved, "no consumer")
	p.UnsupportedMedia = true
	if p.Status() != StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for UnsupportedMedia, got %d", p.Status())
	}
	p.UnsupportedMedia = false
	if p.Status() != StatusNotAcceptable {
		t.Fatalf("expected 406 without UnsupportedMedia, got %d", p.Status())
	}
}

func TestProblemErrorIncludesWrappedError(t *testing.T) {
	inner := ErrBadInteger
	p := wrapProblem(KindHeaderParse, "bad value", inner)
	if p.Unwrap() != inner {
		t.Fatal("Unwrap should return the wrapped error")
	}
	if p.Error() == "" {
		t.Fatal("Error() should not be empty")
	}
}

func TestProblemAdvisory(t *testing.T) {
	resp, _ := NewResponse(StatusNotFound).Build()
	p := newProblem(KindNoRouteFound, "x").WithAdvisory(resp)
	adv, ok := p.Advisory()
	if !ok || adv != resp {
		t.Fatal("expected Advisory() to return the attached response")
	}
}

func TestKindStringIsStableForAllKinds(t *testing.T) {
	for k := KindRequestLineParse; k <= KindPathParamUndeclared; k++ {
		if k.String() == "Unknown" {
			t.Errorf("Kind %d has no String() mapping", k)
		}
	}
}
