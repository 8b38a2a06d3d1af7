package webx

import "testing"

func TestResponseBuildRejectsBodyOnInterim(t *testing.T) {
	_, err := NewResponse(StatusProcessing).BodyString("not allowed").Build()
	if err == nil {
		t.Fatal("expected IllegalResponseBody for a 1XX response with a body")
	}
	p, ok := err.(*Problem)
	if !ok || p.Kind != KindIllegalResponseBody {
		t.Fatalf("expected KindIllegalResponseBody, got %v", err)
	}
}

func TestResponseBuildAllowsInterimWithNoBody(t *testing.T) {
	resp, err := NewResponse(StatusContinue).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsInterim() {
		t.Fatal("100 should be interim")
	}
}

func TestResponseIsFinalForNon1xx(t *testing.T) {
	resp, err := NewResponse(StatusOK).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.IsInterim() || !resp.IsFinal() {
		t.Fatal("200 must be final, not interim")
	}
}

func TestResponseIdempotentToBuilder(t *testing.T) {
	resp, err := NewResponse(StatusOK).
		Header("X-A", "1").
		AddHeader("X-B", "2").
		BodyString("hello").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rebuilt, err := resp.ToBuilder().Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !resp.Equal(rebuilt) {
		t.Fatal("building a response then ToBuilder().Build() should yield an equal response")
	}
}

func TestResponseMustCloseDetectsConnectionClose(t *testing.T) {
	resp, err := NewResponse(StatusOK).Close().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !resp.MustClose() {
		t.Fatal("expected MustClose() true after Close()")
	}
}

func TestResponseBuildIsIndependentOfBuilder(t *testing.T) {
	b := NewResponse(StatusOK).BodyString("original")
	resp, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b.BodyString("mutated")
	if string(resp.Body()) != "original" {
		t.Fatal("mutating the builder after Build must not affect the built Response")
	}
}

func TestTextHelperSetsContentType(t *testing.T) {
	resp, err := Text("Hello World!").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if resp.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected Content-Type: %q", resp.Header().Get("Content-Type"))
	}
	if string(resp.Body()) != "Hello World!" {
		t.Fatalf("unexpected body: %q", resp.Body())
	}
}

func TestNoContentHelper(t *testing.T) {
	resp, err := NoContent().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if resp.StatusCode() != StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode())
	}
}
