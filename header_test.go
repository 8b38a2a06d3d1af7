package webx

import "testing"

func TestHeaderAddPreservesOrderAndDuplicates(t *testing.T) {
	var h Header
	h.Add("My-Header", "one")
	h.Add("My-Header", "two")
	values := h.Values("my-header")
	if len(values) != 2 || values[0] != "one" || values[1] != "two" {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestHeaderSetReplacesAllValues(t *testing.T) {
	var h Header
	h.Add("X", "1")
	h.Add("X", "2")
	h.Set("X", "3")
	values := h.Values("x")
	if len(values) != 1 || values[0] != "3" {
		t.Fatalf("expected Set to collapse to one value, got %v", values)
	}
}

func TestHeaderGetIsCaseInsensitive(t *testing.T) {
	var h Header
	h.Add("Content-Type", "text/plain")
	if h.Get("content-type") != "text/plain" {
		t.Fatal("Get must be case-insensitive")
	}
}

func TestHeaderDel(t *testing.T) {
	var h Header
	h.Add("A", "1")
	h.Add("B", "2")
	h.Del("a")
	if h.Has("A") {
		t.Fatal("Del did not remove header")
	}
	if !h.Has("B") {
		t.Fatal("Del removed the wrong header")
	}
}

func TestHeaderVisitAllPreservesOriginalCaseAndOrder(t *testing.T) {
	var h Header
	h.Add("My-Header", "a")
	h.Add("my-header", "b")
	h.Add("Other", "c")

	var names []string
	var values []string
	h.VisitAll(func(name, value string) {
		names = append(names, name)
		values = append(values, value)
	})
	if len(names) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(names))
	}
	if names[0] != "My-Header" || names[1] != "my-header" || names[2] != "Other" {
		t.Fatalf("VisitAll must preserve original casing and order, got %v", names)
	}
	if values[0] != "a" || values[1] != "b" || values[2] != "c" {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestHeaderHasToken(t *testing.T) {
	var h Header
	h.Add("Connection", "keep-alive, Upgrade")
	if !h.hasToken("Connection", "upgrade") {
		t.Fatal("hasToken should match case-insensitively within a comma list")
	}
	if h.hasToken("Connection", "close") {
		t.Fatal("hasToken should not match an absent token")
	}
}

func TestHeaderClone(t *testing.T) {
	var h Header
	h.Add("A", "1")
	clone := h.Clone()
	clone.Add("A", "2")
	if h.Len() != 1 {
		t.Fatal("Clone must be independent of the original")
	}
	if clone.Len() != 2 {
		t.Fatalf("expected clone to have 2 entries, got %d", clone.Len())
	}
}
