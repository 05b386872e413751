package topicmatch

import "testing"

func hasID(ids []ID, want ID) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestExactMatch(t *testing.T) {
	tb := New()
	id := tb.Subscribe("dev/01/status")
	got := tb.Match("dev/01/status")
	if !hasID(got, id) {
		t.Fatalf("expected match, got %v", got)
	}
	if hasID(tb.Match("dev/01/other"), id) {
		t.Fatalf("unexpected match on unrelated topic")
	}
}

func TestSingleWildcard(t *testing.T) {
	tb := New()
	id := tb.Subscribe("dev/+/status")
	if !hasID(tb.Match("dev/01/status"), id) {
		t.Fatalf("+ should match one segment")
	}
	if hasID(tb.Match("dev/01/02/status"), id) {
		t.Fatalf("+ must not match multiple segments")
	}
}

func TestMultiWildcard(t *testing.T) {
	tb := New()
	id := tb.Subscribe("dev/01/#")
	if !hasID(tb.Match("dev/01"), id) {
		t.Fatalf("# must match zero additional levels")
	}
	if !hasID(tb.Match("dev/01/a/b/c"), id) {
		t.Fatalf("# must match arbitrary remainder")
	}
}

func TestUnsubscribe(t *testing.T) {
	tb := New()
	id := tb.Subscribe("a/b")
	tb.Unsubscribe(id)
	if hasID(tb.Match("a/b"), id) {
		t.Fatalf("expected no match after unsubscribe")
	}
}
