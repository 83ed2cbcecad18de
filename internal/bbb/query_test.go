package bbb

import "testing"

func TestQueryEncodePreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	q := NewQuery().
		Set("name", "Team Sync").
		Set("meetingID", "discourse-ab12-1").
		SetInt("duration", 60).
		SetBool("endWhenNoModerator", false)

	want := "name=Team+Sync&meetingID=discourse-ab12-1&duration=60&endWhenNoModerator=false"
	if got := q.Encode(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestQuerySetReplacesInPlace(t *testing.T) {
	t.Parallel()

	q := NewQuery().Set("a", "1").Set("b", "2").Set("a", "3")
	if q.Len() != 2 {
		t.Fatalf("expected 2 params, got %d", q.Len())
	}
	if got := q.Encode(); got != "a=3&b=2" {
		t.Fatalf("unexpected encoding %q", got)
	}
	if v, ok := q.Get("a"); !ok || v != "3" {
		t.Fatalf("expected a=3, got %q (%v)", v, ok)
	}
	if _, ok := q.Get("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestQueryEncodeEscapesReservedCharacters(t *testing.T) {
	t.Parallel()

	q := NewQuery().Set("fullName", "Zoë & Ann").Set("welcome", "a=b?c")
	want := "fullName=Zo%C3%AB+%26+Ann&welcome=a%3Db%3Fc"
	if got := q.Encode(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEmptyQueryEncodesToEmptyString(t *testing.T) {
	t.Parallel()

	var nilQuery *Query
	if nilQuery.Encode() != "" || NewQuery().Encode() != "" {
		t.Fatalf("expected empty encodings")
	}
}
