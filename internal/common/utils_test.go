package common

import "testing"

func TestHasAny(t *testing.T) {
	if !HasAny("12#", "#", "*") {
		t.Error("expected substring match")
	}
	if !HasAny("NR", "NR") {
		t.Error("expected exact match")
	}
	if HasAny("12.5", "#", "*", "x") {
		t.Error("unexpected match")
	}
	if HasAny("anything") {
		t.Error("no substrings must never match")
	}
}
