package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("αβγδε", 3); got != "αβγ..." {
		t.Errorf("multibyte: got %s", got)
	}
	if got := Truncate("αβγ", 4); got != "αβγ" {
		t.Errorf("multibyte within limit: got %s", got)
	}
}

func TestOrDash(t *testing.T) {
	if OrDash("") != "-" || OrDash("x") != "x" {
		t.Error("OrDash")
	}
}
