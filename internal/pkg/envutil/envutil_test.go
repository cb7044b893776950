package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("IF_TEST_INT", "42")
	t.Setenv("IF_TEST_BAD_INT", "forty")
	t.Setenv("IF_TEST_BOOL", "on")
	t.Setenv("IF_TEST_FLOAT", "0.25")
	t.Setenv("IF_TEST_SECS", "15")
	t.Setenv("IF_TEST_LIST", " http://a , ,http://b")

	if Int("IF_TEST_INT", 1) != 42 || Int("IF_TEST_BAD_INT", 7) != 7 || Int("IF_TEST_UNSET", 3) != 3 {
		t.Fatalf("Int mismatch")
	}
	if !Bool("IF_TEST_BOOL", false) || Bool("IF_TEST_UNSET", false) {
		t.Fatalf("Bool mismatch")
	}
	if Float("IF_TEST_FLOAT", 1) != 0.25 {
		t.Fatalf("Float mismatch")
	}
	if Seconds("IF_TEST_SECS", time.Second) != 15*time.Second || Seconds("IF_TEST_UNSET", time.Second) != time.Second {
		t.Fatalf("Seconds mismatch")
	}
	if got := List("IF_TEST_LIST", nil); len(got) != 2 || got[1] != "http://b" {
		t.Fatalf("List: %v", got)
	}
	if String("IF_TEST_UNSET", "d") != "d" {
		t.Fatalf("String default")
	}
}
