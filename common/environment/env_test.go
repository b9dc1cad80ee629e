package environment_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/Shashin/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("SHASHIN_TEST_STRING", "  Brazil ")
	if got := environment.StringOr("SHASHIN_TEST_STRING", "India"); got != "Brazil" {
		t.Errorf("StringOr = %q, want %q", got, "Brazil")
	}
	if got := environment.StringOr("SHASHIN_TEST_UNSET", "India"); got != "India" {
		t.Errorf("StringOr(unset) = %q, want %q", got, "India")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("SHASHIN_TEST_REQUIRED", "")
	if _, err := environment.RequiredString("SHASHIN_TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for empty variable")
	}
	t.Setenv("SHASHIN_TEST_REQUIRED", "value")
	v, err := environment.RequiredString("SHASHIN_TEST_REQUIRED")
	if err != nil {
		t.Fatalf("RequiredString: %v", err)
	}
	if v != "value" {
		t.Errorf("RequiredString = %q", v)
	}
}

func TestIntOrAndDurationOr(t *testing.T) {
	t.Setenv("SHASHIN_TEST_INT", "42")
	t.Setenv("SHASHIN_TEST_BAD_INT", "forty-two")
	t.Setenv("SHASHIN_TEST_DURATION", "90m")

	if got := environment.IntOr("SHASHIN_TEST_INT", 1); got != 42 {
		t.Errorf("IntOr = %d, want 42", got)
	}
	if got := environment.IntOr("SHASHIN_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("IntOr(malformed) = %d, want 7", got)
	}
	if got := environment.DurationOr("SHASHIN_TEST_DURATION", time.Second); got != 90*time.Minute {
		t.Errorf("DurationOr = %v, want 90m", got)
	}
}

func TestStringSliceOr(t *testing.T) {
	t.Setenv("SHASHIN_TEST_SLICE", " !a:example.org, ,!b:example.org ")
	got := environment.StringSliceOr("SHASHIN_TEST_SLICE", nil)
	want := []string{"!a:example.org", "!b:example.org"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StringSliceOr mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("SHASHIN_TEST_SLICE", " , ")
	if got := environment.StringSliceOr("SHASHIN_TEST_SLICE", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("StringSliceOr(blank) = %v, want default", got)
	}
}
