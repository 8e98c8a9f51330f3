package build

import (
	"testing"

	"github.com/HariAbram/scout/internal/procexec"
)

func TestNonEmptyFiltersBlankFlags(t *testing.T) {
	got := nonEmpty([]string{"-O2", "", "-funroll-loops", ""})
	want := []string{"-O2", "-funroll-loops"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flag[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildErrFromClassifiesTimeout(t *testing.T) {
	err := buildErrFrom(&procexec.Result{TimedOut: true}, errTest)
	if err.Code != "build_timeout" {
		t.Errorf("Code = %q, want build_timeout", err.Code)
	}
}

func TestBuildErrFromClassifiesFailure(t *testing.T) {
	err := buildErrFrom(&procexec.Result{TimedOut: false}, errTest)
	if err.Code != "build_failed" {
		t.Errorf("Code = %q, want build_failed", err.Code)
	}
}

var errTest = &simpleErr{"boom"}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
