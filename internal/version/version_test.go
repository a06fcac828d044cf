package version

import (
	"regexp"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(v) {
		t.Errorf("Get() = %q, want semantic version", v)
	}
}

func TestCommit(t *testing.T) {
	if c := Commit(); len(c) > 12 {
		t.Errorf("Commit() = %q, want at most 12 characters", c)
	}
}
