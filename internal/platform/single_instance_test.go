package platform

import (
	"errors"
	"testing"
)

func TestLockComponent(t *testing.T) {
	tests := []struct {
		raw      string
		fallback string
		want     string
	}{
		{raw: "jenkinstray-v1.2_3", fallback: "app", want: "jenkinstray-v1.2_3"},
		{raw: "jenkins tray:/v1", fallback: "app", want: "jenkins_tray__v1"},
		{raw: ".._jenkinstray-._", fallback: "app", want: "jenkinstray"},
		{raw: "   ", fallback: "fallback", want: "fallback"},
		{raw: "[]{}", fallback: "fallback", want: "fallback"},
	}

	for _, tc := range tests {
		if got := lockComponent(tc.raw, tc.fallback); got != tc.want {
			t.Fatalf("lockComponent(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestAlreadyRunningErrorMatchesSentinel(t *testing.T) {
	err := error(&AlreadyRunningError{AppID: "jenkinstray", PID: 42})
	if !errors.Is(err, ErrInstanceAlreadyRunning) {
		t.Fatalf("expected sentinel match")
	}
	if err.Error() != "instance already running: jenkinstray (pid 42)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (&AlreadyRunningError{AppID: "x"}).Error() != "instance already running: x" {
		t.Fatalf("unexpected message without pid")
	}
}
