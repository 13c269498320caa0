package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		SetVerbosity(0)
	})
	return &buf
}

func TestVerbosityGatesLevels(t *testing.T) {
	buf := capture(t)
	SetVerbosity(0)
	Infof("hidden")
	Warnf("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info logged at verbosity 0")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warning not logged")
	}

	SetVerbosity(2)
	Debugf("detail")
	if !strings.Contains(buf.String(), "detail") {
		t.Error("debug not logged at verbosity 2")
	}
}

func TestWarnOnce(t *testing.T) {
	buf := capture(t)
	WarnOncef("k", "boom")
	WarnOncef("k", "boom")
	if n := strings.Count(buf.String(), "boom"); n != 1 {
		t.Errorf("got %d lines, want 1", n)
	}
	ForgetPrefix("k")
	WarnOncef("k", "boom")
	if n := strings.Count(buf.String(), "boom"); n != 2 {
		t.Errorf("got %d lines after ForgetPrefix, want 2", n)
	}
}

func TestForgetPrefix(t *testing.T) {
	buf := capture(t)
	WarnOncef("out/a/refused", "refused")
	WarnOncef("out/a/timeout", "timeout")
	WarnOncef("out/b/refused", "other")
	ForgetPrefix("out/a/")
	WarnOncef("out/a/refused", "refused")
	WarnOncef("out/b/refused", "other")
	if n := strings.Count(buf.String(), "refused"); n != 2 {
		t.Errorf("got %d refused lines, want 2", n)
	}
	if n := strings.Count(buf.String(), "other"); n != 1 {
		t.Errorf("got %d lines for the other prefix, want 1", n)
	}
}

func TestParseLevel(t *testing.T) {
	l, v, err := ParseLevel("debug")
	if err != nil || l != LevelDebug || v != 2 {
		t.Errorf("got %v %d %v", l, v, err)
	}
	if _, _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error")
	}
}
