package tlogger

import (
	"bytes"
	"os"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"
)

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stdout)

	ApplyLogLevel(Verbosity(0))
	// only the first call has an effect
	ApplyLogLevel("all")

	Debug("msg", "hidden")
	Info("msg", "Building started", "profile", "production")
	Warn("msg", "Env file not found")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=info")
	require.Contains(t, out, `msg="Building started" profile=production`)
	require.Contains(t, out, "level=warn")
}

func TestVerbosity(t *testing.T) {
	require.Equal(t, "info", Verbosity(0))
	require.Equal(t, "debug", Verbosity(1))
	require.Equal(t, "all", Verbosity(3))
}

func TestCallerIsTheLoggingSite(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stdout)

	Info("msg", "before level")
	require.Regexp(t, `caller=log_test\.go:\d+ level=info msg="before level"`, buf.String())

	buf.Reset()
	ApplyLogLevel("debug")
	Info("msg", "after level")
	require.Regexp(t, `caller=log_test\.go:\d+ level=info msg="after level"`, buf.String())

	buf.Reset()
	level.Warn(Log).Log("msg", "direct")
	require.Regexp(t, `caller=log_test\.go:\d+ level=warn msg=direct`, buf.String())
}
