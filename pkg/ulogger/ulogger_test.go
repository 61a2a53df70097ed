package ulogger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("builder", WithWriter(&buf), WithPretty(false), WithLevel("debug"))

	logger.Debugf("selected %d inputs", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "builder", line["service"])
	assert.Equal(t, "selected 3 inputs", line["message"])
}

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZeroLogger("test", WithWriter(&buf), WithPretty(false), WithLevel("WARN"))
	assert.Equal(t, LevelWarn, logger.LogLevel())

	logger.Infof("hidden")
	assert.Zero(t, buf.Len())

	logger.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")

	logger.SetLogLevel("nonsense")
	assert.Equal(t, LevelInfo, logger.LogLevel())
}

func TestZeroLoggerPretty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	logger := New("electrum", WithWriter(&buf))
	logger.Infof("connected to %s", "host:50002")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "electrum")
	assert.Contains(t, out, "connected to host:50002")
	assert.False(t, strings.Contains(out, "\x1b["), "no ANSI codes when NO_COLOR is set")
}

func TestZeroLoggerChildInheritsSettings(t *testing.T) {
	var buf bytes.Buffer
	parent := New("parent", WithWriter(&buf), WithPretty(false), WithLevel("ERROR"))
	child := parent.New("child")

	assert.Equal(t, LevelError, child.LogLevel())
	child.Errorf("boom")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "child", line["service"])

	dup := child.Duplicate(WithLevel("debug"))
	assert.Equal(t, LevelDebug, dup.LogLevel())
}

func TestVerboseTestLogger(t *testing.T) {
	var logger Logger = NewVerboseTestLogger(t)
	logger.Infof("hello %s", "world")
	assert.Same(t, logger, logger.New("x"))

	var quiet Logger = TestLogger{}
	quiet.Errorf("ignored")
	assert.Equal(t, LevelInfo, quiet.LogLevel())
}
