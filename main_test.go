package main

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("10,20,300,200")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 310, 220), *r)

	r, err = parseRect("")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = parseRect("10,20")
	assert.Error(t, err)
	_, err = parseRect("1,1,0,5")
	assert.Error(t, err)
}

func TestRun_InitConfigAndScores(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cw.yaml")
	assert.Equal(t, 0, run([]string{"-config", cfgPath, "-init-config"}))
	assert.Equal(t, 1, run([]string{"-config", cfgPath, "-init-config"}), "existing config is kept")

	scores := filepath.Join(dir, "scores.csv")
	require.NoError(t, os.WriteFile(scores, []byte("0,0\n0.5,0.9\n2.5,0.0\n"), 0o644))
	assert.Equal(t, 0, run([]string{"-config", cfgPath, "-scores", scores, "-log-level", "error"}))
	assert.Equal(t, 1, run([]string{"-config", cfgPath, "-scores", filepath.Join(dir, "missing.csv")}))

	assert.Equal(t, 2, run([]string{"-config", cfgPath}), "no input")
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
}
