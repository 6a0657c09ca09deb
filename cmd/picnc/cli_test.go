package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"picnc/config"
)

func TestSimulate(t *testing.T) {
	tests := []struct {
		name    string
		corrupt int
		desyncs uint64
	}{
		{"clean link", 0, 0},
		{"every 7th response corrupted", 7, 285},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			res, err := simulate(cfg, tt.corrupt, zap.NewNop())
			require.NoError(t, err)

			assert.Equal(t, 2000, res.Cycles)
			assert.Equal(t, 10.0, res.PositionCmd)
			assert.InDelta(t, 10.0, res.PositionFb, 1e-4)
			assert.InDelta(t, 2000.0, res.Steps, 0.02)
			assert.Greater(t, res.PeakVelocity, 2000.0)
			assert.LessOrEqual(t, res.PeakVelocity, 8000.0)
			assert.Equal(t, tt.desyncs, res.Stats.Desyncs)
			assert.Equal(t, uint64(4000), res.Stats.Exchanges)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := config.DefaultConfig().Logging

	log, err := newLogger(cfg, "")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Core().Enabled(zap.DebugLevel))

	cfg.Format = "console"
	log, err = newLogger(cfg, "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	_, err = newLogger(cfg, "loud")
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.True(t, strings.HasPrefix(out, "picnc version "+Version))
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "picnc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver:\n  axes: 2\nlogging:\n  output_path: stderr\n"), 0644))

	out := execute(t, "config", "-c", path)
	assert.Contains(t, out, `"axes": 2`)

	saved := filepath.Join(dir, "saved.json")
	execute(t, "config", "-c", path, "-o", saved)
	loaded, err := config.LoadConfig(saved)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Driver.Axes)
	_ = configCmd.Flags().Set("output", "")
}

func TestSignalsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picnc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver:\n  axes: 1\nlogging:\n  output_path: stderr\n"), 0644))

	out := execute(t, "signals", "-c", path)
	assert.Contains(t, out, "picnc.axis.0.position-cmd")
	assert.Contains(t, out, "picnc.ready")
	assert.NotContains(t, out, "picnc.axis.1.")
}
