package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestResolve_Defaults(t *testing.T) {
	dir := t.TempDir()
	opts, err := resolve(nil, dir, nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, opts.Model)
	assert.Equal(t, filepath.Join(dir, ".kaya", "transcripts"), opts.TranscriptDir)
	assert.Zero(t, opts.MaxParallel)
	assert.Zero(t, opts.Timeout)
	assert.True(t, opts.MaxBudget.IsZero())
	assert.False(t, opts.NoBridge)
	assert.Equal(t, dir, opts.WorkDir)
	assert.NotNil(t, opts.Settings)
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, "settings.json", Settings{
		Model:       "from-settings",
		MaxParallel: 2,
		Timeout:     "1m",
		Roster:      "settings.yaml",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("KAYA_MODEL=from-dotenv\nKAYA_MAX_PARALLEL=3\nANTHROPIC_API_KEY=sk-dotenv\n"), 0o600))

	env := envMap(map[string]string{"KAYA_MAX_PARALLEL": "4"})

	opts, err := resolve(nil, dir, []string{settings}, env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", opts.Model)
	assert.Equal(t, 4, opts.MaxParallel, "process environment beats .env")
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Equal(t, "settings.yaml", opts.RosterPath)
	assert.Equal(t, "sk-dotenv", opts.APIKey)

	opts, err = resolve([]string{"--model", "from-flag", "--max-parallel", "5", "--timeout", "30s", "--no-bridge"},
		dir, []string{settings}, env)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", opts.Model)
	assert.Equal(t, 5, opts.MaxParallel)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.True(t, opts.NoBridge)
}

func TestResolve_Flags(t *testing.T) {
	opts, err := resolve([]string{
		"-m", "opus",
		"--roster", "team.yaml",
		"--transcript-dir", "",
		"--max-budget", "1.75",
		"--max-turns", "20",
		"-v", "--no-color", "--trace",
	}, t.TempDir(), nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "opus", opts.Model)
	assert.Equal(t, "team.yaml", opts.RosterPath)
	assert.Empty(t, opts.TranscriptDir)
	assert.Equal(t, "1.75", opts.MaxBudget.String())
	assert.Equal(t, 20, opts.MaxTurns)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.NoColor)
	assert.True(t, opts.Trace)
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"bad env timeout", nil, map[string]string{"KAYA_TIMEOUT": "soon"}, "KAYA_TIMEOUT"},
		{"bad env parallel", nil, map[string]string{"KAYA_MAX_PARALLEL": "many"}, "KAYA_MAX_PARALLEL"},
		{"bad env budget", nil, map[string]string{"KAYA_MAX_BUDGET": "free"}, "KAYA_MAX_BUDGET"},
		{"bad flag budget", []string{"--max-budget", "x"}, nil, "--max-budget"},
		{"negative parallel", []string{"--max-parallel", "-1"}, nil, "max parallel"},
		{"negative timeout", []string{"--timeout", "-1s"}, nil, "timeout"},
		{"unknown flag", []string{"--frobnicate"}, nil, "frobnicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolve(tt.args, dir, nil, envMap(tt.env))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolve_Help(t *testing.T) {
	_, err := resolve([]string{"--help"}, t.TempDir(), nil, envMap(nil))
	assert.ErrorIs(t, err, ErrHelp)
}

func TestResolve_BadSettingsTimeout(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, "settings.json", Settings{Timeout: "later"})
	_, err := resolve(nil, dir, []string{settings}, envMap(nil))
	assert.ErrorContains(t, err, "settings timeout")
}
