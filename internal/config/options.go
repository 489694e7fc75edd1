package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// DefaultModel is used when no source names one.
const DefaultModel = "claude-sonnet-4-5"

// Options is the fully resolved configuration of one kaya process.
type Options struct {
	Model         string
	RosterPath    string
	NoBridge      bool
	MaxTurns      int
	MaxParallel   int
	Timeout       time.Duration
	TranscriptDir string
	MaxBudget     decimal.Decimal
	Verbose       bool
	NoColor       bool
	Trace         bool
	APIKey        string
	SearXNGURL    string
	WorkDir       string

	// Settings is the merged settings files, kept for permission rules and
	// extra bridges.
	Settings *Settings
}

// ErrHelp is returned by Resolve when -h or --help was given.
var ErrHelp = pflag.ErrHelp

// Resolve builds Options for workDir. Precedence, lowest first: settings
// files, .env in workDir, the process environment, flags.
func Resolve(args []string, workDir string) (*Options, error) {
	return resolve(args, workDir, DefaultSettingsPaths(workDir), os.LookupEnv)
}

func resolve(args []string, workDir string, settingsPaths []string, lookup func(string) (string, bool)) (*Options, error) {
	settings, err := LoadSettings(settingsPaths...)
	if err != nil {
		return nil, err
	}
	opts := &Options{
		Model:         DefaultModel,
		WorkDir:       workDir,
		Settings:      settings,
		TranscriptDir: filepath.Join(workDir, ".kaya", "transcripts"),
	}
	if err := opts.applySettings(settings); err != nil {
		return nil, err
	}

	dotenv, err := godotenv.Read(filepath.Join(workDir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	env := func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return dotenv[key]
	}
	if err := opts.applyEnv(env); err != nil {
		return nil, err
	}
	if err := opts.applyFlags(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) applySettings(s *Settings) error {
	if s.Model != "" {
		o.Model = s.Model
	}
	if s.Roster != "" {
		o.RosterPath = s.Roster
	}
	if s.TranscriptDir != "" {
		o.TranscriptDir = s.TranscriptDir
	}
	o.MaxTurns = s.MaxTurns
	o.MaxParallel = s.MaxParallel
	o.MaxBudget = s.MaxBudgetUSD
	o.SearXNGURL = s.SearXNGURL
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("settings timeout: %w", err)
		}
		o.Timeout = d
	}
	return nil
}

func (o *Options) applyEnv(env func(string) string) error {
	o.APIKey = env("ANTHROPIC_API_KEY")
	if v := env("KAYA_MODEL"); v != "" {
		o.Model = v
	}
	if v := env("KAYA_ROSTER"); v != "" {
		o.RosterPath = v
	}
	if v := env("KAYA_TRANSCRIPT_DIR"); v != "" {
		o.TranscriptDir = v
	}
	if v := env("KAYA_SEARXNG_URL"); v != "" {
		o.SearXNGURL = v
	}
	if v := env("KAYA_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KAYA_MAX_PARALLEL: %w", err)
		}
		o.MaxParallel = n
	}
	if v := env("KAYA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KAYA_TIMEOUT: %w", err)
		}
		o.Timeout = d
	}
	if v := env("KAYA_MAX_BUDGET"); v != "" {
		b, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("KAYA_MAX_BUDGET: %w", err)
		}
		o.MaxBudget = b
	}
	return nil
}

func (o *Options) applyFlags(args []string) error {
	flags := pflag.NewFlagSet("kaya", pflag.ContinueOnError)
	flags.StringVarP(&o.Model, "model", "m", o.Model, "Model for the coordinating agent (or KAYA_MODEL)")
	flags.StringVar(&o.RosterPath, "roster", o.RosterPath, "YAML file replacing the built-in agent roster (or KAYA_ROSTER)")
	flags.BoolVar(&o.NoBridge, "no-bridge", false, "Do not launch MCP bridges; their tools stay unavailable")
	flags.IntVar(&o.MaxTurns, "max-turns", o.MaxTurns, "Turn limit per agent run, 0 for none")
	flags.IntVar(&o.MaxParallel, "max-parallel", o.MaxParallel, "Sub-agents running at once, 0 for unbounded (or KAYA_MAX_PARALLEL)")
	flags.DurationVar(&o.Timeout, "timeout", o.Timeout, "Per-delegation timeout, 0 for none (or KAYA_TIMEOUT)")
	flags.StringVar(&o.TranscriptDir, "transcript-dir", o.TranscriptDir, "Directory for conversation transcripts, empty to disable")
	budget := flags.String("max-budget", "", "Total spend limit in USD (or KAYA_MAX_BUDGET)")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Debug logging to stderr")
	flags.BoolVar(&o.NoColor, "no-color", false, "Disable ANSI colors")
	flags.BoolVar(&o.Trace, "trace", false, "Print OpenTelemetry spans to stderr")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *budget != "" {
		b, err := decimal.NewFromString(*budget)
		if err != nil {
			return fmt.Errorf("--max-budget: %w", err)
		}
		o.MaxBudget = b
	}
	switch {
	case o.MaxParallel < 0:
		return fmt.Errorf("max parallel must not be negative, got %d", o.MaxParallel)
	case o.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %s", o.Timeout)
	case o.MaxBudget.IsNegative():
		return fmt.Errorf("max budget must not be negative, got %s", o.MaxBudget)
	}
	return nil
}
