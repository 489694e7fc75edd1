// Command kaya is an interactive assistant that delegates work to a roster
// of specialised sub-agents.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/armatrix/kaya"
	"github.com/armatrix/kaya/bridge"
	"github.com/armatrix/kaya/internal/config"
	"github.com/armatrix/kaya/internal/console"
	"github.com/armatrix/kaya/internal/tracing"
	"github.com/armatrix/kaya/permission"
	"github.com/armatrix/kaya/roster"
	"github.com/armatrix/kaya/tools"
	"github.com/armatrix/kaya/transcript"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "kaya: %v\n", err)
		return 1
	}
	opts, err := config.Resolve(args, workDir)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "kaya: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var spanOut io.Writer
	if opts.Trace {
		spanOut = stderr
	}
	shutdownTracing, err := tracing.Setup(spanOut)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		return 1
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := build(ctx, opts, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer session.Close()

	r := console.New(stdout, session.Conversation().ID, console.Options{NoColor: opts.NoColor, Verbose: opts.Verbose})
	r.Banner(string(session.Model()))

	if err := kaya.NewLoop(session, stdin, r, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session ended with error", "error", err)
		return 1
	}
	return 0
}

// build wires the registry, bridges, roster and runner into a session.
// Configuration errors are returned; bridge failures are logged and leave
// the bridge's tools unavailable.
func build(ctx context.Context, opts *config.Options, logger *slog.Logger, extra ...kaya.RunnerOption) (*kaya.Session, error) {
	setup := roster.Default()
	if opts.RosterPath != "" {
		var err error
		if setup, err = roster.Load(opts.RosterPath); err != nil {
			return nil, err
		}
	}
	for name, cfg := range opts.Settings.MCPServers {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("bridge %s: %w", name, err)
		}
		if setup.Bridges == nil {
			setup.Bridges = make(map[string]bridge.ServerConfig)
		}
		setup.Bridges[name] = cfg
	}

	team, err := setup.Roster()
	if err != nil {
		return nil, err
	}
	root, err := setup.RootDefinition()
	if err != nil {
		return nil, err
	}
	mode, err := setup.Mode()
	if opts.Settings.PermissionMode != "" {
		mode, err = permission.ParseMode(opts.Settings.PermissionMode)
	}
	if err != nil {
		return nil, err
	}

	registry := kaya.NewRegistry()
	toolOpts := tools.Options{Logger: logger}
	if opts.SearXNGURL != "" {
		toolOpts.Search = tools.SearXNG(opts.SearXNGURL, nil)
	}
	shells, err := tools.RegisterAll(registry, toolOpts)
	if err != nil {
		return nil, err
	}

	var releasers []kaya.Releaser
	for _, name := range setup.BridgeNames() {
		m := bridge.New(name, setup.Bridges[name], bridge.WithLogger(logger))
		if !opts.NoBridge {
			if err := m.Start(ctx); err != nil {
				logger.Warn("bridge unavailable, its tools are disabled", "bridge", name, "error", err)
			}
		}
		if err := m.Register(registry); err != nil {
			closeAll(append(releasers, m, shells), logger)
			return nil, err
		}
		releasers = append(releasers, m)
	}
	releasers = append(releasers, shells)

	// Tools a roster entry names are approved up front; settings rules still
	// apply, and a settings deny beats any allow.
	perms := opts.Settings.Permissions
	rules := append(permission.Rules(setup.Preapproved(), nil, nil),
		permission.Rules(perms.Allow, perms.Ask, perms.Deny)...)
	checker := permission.NewCheckerWithRules(mode, rules, nil)
	runnerOpts := []kaya.RunnerOption{
		kaya.WithPermission(checker, nil),
		kaya.WithTotalBudget(opts.MaxBudget),
		kaya.WithRunnerLogger(logger),
	}
	if opts.APIKey != "" {
		runnerOpts = append(runnerOpts, kaya.WithRequestOptions(option.WithAPIKey(opts.APIKey)))
	}
	runnerOpts = append(runnerOpts, extra...)
	runner := kaya.NewAnthropicRunner(runnerOpts...)

	model := kaya.ResolveModel(opts.Model, kaya.DefaultModel)
	coordOpts := []kaya.CoordinatorOption{
		kaya.WithLogger(logger),
		kaya.WithMaxParallel(opts.MaxParallel),
		kaya.WithDefaultTimeout(opts.Timeout),
		kaya.WithDefaultModel(model),
	}
	sessionOpts := []kaya.SessionOption{
		kaya.WithRootAgent(root),
		kaya.WithModel(model),
		kaya.WithMaxTurns(opts.MaxTurns),
		kaya.WithSessionLogger(logger),
	}
	if opts.TranscriptDir != "" {
		store, err := transcript.NewFileStore(opts.TranscriptDir)
		if err != nil {
			closeAll(releasers, logger)
			return nil, err
		}
		coordOpts = append(coordOpts, kaya.WithConversationStore(store))
		sessionOpts = append(sessionOpts, kaya.WithTranscriptStore(store))
	}
	for _, r := range releasers {
		sessionOpts = append(sessionOpts, kaya.WithReleaser(r))
	}

	coord, err := kaya.NewCoordinator(team, registry, runner, coordOpts...)
	if err != nil {
		closeAll(releasers, logger)
		return nil, err
	}
	session, err := kaya.NewSession(coord, sessionOpts...)
	if err != nil {
		closeAll(releasers, logger)
		return nil, err
	}
	return session, nil
}

func closeAll(releasers []kaya.Releaser, logger *slog.Logger) {
	for _, r := range releasers {
		if err := r.Close(); err != nil {
			logger.Warn("release failed", "error", err)
		}
	}
}
