package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ashewang/work-orchestrator/internal/agent"
	"github.com/ashewang/work-orchestrator/internal/config"
	"github.com/ashewang/work-orchestrator/internal/exec"
	"github.com/ashewang/work-orchestrator/internal/git"
	"github.com/ashewang/work-orchestrator/internal/monitor"
	"github.com/ashewang/work-orchestrator/internal/notify"
	"github.com/ashewang/work-orchestrator/internal/orchestrator"
	"github.com/ashewang/work-orchestrator/internal/slots"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/internal/worktrees"
)

// app holds the components a command works with.
type app struct {
	cfg       *config.Config
	db        *state.DB
	pool      *slots.Pool
	worktrees *worktrees.Manager
	agents    *agent.Manager
	orch      *orchestrator.Orchestrator
	// sink is nil when no Slack token is configured.
	sink notify.Sink
}

// openApp loads configuration, opens the database and wires the
// components. The caller must Close the app.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}

	db, err := state.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.EnsureProject(state.DefaultProjectID, cfg.RepoPath); err != nil {
		db.Close()
		return nil, err
	}

	runner := exec.NewRunner()
	g := git.NewRunner()
	pool := slots.NewPool(db, g)

	agentCfg := agent.Config{
		OutputDir: cfg.Agent.OutputDir,
		Defaults: agent.Options{
			Model:          cfg.Agent.Model,
			PermissionMode: cfg.Agent.PermissionMode,
			MaxTurns:       cfg.Agent.MaxTurns,
		},
		Starter:  runner,
		Signaler: runner,
	}
	if cfg.Agent.MaxBudget > 0 {
		budget := cfg.Agent.MaxBudget
		agentCfg.Defaults.MaxBudget = &budget
	}
	terminal, err := agent.NewCommandTerminal(cfg.Agent.TerminalCommand, runner)
	switch {
	case err == nil:
		agentCfg.Terminal = terminal
	case !errors.Is(err, agent.ErrNoTerminal):
		db.Close()
		return nil, err
	}
	agents := agent.NewManager(db, pool, agentCfg)

	var orchOpts []orchestrator.Option
	if cfg.Agent.MaxTurns > 0 {
		orchOpts = append(orchOpts, orchestrator.WithMaxTurns(cfg.Agent.MaxTurns))
	}

	a := &app{
		cfg:       cfg,
		db:        db,
		pool:      pool,
		worktrees: worktrees.NewManager(db, g, cfg.WorktreeDir),
		agents:    agents,
		orch:      orchestrator.New(db, pool, agents, orchOpts...),
	}
	if token, err := config.GetSlackToken(cfg); err == nil {
		a.sink = notify.NewSlack(token)
	}
	return a, nil
}

// Close closes the database.
func (a *app) Close() error {
	return a.db.Close()
}

// project returns the --project project, which must exist.
func (a *app) project() (string, error) {
	id := projectID()
	p, err := a.db.GetProject(id)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("%w: %s", state.ErrProjectNotFound, id)
	}
	return id, nil
}

// repoFor returns the repository of the --project project, falling back to
// the configured repository path.
func (a *app) repoFor(id string) string {
	if p, err := a.db.GetProject(id); err == nil && p != nil && p.RepoPath != "" {
		return p.RepoPath
	}
	return a.cfg.RepoPath
}

// slackSink returns the notification sink or an error naming how to
// configure it.
func (a *app) slackSink() (notify.Sink, error) {
	if a.sink == nil {
		return nil, fmt.Errorf("%w: set SLACK_BOT_TOKEN or slack.bot_token", config.ErrNoSlackToken)
	}
	return a.sink, nil
}

// newMetrics creates a registry with process and Go collectors.
func newMetrics() (*prometheus.Registry, *monitor.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, monitor.NewMetrics(reg)
}

// newMonitor creates the reconciliation monitor sharing the agent
// manager's live process handles.
func (a *app) newMonitor(metrics *monitor.Metrics) *monitor.Monitor {
	return monitor.New(a.db, a.pool, monitor.Config{
		Interval: a.cfg.Monitor.PollInterval,
		Registry: a.agents.Registry(),
		Sink:     a.sink,
		Metrics:  metrics,
	})
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("[wo] close database: %v", err)
		}
	}()
	return fn(a)
}
