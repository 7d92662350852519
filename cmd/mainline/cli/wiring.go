package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/forge"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/gitport"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/session"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

// app bundles everything a command needs after wiring.
type app struct {
	Orchestrator *workflow.Orchestrator
	Config       *config.Config
	Audit        *audit.Log
	RepoRoot     string
}

// newApp discovers the repository, loads config, and builds the orchestrator
// with its real ports. Every state-touching command starts here.
// Returns config.ErrNotInitialized when 'mainline init' has not run.
func newApp(operation string) (*app, error) {
	root, err := paths.RepoRoot()
	if err != nil {
		return nil, err
	}
	stateRoot := filepath.Join(root, paths.StateDir)

	cfg, err := config.Load(stateRoot)
	if err != nil {
		return nil, err
	}

	logging.SetLogLevelGetter(func() string { return cfg.LogLevel })
	if err := logging.Init(operation); err != nil {
		// Logging falls back to stderr internally; only malformed ids fail.
		return nil, err
	}

	git, err := gitport.Open(root, cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	store, err := session.NewFileStore(stateRoot)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	auditLog, err := audit.NewLog(filepath.Join(root, paths.AuditDir))
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	var forgePort forge.ForgePort
	if cfg.Forge.Configured() {
		forgePort = forge.NewGitHub(cfg.Forge.Owner, cfg.Forge.Repo, cfg.Token(), config.DefaultForgeCallTimeout)
	}

	orch := workflow.New(workflow.Deps{
		Git:      git,
		Forge:    forgePort,
		Store:    store,
		History:  store,
		Audit:    auditLog,
		Config:   cfg,
		RepoRoot: root,
	})

	return &app{Orchestrator: orch, Config: cfg, Audit: auditLog, RepoRoot: root}, nil
}
