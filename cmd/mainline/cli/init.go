package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/paths"
)

func newInitCmd() *cobra.Command {
	var (
		owner         string
		repo          string
		tokenEnv      string
		remote        string
		defaultBranch string
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize mainline in this repository",
		Long:  "Create .mainline/config.yaml with forge and branch settings. Every other command requires this to have run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := paths.RepoRoot()
			if err != nil {
				return err
			}
			stateRoot := filepath.Join(root, paths.StateDir)

			cfg, err := config.Load(stateRoot)
			switch {
			case errors.Is(err, config.ErrNotInitialized):
				cfg = config.New()
			case err != nil:
				return err
			default:
				ok, err := confirm("mainline is already initialized here. Overwrite config?", yes)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "○ left existing configuration in place")
					return nil
				}
			}

			if owner != "" {
				cfg.Forge.Owner = owner
			}
			if repo != "" {
				cfg.Forge.Repo = repo
			}
			if tokenEnv != "" {
				cfg.Forge.TokenEnv = tokenEnv
			}
			if remote != "" {
				cfg.Remote = remote
			}
			if defaultBranch != "" {
				cfg.DefaultBranch = defaultBranch
			}

			// Prompt for anything still missing unless running non-interactive
			if !yes {
				if err := promptInit(cfg); err != nil {
					return err
				}
			}
			if cfg.Forge.Kind == "" && cfg.Forge.Owner != "" {
				cfg.Forge.Kind = "github"
			}

			if err := config.Save(stateRoot, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ initialized %s\n", filepath.Join(paths.StateDir, paths.ConfigFileName))
			if !cfg.Forge.Configured() {
				fmt.Fprintln(out, "! forge not configured; 'mainline ship' will refuse until owner and repo are set")
			}
			if token := cfg.Token(); cfg.Forge.Configured() && token == "" {
				env := cfg.Forge.TokenEnv
				if env == "" {
					env = "GITHUB_TOKEN"
				}
				fmt.Fprintf(out, "! %s is not set in the environment\n", env)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Forge repository owner (user or organization)")
	cmd.Flags().StringVar(&repo, "repo", "", "Forge repository name")
	cmd.Flags().StringVar(&tokenEnv, "token-env", "", "Environment variable holding the forge API token (default GITHUB_TOKEN)")
	cmd.Flags().StringVar(&remote, "remote", "", "Git remote to push to (default origin)")
	cmd.Flags().StringVar(&defaultBranch, "default-branch", "", "Protected default branch (default main)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept flag values without prompting")

	return cmd
}

// promptInit fills the interactive fields of cfg in place.
func promptInit(cfg *config.Config) error {
	telemetryOn := cfg.Telemetry != nil && *cfg.Telemetry

	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository owner (GitHub user or org)").
				Value(&cfg.Forge.Owner),
			huh.NewInput().
				Title("Repository name").
				Value(&cfg.Forge.Repo),
			huh.NewInput().
				Title("Default branch").
				Value(&cfg.DefaultBranch),
			huh.NewInput().
				Title("Git remote").
				Value(&cfg.Remote),
			huh.NewConfirm().
				Title("Share anonymous usage statistics?").
				Value(&telemetryOn),
		),
	)
	if err := form.Run(); err != nil {
		// Non-interactive environments keep whatever the flags provided
		if os.Getenv("CI") != "" {
			return nil
		}
		return fmt.Errorf("init prompt failed: %w", err)
	}

	cfg.Telemetry = &telemetryOn
	return nil
}
