package materialize

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/macadm/unisync/cmd/util"
	"github.com/macadm/unisync/pkg/config"
	"github.com/macadm/unisync/pkg/errors"
	"github.com/macadm/unisync/pkg/identity"
	"github.com/macadm/unisync/pkg/profile"
)

// Mocked for unit testing.
var (
	loadConfig     = config.Load
	selectProvider = identity.Select
	materialize    = profile.Materialize

	stdout io.Writer = os.Stdout
)

// New creates a new `materialize` command.
func New() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "materialize [target...]",
		Short: "Write the console user's unison profiles without syncing",
		Long: "Generate the unison profiles for the user logged in at the\n" +
			"console, exactly as `run` would, but don't invoke unison. With\n" +
			"no arguments all configured targets are written.",
		Run: func(_ *cobra.Command, args []string) {
			if err := run(configPath, args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "",
		"Path to a config file overriding the built-in defaults.")
	return cmd
}

func run(configPath string, targets []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	if len(targets) == 0 {
		targets = cfg.Targets
	}
	for _, target := range targets {
		if !cfg.ValidTarget(target) {
			return errors.InvalidSyncTarget{Target: target}
		}
	}

	ident, err := selectProvider(cfg).Resolve()
	if err != nil {
		return err
	}

	// Same eligibility policy as `run`: no profiles for system or denied
	// accounts.
	if !identity.IsEligible(cfg, ident.UID, ident.User) {
		fmt.Fprintf(stdout, "Sync should not run for user: %s (%d)\n",
			ident.User, ident.UID)
		return nil
	}

	for _, target := range targets {
		path, err := materialize(cfg, ident.User, target)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
	}
	return nil
}
