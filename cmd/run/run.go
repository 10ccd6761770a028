package run

import (
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/macadm/unisync/cmd/util"
	"github.com/macadm/unisync/pkg/config"
	"github.com/macadm/unisync/pkg/errors"
	"github.com/macadm/unisync/pkg/identity"
	"github.com/macadm/unisync/pkg/sync"
)

// syncer is the part of sync.Syncer the orchestration needs. It's an
// interface so tests can run the state machine without a unison binary.
type syncer interface {
	Sync(username, target string) (sync.Result, error)
}

// Mocked for unit testing.
var (
	loadConfig     = config.Load
	selectProvider = identity.Select
	newSyncer      = func(cfg config.Config) (syncer, error) { return sync.New(cfg) }
	stat           = os.Stat
	exit           = os.Exit

	stdout io.Writer       = os.Stdout
	clock  clockwork.Clock = clockwork.NewRealClock()
)

// New creates a new `run` command.
func New() *cobra.Command {
	var configPath string
	var strictEligibility bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync the console user's targets",
		Long: "Resolve the user logged in at the console, generate their\n" +
			"unison profiles from the system templates, and run unison once\n" +
			"per configured target. This is the command the scheduled job\n" +
			"invokes.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(configPath, strictEligibility); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "",
		"Path to a config file overriding the built-in defaults. "+
			"Optional: without it, "+config.DefaultOverridePath+" is used when present.")
	cmd.Flags().BoolVar(&strictEligibility, "strict-eligibility", false,
		"Exit with a dedicated code instead of 0 when the console user "+
			"isn't eligible for sync.")
	return cmd
}

// run is the whole state machine: identity, eligibility, mount precondition,
// then each target in order. Targets run strictly one at a time under the one
// identity resolved at the start; the first fatal failure stops the run with
// the remaining targets unattempted.
func run(configPath string, strictEligibility bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	ident, err := selectProvider(cfg).Resolve()
	if err != nil {
		return err
	}

	if !identity.IsEligible(cfg, ident.UID, ident.User) {
		fmt.Fprintf(stdout, "Sync should not run for user: %s (%d)\n",
			ident.User, ident.UID)
		if strictEligibility {
			exit(errors.ExitIneligibleUser)
		}
		return nil
	}

	mount := cfg.MountPoint(ident.User)
	info, err := stat(mount)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.MountMissing{Path: mount}
		}
		// Anything else (e.g. permission denied) is an unexpected I/O
		// failure, not a missing mount.
		return errors.WithContext(err, "stat sync mount")
	}
	if !info.IsDir() {
		return errors.MountMissing{Path: mount}
	}

	s, err := newSyncer(cfg)
	if err != nil {
		return err
	}

	start := clock.Now()
	for _, target := range cfg.Targets {
		targetStart := clock.Now()
		result, err := s.Sync(ident.User, target)
		if err != nil {
			return err
		}

		fields := log.Fields{
			"target":   target,
			"duration": clock.Since(targetStart),
		}
		switch result.Outcome {
		case sync.Synced:
			log.WithFields(fields).Debug("Synced target")
		case sync.Ignored:
			fields["code"] = result.ExitCode
			log.WithFields(fields).Warn(
				"Unison reported a non-fatal failure, continuing")
		case sync.Failed:
			fmt.Fprintf(stdout, "Unison exited with error %d, aborting sync\n",
				result.ExitCode)
			return errors.SyncFailure{
				Target: target,
				Code:   result.ExitCode,
				Output: result.Output,
			}
		}
	}

	log.WithFields(log.Fields{
		"user":     ident.User,
		"targets":  len(cfg.Targets),
		"duration": clock.Since(start),
	}).Info("Sync complete")
	return nil
}
