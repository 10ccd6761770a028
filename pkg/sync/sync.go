// Package sync invokes unison for the configured targets.
package sync

import (
	"os/exec"
	"regexp"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/macadm/unisync/pkg/config"
	"github.com/macadm/unisync/pkg/errors"
	"github.com/macadm/unisync/pkg/profile"
)

const toolName = "unison"

// Outcome classifies one target's sync result.
type Outcome int

const (
	// Synced means unison exited zero.
	Synced Outcome = iota

	// Ignored means unison exited non-zero with a code the configuration
	// treats as non-fatal.
	Ignored

	// Failed means unison exited non-zero with a fatal code.
	Failed
)

// Result is the outcome of syncing one target. Tool exits are reported here
// rather than as errors so that the orchestrator decides explicitly what
// aborts the run.
type Result struct {
	Target   string
	Output   string
	ExitCode int
	Outcome  Outcome
}

// Syncer runs unison for sync targets under a single resolved identity.
type Syncer struct {
	cfg      config.Config
	toolPath string
}

// Mocked for unit testing.
var (
	lookPath    = exec.LookPath
	runTool     = runToolImpl
	materialize = profile.Materialize
)

// New locates unison and verifies it's a supported version. A missing or
// too-old tool is a setup failure for the whole run, not a per-target one.
func New(cfg config.Config) (*Syncer, error) {
	toolPath, err := lookPath(toolName)
	if err != nil {
		return nil, errors.WithContext(err, "locate "+toolName)
	}

	if err := checkToolVersion(toolPath, cfg.MinUnisonVersion); err != nil {
		return nil, err
	}
	return &Syncer{cfg: cfg, toolPath: toolPath}, nil
}

// Sync generates the profile for the given target and runs unison on it. The
// target must be one of the configured targets; otherwise it fails before
// touching the filesystem or starting any subprocess. Errors are returned for
// failures to set the invocation up; the tool's own exit is always reported
// through the Result.
func (s *Syncer) Sync(username, target string) (Result, error) {
	if !s.cfg.ValidTarget(target) {
		return Result{}, errors.InvalidSyncTarget{Target: target}
	}

	profilePath, err := materialize(s.cfg, username, target)
	if err != nil {
		return Result{}, err
	}
	log.WithField("profile", profilePath).Debug("Wrote unison profile")

	args := append([]string{target}, s.cfg.ExtraArgs...)
	output, exitCode, err := runTool(s.toolPath, args...)
	if err != nil {
		return Result{}, errors.WithContext(err, "run "+toolName)
	}

	result := Result{
		Target:   target,
		Output:   string(output),
		ExitCode: exitCode,
	}
	switch {
	case exitCode == 0:
		result.Outcome = Synced
	case s.cfg.Ignorable(exitCode):
		result.Outcome = Ignored
	default:
		result.Outcome = Failed
	}
	return result, nil
}

// runToolImpl runs the command and captures stdout and stderr together. A
// non-zero exit is reported through the exit code, not the error; the error
// is only for failures to run the command at all.
func runToolImpl(path string, args ...string) ([]byte, int, error) {
	cmd := exec.Command(path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output, exitErr.ExitCode(), nil
		}
		return output, 0, err
	}
	return output, 0, nil
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(\.\d+)?)`)

// ToolVersion runs `unison -version` and parses the release number out of its
// banner.
func ToolVersion(toolPath string) (*goversion.Version, error) {
	output, _, err := runTool(toolPath, "-version")
	if err != nil {
		return nil, errors.WithContext(err, "run "+toolName+" -version")
	}

	match := versionPattern.FindString(string(output))
	if match == "" {
		return nil, errors.New("no version in output: " + string(output))
	}
	return goversion.NewVersion(match)
}

func checkToolVersion(toolPath, minVersion string) error {
	min, err := goversion.NewVersion(minVersion)
	if err != nil {
		return errors.WithContext(err, "parse minimum version")
	}

	actual, err := ToolVersion(toolPath)
	if err != nil {
		// Some builds print unparseable banners. That shouldn't keep sync
		// from running.
		log.WithError(err).Debug("Could not determine unison version")
		return nil
	}

	if actual.LessThan(min) {
		return errors.NewFriendlyError("unison %s is older than the oldest "+
			"supported release (%s). Please upgrade it.", actual, min)
	}
	return nil
}
