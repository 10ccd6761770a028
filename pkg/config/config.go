package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/macadm/unisync/pkg/errors"
)

const (
	// UserToken is the placeholder in path patterns and templates that gets
	// replaced with the resolved console username.
	UserToken = "{USER}"

	// DefaultOverridePath is where deployments may drop a config file to
	// override the compiled-in defaults. Its absence is not an error.
	DefaultOverridePath = "/Library/Unisync/unisync.yaml"

	// InitialConfigVersion is the version assumed for config files that don't
	// specify one.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the config version supported by this binary.
	SupportedConfigVersion = "v1alpha1"
)

// parseConfigErrTemplate is a template for when we fail to parse yaml
// configuration files. This can happen for a multitude of reasons, including
// extraneous fields and incorrect field types. However, the yaml library
// constructs errors in a way that loses context, and so we can only pass the
// error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// Config is the full, immutable configuration for one run. It's resolved once
// at startup and passed around by value; nothing mutates it afterwards.
type Config struct {
	Version string `json:"version,omitempty"`

	// Targets are the unison profile names synced each run, in order.
	Targets []string `json:"targets"`

	// TemplateDir holds the shared template and the Targets/ subdirectory
	// with the per-target templates.
	TemplateDir    string `json:"templateDir"`
	SharedTemplate string `json:"sharedTemplate"`
	TargetsSubdir  string `json:"targetsSubdir"`
	TemplateExt    string `json:"templateExt"`
	ProfileExt     string `json:"profileExt"`

	// ProfileDirPattern is the per-user directory the generated profiles are
	// written to. MountPattern is the sync mount that must exist before any
	// target is attempted. Both contain the {USER} token.
	ProfileDirPattern string `json:"profileDirPattern"`
	MountPattern      string `json:"mountPattern"`

	// ConsoleDevice is stat'd to find the console owner when the session
	// service isn't available.
	ConsoleDevice string `json:"consoleDevice"`

	// MinUID excludes system accounts from sync. DeniedUsers excludes named
	// accounts regardless of uid.
	MinUID      int      `json:"minUID"`
	DeniedUsers []string `json:"deniedUsers"`

	// IgnorableExitCodes are unison exit codes that don't abort the run.
	// Empty means any non-zero exit is fatal.
	IgnorableExitCodes []int `json:"ignorableExitCodes"`

	// ExtraArgs are appended to every unison invocation.
	ExtraArgs []string `json:"extraArgs"`

	// MinUnisonVersion is the oldest unison release the templates are known
	// to work with.
	MinUnisonVersion string `json:"minUnisonVersion"`
}

func (c Config) getVersion() string {
	return c.Version
}

// Default returns the compiled-in configuration. The strict exit-code policy
// ships by default: any non-zero unison exit aborts the run. Deployments that
// want to tolerate partial transfers (unison codes 1 and 2) opt in through the
// override file.
func Default() Config {
	return Config{
		Version:           SupportedConfigVersion,
		Targets:           []string{"Dokument", "Skrivbord", "Bibliotek"},
		TemplateDir:       "/Library/Unisync/Templates",
		SharedTemplate:    "Common",
		TargetsSubdir:     "Targets",
		TemplateExt:       "prfconfig",
		ProfileExt:        "prf",
		ProfileDirPattern: "/Users/{USER}/Library/Application Support/Unison",
		MountPattern:      "/Volumes/{USER}",
		ConsoleDevice:     "/dev/console",
		MinUID:            501,
		DeniedUsers:       []string{"root"},
		ExtraArgs:         []string{"-silent"},
		MinUnisonVersion:  "2.48",
	}
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Load resolves the configuration for a run. With an empty path it returns
// the defaults, overlaid with DefaultOverridePath when that file exists. With
// an explicit path the file must exist.
func Load(path string) (Config, error) {
	if path == "" {
		exists, err := afero.Exists(fs, DefaultOverridePath)
		if err != nil {
			// A failed probe (e.g. permission denied) is not the same as
			// the file being absent.
			return Config{}, errors.WithContext(err, "check override config")
		}
		if !exists {
			return Default(), nil
		}
		return Parse(DefaultOverridePath)
	}

	expanded, err := homedirExpand(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}
	return Parse(expanded)
}

// Parse reads the config file at the given path on top of the defaults, so a
// file only needs to name the fields it changes.
func Parse(path string) (Config, error) {
	config := Default()
	config.Version = InitialConfigVersion
	if err := parseConfig(path, &config, SupportedConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Config{}, errors.NewFriendlyError("The config file doesn't "+
				"exist at %q.", path)
		}
		return Config{}, errors.WithContext(err, "parse")
	}

	if err := config.validate(); err != nil {
		return Config{}, errors.WithContext(err, "validate")
	}
	return config, nil
}

func (c Config) validate() error {
	if len(c.Targets) == 0 {
		return errors.MissingFieldError{Field: "targets"}
	}
	if c.TemplateDir == "" {
		return errors.MissingFieldError{Field: "templateDir"}
	}
	if c.ProfileDirPattern == "" {
		return errors.MissingFieldError{Field: "profileDirPattern"}
	}
	if c.MountPattern == "" {
		return errors.MissingFieldError{Field: "mountPattern"}
	}
	return nil
}

// ValidTarget reports whether the given name is one of the configured sync
// targets.
func (c Config) ValidTarget(target string) bool {
	for _, t := range c.Targets {
		if t == target {
			return true
		}
	}
	return false
}

// Ignorable reports whether the given unison exit code is configured as
// non-fatal.
func (c Config) Ignorable(code int) bool {
	for _, ignorable := range c.IgnorableExitCodes {
		if ignorable == code {
			return true
		}
	}
	return false
}

// ProfileDir returns the directory the generated profiles are written to for
// the given user.
func (c Config) ProfileDir(username string) string {
	return strings.Replace(c.ProfileDirPattern, UserToken, username, -1)
}

// MountPoint returns the sync mount that must exist for the given user.
func (c Config) MountPoint(username string) string {
	return strings.Replace(c.MountPattern, UserToken, username, -1)
}

// SharedTemplatePath returns the path of the template shared by all targets.
func (c Config) SharedTemplatePath() string {
	return filepath.Join(c.TemplateDir,
		fmt.Sprintf("%s.%s", c.SharedTemplate, c.TemplateExt))
}

// TargetTemplatePath returns the path of the template specific to the given
// target.
func (c Config) TargetTemplatePath(target string) string {
	return filepath.Join(c.TemplateDir, c.TargetsSubdir,
		fmt.Sprintf("%s.%s", target, c.TemplateExt))
}

// ProfilePath returns the path the generated profile is written to for the
// given user and target.
func (c Config) ProfilePath(username, target string) string {
	return filepath.Join(c.ProfileDir(username),
		fmt.Sprintf("%s.%s", target, c.ProfileExt))
}

type configInterface interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of unisync.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

func parseConfig(path string, config configInterface, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if isPathNotFoundError(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, config.getVersion()}
	}

	// Do a strict unmarshal to check for any extra fields. We do a non-strict
	// unmarshal first so that we can catch version errors before erroring on
	// extra fields.
	err = yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}

func isPathNotFoundError(err error) bool {
	return os.IsNotExist(err)
}
