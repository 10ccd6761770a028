package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/macadm/unisync/pkg/errors"
)

func TestParse(t *testing.T) {
	out := "unisync.yaml"

	strictDefaults := Default()
	lenient := Default()
	lenient.IgnorableExitCodes = []int{1, 2}
	customTargets := Default()
	customTargets.Targets = []string{"Dokument"}

	tests := []struct {
		name      string
		input     []byte
		expConfig Config
		expError  error
	}{
		{
			name:      "EmptyFile",
			input:     []byte("{}"),
			expConfig: strictDefaults,
			expError:  nil,
		},
		{
			name:      "LenientExitCodePolicy",
			input:     []byte("ignorableExitCodes: [1, 2]"),
			expConfig: lenient,
			expError:  nil,
		},
		{
			name:      "OverrideTargets",
			input:     []byte("targets: [Dokument]"),
			expConfig: customTargets,
			expError:  nil,
		},
		{
			name:      "IncorrectVersion",
			input:     []byte("version: incorrect_version"),
			expConfig: Config{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name:      "ExtraFields",
			input:     []byte("extra: fields"),
			expConfig: Config{},
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, out,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			name:      "EmptyTargets",
			input:     []byte("targets: []"),
			expConfig: Config{},
			expError: errors.WithContext(
				errors.MissingFieldError{Field: "targets"}, "validate"),
		},
	}

	fs = afero.NewMemMapFs()
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := afero.WriteFile(fs, out, test.input, 0644)
			assert.NoError(t, err)
			config, err := Parse(out)
			assert.Equal(t, test.expConfig, config)
			assert.Equal(t, test.expError, err)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	_, err := Parse("does-not-exist.yaml")
	assert.Equal(t, errors.NewFriendlyError(
		"The config file doesn't exist at %q.", "does-not-exist.yaml"), err)
}

func TestLoad(t *testing.T) {
	fs = afero.NewMemMapFs()

	// Without an override file the compiled-in defaults apply.
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// A file at the well-known path is picked up automatically.
	err = afero.WriteFile(fs, DefaultOverridePath,
		[]byte("minUID: 1000"), 0644)
	assert.NoError(t, err)

	cfg, err = Load("")
	assert.NoError(t, err)
	assert.Equal(t, 1000, cfg.MinUID)
}

// statErrorFs fails every Stat with a permission error, like an unreadable
// /Library/Unisync.
type statErrorFs struct {
	afero.Fs
}

func (f statErrorFs) Stat(name string) (os.FileInfo, error) {
	return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrPermission}
}

func TestLoadOverrideProbeFailure(t *testing.T) {
	fs = statErrorFs{afero.NewMemMapFs()}
	defer func() {
		fs = afero.NewOsFs()
	}()

	_, err := Load("")
	assert.Equal(t, errors.WithContext(&os.PathError{
		Op:   "stat",
		Path: DefaultOverridePath,
		Err:  os.ErrPermission,
	}, "check override config"), err)
}

func TestValidTarget(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.ValidTarget("Dokument"))
	assert.True(t, cfg.ValidTarget("Skrivbord"))
	assert.True(t, cfg.ValidTarget("Bibliotek"))
	assert.False(t, cfg.ValidTarget("Hemkatalog"))
	assert.False(t, cfg.ValidTarget(""))
}

func TestIgnorable(t *testing.T) {
	strict := Default()
	assert.False(t, strict.Ignorable(1))
	assert.False(t, strict.Ignorable(2))
	assert.False(t, strict.Ignorable(3))

	lenient := Default()
	lenient.IgnorableExitCodes = []int{1, 2}
	assert.True(t, lenient.Ignorable(1))
	assert.True(t, lenient.Ignorable(2))
	assert.False(t, lenient.Ignorable(3))
}

func TestPaths(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/Users/alice/Library/Application Support/Unison",
		cfg.ProfileDir("alice"))
	assert.Equal(t, "/Volumes/alice", cfg.MountPoint("alice"))
	assert.Equal(t, "/Library/Unisync/Templates/Common.prfconfig",
		cfg.SharedTemplatePath())
	assert.Equal(t, "/Library/Unisync/Templates/Targets/Dokument.prfconfig",
		cfg.TargetTemplatePath("Dokument"))
	assert.Equal(t,
		"/Users/alice/Library/Application Support/Unison/Dokument.prf",
		cfg.ProfilePath("alice", "Dokument"))
}
