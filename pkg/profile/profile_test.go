package profile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macadm/unisync/pkg/config"
	"github.com/macadm/unisync/pkg/errors"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TemplateDir = "/templates"
	cfg.ProfileDirPattern = "/users/{USER}/unison"
	return cfg
}

func writeTemplates(t *testing.T, cfg config.Config, shared, target string) {
	require.NoError(t, afero.WriteFile(fs,
		cfg.SharedTemplatePath(), []byte(shared), 0644))
	require.NoError(t, afero.WriteFile(fs,
		cfg.TargetTemplatePath("Dokument"), []byte(target), 0644))
}

func TestMaterialize(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()
	writeTemplates(t, cfg,
		"# shared for {USER}\nroot = /Users/{USER}\n",
		"root = /Volumes/{USER}/Dokument\npath = Documents\n")

	path, err := Materialize(cfg, "alice", "Dokument")
	assert.NoError(t, err)
	assert.Equal(t, "/users/alice/unison/Dokument.prf", path)

	contents, err := afero.ReadFile(fs, path)
	assert.NoError(t, err)
	assert.Equal(t,
		"# shared for alice\nroot = /Users/alice\n"+
			"root = /Volumes/alice/Dokument\npath = Documents\n",
		string(contents))
}

func TestMaterializeNoTrailingNewline(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()
	writeTemplates(t, cfg, "shared line\n", "last = {USER}")

	path, err := Materialize(cfg, "bob", "Dokument")
	assert.NoError(t, err)

	contents, err := afero.ReadFile(fs, path)
	assert.NoError(t, err)
	assert.Equal(t, "shared line\nlast = bob", string(contents))
}

func TestMaterializeOverwrites(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()
	writeTemplates(t, cfg,
		"a much longer shared template\nwith several lines\nof content\n",
		"target = {USER}\n")

	_, err := Materialize(cfg, "alice", "Dokument")
	require.NoError(t, err)

	// A rerun against shorter templates must leave no residue from the
	// first run.
	writeTemplates(t, cfg, "short\n", "target = {USER}\n")
	path, err := Materialize(cfg, "alice", "Dokument")
	require.NoError(t, err)

	contents, err := afero.ReadFile(fs, path)
	assert.NoError(t, err)
	assert.Equal(t, "short\ntarget = alice\n", string(contents))
}

func TestMaterializePerUser(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()
	writeTemplates(t, cfg, "home = /Users/{USER}\n", "")

	alicePath, err := Materialize(cfg, "alice", "Dokument")
	require.NoError(t, err)
	bobPath, err := Materialize(cfg, "bob", "Dokument")
	require.NoError(t, err)
	assert.NotEqual(t, alicePath, bobPath)

	aliceContents, err := afero.ReadFile(fs, alicePath)
	assert.NoError(t, err)
	assert.Equal(t, "home = /Users/alice\n", string(aliceContents))

	bobContents, err := afero.ReadFile(fs, bobPath)
	assert.NoError(t, err)
	assert.Equal(t, "home = /Users/bob\n", string(bobContents))
}

func TestMaterializeMissingTemplate(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()

	// No templates at all: the shared template is reported.
	_, err := Materialize(cfg, "alice", "Dokument")
	assert.Equal(t, errors.ConfigurationNotFound{
		Target: "Dokument",
		Path:   "/templates/Common.prfconfig",
	}, err)

	// Shared template present, target template missing.
	require.NoError(t, afero.WriteFile(fs,
		cfg.SharedTemplatePath(), []byte("shared\n"), 0644))
	_, err = Materialize(cfg, "alice", "Dokument")
	assert.Equal(t, errors.ConfigurationNotFound{
		Target: "Dokument",
		Path:   "/templates/Targets/Dokument.prfconfig",
	}, err)
}

func TestMaterializeCreatesProfileDir(t *testing.T) {
	fs = afero.NewMemMapFs()
	cfg := testConfig()
	writeTemplates(t, cfg, "shared\n", "target\n")

	_, err := Materialize(cfg, "alice", "Dokument")
	require.NoError(t, err)

	info, err := fs.Stat("/users/alice/unison")
	assert.NoError(t, err)
	assert.True(t, info.IsDir())
}
