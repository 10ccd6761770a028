// Package profile generates per-user unison profiles from the system-wide
// templates.
package profile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/macadm/unisync/pkg/config"
	"github.com/macadm/unisync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

const profileDirMode = 0755

// Materialize writes the unison profile for the given user and target, and
// returns the path it was written to. The profile is the shared template
// followed by the target's template, with every {USER} occurrence replaced by
// the username and every other byte unchanged. The destination is fully
// overwritten on every call.
func Materialize(cfg config.Config, username, target string) (string, error) {
	dir := cfg.ProfileDir(username)
	if err := fs.MkdirAll(dir, profileDirMode); err != nil {
		return "", errors.WithContext(err, "create profile directory")
	}

	dest := cfg.ProfilePath(username, target)
	out, err := fs.Create(dest)
	if err != nil {
		return "", errors.WithContext(err, "create profile")
	}
	defer out.Close()

	templates := []string{
		cfg.SharedTemplatePath(),
		cfg.TargetTemplatePath(target),
	}
	for _, template := range templates {
		if err := appendTemplate(out, template, username); err != nil {
			if os.IsNotExist(errors.RootCause(err)) {
				return "", errors.ConfigurationNotFound{Target: target, Path: template}
			}
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", errors.WithContext(err, "flush profile")
	}
	return dest, nil
}

func appendTemplate(out io.Writer, path, username string) error {
	in, err := fs.Open(path)
	if err != nil {
		return errors.WithContext(err, "open template")
	}
	defer in.Close()

	// Line endings are preserved by reading through the delimiter rather
	// than scanning tokens.
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if strings.Contains(line, config.UserToken) {
				line = strings.Replace(line, config.UserToken, username, -1)
			}
			if _, err := io.WriteString(out, line); err != nil {
				return errors.WithContext(err, "write profile")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WithContext(err, "read template")
		}
	}
}
