// Package identity resolves the human user that owns the machine's console
// session. The session service is preferred; stat'ing the console device is
// the fallback when it isn't available.
package identity

import (
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/macadm/unisync/pkg/config"
)

// Identity describes the currently logged-in console user. It's resolved once
// per run and never changes afterwards.
type Identity struct {
	User string
	UID  int
	GID  int
}

// Provider resolves the console user's identity.
type Provider interface {
	Resolve() (Identity, error)
}

// placeholderUsers are the accounts macOS reports while nobody is actually
// logged in at the console.
var placeholderUsers = []string{"loginwindow", "_mbsetupuser"}

// Mocked for unit testing.
var lookPath = exec.LookPath

// Select picks the identity provider to use for this run by probing what's
// available, rather than falling back after a failure.
func Select(cfg config.Config) Provider {
	if path, err := lookPath(scutilCommand); err == nil {
		return sessionProvider{scutilPath: path}
	}

	log.Debugf("%s not found, falling back to console device stat", scutilCommand)
	return deviceProvider{device: cfg.ConsoleDevice}
}

// IsEligible reports whether sync should run for the given user. System
// accounts (below the uid threshold) and explicitly denied users are skipped.
// Ineligibility is a normal outcome, not an error.
func IsEligible(cfg config.Config, uid int, name string) bool {
	if uid < cfg.MinUID {
		return false
	}
	for _, denied := range cfg.DeniedUsers {
		if name == denied {
			return false
		}
	}
	return true
}

func isPlaceholder(name string) bool {
	for _, placeholder := range placeholderUsers {
		if name == placeholder {
			return true
		}
	}
	return false
}
