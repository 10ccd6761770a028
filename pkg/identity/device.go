package identity

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/macadm/unisync/pkg/errors"
)

// deviceProvider resolves the console user by stat'ing the console device.
// The device is chown'd to whoever is logged in at the console, so its owner
// uid identifies the user.
type deviceProvider struct {
	device string
}

// Mocked for unit testing.
var (
	lstat     = os.Lstat
	lookupUID = user.LookupId
	statOwner = statOwnerImpl
)

// Resolve implements Provider.
func (p deviceProvider) Resolve() (Identity, error) {
	info, err := lstat(p.device)
	if err != nil {
		return Identity{}, errors.DataCollectionError{
			Reason: "stat " + p.device + ": " + err.Error()}
	}

	uid, gid, err := statOwner(info)
	if err != nil {
		return Identity{}, err
	}

	u, err := lookupUID(strconv.Itoa(uid))
	if err != nil {
		return Identity{}, errors.DataCollectionError{
			Reason: "look up uid " + strconv.Itoa(uid) + ": " + err.Error()}
	}

	if u.Username == "" || isPlaceholder(u.Username) {
		return Identity{}, errors.DataCollectionError{
			Reason: "no user logged in at the console"}
	}
	return Identity{User: u.Username, UID: uid, GID: gid}, nil
}

func statOwnerImpl(info os.FileInfo) (uid, gid int, err error) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.DataCollectionError{
			Reason: "console device stat has no ownership information"}
	}
	return int(sys.Uid), int(sys.Gid), nil
}
