package identity

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"

	"github.com/macadm/unisync/pkg/errors"
)

const scutilCommand = "scutil"

// consoleUserQuery asks the system configuration daemon who owns the console
// session.
const consoleUserQuery = "show State:/Users/ConsoleUser\n"

// sessionProvider resolves the console user through scutil. The output is a
// dictionary dump along the lines of:
//
//	<dictionary> {
//	  GID : 20
//	  Name : alice
//	  UID : 501
//	  ...
//	}
type sessionProvider struct {
	scutilPath string
}

// Mocked for unit testing.
var runScutil = func(path string) ([]byte, error) {
	cmd := exec.Command(path)
	cmd.Stdin = strings.NewReader(consoleUserQuery)
	return cmd.Output()
}

// Resolve implements Provider.
func (p sessionProvider) Resolve() (Identity, error) {
	out, err := runScutil(p.scutilPath)
	if err != nil {
		return Identity{}, errors.DataCollectionError{
			Reason: "query console session: " + err.Error()}
	}

	ident, err := parseSessionDump(string(out))
	if err != nil {
		return Identity{}, err
	}

	if ident.User == "" || isPlaceholder(ident.User) {
		return Identity{}, errors.DataCollectionError{
			Reason: "no user logged in at the console"}
	}
	return ident, nil
}

func parseSessionDump(dump string) (Identity, error) {
	var ident Identity
	var sawUID bool

	scanner := bufio.NewScanner(strings.NewReader(dump))
	for scanner.Scan() {
		key, value, ok := splitField(scanner.Text())
		if !ok {
			continue
		}

		switch key {
		case "Name":
			ident.User = value
		case "UID":
			uid, err := strconv.Atoi(value)
			if err != nil {
				return Identity{}, errors.DataCollectionError{
					Reason: "malformed UID in session dump: " + value}
			}
			ident.UID = uid
			sawUID = true
		case "GID":
			gid, err := strconv.Atoi(value)
			if err != nil {
				return Identity{}, errors.DataCollectionError{
					Reason: "malformed GID in session dump: " + value}
			}
			ident.GID = gid
		}
	}

	if !sawUID {
		return Identity{}, errors.DataCollectionError{
			Reason: "session dump has no UID field"}
	}
	return ident, nil
}

// splitField parses a "  key : value" line from the scutil dump.
func splitField(line string) (key, value string, ok bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
