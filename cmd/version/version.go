package version

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/macadm/unisync/pkg/sync"
	"github.com/macadm/unisync/pkg/version"
)

// Mocked for unit testing.
var (
	lookPath    = exec.LookPath
	toolVersion = sync.ToolVersion
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the unisync and unison versions",
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Printf("unisync version: %s\n", version.Version)

	toolPath, err := lookPath("unison")
	if err != nil {
		fmt.Println("unison version:  not installed")
		return
	}

	toolVer, err := toolVersion(toolPath)
	if err != nil {
		fmt.Println("unison version:  unknown")
		return
	}
	fmt.Printf("unison version:  %s\n", toolVer)
}
