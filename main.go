package main

import (
	"github.com/macadm/unisync/cmd"
	"github.com/macadm/unisync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
