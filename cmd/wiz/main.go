// Command wiz resolves environment definitions into a launchable context.
package main

import (
	"os"

	"github.com/themill/wiz/internal/cli"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
)

func main() {
	cli.SetVersion(buildVersion, buildCommit)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
