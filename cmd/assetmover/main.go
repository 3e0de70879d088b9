// assetmover moves assets and folders on a CMS site from the command line.
package main

import (
	"os"

	"github.com/rescale/assetmover/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
