package main

import (
	"os"

	"github.com/MrJamesThe3rd/treevu/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
