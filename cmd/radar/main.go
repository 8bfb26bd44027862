package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "radar"}

	root.AddCommand(serveCMD(), workerCMD(), migrateCMD(), runCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
