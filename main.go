package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/webforge-dev/webforge/cli"
)

func main() {
	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if shouldPrintUsageHint(err) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", cmd.CommandPath())
		}
		os.Exit(1)
	}
}

func shouldPrintUsageHint(err error) bool {
	message := strings.ToLower(err.Error())
	for _, pattern := range []string{"unknown command", "unknown flag", "accepts ", "requires at least"} {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}
