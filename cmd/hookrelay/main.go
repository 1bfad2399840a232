// hookrelay - Event notification dispatcher for Claude Code hooks
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/hookrelay

package main

import (
	"os"

	"github.com/ariel-frischer/hookrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
