package main

import (
	"fmt"
)

func (a *app) runConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "config subcommand required")
		return 2
	}

	switch args[0] {
	case "print":
		if len(args) > 1 {
			fmt.Fprintln(a.errOut, "config print takes no arguments")
			return 2
		}
		data, err := a.cfg.Marshal()
		if err != nil {
			fmt.Fprintf(a.errOut, "render config: %v\n", err)
			return 1
		}
		_, _ = a.out.Write(data)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}
