// Command lovely-lint validates a mod directory's patch catalog offline,
// without attaching to any host process: it loads every lovely.toml (and
// archived mod) under a directory the same way the runtime does at
// startup, then reports load errors and warnings (duplicate patch names,
// pattern/regex patches capped at zero applications, module patches that
// set before without load_now) for mod authors to fix before shipping.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/ethangreen-dev/lovely-injector/patch"
)

func main() {
	modDir := pflag.StringP("mod-dir", "m", "", "mod directory to lint (required)")
	quiet := pflag.BoolP("quiet", "q", false, "suppress the summary line on success")
	pflag.Parse()

	if *modDir == "" {
		fmt.Fprintln(os.Stderr, "lovely-lint: --mod-dir is required")
		os.Exit(2)
	}

	table, err := patch.Load(*modDir)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	warnings := lint(table)
	for _, w := range warnings {
		color.New(color.FgYellow, color.Bold).Fprint(os.Stdout, "warning: ")
		fmt.Println(w)
	}

	if !*quiet {
		green := color.New(color.FgGreen, color.Bold)
		green.Printf("ok")
		fmt.Printf(": catalog at %s loaded cleanly (%d warning(s))\n", *modDir, len(warnings))
	}

	if len(warnings) > 0 {
		os.Exit(1)
	}
}
