package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		rev := ""
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					rev = s.Value[:7]
				}
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wablast %s", version)
		if rev != "" {
			fmt.Fprintf(out, " (%s)", rev)
		}
		fmt.Fprintf(out, "\nGo: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
