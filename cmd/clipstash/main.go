// clipstash: local clipboard history manager.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipstash/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipstash",
		Short: "Local clipboard history manager",
		Long: `clipstash keeps an ordered, bounded history of clipboard captures.

"clipstash serve" runs the history server. Starting it a second time under
the same user hands off to the running instance and exits. A separate
monitor process ("clipstash monitor", normally spawned by serve) watches
the OS clipboard and forwards new captures over a per-user local socket.

Config file search order (first found wins):
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

All flags can be set via CLIPSTASH_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMonitorCmd(),
		newAddCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipstash %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	if levelStr == "" {
		if interactive {
			levelStr = "debug"
		} else {
			levelStr = "info"
		}
	}
	logging.Setup(logging.Options{Format: formatStr, Level: levelStr})
}
