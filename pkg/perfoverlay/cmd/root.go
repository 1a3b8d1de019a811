package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Klaven/perfoverlay/internal/config"
)

// Flags represent cmd line flags shared by every subcommand
type Flags struct {
	ConfigFile string
}

// RootCmd is the root command builder
func RootCmd() *cobra.Command {
	globalFlags := &Flags{}

	cmd := &cobra.Command{
		Use:          "perfoverlay",
		Short:        "A live performance overlay for a running process",
		SilenceUsage: true,
	}

	// subcommands
	cmd.AddCommand(runCmd(globalFlags), sampleCmd(globalFlags), versionCmd())

	// Flags
	pf := cmd.PersistentFlags()
	pf.StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file (default: perfoverlay.yaml in ., ./configs or ~/.config/perfoverlay)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "write logs to this file instead of stderr")
	pf.Duration("interval", time.Second, "sampling interval")
	pf.String("source", "auto", "resource counters: auto, procfs, gopsutil or cgroup")

	return cmd
}

func loadConfig(cmd *cobra.Command, flags *Flags) (*config.Config, error) {
	return config.Load(flags.ConfigFile, cmd.Flags())
}
