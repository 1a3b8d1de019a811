package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Klaven/perfoverlay/internal/app"
)

func runCmd(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Show the overlay for this process",
		Long: "Start the metrics collector and show FPS, memory, CPU and network latency.\n" +
			"With --probe-url the overlay issues periodic requests through its instrumented\n" +
			"HTTP client so the network field has traffic to show.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, app.Params{Config: cfg, Out: cmd.OutOrStdout()})
		},
	}

	f := cmd.Flags()
	f.String("surface", "tui", "display surface: tui or text")
	f.Int("frame-window", 30, "number of frame intervals averaged for FPS")
	f.Int("fps-ceiling", 60, "highest FPS value reported")
	f.Int("refresh-rate", 60, "render loop rate in frames per second")
	f.Bool("show-log", false, "show the network event log at start")
	f.StringSlice("probe-url", nil, "URL to request periodically, may be repeated")
	f.Duration("probe-interval", 2*time.Second, "time between probe rounds")
	f.Int("probe-concurrency", 4, "maximum probe requests in flight")

	return cmd
}
