package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Klaven/perfoverlay/internal/collector"
	"github.com/Klaven/perfoverlay/internal/overlay"
	"github.com/Klaven/perfoverlay/internal/stats"
)

func sampleCmd(flags *Flags) *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print memory and CPU usage of a process once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if pid <= 0 {
				pid = os.Getpid()
			}

			src, err := stats.NewSource(cfg.Sampler.Source, pid)
			if err != nil {
				return err
			}
			return sampleOnce(cmd.Context(), cmd.OutOrStdout(), src, clock.New(), cfg.Collector.Interval)
		},
	}

	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "process to sample (default: this process)")

	return cmd
}

// sampleOnce takes a CPU baseline, waits one interval and prints the
// resulting memory and CPU fields.
func sampleOnce(ctx context.Context, out io.Writer, src stats.ResourceSource, clk clock.Clock, interval time.Duration) error {
	sampler := stats.NewProcessSampler(src, clk)
	if err := sampler.Rebase(ctx); err != nil {
		return errors.Wrap(err, "capture cpu baseline")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(interval):
	}

	m, err := sampler.Sample(ctx)
	if err != nil {
		return err
	}

	snap := collector.Snapshot{
		UsedMemoryMB:    m.MemoryMB,
		CPUUsagePercent: m.CPUPercent,
		CollectedAt:     clk.Now(),
	}
	fmt.Fprintf(out, "source: %s\n", m.Source)
	fmt.Fprintln(out, overlay.RenderFields(&snap, overlay.Visibility{Memory: true, CPU: true}))
	return nil
}
