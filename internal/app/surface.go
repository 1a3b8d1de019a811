package app

import (
	"context"
	"io"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/Klaven/perfoverlay/internal/collector"
	"github.com/Klaven/perfoverlay/internal/config"
	"github.com/Klaven/perfoverlay/internal/frames"
	"github.com/Klaven/perfoverlay/internal/netmon"
	"github.com/Klaven/perfoverlay/internal/overlay"
)

// Surface displays snapshots until its context ends.
type Surface interface {
	collector.Observer
	Run(ctx context.Context) error
}

// textSurface blocks in Run while the collector prints through it.
type textSurface struct {
	*overlay.TextSurface
}

func (textSurface) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// NewSurface builds the configured surface.
func NewSurface(cfg *config.Config, out io.Writer, events *netmon.EventLog, pump *frames.Pump, clk clock.Clock, logger log.FieldLogger) Surface {
	vis := Visibility(cfg)
	if cfg.Surface.Kind == "text" {
		return textSurface{overlay.NewTextSurface(out, events, vis)}
	}
	return overlay.NewTUI(overlay.TUIConfig{
		Position:    overlay.Position{X: cfg.Overlay.X, Y: cfg.Overlay.Y},
		Visibility:  vis,
		LogLines:    overlay.DefaultLogLines,
		RefreshRate: cfg.Frames.RefreshRate,
	}, events, pump, clk, logger)
}
