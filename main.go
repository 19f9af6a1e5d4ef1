package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/cyclewatch/app"
	"github.com/soocke/cyclewatch/assets"
	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/debug"
	"github.com/soocke/cyclewatch/domain/capture"
	"github.com/soocke/cyclewatch/domain/cycle"
	"github.com/soocke/cyclewatch/domain/session"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cyclewatch", flag.ContinueOnError)
	var (
		cfgPath     = fs.String("config", "cyclewatch.yaml", "config file (YAML or JSON)")
		initConfig  = fs.Bool("init-config", false, "write a starter config to -config and exit")
		framesDir   = fs.String("frames", "", "directory of exported video frames to analyse")
		fps         = fs.Float64("fps", 30, "frame rate of -frames")
		screen      = fs.Bool("screen", false, "analyse the live screen instead of -frames")
		screenRect  = fs.String("screen-rect", "", "capture only x,y,w,h of the screen")
		duration    = fs.Duration("duration", 0, "stop live analysis after this long (0 runs until interrupted)")
		posePath    = fs.String("pose", "", "JSON Lines landmark file used as the pose estimator")
		scoresPath  = fs.String("scores", "", "replay a t,score[,label] CSV through the cycle logic and exit")
		overlayPath = fs.String("overlay", "", "save the setup frame with zones drawn to this image file")
		level       = fs.String("log-level", "", "override log_level from the config")
		sensitivity = fs.Int("sensitivity", 0, "override detection sensitivity (1..10)")
		takt        = fs.Float64("takt", -1, "override takt time in seconds")
		status      = fs.Bool("status", false, "print status events to stderr as they happen")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *initConfig {
		if err := assets.WriteDefaultConfig(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "init config: %v\n", err)
			return 1
		}
		fmt.Printf("wrote %s\n", *cfgPath)
		return 0
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *sensitivity != 0 {
		cfg.Detection.Sensitivity = *sensitivity
	}
	if *takt >= 0 {
		cfg.Detection.TaktTimeSeconds = *takt
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if cfg.Debug && *level == "" {
		cfg.LogLevel = "debug"
	}
	logger := NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *scoresPath != "" {
		return replayScores(ctx, *scoresPath, cfg, logger)
	}
	if *framesDir == "" && !*screen {
		fmt.Fprintln(os.Stderr, "nothing to analyse: pass -frames DIR, -screen or -scores FILE")
		fs.Usage()
		return 2
	}

	opts := app.Options{PosePath: *posePath}
	if *status {
		opts.OnEvent = printStatus
	}
	c, err := app.BuildContainer(ctx, cfg, logger, opts)
	if err != nil {
		logger.Error("build", "error", err)
		return 1
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close", "error", err)
		}
	}()

	runner := app.NewRunner(c.Session, cfg, logger)
	if *overlayPath != "" {
		runner.OnSetup = func(frame capture.FrameSnapshot, v session.View) {
			ov := debug.Overlay{}
			for _, z := range v.Zones {
				ov.Zones = append(ov.Zones, z.Rect)
			}
			ov.Anchor = v.Anchor
			if err := debug.WriteOverlay(*overlayPath, frame.Image, ov, 1280, 720); err != nil {
				logger.Warn("overlay not written", "path", *overlayPath, "error", err)
			}
		}
	}

	var sum cycle.Summary
	if *screen {
		sel, perr := parseRect(*screenRect)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "screen-rect: %v\n", perr)
			return 2
		}
		svc := capture.NewCaptureService(logger, nil, session.IntervalFor(cfg.Detection.DetectHz), func() *image.Rectangle { return sel })
		if cfg.Debug {
			debug.StartStatsLogger(ctx, 2*time.Second, logger, svc.Stats)
		}
		runCtx := ctx
		if *duration > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, *duration)
			defer cancel()
		}
		svc.Start()
		sum, err = runner.Run(runCtx, svc)
		svc.Stop()
	} else {
		seq, serr := capture.NewSequenceSource(*framesDir, *fps, logger)
		if serr != nil {
			logger.Error("open frames", "error", serr)
			return 1
		}
		if cfg.Debug {
			debug.StartStatsLogger(ctx, 2*time.Second, logger, nil)
		}
		logger.Info("replaying frames", "dir", *framesDir, "frames", seq.Len(), "fps", *fps)
		sum, err = runner.Replay(ctx, seq)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("analysis", "error", err)
		return 1
	}
	if err := app.WriteReport(os.Stdout, c.Session.Cycles(), sum); err != nil {
		logger.Error("report", "error", err)
		return 1
	}
	return 0
}

func replayScores(ctx context.Context, path string, cfg *config.Config, logger *slog.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scores: %v\n", err)
		return 1
	}
	defer f.Close()
	d := cfg.Detection
	seconds := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	ctrl := cycle.NewController(cycle.ParamsFor(d.Sensitivity, d.LowRatio,
		seconds(d.MinCycleSeconds), seconds(d.CooldownSeconds), seconds(d.TaktTimeSeconds)), logger)
	cycles, err := app.ReplayScores(ctx, f, ctrl)
	if err != nil {
		logger.Error("scores", "error", err)
		return 1
	}
	var span time.Duration
	if n := len(cycles); n > 0 {
		span = cycles[n-1].EndTime - cycles[0].StartTime
	}
	if err := app.WriteReport(os.Stdout, cycles, cycle.Summarize(cycles, ctrl.Params().Takt, span)); err != nil {
		return 1
	}
	return 0
}

// parseRect reads "x,y,w,h". An empty string selects the whole screen.
func parseRect(s string) (*image.Rectangle, error) {
	if s == "" {
		return nil, nil
	}
	var r config.Rect
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r.X, &r.Y, &r.Width, &r.Height); err != nil {
		return nil, fmt.Errorf("want x,y,w,h: %w", err)
	}
	if r.Empty() {
		return nil, errors.New("empty rectangle")
	}
	rect := r.Image()
	return &rect, nil
}

func printStatus(ev session.Event) {
	mark := " "
	if ev.Kind.Warning() {
		mark = "!"
	}
	fmt.Fprintf(os.Stderr, "%s %8.2fs %-18s %s\n", mark, ev.At.Seconds(), ev.Kind, ev.Message)
}
