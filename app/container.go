package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/domain/motion"
	"github.com/soocke/cyclewatch/domain/session"
	"github.com/soocke/cyclewatch/sink"
	"github.com/soocke/cyclewatch/storage"
)

// Container assembles the session and the configured cycle consumers.
type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      storage.Store
	Estimator  motion.PoseEstimator
	Session    *session.Session
	Dispatcher *sink.Dispatcher
}

// Options carries the inputs that do not live in the config file.
type Options struct {
	// PosePath is a JSON Lines landmark file replayed as the pose estimator.
	PosePath string
	// ExtraSinks receive cycles in addition to the configured ones.
	ExtraSinks []sink.Sink
	// OnEvent, if set, receives every session status event.
	OnEvent session.EventListener
}

// BuildContainer constructs all components. The store schema is created
// here so a bad DSN fails before any frame is processed.
func BuildContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Container, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Container{Config: cfg, Logger: logger}

	if opts.PosePath != "" {
		est, err := motion.LoadReplayEstimator(opts.PosePath)
		if err != nil {
			return nil, fmt.Errorf("load poses: %w", err)
		}
		c.Estimator = est
		if logger != nil {
			logger.Info("pose replay loaded", "path", opts.PosePath, "records", est.Len())
		}
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init store: %w", err)
		}
		c.Store = store
	}

	sinks := []sink.Sink{sink.NewLogSink(logger)}
	if c.Store != nil {
		sinks = append(sinks, sink.NewStoreSink(c.Store))
	}
	if cfg.Kafka.Enabled {
		k, err := sink.NewKafkaSink(cfg.Kafka)
		if err != nil {
			if c.Store != nil {
				_ = c.Store.Close()
			}
			return nil, err
		}
		sinks = append(sinks, k)
	}
	sinks = append(sinks, opts.ExtraSinks...)

	c.Session = session.New(cfg, c.Estimator, logger)
	c.Dispatcher = sink.NewDispatcher(c.Session.ID(), sink.DefaultBuffer, logger, sinks...)
	c.Session.AddCycleListener(c.Dispatcher.OnCycle)
	if opts.OnEvent != nil {
		c.Session.AddListener(opts.OnEvent)
	}
	return c, nil
}

// Close flushes pending cycles and releases every sink, the store included.
func (c *Container) Close() error {
	var errs []error
	if c.Dispatcher != nil {
		errs = append(errs, c.Dispatcher.Close())
		delivered, failed, dropped := c.Dispatcher.Stats()
		if c.Logger != nil {
			c.Logger.Debug("sinks closed", "delivered", delivered, "failed", failed, "dropped", dropped)
		}
	}
	return errors.Join(errs...)
}
