package debug

// Periodic runtime stats logger, started only when config.Debug is true.
// Logs goroutines, heap, process RSS and (optionally) capture counters so
// native memory growth can be told apart from Go heap growth.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/soocke/cyclewatch/domain/capture"
)

// Sample is one stats reading.
type Sample struct {
	Goroutines uint64
	HeapAlloc  uint64
	HeapInuse  uint64
	StackInuse uint64
	NumGC      uint32
	RSS        uint64
	RSSOK      bool
}

// Read collects a sample now.
func Read() Sample {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Sample{
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		StackInuse: ms.StackInuse,
		NumGC:      ms.NumGC,
	}
	if samples[0].Value.Kind() == metrics.KindUint64 {
		s.Goroutines = samples[0].Value.Uint64()
	}
	s.RSS, s.RSSOK = processRSS()
	return s
}

// StartStatsLogger logs a Sample every interval until ctx is done. statsFn
// may be nil; when set its capture counters are logged alongside.
func StartStatsLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, statsFn func() capture.CaptureStats) {
	if logger == nil {
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("stats logger panic", "error", r)
			}
		}()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var rssWarned bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s := Read()
			if !s.RSSOK && !rssWarned {
				logger.Warn("stats: process RSS unavailable on this platform")
				rssWarned = true
			}
			attrs := []any{
				slog.Uint64("goroutines", s.Goroutines),
				slog.Uint64("heap_alloc", s.HeapAlloc),
				slog.Uint64("heap_inuse", s.HeapInuse),
				slog.Uint64("stack_inuse", s.StackInuse),
				slog.Uint64("num_gc", uint64(s.NumGC)),
				slog.Uint64("rss", s.RSS),
			}
			if statsFn != nil {
				cs := statsFn()
				attrs = append(attrs,
					slog.Uint64("captures", cs.Captures),
					slog.Uint64("capture_skipped", cs.Skipped),
					slog.Duration("avg_capture", cs.AvgCapture),
					slog.Duration("frame_age", cs.LatestFrameAge),
				)
			}
			logger.Info("memstats", attrs...)
		}
	}()
}
