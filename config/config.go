package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rect is a rectangle in source-video pixel coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// RectFrom converts an image.Rectangle to a Rect.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Config holds runtime configuration for cycle detection and app behavior.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Tracking  TrackingConfig  `json:"tracking" yaml:"tracking"`
	Motion    MotionConfig    `json:"motion" yaml:"motion"`

	// Zone and anchor persistence. Anchor is optional.
	Zone   Rect  `json:"zone" yaml:"zone"`
	Anchor *Rect `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	// ReferenceFrame is the index of the frame the reference and anchor
	// template are captured from when replaying a frame sequence.
	ReferenceFrame int `json:"reference_frame" yaml:"reference_frame"`

	Storage StorageConfig `json:"storage" yaml:"storage"`
	Kafka   KafkaConfig   `json:"kafka" yaml:"kafka"`
}

type DetectionConfig struct {
	Sensitivity        int     `json:"sensitivity" yaml:"sensitivity"`
	TaktTimeSeconds    float64 `json:"takt_time_seconds" yaml:"takt_time_seconds"`
	MinCycleSeconds    float64 `json:"min_cycle_seconds" yaml:"min_cycle_seconds"`
	CooldownSeconds    float64 `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	LowRatio           float64 `json:"low_ratio" yaml:"low_ratio"`
	BlurKernel         int     `json:"blur_kernel" yaml:"blur_kernel"`
	PixelDiffThreshold int     `json:"pixel_diff_threshold" yaml:"pixel_diff_threshold"`
	SmoothingAlpha     float64 `json:"smoothing_alpha" yaml:"smoothing_alpha"`
	DetectHz           float64 `json:"detect_hz" yaml:"detect_hz"`
	PoseHz             float64 `json:"pose_hz" yaml:"pose_hz"`
	// PauseWhileTrackingLost freezes the cycle state machine while the
	// anchor cannot be found. Off by default: scoring continues on the
	// last good offset.
	PauseWhileTrackingLost bool `json:"pause_while_tracking_lost" yaml:"pause_while_tracking_lost"`
}

type TrackingConfig struct {
	SearchMargin int     `json:"search_margin" yaml:"search_margin"`
	Confidence   float64 `json:"confidence" yaml:"confidence"`
	Stride       int     `json:"stride" yaml:"stride"`
	Refine       bool    `json:"refine" yaml:"refine"`
}

type MotionConfig struct {
	MoveThreshold      float64 `json:"move_threshold" yaml:"move_threshold"`
	ReachThreshold     float64 `json:"reach_threshold" yaml:"reach_threshold"`
	ExtensionThreshold float64 `json:"extension_threshold" yaml:"extension_threshold"`
	Smoothing          float64 `json:"smoothing" yaml:"smoothing"`
	MinVisibility      float64 `json:"min_visibility" yaml:"min_visibility"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Detection: DetectionConfig{
			Sensitivity:        5,
			TaktTimeSeconds:    30,
			MinCycleSeconds:    1.0,
			CooldownSeconds:    1.5,
			LowRatio:           0.6,
			BlurKernel:         5,
			PixelDiffThreshold: 25,
			SmoothingAlpha:     0.2,
			DetectHz:           20,
			PoseHz:             15,
		},
		Tracking: TrackingConfig{
			SearchMargin: 50,
			Confidence:   0.6,
			Stride:       2,
			Refine:       true,
		},
		Motion: MotionConfig{
			MoveThreshold:      0.005,
			ReachThreshold:     0.02,
			ExtensionThreshold: 0.4,
			Smoothing:          0.7,
			MinVisibility:      0.5,
		},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:cyclewatch.db?_pragma=busy_timeout(5000)"},
		Kafka:   KafkaConfig{Enabled: false, Topic: "cycles"},
	}
}

// Validate clamps/normalizes values to safe ranges. It only returns an
// error for settings that cannot be repaired.
func (c *Config) Validate() error {
	d := &c.Detection
	if d.Sensitivity < 1 {
		d.Sensitivity = 1
	} else if d.Sensitivity > 10 {
		d.Sensitivity = 10
	}
	if d.TaktTimeSeconds < 0 {
		d.TaktTimeSeconds = 0
	}
	if d.MinCycleSeconds <= 0 {
		d.MinCycleSeconds = 1.0
	}
	if d.CooldownSeconds < 0 {
		d.CooldownSeconds = 1.5
	}
	if d.LowRatio <= 0 || d.LowRatio >= 1 {
		d.LowRatio = 0.6
	}
	if d.BlurKernel < 1 {
		d.BlurKernel = 5
	}
	if d.BlurKernel%2 == 0 {
		d.BlurKernel++
	}
	if d.PixelDiffThreshold <= 0 || d.PixelDiffThreshold > 255 {
		d.PixelDiffThreshold = 25
	}
	if d.SmoothingAlpha <= 0 || d.SmoothingAlpha > 1 {
		d.SmoothingAlpha = 0.2
	}
	if d.DetectHz <= 0 {
		d.DetectHz = 20
	}
	if d.PoseHz <= 0 {
		d.PoseHz = 15
	}

	t := &c.Tracking
	if t.SearchMargin <= 0 {
		t.SearchMargin = 50
	}
	if t.Confidence <= 0 || t.Confidence > 1 {
		t.Confidence = 0.6
	}
	if t.Stride <= 0 {
		t.Stride = 1
	}

	m := &c.Motion
	if m.MoveThreshold <= 0 {
		m.MoveThreshold = 0.005
	}
	if m.ReachThreshold < m.MoveThreshold {
		m.ReachThreshold = 0.02
	}
	if m.ExtensionThreshold <= 0 {
		m.ExtensionThreshold = 0.4
	}
	if m.Smoothing <= 0 || m.Smoothing >= 1 {
		m.Smoothing = 0.7
	}
	if m.MinVisibility < 0 || m.MinVisibility > 1 {
		m.MinVisibility = 0.5
	}

	if c.ReferenceFrame < 0 {
		c.ReferenceFrame = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage.Enabled {
		switch strings.ToLower(c.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka enabled without brokers")
		}
		if c.Kafka.Topic == "" {
			c.Kafka.Topic = "cycles"
		}
	}
	return nil
}

// Load attempts to read configuration from the given path. JSON is used for
// .json files and for content that starts with '{'; everything else is
// decoded as YAML. If the file does not exist it returns DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := Decode(data, strings.ToLower(filepath.Ext(path)) == ".json", cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, keeping existing values for omitted fields.
func Decode(data []byte, asJSON bool, cfg *Config) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return errors.New("config file is empty")
	}
	if asJSON || strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), cfg); err != nil {
			return fmt.Errorf("decode json config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal([]byte(trimmed), cfg); err != nil {
		return fmt.Errorf("decode yaml config: %w", err)
	}
	return nil
}

// Save writes the configuration to the given path, JSON for .json files and
// YAML otherwise.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
