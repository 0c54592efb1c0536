// Package config holds the agent configuration: static settings loaded at
// startup plus the two detection thresholds, which are tunable at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Detection DetectionConfig `yaml:"detection"`
	Audio     AudioConfig     `yaml:"audio"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Command   CommandConfig   `yaml:"command"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// TrackerConfig points at the remote incident-tracking service.
type TrackerConfig struct {
	BaseURL  string `yaml:"base_url"`
	DeviceID string `yaml:"device_id"`
	Location string `yaml:"location"`
	Zone     string `yaml:"zone"`
}

// DetectionConfig holds sensor thresholds and timing.
type DetectionConfig struct {
	MotionThreshold     float64       `yaml:"motion_threshold"`
	SoundThreshold      float64       `yaml:"sound_threshold"`
	PixelThreshold      uint8         `yaml:"pixel_threshold"`
	MotionPollInterval  time.Duration `yaml:"motion_poll_interval"`
	EventCooldown       time.Duration `yaml:"event_cooldown"`
	RecordingDuration   time.Duration `yaml:"recording_duration"`
	FrameSampleInterval time.Duration `yaml:"frame_sample_interval"`
}

// AudioConfig describes the microphone stream.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	BufferSize int `yaml:"buffer_size"`
}

// EvidenceConfig bounds local evidence storage and remote forwarding.
type EvidenceConfig struct {
	Dir          string        `yaml:"dir"`
	IncidentLog  string        `yaml:"incident_log"`
	MaxImages    int           `yaml:"max_images"`
	MaxAudio     int           `yaml:"max_audio"`
	SendInterval time.Duration `yaml:"send_interval"`
	Archive      ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig configures optional off-site archival of evidence files.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CommandConfig configures polling of the remote start/stop flag.
type CommandConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NewDefaultConfig returns a Config with default values. The detection
// defaults are the deployed station profile: summed frame-diff magnitude
// over 10000 counts as motion, RMS over 0.03 counts as sound.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8750",
		},
		Tracker: TrackerConfig{
			BaseURL:  "http://localhost:8000",
			DeviceID: "station-01",
			Location: "Main Entrance",
			Zone:     "Zone A",
		},
		Detection: DetectionConfig{
			MotionThreshold:     10000,
			SoundThreshold:      0.03,
			PixelThreshold:      30,
			MotionPollInterval:  100 * time.Millisecond,
			EventCooldown:       10 * time.Second,
			RecordingDuration:   10 * time.Second,
			FrameSampleInterval: time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			BufferSize: 1024,
		},
		Evidence: EvidenceConfig{
			Dir:          "evidence",
			IncidentLog:  "incidents.json",
			MaxImages:    3,
			MaxAudio:     1,
			SendInterval: 5 * time.Second,
		},
		Command: CommandConfig{
			Enabled:      true,
			PollInterval: 5 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Detection.MotionThreshold < 0 {
		return fmt.Errorf("detection.motion_threshold must be >= 0, got %v", c.Detection.MotionThreshold)
	}
	if c.Detection.SoundThreshold < 0 {
		return fmt.Errorf("detection.sound_threshold must be >= 0, got %v", c.Detection.SoundThreshold)
	}
	if c.Detection.MotionPollInterval <= 0 {
		return fmt.Errorf("detection.motion_poll_interval must be positive, got %v", c.Detection.MotionPollInterval)
	}
	if c.Detection.RecordingDuration <= 0 {
		return fmt.Errorf("detection.recording_duration must be positive, got %v", c.Detection.RecordingDuration)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferSize <= 0 {
		return fmt.Errorf("audio.buffer_size must be positive, got %d", c.Audio.BufferSize)
	}
	if c.Evidence.MaxImages < 0 || c.Evidence.MaxAudio < 0 {
		return fmt.Errorf("evidence caps must be >= 0, got images=%d audio=%d", c.Evidence.MaxImages, c.Evidence.MaxAudio)
	}
	if c.Evidence.Dir == "" {
		return fmt.Errorf("evidence.dir must not be empty")
	}
	if c.Tracker.DeviceID == "" {
		return fmt.Errorf("tracker.device_id must not be empty")
	}
	return nil
}
