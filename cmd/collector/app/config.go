package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/k7rfm/rfmap/internal/dsp"
)

// Signal sources the collector can sample from.
const (
	SourceRTLSDR = "rtlsdr"
	SourceLineIn = "line-in"
)

const (
	defaultSampleRate  = 2_048_000
	defaultBlockSize   = 4096
	defaultInterval    = time.Second
	defaultBaudRate    = 9600
	defaultPollTimeout = 30 * time.Second
)

// Duration decodes human-readable YAML values such as "1s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the collector's slice of the survey configuration file.
// The file's map section belongs to the map generator and is ignored
// here.
type Config struct {
	Settings Settings       `yaml:"settings"`
	Radio    RadioConfig    `yaml:"radio"`
	Sampling SamplingConfig `yaml:"sampling"`
	GPS      GPSConfig      `yaml:"gps"`
	Output   OutputConfig   `yaml:"output"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SlogLevel parses the configured log level, defaulting to info.
func (s *Settings) SlogLevel() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("parsing log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// RadioConfig describes the signal source and its tuning.
type RadioConfig struct {
	Source              string  `yaml:"source"`
	ListeningFrequency  int64   `yaml:"listeningFrequency"`
	SampleRate          int     `yaml:"sampleRate"`
	FrequencyCorrection int     `yaml:"frequencyCorrection"`
	Gain                float64 `yaml:"gain"`
	AntennaOffsetDB     float64 `yaml:"antennaOffsetDB"`
	BlockSize           int     `yaml:"blockSize"`
	Window              string  `yaml:"window"`

	// Scale overrides the frequency-derived classification scale.
	// Accepted values are "hf" and "vhf"; empty selects by frequency.
	Scale string `yaml:"scale"`
}

// SamplingConfig controls the acquisition cadence and announcements.
type SamplingConfig struct {
	Interval Duration       `yaml:"interval"`
	Announce AnnounceConfig `yaml:"announce"`
}

// AnnounceConfig controls spoken signal announcements.
type AnnounceConfig struct {
	Enabled bool `yaml:"enabled"`
	Every   int  `yaml:"every"`
}

// GPSConfig describes the positioning receiver.
type GPSConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Port        string   `yaml:"port"`
	BaudRate    int      `yaml:"baudRate"`
	PollTimeout Duration `yaml:"pollTimeout"`
}

// OutputConfig names the record destinations.
type OutputConfig struct {
	CSVPath  string         `yaml:"csvPath"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig is the optional SQLite mirror of the CSV output.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig reads, validates and applies defaults to a configuration
// file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate applies defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Radio.Source == "" {
		c.Radio.Source = SourceRTLSDR
	}
	switch c.Radio.Source {
	case SourceRTLSDR:
	case SourceLineIn:
		// Recognized source with no implementation yet. Rejected at
		// startup rather than at the first read.
		return fmt.Errorf("signal source '%s' is not supported on this build", SourceLineIn)
	default:
		return fmt.Errorf("unknown signal source '%s'", c.Radio.Source)
	}

	if c.Radio.ListeningFrequency <= 0 {
		return fmt.Errorf("listening frequency must be positive: %d", c.Radio.ListeningFrequency)
	}
	if c.Radio.SampleRate == 0 {
		c.Radio.SampleRate = defaultSampleRate
	}
	if c.Radio.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.Radio.SampleRate)
	}
	if c.Radio.BlockSize == 0 {
		c.Radio.BlockSize = defaultBlockSize
	}
	if c.Radio.BlockSize < 0 {
		return fmt.Errorf("block size must be positive: %d", c.Radio.BlockSize)
	}
	switch c.Radio.Window {
	case "", dsp.WindowRectangle, dsp.WindowHann, dsp.WindowHamming, dsp.WindowBlackman:
	default:
		return fmt.Errorf("unknown window '%s'", c.Radio.Window)
	}
	switch c.Radio.Scale {
	case "", "hf", "vhf":
	default:
		return fmt.Errorf("unknown scale override '%s'", c.Radio.Scale)
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = Duration(defaultInterval)
	}
	if c.Sampling.Interval < 0 {
		return fmt.Errorf("sampling interval must be positive: %s", time.Duration(c.Sampling.Interval))
	}
	if c.Sampling.Announce.Enabled && c.Sampling.Announce.Every <= 0 {
		return fmt.Errorf("announce cadence must be positive: %d", c.Sampling.Announce.Every)
	}

	if c.GPS.Enabled {
		if c.GPS.BaudRate == 0 {
			c.GPS.BaudRate = defaultBaudRate
		}
		if c.GPS.BaudRate < 0 {
			return fmt.Errorf("baud rate must be positive: %d", c.GPS.BaudRate)
		}
		if c.GPS.PollTimeout == 0 {
			c.GPS.PollTimeout = Duration(defaultPollTimeout)
		}
		if c.GPS.PollTimeout < 0 {
			return fmt.Errorf("GPS poll timeout must be positive: %s", time.Duration(c.GPS.PollTimeout))
		}
	}

	if c.Output.CSVPath == "" {
		return fmt.Errorf("output CSV path is required")
	}
	if c.Output.Database.Enabled && c.Output.Database.Path == "" {
		return fmt.Errorf("database path is required when the database mirror is enabled")
	}

	return nil
}
