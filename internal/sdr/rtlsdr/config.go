package rtlsdr

import (
	"fmt"
	"strconv"
)

const (
	// SampleRateMin and SampleRateMax bound what the RTL2832U tuner
	// accepts without silently dropping samples.
	SampleRateMin = 225_000
	SampleRateMax = 3_200_000
)

// Config holds the `rtl_sdr` capture tool settings.
type Config struct {
	// Required
	CenterFrequency int64 `yaml:"centerFrequency" json:"centerFrequency"` // -f tuned frequency (Hz)
	SampleRate      int64 `yaml:"sampleRate" json:"sampleRate"`           // -s sample rate (Hz)

	// Optional
	FrequencyCorrection int     `yaml:"frequencyCorrection" json:"frequencyCorrection"` // -p ppm error (default: 0)
	Gain                float64 `yaml:"gain" json:"gain"`                               // -g tuner gain in dB (default: automatic)
	DeviceIndex         int     `yaml:"deviceIndex" json:"deviceIndex"`                 // -d device index (default: 0)
	BiasTee             bool    `yaml:"biasTee" json:"biasTee"`                         // -T enable bias-tee (default: off)
}

func (c *Config) Validate() error {
	if c.CenterFrequency <= 0 {
		return fmt.Errorf("rtlsdr.Config: center frequency must be positive: %d", c.CenterFrequency)
	}
	if c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax {
		return fmt.Errorf("rtlsdr.Config: sample rate %d out of range [%d, %d]", c.SampleRate, SampleRateMin, SampleRateMax)
	}
	if c.Gain < 0 {
		return fmt.Errorf("rtlsdr.Config: gain must not be negative: %f", c.Gain)
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtlsdr.Config: device index must not be negative: %d", c.DeviceIndex)
	}
	return nil
}

// Args returns the command line arguments for `rtl_sdr`.
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", strconv.FormatInt(c.CenterFrequency, 10),
		"-s", strconv.FormatInt(c.SampleRate, 10),
		"-d", strconv.Itoa(c.DeviceIndex),
	}

	if c.FrequencyCorrection != 0 {
		args = append(args, "-p", strconv.Itoa(c.FrequencyCorrection))
	}

	if c.Gain > 0 {
		args = append(args, "-g", strconv.FormatFloat(c.Gain, 'f', 1, 64))
	}

	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // stream raw samples to stdout

	return args, nil
}
