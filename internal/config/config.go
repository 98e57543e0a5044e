// ABOUTME: Environment-backed configuration
// ABOUTME: Loads an optional .env file and TONESTREAM_* variables into CLI defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Output backends selectable with Output
var Outputs = []string{"oto", "malgo", "portaudio", "headless", "stdout", "websocket"}

type Config struct {
	Waveform  string
	Frequency float64
	Amplitude float64

	SampleRate int
	Channels   int

	Descriptors      int
	DescriptorFrames int
	MaxWait          time.Duration
	TimeoutLogEvery  int
	Completion       bool
	Clock            string

	Output      string
	ControlAddr string
	Name        string
	Advertise   bool
	LogFile     string
}

// Load reads envFile when it exists, then builds the configuration from the
// environment. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var errs []string
	intEnv := func(key string, fallback int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return fallback
		}
		return v
	}
	floatEnv := func(key string, fallback float64) float64 {
		v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(fallback, 'g', -1, 64)), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return fallback
		}
		return v
	}
	boolEnv := func(key string, fallback bool) bool {
		v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return fallback
		}
		return v
	}

	maxWait, err := time.ParseDuration(getEnv("MAX_WAIT", "100ms"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("MAX_WAIT: %v", err))
		maxWait = 100 * time.Millisecond
	}

	cfg := &Config{
		Waveform:         getEnv("WAVEFORM", "triangle"),
		Frequency:        floatEnv("FREQUENCY", 440),
		Amplitude:        floatEnv("AMPLITUDE", 0.5),
		SampleRate:       intEnv("SAMPLE_RATE", 16000),
		Channels:         intEnv("CHANNELS", 2),
		Descriptors:      intEnv("DESCRIPTORS", 12),
		DescriptorFrames: intEnv("DESCRIPTOR_FRAMES", 240),
		MaxWait:          maxWait,
		TimeoutLogEvery:  intEnv("TIMEOUT_LOG_EVERY", 10),
		Completion:       boolEnv("COMPLETION", false),
		Clock:            getEnv("CLOCK", "pll"),
		Output:           getEnv("OUTPUT", "oto"),
		ControlAddr:      getEnv("CONTROL_ADDR", ":8928"),
		Name:             getEnv("NAME", ""),
		Advertise:        boolEnv("ADVERTISE", true),
		LogFile:          getEnv("LOG_FILE", "tonestream.log"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate checks settings that are not validated by the components themselves
func (c *Config) Validate() error {
	known := false
	for _, o := range Outputs {
		if c.Output == o {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown output %q (expected one of %s)", c.Output, strings.Join(Outputs, ", "))
	}
	if c.Output == "websocket" && c.ControlAddr == "" {
		return fmt.Errorf("websocket output needs a control address")
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max wait must be positive, got %v", c.MaxWait)
	}
	if c.TimeoutLogEvery <= 0 {
		return fmt.Errorf("timeout log interval must be positive, got %d", c.TimeoutLogEvery)
	}
	return nil
}

// getEnv reads TONESTREAM_<key>
func getEnv(key, fallback string) string {
	if v := os.Getenv("TONESTREAM_" + key); v != "" {
		return v
	}
	return fallback
}
