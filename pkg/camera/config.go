// Package camera grabs JPEG snapshots from the robot's camera over HTTP.
//
// The robot exposes its camera on different endpoints depending on the
// daemon version, so the Snapshotter probes a list of candidates in order and
// remembers the first one that answers with an image.
package camera

import (
	"errors"
	"fmt"
	"time"
)

// Config holds camera settings.
type Config struct {
	// Host is the robot's address (IP or hostname).
	Host string `yaml:"host" json:"host"`

	// Endpoints overrides the probe list. Empty means DefaultEndpoints(Host).
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Timeout bounds each snapshot request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultTimeout for a single snapshot request.
const DefaultTimeout = 3 * time.Second

// DefaultConfig returns the default configuration for a robot at host.
func DefaultConfig(host string) Config {
	return Config{
		Host:    host,
		Timeout: DefaultTimeout,
	}
}

// ErrNoHost is returned when neither Host nor Endpoints is set.
var ErrNoHost = errors.New("camera: host is required")

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" && len(c.Endpoints) == 0 {
		return ErrNoHost
	}
	if c.Timeout < 0 {
		return fmt.Errorf("camera: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

func (c *Config) endpoints() []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	return DefaultEndpoints(c.Host)
}
