package config

import (
	"fmt"
	"os"
)

// Robot daemon defaults.
const (
	DefaultRobotPort  = 8000
	DefaultSignalPort = 8443
)

// Robot locates the Reachy Mini on the network.
type Robot struct {
	// Host is the robot's IP or hostname. ROBOT_IP overrides it.
	Host string `yaml:"host" json:"host"`
}

// RobotIP returns the robot IP from the ROBOT_IP env var, falling back to
// defaultIP when unset.
func RobotIP(defaultIP string) string {
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// RobotAPIURL returns the daemon's HTTP API base URL.
func RobotAPIURL(host string) string {
	return fmt.Sprintf("http://%s:%d", host, DefaultRobotPort)
}

// SignalURL returns the robot's WebRTC signalling endpoint.
func SignalURL(host string) string {
	return fmt.Sprintf("ws://%s:%d", host, DefaultSignalPort)
}
