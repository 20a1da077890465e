package camera

import "fmt"

// Snapshot paths served by the various robot daemons, most likely first.
var snapshotPresets = []struct {
	port int
	path string
}{
	{8000, "/camera/snapshot"},
	{8000, "/api/camera/snapshot"},
	{8000, "/snapshot"},
	{8080, "/snapshot"},
	{8554, "/snapshot"},
	{9000, "/snapshot"},
}

// EnrollPort serves the enrollment helper's snapshot endpoint.
const EnrollPort = 9001

// DefaultEndpoints returns the probe list for a robot at host.
func DefaultEndpoints(host string) []string {
	urls := make([]string, len(snapshotPresets))
	for i, p := range snapshotPresets {
		urls[i] = fmt.Sprintf("http://%s:%d%s", host, p.port, p.path)
	}
	return urls
}

// EnrollEndpoint returns the enrollment snapshot URL for host.
func EnrollEndpoint(host string) string {
	return fmt.Sprintf("http://%s:%d/snapshot", host, EnrollPort)
}
