package config

import (
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the engine is running inside a Docker
// container, detected via the /.dockerenv marker file. The result is cached
// after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns the host address to use when connecting to
// services outside the container. Inside Docker, "localhost" and "127.0.0.1"
// are rewritten to "host.docker.internal" so warehouse connections reach the
// host machine. Otherwise the host is returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}

	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}

	return host
}
