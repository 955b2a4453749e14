// Build metadata injected through ldflags, e.g.
//
//	go build -ldflags "-X github.com/nobletooth/detskip/pkg/utils.Version=v1.2.0 -X ...utils.Commit=$(git rev-parse HEAD)"
//
// Test binaries additionally set `utils.TestMode=true`, which turns invariant violations into panics.
// CAUTION: keep the variable names stable, the release scripts reference them.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

// defaultVersion is reported when the binary was built without `-X .../utils.Version=...`.
const defaultVersion = "v0.0.0-dev"

var (
	TestMode   string // "true" in binaries built for tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  = time.Now()
)

func init() {
	Version = orUnknown(Version, defaultVersion)
	Commit = orUnknown(Commit, "unknown")
	BuildTime = orUnknown(BuildTime, "unknown")
	if TestMode == "" {
		return
	}
	parsed, err := strconv.ParseBool(TestMode)
	if err != nil {
		slog.Warn("Ignoring malformed TestMode build flag.", "testMode", TestMode, "error", err)
		return
	}
	IsTestMode = parsed
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Uptime reports how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}

// BuildInfo returns the build metadata as slog attributes.
func BuildInfo() []any {
	return []any{"version", Version, "commit", Commit, "build", BuildTime}
}
